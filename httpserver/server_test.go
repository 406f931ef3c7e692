package httpserver

import (
	"bufio"
	"io"
	"net"
	"net/textproto"
	"testing"
	"time"
)

func startTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	cfg.Address = "127.0.0.1:0"
	s := NewServer(cfg)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { s.Stop() })
	return s
}

func dial(t *testing.T, s *Server) net.Conn {
	t.Helper()
	c, err := net.DialTimeout("tcp", s.Addr().String(), time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestServerRespondsWithWholeBody(t *testing.T) {
	s := startTestServer(t, Config{
		OnStartTransaction: func(tx *Transaction) {
			tx.RespondBody(StatusOK, []HeaderField{{Name: "Content-Type", Value: "text/plain"}}, []byte("hello"))
		},
	})

	c := dial(t, s)
	io.WriteString(c, "GET /foo HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n")

	reader := textproto.NewReader(bufio.NewReader(c))
	statusLine, err := reader.ReadLine()
	if err != nil {
		t.Fatalf("read status line: %v", err)
	}
	if statusLine != "HTTP/1.1 200 OK" {
		t.Fatalf("unexpected status line: %q", statusLine)
	}
	hdr, err := reader.ReadMIMEHeader()
	if err != nil {
		t.Fatalf("read headers: %v", err)
	}
	if hdr.Get("Content-Length") != "5" {
		t.Fatalf("expected Content-Length 5, got %q", hdr.Get("Content-Length"))
	}
	body := make([]byte, 5)
	if _, err := io.ReadFull(reader.R, body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(body) != "hello" {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestServerStreamsChunkedResponse(t *testing.T) {
	s := startTestServer(t, Config{
		OnStartTransaction: func(tx *Transaction) {
			tx.Respond(StatusOK, "", nil, ChunkedTransferEncoding)
			tx.Send([]byte("abc"), 1)
			tx.Send([]byte("de"), 0)
		},
	})

	c := dial(t, s)
	io.WriteString(c, "GET / HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n")

	data, err := io.ReadAll(c)
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	want := "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n3\r\nabc\r\n2\r\nde\r\n0\r\n\r\n"
	if string(data) != want {
		t.Fatalf("unexpected response:\n got: %q\nwant: %q", data, want)
	}
}

func TestServerRunsPathOverride(t *testing.T) {
	var defaultCalled, overrideCalled bool
	s := startTestServer(t, Config{
		OnStartTransaction: func(tx *Transaction) {
			defaultCalled = true
			tx.RespondBody(StatusOK, nil, nil)
		},
	})
	s.AddPath("/special", func(tx *Transaction) {
		overrideCalled = true
		tx.RespondBody(StatusOK, nil, nil)
	}, nil)

	c := dial(t, s)
	io.WriteString(c, "GET /special HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n")
	io.ReadAll(c)

	if !overrideCalled || defaultCalled {
		t.Fatalf("expected override callback only: override=%v default=%v", overrideCalled, defaultCalled)
	}
}

func TestServerReceivesRequestBody(t *testing.T) {
	var gotBody []byte
	s := startTestServer(t, Config{
		OnStartTransaction: func(tx *Transaction) {
			buf := make([]byte, 64)
			tx.Receive(buf, func(tx *Transaction, chunk []byte, more uint64) error {
				gotBody = append(gotBody, chunk...)
				return nil
			})
			tx.RespondBody(StatusOK, nil, nil)
		},
	})

	c := dial(t, s)
	io.WriteString(c, "POST /echo HTTP/1.1\r\nHost: x\r\nContent-Length: 5\r\nConnection: close\r\n\r\nhello")
	io.ReadAll(c)

	if string(gotBody) != "hello" {
		t.Fatalf("expected body 'hello', got %q", gotBody)
	}
}
