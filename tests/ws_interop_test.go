// Package tests is a separate module (see go.mod) so that
// github.com/gorilla/websocket only ever appears in the dependency
// graph of the interoperability suite, never in netcore itself. It
// dials netcore's wsserver as a real client and checks frame-for-frame
// compatibility: text echo, fragmentation, ping/pong, and close codes.
package tests

import (
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fenwick-labs/netcore/httpserver"
	"github.com/fenwick-labs/netcore/protocol"
	"github.com/fenwick-labs/netcore/wsserver"
)

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// startSingleSocketEchoServer wires the socket's OnMessage callback to bounce the payload
// straight back, used by the echo and fragmentation tests.
func startSingleSocketEchoServer(t *testing.T) (wsURL string, stop func()) {
	t.Helper()

	var echoSocket *protocol.Socket
	cfgMu := make(chan struct{}, 1)
	cfgMu <- struct{}{}

	srv := httpserver.NewServer(httpserver.Config{
		Address: "127.0.0.1:0",
	})

	ws := wsserver.NewServer(wsserver.Config{
		OnMessage: func(opcode byte, data []byte) {
			<-cfgMu
			s := echoSocket
			cfgMu <- struct{}{}
			if s != nil {
				s.SendMessage(opcode, data)
			}
		},
	})

	srv.AddPath("/chat", func(tx *httpserver.Transaction) {
		offered, ok := wsserver.IsUpgrade(tx)
		if !ok {
			tx.RespondBody(httpserver.StatusBadRequest, nil, nil)
			return
		}
		sub := ""
		if len(offered) > 0 {
			sub = offered[0]
		}
		sock, err := ws.Upgrade(tx, sub)
		if err != nil {
			tx.RespondBody(httpserver.StatusInternalServerError, nil, nil)
			return
		}
		<-cfgMu
		echoSocket = sock
		cfgMu <- struct{}{}
	}, nil)

	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	addr := srv.Addr().(*net.TCPAddr)
	url := "ws://127.0.0.1:" + itoa(addr.Port) + "/chat"
	return url, func() {
		srv.Stop()
		ws.Stop()
	}
}

func TestEchoRoundTrip(t *testing.T) {
	url, stop := startSingleSocketEchoServer(t)
	defer stop()

	header := http.Header{}
	header.Set("Sec-WebSocket-Protocol", "test")
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if resp.Header.Get("Sec-WebSocket-Protocol") != "test" {
		t.Fatalf("expected negotiated subprotocol 'test', got %q", resp.Header.Get("Sec-WebSocket-Protocol"))
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("Hello World")); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	mt, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if mt != websocket.TextMessage || string(data) != "Hello World" {
		t.Fatalf("unexpected echo: type=%d data=%q", mt, data)
	}

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err = conn.ReadMessage()
	if ce, ok := err.(*websocket.CloseError); !ok || ce.Code != websocket.CloseNormalClosure {
		t.Fatalf("expected clean close error with code %d, got %v", websocket.CloseNormalClosure, err)
	}
}

func TestPingPong(t *testing.T) {
	url, stop := startSingleSocketEchoServer(t)
	defer stop()

	header := http.Header{}
	header.Set("Sec-WebSocket-Protocol", "test")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	pongReceived := make(chan string, 1)
	conn.SetPongHandler(func(appData string) error {
		pongReceived <- appData
		return nil
	})

	if err := conn.WriteControl(websocket.PingMessage, []byte("ping-data"), time.Now().Add(time.Second)); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	// gorilla only invokes the pong handler while inside ReadMessage; run it
	// in the background since the server sends no data frame in reply.
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	go conn.ReadMessage()

	select {
	case got := <-pongReceived:
		if got != "ping-data" {
			t.Fatalf("unexpected pong payload: %q", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for pong")
	}
}

func TestFragmentedMessageReassembly(t *testing.T) {
	url, stop := startSingleSocketEchoServer(t)
	defer stop()

	header := http.Header{}
	header.Set("Sec-WebSocket-Protocol", "test")
	// An 8-byte write buffer makes the client flush a frame every 8 payload
	// bytes, so the 11-byte message below reaches the server as two frames.
	dialer := websocket.Dialer{WriteBufferSize: 8}
	conn, _, err := dialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	w, err := conn.NextWriter(websocket.TextMessage)
	if err != nil {
		t.Fatalf("NextWriter: %v", err)
	}
	w.Write([]byte("frag-"))
	w.Write([]byte("mented"))
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	mt, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if mt != websocket.TextMessage || string(data) != "frag-mented" {
		t.Fatalf("unexpected reassembled message: type=%d data=%q", mt, data)
	}
}
