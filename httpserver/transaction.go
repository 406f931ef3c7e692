package httpserver

import (
	"fmt"
	"net"

	"github.com/fenwick-labs/netcore/api"
	"github.com/fenwick-labs/netcore/ioengine"
	"github.com/fenwick-labs/netcore/reactor"
)

// RequestContentCallback receives one filled chunk of a streamed request
// body. more is the number of bytes (or, for chunked requests, an
// opaque nonzero sentinel) still to come; more == 0 marks EOF.
type RequestContentCallback func(tx *Transaction, chunk []byte, more uint64) error

// ResponseContentCallback is invoked after Transaction.Send drains a
// chunk, so the caller can queue the next one.
type ResponseContentCallback func(tx *Transaction, sent []byte, more uint64) error

// Upgrade is returned by Transaction.Upgraded: the connection, detached
// from further HTTP bookkeeping, handed to whatever protocol is taking
// over (WebSocket in practice). Exactly one of Bridge or Conn is set:
// a connection already pumped through a reactor (see httpserver.Server)
// hands over its Bridge so the new protocol keeps using the same
// reactor thread; anything else (TLS, or a test net.Pipe) hands over
// the plain net.Conn for blocking use.
type Upgrade struct {
	Subprotocol string
	Conn        net.Conn
	Bridge      *ioengine.Bridge
	Reactor     *reactor.Reactor
	Secure      bool
}

// Transaction represents one HTTP/1.1 request/response exchange.
type Transaction struct {
	Server *Server

	ID             uint64
	RequestMethod  string
	RequestTarget  string
	RequestVersion string

	// RequestContentLength is a byte count, or ChunkedTransferEncoding if
	// the request body uses chunked transfer encoding.
	RequestContentLength uint64

	// User is opaque storage for whatever the application wants to carry
	// alongside a transaction (a session handle, a trace id, ...).
	User any

	requestFields []HeaderField
	conn          *conn

	bodyRemaining   uint64
	bodyIsChunked   bool
	chunkRemaining  uint64 // bytes left in the chunk currently being read
	chunkedBodyDone bool

	respondedHeaders bool
	responseChunked  bool
	upgraded         bool
	failed           bool
}

// NewRequestTransaction builds a Transaction carrying only request-side
// state (method, target, header fields) with no backing connection.
// It exists for callers that need to evaluate request-inspection logic
// such as wsserver.IsUpgrade without a live socket.
func NewRequestTransaction(method, target string, fields []HeaderField) *Transaction {
	return &Transaction{
		RequestMethod: method,
		RequestTarget: target,
		requestFields: fields,
	}
}

// GetRequestValue returns the index-th occurrence of header name, or
// false if there are not that many.
func (tx *Transaction) GetRequestValue(name string, index int) (string, bool) {
	return headerValue(tx.requestFields, name, index)
}

// ContainsRequestValue reports whether value appears as a delim-delimited
// token within header name (case-insensitive on both header name and
// token). An empty delim defaults to ",".
func (tx *Transaction) ContainsRequestValue(name, value, delim string) bool {
	return headerContainsToken(tx.requestFields, name, value, delim)
}

// RequestFields returns the request's header fields in on-wire order.
func (tx *Transaction) RequestFields() []HeaderField {
	return tx.requestFields
}

// Receive reads the request body (or, for a chunked request, its next
// chunk) into buf and invokes callback once per fill. more is the
// remaining byte count still expected (ChunkedTransferEncoding-framed
// requests report more as nonzero until the terminating zero-length
// chunk). Receive returns once the whole body has been delivered.
func (tx *Transaction) Receive(buf []byte, callback RequestContentCallback) error {
	if tx.RequestContentLength == ChunkedTransferEncoding {
		return tx.receiveChunked(buf, callback)
	}
	return tx.receiveFixed(buf, callback)
}

func (tx *Transaction) receiveFixed(buf []byte, callback RequestContentCallback) error {
	remaining := tx.bodyRemaining
	for remaining > 0 {
		n := len(buf)
		if uint64(n) > remaining {
			n = int(remaining)
		}
		read, err := tx.conn.reader.Read(buf[:n])
		if err != nil {
			return err
		}
		remaining -= uint64(read)
		tx.bodyRemaining = remaining
		if err := callback(tx, buf[:read], remaining); err != nil {
			return err
		}
	}
	return nil
}

func (tx *Transaction) receiveChunked(buf []byte, callback RequestContentCallback) error {
	for {
		if tx.chunkRemaining == 0 {
			size, err := readChunkSize(tx.conn.reader)
			if err != nil {
				return err
			}
			if size == 0 {
				if _, err := tx.conn.reader.ReadString('\n'); err != nil {
					return err
				}
				tx.chunkedBodyDone = true
				return callback(tx, nil, 0)
			}
			tx.chunkRemaining = size
		}

		n := len(buf)
		if uint64(n) > tx.chunkRemaining {
			n = int(tx.chunkRemaining)
		}
		read, err := tx.conn.reader.Read(buf[:n])
		if err != nil {
			return err
		}
		tx.chunkRemaining -= uint64(read)
		if tx.chunkRemaining == 0 {
			if _, err := tx.conn.reader.ReadString('\n'); err != nil {
				return err
			}
		}
		if err := callback(tx, buf[:read], 1); err != nil {
			return err
		}
	}
}

// Respond writes a status line and headers, promising contentLength
// bytes of body (or ChunkedTransferEncoding for a chunked response).
// The caller streams the body with Send.
func (tx *Transaction) Respond(status StatusCode, reason string, headers []HeaderField, contentLength uint64) error {
	if tx.respondedHeaders {
		return api.NewError(api.ErrCodeInternal, "httpserver: Respond called twice")
	}
	if reason == "" {
		reason = status.String()
	}
	w := tx.conn.writer
	if _, err := fmt.Fprintf(w, "HTTP/1.1 %d %s\r\n", status, reason); err != nil {
		return err
	}
	for _, h := range headers {
		if _, err := fmt.Fprintf(w, "%s: %s\r\n", h.Name, h.Value); err != nil {
			return err
		}
	}
	if contentLength == ChunkedTransferEncoding {
		tx.responseChunked = true
		if _, err := fmt.Fprintf(w, "Transfer-Encoding: chunked\r\n"); err != nil {
			return err
		}
	} else {
		if _, err := fmt.Fprintf(w, "Content-Length: %d\r\n", contentLength); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprint(w, "\r\n"); err != nil {
		tx.failed = true
		return err
	}
	tx.respondedHeaders = true
	if err := w.Flush(); err != nil {
		tx.failed = true
		return err
	}
	return nil
}

// RespondUpgrade writes a response that carries no body at all (no
// Content-Length, no Transfer-Encoding) — the shape RFC 6455's 101
// Switching Protocols response requires. Callers normally reach this
// through wsserver.Upgrade rather than directly.
func (tx *Transaction) RespondUpgrade(status StatusCode, reason string, headers []HeaderField) error {
	if tx.respondedHeaders {
		return api.NewError(api.ErrCodeInternal, "httpserver: Respond called twice")
	}
	if reason == "" {
		reason = status.String()
	}
	w := tx.conn.writer
	if _, err := fmt.Fprintf(w, "HTTP/1.1 %d %s\r\n", status, reason); err != nil {
		return err
	}
	for _, h := range headers {
		if _, err := fmt.Fprintf(w, "%s: %s\r\n", h.Name, h.Value); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprint(w, "\r\n"); err != nil {
		tx.failed = true
		return err
	}
	tx.respondedHeaders = true
	if err := w.Flush(); err != nil {
		tx.failed = true
		return err
	}
	return nil
}

// RespondBody is the single-shot variant: it writes the status line,
// headers, a Content-Length computed from body, and body itself.
func (tx *Transaction) RespondBody(status StatusCode, headers []HeaderField, body []byte) error {
	if err := tx.Respond(status, "", headers, uint64(len(body))); err != nil {
		return err
	}
	return tx.Send(body, 0)
}

// Send streams one body chunk. more is the remaining count the caller
// expects to send afterward; more == 0 closes a chunked body (a final
// zero-length chunk) or simply marks the fixed-length body complete.
func (tx *Transaction) Send(chunk []byte, more uint64) error {
	if !tx.respondedHeaders {
		return api.NewError(api.ErrCodeInternal, "httpserver: Send called before Respond")
	}
	w := tx.conn.writer
	if tx.responseChunked {
		if len(chunk) > 0 {
			if _, err := fmt.Fprintf(w, "%x\r\n", len(chunk)); err != nil {
				return err
			}
			if _, err := w.Write(chunk); err != nil {
				return err
			}
			if _, err := fmt.Fprint(w, "\r\n"); err != nil {
				return err
			}
		}
		if more == 0 {
			if _, err := fmt.Fprint(w, "0\r\n\r\n"); err != nil {
				return err
			}
		}
	} else {
		if _, err := w.Write(chunk); err != nil {
			tx.failed = true
			return err
		}
	}
	if err := w.Flush(); err != nil {
		tx.failed = true
		return err
	}
	return nil
}

// Upgraded detaches the underlying connection from HTTP bookkeeping and
// hands it to the caller. After this call no further Transaction
// methods may be used; the server will not close the connection itself.
func (tx *Transaction) Upgraded() (*Upgrade, error) {
	if tx.upgraded {
		return nil, api.NewError(api.ErrCodeInternal, "httpserver: already upgraded")
	}
	tx.upgraded = true
	if tx.conn.bridge != nil {
		return &Upgrade{Bridge: tx.conn.bridge, Reactor: tx.conn.reactor, Secure: tx.conn.secure}, nil
	}
	return &Upgrade{Conn: tx.conn.raw, Secure: tx.conn.secure}, nil
}

func readChunkSize(r interface{ ReadString(byte) (string, error) }) (uint64, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return 0, err
	}
	line = trimCRLF(line)
	if i := indexByte(line, ';'); i >= 0 {
		line = line[:i]
	}
	var size uint64
	if _, err := fmt.Sscanf(line, "%x", &size); err != nil {
		return 0, errBadRequest("malformed chunk size")
	}
	return size, nil
}

func trimCRLF(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}
