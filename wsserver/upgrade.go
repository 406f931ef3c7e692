package wsserver

import (
	"strings"

	"github.com/fenwick-labs/netcore/httpserver"
	"github.com/fenwick-labs/netcore/protocol"
)

// IsUpgrade reports whether tx is a well-formed WebSocket upgrade
// request: a GET carrying Connection: upgrade, Upgrade: websocket,
// Sec-WebSocket-Version: 13, a Sec-WebSocket-Key, and at least one
// offered subprotocol. It returns the offered subprotocols in the
// order the client listed them.
func IsUpgrade(tx *httpserver.Transaction) ([]string, bool) {
	if tx.RequestMethod != "GET" {
		return nil, false
	}
	if !tx.ContainsRequestValue("Connection", "upgrade", ",") {
		return nil, false
	}
	upgradeVal, ok := tx.GetRequestValue("Upgrade", 0)
	if !ok || !strings.EqualFold(strings.TrimSpace(upgradeVal), "websocket") {
		return nil, false
	}
	version, ok := tx.GetRequestValue("Sec-WebSocket-Version", 0)
	if !ok || strings.TrimSpace(version) != "13" {
		return nil, false
	}
	if _, ok := tx.GetRequestValue("Sec-WebSocket-Key", 0); !ok {
		return nil, false
	}
	protoHeader, ok := tx.GetRequestValue("Sec-WebSocket-Protocol", 0)
	if !ok {
		return nil, false
	}
	var offered []string
	for _, p := range strings.Split(protoHeader, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			offered = append(offered, p)
		}
	}
	if len(offered) == 0 {
		return nil, false
	}
	return offered, true
}

// Upgrade completes a validated upgrade request: it computes the
// Sec-WebSocket-Accept value, sends 101 Switching Protocols naming
// subprotocol, detaches the connection from tx, and wraps it as a new
// Socket wired to the Server's metrics registry and callbacks.
func (s *Server) Upgrade(tx *httpserver.Transaction, subprotocol string) (*protocol.Socket, error) {
	clientKey, _ := tx.GetRequestValue("Sec-WebSocket-Key", 0)
	accept := protocol.ComputeAcceptKey(clientKey)

	headers := []httpserver.HeaderField{
		{Name: "Upgrade", Value: "websocket"},
		{Name: "Connection", Value: "Upgrade"},
		{Name: "Sec-WebSocket-Accept", Value: accept},
	}
	if subprotocol != "" {
		headers = append(headers, httpserver.HeaderField{Name: "Sec-WebSocket-Protocol", Value: subprotocol})
	}
	if err := tx.RespondUpgrade(httpserver.StatusSwitchingProtocols, "", headers); err != nil {
		return nil, err
	}

	up, err := tx.Upgraded()
	if err != nil {
		return nil, err
	}
	up.Subprotocol = subprotocol

	id := s.nextSocketID()
	var socket *protocol.Socket
	if up.Bridge != nil {
		socket = protocol.NewSocketOnReactor(id, up.Bridge, up.Reactor, s.socketConfig(id))
	} else {
		socket = protocol.NewSocket(id, up.Conn, s.socketConfig(id))
	}
	s.register(id, socket)
	socket.Start()
	return socket, nil
}
