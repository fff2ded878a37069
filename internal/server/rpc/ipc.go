package rpc

import (
	"context"
	"encoding/json"
	"io"
	"net"
)

// ListenIPC creates a listener on the given IPC endpoint.
// The caller is responsible for closing the listener during shutdown.
func ListenIPC(endpoint string) (net.Listener, error) {
	return ipcListen(endpoint)
}

// ServeListener accepts connections on l, serving JSON-RPC on them.
func (s *Server) ServeListener(l net.Listener) error {
	for {
		conn, err := l.Accept()
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			continue
		} else if err != nil {
			return err
		}
		go s.ServeConn(conn)
	}
}

// ServeConn reads JSON-RPC messages from conn until the connection is closed.
// Each message is answered on the same connection, one response per line.
func (s *Server) ServeConn(conn net.Conn) {
	defer func() {
		_ = conn.Close()
	}()

	in := json.NewDecoder(conn)
	for {
		var raw json.RawMessage
		if err := in.Decode(&raw); err != nil {
			if err != io.EOF {
				resp := marshalResponse(errorMessage(&parseError{message: err.Error()}))
				_, _ = conn.Write(append(resp, '\n'))
			}
			return
		}

		resp := s.serveRequest(context.Background(), raw)
		if resp != nil {
			if _, err := conn.Write(append(resp, '\n')); err != nil {
				return
			}
		}
	}
}
