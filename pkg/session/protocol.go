package session

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"net"

	"github.com/arefrazavi/memgraph/pkg/value"
)

// Request is one client query: the text plus its bound parameters.
type Request struct {
	Query  string
	Params map[string]value.TypedValue
}

// Response carries either a successful ExecuteResult or an error message,
// the same tagged-union discipline pkg/coordinator's envelope uses.
type Response struct {
	Columns []string
	Rows    [][]value.TypedValue
	Stats   QueryStats
	ErrMsg  string
}

// Serve accepts client connections on ln until it is closed, handling each
// with its own goroutine and a length-prefixed gob-encoded Request/
// Response pair per query — one round trip per Execute call, no
// multiplexing within a connection.
func (e *Engine) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go e.handleConn(conn)
	}
}

func (e *Engine) handleConn(conn net.Conn) {
	defer conn.Close()
	for {
		req, err := readRequest(conn)
		if err != nil {
			return
		}
		resp := e.handleRequest(req)
		if err := writeResponse(conn, resp); err != nil {
			e.Log.Warn().Err(err).Msg("session: failed to send response")
			return
		}
	}
}

func (e *Engine) handleRequest(req Request) Response {
	result, err := e.Execute(req.Query, req.Params)
	if err != nil {
		return Response{ErrMsg: err.Error()}
	}
	return Response{Columns: result.Columns, Rows: result.Rows, Stats: result.Stats}
}

func readRequest(r io.Reader) (Request, error) {
	payload, err := readFrame(r)
	if err != nil {
		return Request{}, err
	}
	var req Request
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&req); err != nil {
		return Request{}, fmt.Errorf("session: decode request: %w", err)
	}
	return req, nil
}

func writeResponse(w io.Writer, resp Response) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(resp); err != nil {
		return fmt.Errorf("session: encode response: %w", err)
	}
	return writeFrame(w, buf.Bytes())
}

func readFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(header[:])
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func writeFrame(w io.Writer, payload []byte) error {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// Client is a thin wrapper over one connection to a running Engine's
// Serve listener, for cmd/memgraphd's shell and for tests exercising the
// wire protocol end to end.
type Client struct {
	conn net.Conn
}

// Dial connects to a session listener at addr.
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("session: dial %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Execute sends one query over the wire and waits for its response.
func (c *Client) Execute(query string, params map[string]value.TypedValue) (*ExecuteResult, error) {
	if err := writeRequest(c.conn, Request{Query: query, Params: params}); err != nil {
		return nil, err
	}
	resp, err := readResponse(c.conn)
	if err != nil {
		return nil, err
	}
	if resp.ErrMsg != "" {
		return nil, fmt.Errorf("session: %s", resp.ErrMsg)
	}
	return &ExecuteResult{Columns: resp.Columns, Rows: resp.Rows, Stats: resp.Stats}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

func writeRequest(w io.Writer, req Request) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(req); err != nil {
		return fmt.Errorf("session: encode request: %w", err)
	}
	return writeFrame(w, buf.Bytes())
}

func readResponse(r io.Reader) (Response, error) {
	payload, err := readFrame(r)
	if err != nil {
		return Response{}, err
	}
	var resp Response
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&resp); err != nil {
		return Response{}, fmt.Errorf("session: decode response: %w", err)
	}
	return resp, nil
}
