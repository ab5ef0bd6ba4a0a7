package coordinator

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/arefrazavi/memgraph/pkg/delta"
	"github.com/arefrazavi/memgraph/pkg/errs"
	"github.com/arefrazavi/memgraph/pkg/gid"
	"github.com/arefrazavi/memgraph/pkg/value"
)

// msgKind tags which RPC an envelope carries, the gob equivalent of the
// WAL's StateDelta tag byte.
type msgKind uint8

const (
	msgUpdate msgKind = iota
	msgCreateVertex
	msgRegisterWorker
	msgClusterDiscovery
	msgStopWorker
	msgAck
	msgError
)

// envelope is the one message shape every RPC speaks, gob-encoded and
// length-prefixed on the wire. Only the fields relevant to Kind are
// populated, the same tagged-union discipline delta.StateDelta uses.
type envelope struct {
	Kind msgKind

	// Update
	Addr  gid.Address
	TxID  uint64
	Delta delta.StateDelta

	// CreateVertex
	Worker gid.WorkerID
	Labels []string
	Props  map[string]value.TypedValue
	NewGid gid.Gid

	// RegisterWorker / ClusterDiscovery
	SessionID string
	SelfAddr  string
	Peers     map[gid.WorkerID]string

	// Error
	ErrMsg string
}

// transport wraps one net.Conn with length-prefixed gob framing: a 4-byte
// big-endian length header followed by that many bytes of gob-encoded
// envelope, mirroring the WAL's own length-prefixed record framing so the
// two binary protocols in this codebase read the same way.
type transport struct {
	mu   sync.Mutex
	conn net.Conn
	enc  *gob.Encoder
	dec  *gob.Decoder
}

func newTransport(conn net.Conn) *transport {
	return &transport{conn: conn}
}

func (t *transport) send(e envelope) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return fmt.Errorf("%w: encode envelope: %v", errs.ErrRpcFailure, err)
	}

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(buf.Len()))
	if _, err := t.conn.Write(header[:]); err != nil {
		return fmt.Errorf("%w: write length: %v", errs.ErrRpcFailure, err)
	}
	if _, err := t.conn.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("%w: write payload: %v", errs.ErrRpcFailure, err)
	}
	return nil
}

func (t *transport) receive() (envelope, error) {
	var header [4]byte
	if _, err := io.ReadFull(t.conn, header[:]); err != nil {
		return envelope{}, fmt.Errorf("%w: read length: %v", errs.ErrRpcFailure, err)
	}
	n := binary.BigEndian.Uint32(header[:])
	payload := make([]byte, n)
	if _, err := io.ReadFull(t.conn, payload); err != nil {
		return envelope{}, fmt.Errorf("%w: read payload: %v", errs.ErrRpcFailure, err)
	}
	var e envelope
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&e); err != nil {
		return envelope{}, fmt.Errorf("%w: decode envelope: %v", errs.ErrRpcFailure, err)
	}
	return e, nil
}

func (t *transport) Close() error { return t.conn.Close() }

// Serve accepts connections on ln until it is closed, handling each with
// its own handler goroutine — one per connection, matching the
// goroutine-per-connection shape the rest of this codebase's transport
// layers use.
func (c *Coordinator) Serve(ln net.Listener, applier Applier, creator VertexCreator) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if c.isStopped() {
				return nil
			}
			return err
		}
		go c.handleConn(conn, applier, creator)
	}
}

func (c *Coordinator) handleConn(conn net.Conn, applier Applier, creator VertexCreator) {
	defer conn.Close()
	t := newTransport(conn)
	for {
		e, err := t.receive()
		if err != nil {
			return
		}
		resp := c.dispatch(e, applier, creator)
		if err := t.send(resp); err != nil {
			c.Log.Warn().Err(err).Msg("coordinator: failed to send rpc response")
			return
		}
	}
}

func (c *Coordinator) dispatch(e envelope, applier Applier, creator VertexCreator) envelope {
	if c.isStopped() {
		return envelope{Kind: msgError, ErrMsg: "worker stopped"}
	}
	switch e.Kind {
	case msgUpdate:
		c.Buffer(e.Addr, e.Delta)
		return envelope{Kind: msgAck}

	case msgCreateVertex:
		if creator == nil {
			return envelope{Kind: msgError, ErrMsg: "worker has no local vertex creator configured"}
		}
		g, err := creator.CreateVertexLocal(e.Labels, e.Props)
		if err != nil {
			return envelope{Kind: msgError, ErrMsg: err.Error()}
		}
		return envelope{Kind: msgAck, NewGid: g}

	case msgRegisterWorker:
		c.RegisterWorker(e.Worker, e.SelfAddr)
		return envelope{Kind: msgAck, SessionID: uuid.NewString(), Peers: c.ClusterDiscovery()}

	case msgClusterDiscovery:
		return envelope{Kind: msgAck, Peers: c.ClusterDiscovery()}

	case msgStopWorker:
		c.StopWorker()
		return envelope{Kind: msgAck}

	default:
		return envelope{Kind: msgError, ErrMsg: fmt.Sprintf("unknown rpc kind %d", e.Kind)}
	}
}

// dial returns the live transport to peer id, connecting lazily and
// keeping the connection open for reuse across calls.
func (c *Coordinator) dial(id gid.WorkerID) (*transport, error) {
	c.mu.RLock()
	p, ok := c.peers[id]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown worker %d", errs.ErrRpcFailure, id)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		return p.conn, nil
	}
	conn, err := net.Dial("tcp", p.addr)
	if err != nil {
		return nil, fmt.Errorf("%w: dial worker %d at %s: %v", errs.ErrRpcFailure, id, p.addr, err)
	}
	p.conn = newTransport(conn)
	return p.conn, nil
}

// Update implements graph.Remote: it forwards d to the worker owning addr
// over RPC, buffering it there until that transaction's commit outcome is
// known.
func (c *Coordinator) Update(addr gid.Address, txID uint64, d delta.StateDelta) error {
	t, err := c.dial(addr.Worker)
	if err != nil {
		if c.Metrics != nil {
			c.Metrics.RPCFailures.Inc()
		}
		return err
	}
	if err := t.send(envelope{Kind: msgUpdate, Addr: addr, TxID: txID, Delta: d}); err != nil {
		if c.Metrics != nil {
			c.Metrics.RPCFailures.Inc()
		}
		return err
	}
	resp, err := t.receive()
	if err != nil {
		if c.Metrics != nil {
			c.Metrics.RPCFailures.Inc()
		}
		return err
	}
	if resp.Kind == msgError {
		return fmt.Errorf("%w: %s", errs.ErrRpcFailure, resp.ErrMsg)
	}
	return nil
}

// CreateVertexRemote implements graph.Remote: it asks the owning worker
// to allocate and create a vertex on its own Gid space, for the case a
// CREATE clause needs to place a new vertex on a specific worker (e.g.
// load-balanced placement) other than the one running the query.
func (c *Coordinator) CreateVertexRemote(worker gid.WorkerID, txID uint64, labels []string, props map[string]value.TypedValue) (gid.Gid, error) {
	t, err := c.dial(worker)
	if err != nil {
		if c.Metrics != nil {
			c.Metrics.RPCFailures.Inc()
		}
		return 0, err
	}
	if err := t.send(envelope{Kind: msgCreateVertex, Worker: worker, TxID: txID, Labels: labels, Props: props}); err != nil {
		if c.Metrics != nil {
			c.Metrics.RPCFailures.Inc()
		}
		return 0, err
	}
	resp, err := t.receive()
	if err != nil {
		if c.Metrics != nil {
			c.Metrics.RPCFailures.Inc()
		}
		return 0, err
	}
	if resp.Kind == msgError {
		return 0, fmt.Errorf("%w: %s", errs.ErrRpcFailure, resp.ErrMsg)
	}
	return resp.NewGid, nil
}

// Join dials peer, performs the RegisterWorker handshake (exchanging a
// fresh session id and the responder's view of cluster membership), and
// records it.
func (c *Coordinator) Join(addr string) (map[gid.WorkerID]string, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", errs.ErrRpcFailure, addr, err)
	}
	t := newTransport(conn)
	if err := t.send(envelope{Kind: msgRegisterWorker, Worker: c.Self}); err != nil {
		return nil, err
	}
	resp, err := t.receive()
	if err != nil {
		return nil, err
	}
	if resp.Kind == msgError {
		return nil, fmt.Errorf("%w: %s", errs.ErrRpcFailure, resp.ErrMsg)
	}
	for id, peerAddr := range resp.Peers {
		c.RegisterWorker(id, peerAddr)
	}
	return resp.Peers, nil
}
