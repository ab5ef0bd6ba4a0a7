package coordinator

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arefrazavi/memgraph/pkg/delta"
	"github.com/arefrazavi/memgraph/pkg/gid"
	"github.com/arefrazavi/memgraph/pkg/logx"
	"github.com/arefrazavi/memgraph/pkg/value"
)

type fakeApplier struct{ applied []delta.StateDelta }

func (f *fakeApplier) Apply(d delta.StateDelta) error {
	f.applied = append(f.applied, d)
	return nil
}

type fakeCreator struct{ next gid.Gid }

func (f *fakeCreator) CreateVertexLocal(labels []string, props map[string]value.TypedValue) (gid.Gid, error) {
	f.next++
	return f.next, nil
}

func TestBufferAndApplyDrainsOnlyCommitted(t *testing.T) {
	c := New(1, logx.Nop(), nil)
	addr := gid.Address{Worker: 1, Gid: gid.New(1, 5)}
	c.Buffer(addr, delta.StateDelta{Tag: delta.SetPropertyVertex, TxID: 1})
	c.Buffer(addr, delta.StateDelta{Tag: delta.SetPropertyVertex, TxID: 2})

	applier := &fakeApplier{}
	committed := func(txID uint64) bool { return txID == 1 }
	require.NoError(t, c.Apply(addr, committed, applier))
	require.Len(t, applier.applied, 1)
	require.Equal(t, uint64(1), applier.applied[0].TxID)

	// tx 2 is still buffered.
	require.NoError(t, c.Apply(addr, func(uint64) bool { return true }, applier))
	require.Len(t, applier.applied, 2)
}

func TestClearTransactionalCacheEvictsOldDeltas(t *testing.T) {
	c := New(1, logx.Nop(), nil)
	addr := gid.Address{Worker: 1, Gid: gid.New(1, 1)}
	c.Buffer(addr, delta.StateDelta{TxID: 1})
	c.Buffer(addr, delta.StateDelta{TxID: 10})

	evicted := c.ClearTransactionalCache(5)
	require.Equal(t, 1, evicted)

	applier := &fakeApplier{}
	require.NoError(t, c.Apply(addr, func(uint64) bool { return true }, applier))
	require.Len(t, applier.applied, 1)
	require.Equal(t, uint64(10), applier.applied[0].TxID)
}

func TestUpdateRPCRoundTrip(t *testing.T) {
	server := New(2, logx.Nop(), nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go server.Serve(ln, &fakeApplier{}, nil)

	client := New(1, logx.Nop(), nil)
	client.RegisterWorker(2, ln.Addr().String())

	addr := gid.Address{Worker: 2, Gid: gid.New(2, 7)}
	d := delta.StateDelta{Tag: delta.SetPropertyVertex, TxID: 9, Vertex: addr}
	require.NoError(t, client.Update(addr, 9, d))

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		server.mu.RLock()
		q, ok := server.pending[addr]
		server.mu.RUnlock()
		if ok {
			q.mu.Lock()
			n := len(q.deltas)
			q.mu.Unlock()
			if n == 1 {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("update never arrived at server")
}

func TestCreateVertexRemoteRPCRoundTrip(t *testing.T) {
	server := New(2, logx.Nop(), nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go server.Serve(ln, &fakeApplier{}, &fakeCreator{})

	client := New(1, logx.Nop(), nil)
	client.RegisterWorker(2, ln.Addr().String())

	g, err := client.CreateVertexRemote(2, 9, []string{"Person"}, map[string]value.TypedValue{})
	require.NoError(t, err)
	require.Equal(t, gid.Gid(1), g)
}
