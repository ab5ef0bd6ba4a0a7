// Package coordinator is the distributed layer: one Coordinator per
// worker process, buffering StateDeltas addressed to records this worker
// doesn't own until the owning worker's Apply call drains them, and
// exposing the RPC surface (Update, CreateVertex, RegisterWorker,
// ClusterDiscovery, StopWorker) peers call over net.Conn.
package coordinator

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/arefrazavi/memgraph/pkg/delta"
	"github.com/arefrazavi/memgraph/pkg/gid"
	"github.com/arefrazavi/memgraph/pkg/value"
)

// Metrics holds the coordinator's operational counters.
type Metrics struct {
	RPCFailures     prometheus.Counter
	BufferedDeltas  prometheus.Gauge
	ActiveWorkers   prometheus.Gauge
}

// NewMetrics registers the coordinator's metrics with reg, or returns a
// handle that no-ops everywhere if reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RPCFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "memgraph", Subsystem: "coordinator", Name: "rpc_failures_total",
			Help: "Number of RPC calls to peer workers that failed.",
		}),
		BufferedDeltas: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "memgraph", Subsystem: "coordinator", Name: "buffered_deltas",
			Help: "Number of StateDeltas buffered awaiting Apply on their owning worker.",
		}),
		ActiveWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "memgraph", Subsystem: "coordinator", Name: "active_workers",
			Help: "Number of peer workers currently registered.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.RPCFailures, m.BufferedDeltas, m.ActiveWorkers)
	}
	return m
}

// pendingQueue buffers the StateDeltas addressed to one record, in receipt
// order, guarded by its own mutex so one hot record never blocks updates to
// another — the per-record spinlock shape spec.md's buffering model calls
// for, implemented as a plain mutex since Go's runtime-managed goroutines
// make a hand-rolled spinlock pure overhead.
type pendingQueue struct {
	mu      sync.Mutex
	deltas  []delta.StateDelta
}

func (q *pendingQueue) push(d delta.StateDelta) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.deltas = append(q.deltas, d)
}

// drain removes and returns every buffered delta whose TxID is in
// committed, leaving deltas from transactions still pending right where
// they are.
func (q *pendingQueue) drain(committed func(txID uint64) bool) []delta.StateDelta {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []delta.StateDelta
	var keep []delta.StateDelta
	for _, d := range q.deltas {
		if committed(d.TxID) {
			out = append(out, d)
		} else {
			keep = append(keep, d)
		}
	}
	q.deltas = keep
	return out
}

// evictBefore drops every buffered delta whose TxID is strictly less than
// oldestActive — the garbage-collection counterpart to
// pkg/store.Store.GC's watermark, so long-committed-or-aborted deltas that
// somehow never drained don't accumulate forever.
func (q *pendingQueue) evictBefore(oldestActive uint64) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	var keep []delta.StateDelta
	evicted := 0
	for _, d := range q.deltas {
		if d.TxID < oldestActive {
			evicted++
			continue
		}
		keep = append(keep, d)
	}
	q.deltas = keep
	return evicted
}

// Applier is the graph-accessor-shaped surface Coordinator drains buffered
// deltas into once their owning transaction commits; pkg/graph.Accessor's
// mutation-replay path (or recovery's replay path) satisfies this without
// either package importing the other.
type Applier interface {
	Apply(d delta.StateDelta) error
}

// VertexCreator is the surface a worker exposes so a peer's
// CreateVertexRemote RPC can actually place a vertex on this worker's own
// Gid space, rather than the coordinator (which owns no storage of its
// own) trying to do it. Satisfied by pkg/session's Engine, which owns the
// live graph.Accessor/store pair this worker writes through.
type VertexCreator interface {
	CreateVertexLocal(labels []string, props map[string]value.TypedValue) (gid.Gid, error)
}

// Coordinator is the per-worker distributed-layer façade: it knows this
// worker's own id, the peers in the cluster, and buffers every update
// addressed to a record this worker doesn't yet own the commit outcome
// for.
type Coordinator struct {
	Self    gid.WorkerID
	Log     zerolog.Logger
	Metrics *Metrics

	mu      sync.RWMutex
	peers   map[gid.WorkerID]*peer
	pending map[gid.Address]*pendingQueue

	stopped bool
}

// New creates a Coordinator for this worker.
func New(self gid.WorkerID, log zerolog.Logger, metrics *Metrics) *Coordinator {
	return &Coordinator{
		Self:    self,
		Log:     log,
		Metrics: metrics,
		peers:   make(map[gid.WorkerID]*peer),
		pending: make(map[gid.Address]*pendingQueue),
	}
}

func (c *Coordinator) queueFor(addr gid.Address) *pendingQueue {
	c.mu.Lock()
	defer c.mu.Unlock()
	q, ok := c.pending[addr]
	if !ok {
		q = &pendingQueue{}
		c.pending[addr] = q
	}
	return q
}

// Buffer records a delta addressed to a local record whose owning
// transaction hasn't committed yet — called on the receiving end of an
// Update RPC, before the caller's transaction is known to have committed.
func (c *Coordinator) Buffer(addr gid.Address, d delta.StateDelta) {
	c.queueFor(addr).push(d)
	if c.Metrics != nil {
		c.Metrics.BufferedDeltas.Inc()
	}
}

// Apply drains every buffered delta addressed to addr whose transaction
// satisfies committed, applying each through applier in receipt order.
// Called once the coordinator learns a remote transaction committed
// (typically via a follow-up Apply RPC from the coordinating worker).
func (c *Coordinator) Apply(addr gid.Address, committed func(txID uint64) bool, applier Applier) error {
	q := c.queueFor(addr)
	drained := q.drain(committed)
	for _, d := range drained {
		if err := applier.Apply(d); err != nil {
			return err
		}
	}
	return nil
}

// ClearTransactionalCache evicts every buffered delta whose transaction
// committed or aborted strictly before oldestActive, across every
// address — the cross-worker counterpart to each Store's own GC sweep.
func (c *Coordinator) ClearTransactionalCache(oldestActive uint64) int {
	c.mu.RLock()
	queues := make([]*pendingQueue, 0, len(c.pending))
	for _, q := range c.pending {
		queues = append(queues, q)
	}
	c.mu.RUnlock()

	total := 0
	for _, q := range queues {
		total += q.evictBefore(oldestActive)
	}
	if c.Metrics != nil && total > 0 {
		c.Metrics.BufferedDeltas.Sub(float64(total))
	}
	return total
}

// RegisterWorker records a newly joined peer's address in this
// coordinator's membership table.
func (c *Coordinator) RegisterWorker(id gid.WorkerID, addr string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.peers[id]; !ok {
		c.peers[id] = &peer{id: id, addr: addr}
		if c.Metrics != nil {
			c.Metrics.ActiveWorkers.Inc()
		}
	}
}

// ClusterDiscovery returns every peer worker id this coordinator currently
// knows about, with its address; this coordinator's own id is not included.
func (c *Coordinator) ClusterDiscovery() map[gid.WorkerID]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[gid.WorkerID]string, len(c.peers)+1)
	for id, p := range c.peers {
		out[id] = p.addr
	}
	return out
}

// StopWorker marks this coordinator as shutting down: new RPCs are
// refused, existing connections are left to the caller to close.
func (c *Coordinator) StopWorker() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
}

func (c *Coordinator) isStopped() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stopped
}

// peer is a known cluster member and, once dialed, the live connection to
// it.
type peer struct {
	mu   sync.Mutex
	id   gid.WorkerID
	addr string
	conn *transport
}
