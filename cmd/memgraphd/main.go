// Command memgraphd runs the graph engine: start a worker with serve, poke
// it interactively with shell, or dry-run a durability directory's
// recovery with wal-replay.
package main

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/arefrazavi/memgraph/pkg/config"
	"github.com/arefrazavi/memgraph/pkg/coordinator"
	"github.com/arefrazavi/memgraph/pkg/gid"
	"github.com/arefrazavi/memgraph/pkg/graph"
	"github.com/arefrazavi/memgraph/pkg/index"
	"github.com/arefrazavi/memgraph/pkg/logx"
	"github.com/arefrazavi/memgraph/pkg/session"
	"github.com/arefrazavi/memgraph/pkg/snapshot"
	"github.com/arefrazavi/memgraph/pkg/store"
	"github.com/arefrazavi/memgraph/pkg/txn"
	"github.com/arefrazavi/memgraph/pkg/wal"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "memgraphd",
		Short:   "Distributed transactional property-graph engine",
		Version: version,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start a worker: session listener, cross-worker RPC, WAL flusher, and GC loop",
		RunE:  runServe,
	}
	serveCmd.Flags().String("config", "", "path to a YAML config overlay")
	rootCmd.AddCommand(serveCmd)

	shellCmd := &cobra.Command{
		Use:   "shell",
		Short: "Interactive query shell against a local in-process engine",
		RunE:  runShell,
	}
	shellCmd.Flags().String("config", "", "path to a YAML config overlay")
	rootCmd.AddCommand(shellCmd)

	replayCmd := &cobra.Command{
		Use:   "wal-replay <dir>",
		Short: "Replay a durability directory and print a recovery summary without starting a server",
		Args:  cobra.ExactArgs(1),
		RunE:  runWalReplay,
	}
	rootCmd.AddCommand(replayCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg := config.LoadFromEnvOrFile(configPath)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("memgraphd: invalid configuration: %w", err)
	}

	log := logx.New("memgraphd", logx.Options{Level: cfg.Logging.Level, Pretty: cfg.Logging.Pretty})

	fmt.Printf("starting memgraphd %s\n", version)
	fmt.Printf("  worker id:        %d\n", cfg.Cluster.WorkerID)
	fmt.Printf("  listen address:   %s\n", cfg.Server.ListenAddress)
	fmt.Printf("  durability dir:   %s\n", cfg.Durability.Directory)
	fmt.Printf("  durability on:    %v\n", cfg.Durability.Enabled)

	if cfg.Durability.Enabled {
		if err := os.MkdirAll(cfg.Durability.Directory, 0o755); err != nil {
			return fmt.Errorf("memgraphd: creating durability directory: %w", err)
		}
	}

	self := gid.WorkerID(cfg.Cluster.WorkerID)
	txnEngine := txn.New(0, log)
	locks := store.NewLockManager(cfg.Server.LockTimeout, log, nil)
	vertices := store.New[graph.Vertex](txnEngine, locks, log, nil)
	edges := store.New[graph.Edge](txnEngine, locks, log, nil)
	schema := index.NewSchema()
	vAlloc := gid.NewAllocator(self, 0)
	eAlloc := gid.NewAllocator(self, 0)

	var sink graph.Sink = graph.NopSink{}
	var walStore *wal.WAL
	var snapStore *snapshot.Store
	if cfg.Durability.Enabled {
		var err error
		walStore, err = wal.Open(cfg.Durability.Directory, log)
		if err != nil {
			return fmt.Errorf("memgraphd: opening wal: %w", err)
		}
		defer walStore.Close()
		sink = walStore

		snapStore, err = snapshot.Open(cfg.Durability.Directory+"/snapshot", log)
		if err != nil {
			return fmt.Errorf("memgraphd: opening snapshot store: %w", err)
		}
		defer snapStore.Close()
	}

	coord := coordinator.New(self, log, nil)

	replayer := &graph.Replayer{Self: self, Vertices: vertices, Edges: edges, Schema: schema, TxnEngine: txnEngine}
	if cfg.Durability.Enabled {
		fmt.Println("recovering from durability directory...")
		if err := session.Recover(cfg.Durability.Directory, snapStore, replayer, log); err != nil {
			return fmt.Errorf("memgraphd: recovery: %w", err)
		}
	}

	engine := &session.Engine{
		Self:         self,
		TxnEngine:    txnEngine,
		Vertices:     vertices,
		Edges:        edges,
		Schema:       schema,
		VAlloc:       vAlloc,
		EAlloc:       eAlloc,
		Sink:         sink,
		Remote:       coord,
		Coord:        coord,
		Log:          log,
		QueryTimeout: cfg.Server.QueryTimeout,
	}

	sessionLn, err := net.Listen("tcp", cfg.Server.ListenAddress)
	if err != nil {
		return fmt.Errorf("memgraphd: listening on %s: %w", cfg.Server.ListenAddress, err)
	}
	defer sessionLn.Close()
	go func() {
		if err := engine.Serve(sessionLn); err != nil {
			log.Error().Err(err).Msg("memgraphd: session listener stopped")
		}
	}()

	rpcLn, err := net.Listen("tcp", ":0")
	if err != nil {
		return fmt.Errorf("memgraphd: opening rpc listener: %w", err)
	}
	defer rpcLn.Close()
	go func() {
		if err := coord.Serve(rpcLn, replayer, engine); err != nil {
			log.Error().Err(err).Msg("memgraphd: rpc listener stopped")
		}
	}()

	for _, peer := range cfg.Cluster.JoinPeers {
		if _, err := coord.Join(peer); err != nil {
			log.Warn().Err(err).Str("peer", peer).Msg("memgraphd: failed to join peer")
		}
	}

	stopFlush := make(chan struct{})
	if cfg.Durability.Enabled {
		go flushLoop(walStore, cfg.Durability.FlushInterval, stopFlush, log)
	}
	go vertices.GCLoop(time.Second, txnEngine.OldestActive, stopFlush)
	go edges.GCLoop(time.Second, txnEngine.OldestActive, stopFlush)

	fmt.Println()
	fmt.Println("memgraphd is ready")
	fmt.Printf("  session address:  %s\n", sessionLn.Addr().String())
	fmt.Printf("  rpc address:      %s\n", rpcLn.Addr().String())
	fmt.Println()
	fmt.Println("press ctrl+c to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("shutting down...")
	close(stopFlush)
	coord.StopWorker()
	return nil
}

func flushLoop(w *wal.WAL, interval time.Duration, stop <-chan struct{}, log zerolog.Logger) {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := w.Flush(); err != nil {
				log.Warn().Err(err).Msg("memgraphd: wal flush failed")
			}
		}
	}
}

func runShell(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg := config.LoadFromEnvOrFile(configPath)
	log := logx.New("memgraphd-shell", logx.Options{Level: cfg.Logging.Level, Pretty: cfg.Logging.Pretty})

	self := gid.WorkerID(cfg.Cluster.WorkerID)
	txnEngine := txn.New(0, log)
	locks := store.NewLockManager(cfg.Server.LockTimeout, log, nil)
	engine := &session.Engine{
		Self:      self,
		TxnEngine: txnEngine,
		Vertices:  store.New[graph.Vertex](txnEngine, locks, log, nil),
		Edges:     store.New[graph.Edge](txnEngine, locks, log, nil),
		Schema:    index.NewSchema(),
		VAlloc:    gid.NewAllocator(self, 0),
		EAlloc:    gid.NewAllocator(self, 0),
		Sink:      graph.NopSink{},
		Log:       log,
	}

	fmt.Println("memgraphd shell — one query per line, blank line or EOF to exit")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return nil
		}
		line := scanner.Text()
		if line == "" {
			return nil
		}
		result, err := engine.Execute(line, nil)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}
		printResult(result)
	}
}

func printResult(result *session.ExecuteResult) {
	if len(result.Columns) > 0 {
		fmt.Println(result.Columns)
		for _, row := range result.Rows {
			fmt.Println(row)
		}
		fmt.Printf("(%d rows)\n", len(result.Rows))
		return
	}
	fmt.Printf("nodes created: %d, nodes deleted: %d, relationships created: %d, "+
		"relationships deleted: %d, properties set: %d, labels added: %d, labels removed: %d\n",
		result.Stats.NodesCreated, result.Stats.NodesDeleted,
		result.Stats.RelationshipsCreated, result.Stats.RelationshipsDeleted,
		result.Stats.PropertiesSet, result.Stats.LabelsAdded, result.Stats.LabelsRemoved)
}

func runWalReplay(cmd *cobra.Command, args []string) error {
	dir := args[0]
	log := logx.New("memgraphd-wal-replay", logx.Options{Level: "info"})

	txnEngine := txn.New(0, log)
	schema := index.NewSchema()
	locks := store.NewLockManager(0, log, nil)
	replayer := &graph.Replayer{
		Self:      0,
		Vertices:  store.New[graph.Vertex](txnEngine, locks, log, nil),
		Edges:     store.New[graph.Edge](txnEngine, locks, log, nil),
		Schema:    schema,
		TxnEngine: txnEngine,
	}

	deltas, err := wal.Recover(dir)
	if err != nil {
		return fmt.Errorf("memgraphd: reading wal: %w", err)
	}
	counts := map[string]int{}
	for _, d := range deltas {
		counts[d.Tag.String()]++
	}
	if err := replayer.ApplyAll(deltas); err != nil {
		return fmt.Errorf("memgraphd: replay failed: %w", err)
	}

	fmt.Printf("replayed %d deltas from %s\n", len(deltas), dir)
	for tag, n := range counts {
		fmt.Printf("  %-20s %d\n", tag, n)
	}

	t := txnEngine.Begin()
	fmt.Printf("vertices: %d, edges: %d\n", replayer.Vertices.Count(t), replayer.Edges.Count(t))
	txnEngine.Commit(t)
	return nil
}
