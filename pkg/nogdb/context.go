// Package nogdb is the public facade: Context owns every engine a
// running database needs, and Txn (the base transaction) is the handle
// every read or write goes through. Context itself never touches a
// vertex, an edge, or a class descriptor directly -- it only mints
// transactions and owns the locks and counters those transactions
// coordinate through.
package nogdb

import (
	"log"

	"github.com/nogdb/nogdb-core/internal/graph"
	"github.com/nogdb/nogdb-core/internal/kvengine"
	"github.com/nogdb/nogdb-core/internal/kvengine/badgerkv"
	"github.com/nogdb/nogdb-core/internal/schema"
	"github.com/nogdb/nogdb-core/internal/spinlock"
	"github.com/nogdb/nogdb-core/internal/txnstat"
	"github.com/nogdb/nogdb-core/pkg/config"
	"github.com/nogdb/nogdb-core/pkg/logging"
	"github.com/nogdb/nogdb-core/pkg/metrics"
)

// SchemaInfo is the read-optimized, name-to-id snapshot a read-write
// transaction copies at open and writes back at commit, so class lookups
// by name never have to walk the schema engine's full map under lock.
// A nil map means "no classes yet".
type SchemaInfo struct {
	NameToID map[string]uint32
}

func (s SchemaInfo) clone() SchemaInfo {
	cp := make(map[string]uint32, len(s.NameToID))
	for k, v := range s.NameToID {
		cp[k] = v
	}
	return SchemaInfo{NameToID: cp}
}

// Context owns the engines a database needs: the persistent key-value
// environment (always opened by Open; an in-memory Badger store when
// cfg.InMemory is set), the graph and schema engines, the shared transaction
// counters, and the writer serialization lock that guarantees at most
// one write transaction promotes its changes at a time.
type Context struct {
	cfg *config.Config
	env kvengine.Environment

	graph  *graph.Graph
	schema *schema.Schema
	stat   *txnstat.Stat

	writerLock spinlock.RWSpinLock

	schemaInfoLock spinlock.RWSpinLock
	schemaInfo     SchemaInfo

	metrics *metrics.Counters
	logger  *log.Logger
}

// Open starts a Context from cfg. When cfg.InMemory is false, it opens a
// Badger environment rooted at cfg.DataDir; otherwise it opens an
// in-memory Badger environment. Persistence failures are returned
// rather than silently falling back to memory-only.
func Open(cfg *config.Config, logger *log.Logger) (*Context, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	spinlock.SetYieldThreshold(cfg.SpinYieldThreshold)

	env, err := badgerkv.OpenEnvironment(cfg.DataDir, badgerkv.Options{
		InMemory:   cfg.InMemory,
		SyncWrites: cfg.SyncWrites,
		LowMemory:  cfg.LowMemory,
	})
	if err != nil {
		return nil, err
	}

	return &Context{
		cfg:        cfg,
		env:        env,
		graph:      graph.New(),
		schema:     schema.New(),
		stat:       txnstat.New(),
		schemaInfo: SchemaInfo{NameToID: map[string]uint32{}},
		metrics:    metrics.New(),
		logger:     logging.OrDefault(logger, "[nogdb] "),
	}, nil
}

// Close releases the persistent engine handle, if one is open. Any
// transaction still open against this Context at Close time is the
// caller's bug, not something Close tries to detect.
func (c *Context) Close() error {
	if c.env != nil {
		return c.env.Close()
	}
	return nil
}

// Metrics returns the Context's running counters, surfaced by the CLI's
// stat command.
func (c *Context) Metrics() metrics.Snapshot {
	return c.metrics.Snapshot()
}

// Inspect reports the current vertex/edge/class counts and the
// database-wide transaction/version counters, surfaced by the CLI's
// stat command. Counts include entities not yet visible to any reader.
type Inspect struct {
	Vertices     int
	Edges        int
	Classes      int
	MaxTxnID     uint64
	MaxVersionID uint64
}

func (c *Context) Inspect() Inspect {
	return Inspect{
		Vertices:     c.graph.VertexCount(),
		Edges:        c.graph.EdgeCount(),
		Classes:      c.schema.ClassCount(),
		MaxTxnID:     c.stat.MaxTxnID(),
		MaxVersionID: c.stat.MaxVersionID(),
	}
}

// Mode selects whether a transaction may mutate the graph.
type Mode int

const (
	// ReadOnly transactions see a fixed snapshot and never stage
	// changes.
	ReadOnly Mode = iota
	// ReadWrite transactions stage changes and may commit them.
	ReadWrite
)

// BeginTxn constructs a Txn against this Context in the given mode,
// following the Open procedure appropriate to mode.
func (c *Context) BeginTxn(mode Mode) (*Txn, error) {
	if mode == ReadOnly {
		return c.openReadOnly()
	}
	return c.openReadWrite()
}
