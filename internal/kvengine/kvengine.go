// Package kvengine defines the persistent ordered key-value engine
// contract the graph and schema layers are built against: an
// LMDB-shaped environment/transaction/database/cursor API, kept
// abstract here so the graph engine never imports a storage driver
// directly. internal/kvengine/badgerkv is the concrete binding.
package kvengine

// Environment owns the open storage handle and mints transactions
// against it. A single Environment is shared by every transaction the
// context opens.
type Environment interface {
	BeginTxn(writable bool) (Txn, error)
	Close() error
}

// Txn is one unit of work against the engine. Read-only transactions
// see a consistent snapshot; exactly one writable transaction may be
// open at a time (the engine, not this contract, enforces that).
type Txn interface {
	OpenDatabase(name string, numericKeys, allowDuplicates bool) (Database, error)
	Put(db Database, key, value []byte, append bool) error
	Get(db Database, key []byte) ([]byte, error)
	Delete(db Database, key []byte) error
	EmptyDatabase(db Database) error
	OpenCursor(db Database) (Cursor, error)
	Commit() error
	Abort()
}

// Database is a handle to one logical keyspace within the engine.
type Database interface{ Name() string }

// Cursor iterates a Database's keys in order starting from its first
// key. Next returns ok=false once exhausted.
type Cursor interface {
	Next() (key, value []byte, ok bool)
	Close()
}
