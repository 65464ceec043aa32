// Package badgerkv binds internal/kvengine's Environment/Txn/Database/
// Cursor contract to BadgerDB. Badger has one flat keyspace and no
// MDB_DUPSORT-style duplicate values, so "named databases" are emulated
// with a byte-string key prefix, the same trick used for node/edge/index
// key prefixes in a Badger-backed engine.
package badgerkv

import (
	"encoding/binary"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/nogdb/nogdb-core/internal/kvengine"
)

// Options mirrors pkg/config.Config's storage-relevant fields so an
// Environment can be opened directly from the loaded configuration.
type Options struct {
	InMemory   bool
	SyncWrites bool
	LowMemory  bool
}

type environment struct {
	db *badger.DB
}

// OpenEnvironment opens (or creates) a Badger store at dataDir. When
// opts.InMemory is set, dataDir is ignored and nothing touches disk.
func OpenEnvironment(dataDir string, opts Options) (kvengine.Environment, error) {
	badgerOpts := badger.DefaultOptions(dataDir)
	if opts.InMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	}
	if opts.SyncWrites {
		badgerOpts = badgerOpts.WithSyncWrites(true)
	}
	badgerOpts = badgerOpts.WithLogger(nil)
	if opts.LowMemory {
		badgerOpts = badgerOpts.
			WithMemTableSize(16 << 20).
			WithValueLogFileSize(64 << 20).
			WithNumMemtables(2).
			WithNumLevelZeroTables(2).
			WithNumLevelZeroTablesStall(4).
			WithBlockCacheSize(32 << 20).
			WithIndexCacheSize(16 << 20)
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger store at %q: %w", dataDir, err)
	}
	return &environment{db: db}, nil
}

func (e *environment) BeginTxn(writable bool) (kvengine.Txn, error) {
	return &txn{badgerTxn: e.db.NewTransaction(writable), writable: writable}, nil
}

func (e *environment) Close() error {
	return e.db.Close()
}

type database struct {
	name    string
	prefix  []byte
	numeric bool
}

func (d *database) Name() string { return d.name }

func dbPrefix(name string) []byte {
	return []byte("db:" + name + ":")
}

type txn struct {
	badgerTxn *badger.Txn
	writable  bool
}

func (t *txn) OpenDatabase(name string, numericKeys, allowDuplicates bool) (kvengine.Database, error) {
	if allowDuplicates {
		return nil, fmt.Errorf("badgerkv: duplicate-key databases are not supported (no MDB_DUPSORT equivalent)")
	}
	return &database{name: name, prefix: dbPrefix(name), numeric: numericKeys}, nil
}

func fullKey(db kvengine.Database, key []byte) []byte {
	d := db.(*database)
	full := make([]byte, 0, len(d.prefix)+len(key))
	full = append(full, d.prefix...)
	full = append(full, key...)
	return full
}

func (t *txn) Put(db kvengine.Database, key, value []byte, append bool) error {
	_ = append // Badger has no native append-mode optimization; accepted for interface parity
	return t.badgerTxn.Set(fullKey(db, key), value)
}

func (t *txn) Get(db kvengine.Database, key []byte) ([]byte, error) {
	item, err := t.badgerTxn.Get(fullKey(db, key))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (t *txn) Delete(db kvengine.Database, key []byte) error {
	return t.badgerTxn.Delete(fullKey(db, key))
}

func (t *txn) EmptyDatabase(db kvengine.Database) error {
	d := db.(*database)
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := t.badgerTxn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Seek(d.prefix); it.ValidForPrefix(d.prefix); it.Next() {
		k := it.Item().KeyCopy(nil)
		keys = append(keys, k)
	}
	for _, k := range keys {
		if err := t.badgerTxn.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func (t *txn) OpenCursor(db kvengine.Database) (kvengine.Cursor, error) {
	d := db.(*database)
	opts := badger.DefaultIteratorOptions
	it := t.badgerTxn.NewIterator(opts)
	it.Seek(d.prefix)
	return &cursor{it: it, prefix: d.prefix}, nil
}

func (t *txn) Commit() error {
	return t.badgerTxn.Commit()
}

func (t *txn) Abort() {
	t.badgerTxn.Discard()
}

type cursor struct {
	it     *badger.Iterator
	prefix []byte
}

func (c *cursor) Next() (key, value []byte, ok bool) {
	if !c.it.ValidForPrefix(c.prefix) {
		return nil, nil, false
	}
	item := c.it.Item()
	k := item.KeyCopy(nil)[len(c.prefix):]
	v, err := item.ValueCopy(nil)
	if err != nil {
		return nil, nil, false
	}
	c.it.Next()
	return k, v, true
}

func (c *cursor) Close() {
	c.it.Close()
}

// EncodeUint32Key big-endian-encodes a numeric key component so Badger's
// lexicographic iterator visits it in numeric order, matching the
// native-byte-order range scan requirement for "numeric keys" databases.
func EncodeUint32Key(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

// DecodeUint32Key is EncodeUint32Key's inverse.
func DecodeUint32Key(b []byte) uint32 {
	return binary.BigEndian.Uint32(b)
}
