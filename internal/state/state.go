package state

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"rollupd/internal/merkle"
)

// Ledger is the checkpointable account store the transition functions run
// against.
type Ledger interface {
	Get(idx uint32) (Account, error)
	Update(idx uint32, acc Account) error
	Checkpoint() Checkpoint
	Commit() error
	Revert(cp Checkpoint) error
}

// Checkpoint marks the ledger state at the time it was taken. Checkpoints
// nest: Commit releases the most recent one, Revert undoes every write made
// after the given one and releases it together with all later checkpoints.
type Checkpoint struct {
	id   uint64
	mark int
}

func (c Checkpoint) ID() uint64 { return c.id }

type journalEntry struct {
	idx     uint32
	prev    Account
	existed bool
}

var (
	accountPrefix = []byte("acct/")
	metaPrefix    = []byte("meta/")
)

// DB is an in-memory ledger with an optional leveldb backend. Writes made
// outside any checkpoint, and writes whose outermost checkpoint is
// committed, are flushed to the backend.
type DB struct {
	mu      sync.Mutex
	accts   map[uint32]Account
	journal []journalEntry
	saves   []Checkpoint
	lastID  uint64
	dirty   map[uint32]struct{}
	meta    map[string][]byte
	kv      *leveldb.DB
}

var _ Ledger = (*DB)(nil)

// NewDB returns a purely in-memory ledger.
func NewDB() *DB {
	return &DB{
		accts: make(map[uint32]Account),
		dirty: make(map[uint32]struct{}),
		meta:  make(map[string][]byte),
	}
}

// Open opens (or creates) a leveldb-backed ledger at path and loads every
// account into memory.
func Open(path string) (*DB, error) {
	kv, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}
	return load(kv)
}

// OpenInMemory opens a leveldb-backed ledger on memory storage.
func OpenInMemory() (*DB, error) {
	kv, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return load(kv)
}

func load(kv *leveldb.DB) (*DB, error) {
	db := NewDB()
	db.kv = kv
	it := kv.NewIterator(util.BytesPrefix(accountPrefix), nil)
	defer it.Release()
	for it.Next() {
		idx := binary.BigEndian.Uint32(it.Key()[len(accountPrefix):])
		var acc Account
		if err := cbor.Unmarshal(it.Value(), &acc); err != nil {
			kv.Close()
			return nil, fmt.Errorf("decode account %d: %w", idx, err)
		}
		db.accts[idx] = acc
	}
	if err := it.Error(); err != nil {
		kv.Close()
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return db, nil
}

func (db *DB) Close() error {
	if db.kv == nil {
		return nil
	}
	return db.kv.Close()
}

func accountKey(idx uint32) []byte {
	return binary.BigEndian.AppendUint32(append([]byte(nil), accountPrefix...), idx)
}

// Get returns a copy of the account at idx.
func (db *DB) Get(idx uint32) (Account, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	acc, ok := db.accts[idx]
	if !ok {
		return Account{}, newTxError(KindAccountNotFound, "index %d", idx)
	}
	return acc.Clone(), nil
}

// Update replaces the account at idx. Inside a checkpoint the previous value
// is journaled, otherwise the write is permanent immediately.
func (db *DB) Update(idx uint32, acc Account) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.set(idx, acc)
}

// Create inserts a new account and fails if idx is already taken.
func (db *DB) Create(idx uint32, acc Account) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.accts[idx]; ok {
		return fmt.Errorf("%w: index %d", ErrAccountExists, idx)
	}
	return db.set(idx, acc)
}

func (db *DB) set(idx uint32, acc Account) error {
	prev, existed := db.accts[idx]
	if len(db.saves) > 0 {
		db.journal = append(db.journal, journalEntry{idx: idx, prev: prev, existed: existed})
	}
	db.accts[idx] = acc.Clone()
	db.dirty[idx] = struct{}{}
	if len(db.saves) == 0 {
		return db.flush()
	}
	return nil
}

// Checkpoint pushes a new savepoint.
func (db *DB) Checkpoint() Checkpoint {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.lastID++
	cp := Checkpoint{id: db.lastID, mark: len(db.journal)}
	db.saves = append(db.saves, cp)
	return cp
}

// Commit makes the writes since the latest checkpoint part of the enclosing
// checkpoint, or permanent when no checkpoint encloses it.
func (db *DB) Commit() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if len(db.saves) == 0 {
		return ErrNoCheckpoint
	}
	db.saves = db.saves[:len(db.saves)-1]
	if len(db.saves) == 0 {
		db.journal = nil
		return db.flush()
	}
	return nil
}

// CommitMeta releases the outermost checkpoint like Commit and stores
// records in the same backend write as the account flush, so neither can
// land without the other.
func (db *DB) CommitMeta(records map[string][]byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if len(db.saves) != 1 {
		return fmt.Errorf("%w: %d open checkpoints", ErrNotOutermost, len(db.saves))
	}
	db.saves = nil
	db.journal = nil
	return db.flushWith(records)
}

// Revert restores every account written since cp was taken.
func (db *DB) Revert(cp Checkpoint) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	pos := -1
	for i := len(db.saves) - 1; i >= 0; i-- {
		if db.saves[i].id == cp.id {
			pos = i
			break
		}
	}
	if pos < 0 {
		return fmt.Errorf("%w: %d", ErrUnknownCheckpoint, cp.id)
	}
	for i := len(db.journal) - 1; i >= cp.mark; i-- {
		e := db.journal[i]
		if e.existed {
			db.accts[e.idx] = e.prev
		} else {
			delete(db.accts, e.idx)
		}
	}
	db.journal = db.journal[:cp.mark]
	db.saves = db.saves[:pos]
	if len(db.saves) == 0 {
		db.journal = nil
		return db.flush()
	}
	return nil
}

// Depth is the number of open checkpoints.
func (db *DB) Depth() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.saves)
}

func (db *DB) flush() error {
	return db.flushWith(nil)
}

func (db *DB) flushWith(records map[string][]byte) error {
	if len(db.dirty) == 0 && len(records) == 0 {
		return nil
	}
	if db.kv == nil {
		for k, v := range records {
			db.meta[k] = append([]byte(nil), v...)
		}
		clear(db.dirty)
		return nil
	}
	batch := new(leveldb.Batch)
	for k, v := range records {
		batch.Put(metaKey(k), v)
	}
	for idx := range db.dirty {
		acc, ok := db.accts[idx]
		if !ok {
			batch.Delete(accountKey(idx))
			continue
		}
		b, err := cbor.Marshal(acc)
		if err != nil {
			return fmt.Errorf("encode account %d: %w", idx, err)
		}
		batch.Put(accountKey(idx), b)
	}
	if err := db.kv.Write(batch, nil); err != nil {
		return fmt.Errorf("flush ledger: %w", err)
	}
	clear(db.dirty)
	return nil
}

// Snapshot returns a deep copy of every account.
func (db *DB) Snapshot() map[uint32]Account {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make(map[uint32]Account, len(db.accts))
	for k, v := range db.accts {
		out[k] = v.Clone()
	}
	return out
}

func (db *DB) Len() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.accts)
}

// Root is the merkle root over all accounts ordered by index.
func (db *DB) Root() []byte {
	db.mu.Lock()
	defer db.mu.Unlock()
	idxs := make([]uint32, 0, len(db.accts))
	for idx := range db.accts {
		idxs = append(idxs, idx)
	}
	sort.Slice(idxs, func(i, j int) bool { return idxs[i] < idxs[j] })
	leaves := make([][]byte, len(idxs))
	for i, idx := range idxs {
		leaves[i] = db.accts[idx].leaf(idx)
	}
	return merkle.Root(leaves)
}

// PutMeta stores an auxiliary record next to the accounts.
func (db *DB) PutMeta(key string, value []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.kv == nil {
		db.meta[key] = append([]byte(nil), value...)
		return nil
	}
	return db.kv.Put(metaKey(key), value, nil)
}

func (db *DB) DeleteMeta(key string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.kv == nil {
		delete(db.meta, key)
		return nil
	}
	return db.kv.Delete(metaKey(key), nil)
}

func metaKey(key string) []byte {
	return append(append([]byte(nil), metaPrefix...), key...)
}

// GetMeta returns ErrMetaNotFound when the key is absent.
func (db *DB) GetMeta(key string) ([]byte, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.kv == nil {
		v, ok := db.meta[key]
		if !ok {
			return nil, ErrMetaNotFound
		}
		return append([]byte(nil), v...), nil
	}
	v, err := db.kv.Get(metaKey(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrMetaNotFound
	}
	return v, err
}

var (
	ErrMetaNotFound = errors.New("meta record not found")
	ErrNotOutermost = errors.New("checkpoint is not the outermost one")
)
