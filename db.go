package safedbx

import "github.com/Giulio2002/safedbx/engine"

// DBHandle names one table: the engine handle plus the flags it was opened
// with. Handles are plain values, cheap to copy, valid for the life of the
// environment that issued them, and shareable between transactions. Data
// access requires binding the handle to a transaction first.
type DBHandle struct {
	name  string
	dbi   engine.DBI
	flags uint
}

// Name returns the table name. Empty for the unnamed root table.
func (h DBHandle) Name() string { return h.name }

// IsDupSort reports whether the table keeps multiple sorted values per key.
func (h DBHandle) IsDupSort() bool { return h.flags&engine.DupSort != 0 }

// Database is a table handle bound to one transaction. It is the only way to
// reach stored data, so a handle can never be used with a transaction it was
// not bound to. A Database inherits the transaction's lifetime and its
// single-goroutine ownership.
type Database struct {
	h   DBHandle
	txn *rawTxn
}

// Handle returns the bound table handle.
func (db Database) Handle() DBHandle { return db.h }

// Get returns a copy of the value stored under key, or the first value of
// its duplicate run. Missing keys report a not-found error.
func (db Database) Get(key []byte) ([]byte, error) {
	v, err := db.GetNoCopy(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// GetNoCopy is Get without the copy. The returned slice aliases engine-owned
// memory and is only valid until the transaction writes or ends. Use it for
// values consumed before the next operation; otherwise prefer Get.
func (db Database) GetNoCopy(key []byte) ([]byte, error) {
	return db.txn.get(db.h.dbi, key)
}

// Has reports whether key is present.
func (db Database) Has(key []byte) (bool, error) {
	_, err := db.txn.get(db.h.dbi, key)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Put stores a value under key, inserting or overwriting. On a DupSort table
// the value is added to the key's run instead of replacing it.
func (db Database) Put(key, val []byte) error {
	return db.txn.put(db.h.dbi, key, val, engine.Upsert)
}

// PutFlags is Put with explicit put flags (NoOverwrite, NoDupData, Append).
func (db Database) PutFlags(key, val []byte, flags uint) error {
	return db.txn.put(db.h.dbi, key, val, flags)
}

// Del removes key and, on a DupSort table, its entire duplicate run.
func (db Database) Del(key []byte) error {
	return db.txn.del(db.h.dbi, key, nil)
}

// DelExact removes only the given key/value pair from a DupSort table.
func (db Database) DelExact(key, val []byte) error {
	return db.txn.del(db.h.dbi, key, val)
}

// Clear removes every pair from the table but keeps the table itself.
func (db Database) Clear() error {
	return db.txn.drop(db.h.dbi, false)
}

// Drop removes the table and everything in it. The handle is evicted from
// the environment cache; reopen with CreateDB after the drop commits.
func (db Database) Drop() error {
	if err := db.txn.drop(db.h.dbi, true); err != nil {
		return err
	}
	db.txn.env.forgetDB(db.h.name)
	return nil
}

// Stat reports statistics for this table.
func (db Database) Stat() (*engine.Stat, error) {
	return db.txn.stat(db.h.dbi)
}

// Cursor opens a positional cursor over the table. Close it before the
// transaction resolves.
func (db Database) Cursor() (*Cursor, error) {
	return db.txn.openCursor(db.h.dbi)
}

// Iter iterates distinct keys in order. On a DupSort table each key yields
// the first value of its run; walk a run with ItemIter.
func (db Database) Iter() (*Iterator, error) {
	return db.newIterator(&fullScan{})
}

// KeyRange iterates distinct keys with start <= key < end. The end bound is
// exclusive; see KeyRangeInclusive for the closed interval.
func (db Database) KeyRange(start, end []byte) (*Iterator, error) {
	return db.newIterator(&keyRange{start: start, end: end})
}

// KeyRangeInclusive iterates pairs with start <= key <= end.
func (db Database) KeyRangeInclusive(start, end []byte) (*Iterator, error) {
	return db.newIterator(&keyRange{start: start, end: end, endInclusive: true})
}

// FromKey iterates pairs with start <= key, to the end of the table.
func (db Database) FromKey(start []byte) (*Iterator, error) {
	return db.newIterator(&keyRange{start: start})
}

// ToKey iterates pairs from the first key up to but not including end.
func (db Database) ToKey(end []byte) (*Iterator, error) {
	return db.newIterator(&keyRange{end: end})
}

// ItemIter iterates the duplicate run of one key on a DupSort table. A key
// with no run yields an empty iteration.
func (db Database) ItemIter(key []byte) (*Iterator, error) {
	return db.newIterator(&itemIter{key: key})
}

// Item scopes cursor operations to one key's duplicate run.
func (db Database) Item(key []byte) (*ItemAccessor, error) {
	c, err := db.Cursor()
	if err != nil {
		return nil, err
	}
	return &ItemAccessor{c: c, key: key}, nil
}

func (db Database) newIterator(strat iterStrategy) (*Iterator, error) {
	c, err := db.Cursor()
	if err != nil {
		return nil, err
	}
	return &Iterator{c: c, strat: strat}, nil
}
