// Package engine defines the narrow operation set safedbx consumes from an
// embedded transactional key-value storage engine. The engine owns the page
// format, the B+ tree, MVCC snapshots and durability; this package only pins
// down the contract: environment lifecycle, transaction lifecycle, table
// lifecycle, data operations, cursor operations and the key comparator.
//
// Implementations live in subpackages: membtree (pure Go, in-memory ordered
// store with snapshot isolation) and mdbxdrv (libmdbx via mdbx-go).
package engine

import "os"

// DBI is a table handle, valid only within the environment that issued it.
type DBI uint32

// Op selects a cursor positioning operation. Values follow the MDB_cursor_op
// order so adapters over LMDB-family engines can translate by table lookup.
type Op uint

const (
	// First positions at the first key/value pair.
	First Op = iota

	// FirstDup positions at the first value of the current key.
	FirstDup

	// GetBoth positions at an exact key/value pair.
	GetBoth

	// GetBothRange positions at the given key and the first value >= the
	// given value.
	GetBothRange

	// GetCurrent returns the pair at the current position without moving.
	GetCurrent

	// Last positions at the last key/value pair.
	Last

	// LastDup positions at the last value of the current key.
	LastDup

	// Next positions at the next pair, entering duplicate runs.
	Next

	// NextDup positions at the next value of the current key.
	NextDup

	// NextNoDup positions at the first value of the next distinct key.
	NextNoDup

	// Prev positions at the previous pair, entering duplicate runs.
	Prev

	// PrevDup positions at the previous value of the current key.
	PrevDup

	// PrevNoDup positions at the last value of the previous distinct key.
	PrevNoDup

	// Set positions at the given key without returning the stored key.
	Set

	// SetKey positions at the given key and returns the stored pair.
	SetKey

	// SetRange positions at the first key >= the given key.
	SetRange
)

// Environment flags.
const (
	// NoSubdir means the environment path is a data file, not a directory.
	NoSubdir uint = 0x4000

	// ReadOnly opens the environment without write access.
	ReadOnly uint = 0x20000

	// NoSync skips flushing system buffers on commit.
	NoSync uint = 0x10000

	// NoMetaSync skips the meta flush on commit.
	NoMetaSync uint = 0x40000
)

// Transaction flags.
const (
	// TxnReadWrite begins a read-write transaction.
	TxnReadWrite uint = 0

	// TxnReadOnly begins a read-only transaction.
	TxnReadOnly uint = 0x20000
)

// Table flags.
const (
	// ReverseKey compares keys back to front.
	ReverseKey uint = 0x02

	// DupSort allows multiple sorted values per key.
	DupSort uint = 0x04

	// IntegerKey treats keys as native-endian unsigned integers.
	IntegerKey uint = 0x08

	// DupFixed marks all duplicate values as same-sized (DupSort only).
	DupFixed uint = 0x10

	// IntegerDup treats duplicate values as native-endian integers.
	IntegerDup uint = 0x20

	// ReverseDup compares duplicate values back to front.
	ReverseDup uint = 0x40

	// Create creates the table if it does not exist.
	Create uint = 0x40000
)

// Put flags.
const (
	// Upsert is the default insert-or-update mode.
	Upsert uint = 0

	// NoOverwrite fails with ErrKeyExist if the key is already present.
	NoOverwrite uint = 0x10

	// NoDupData fails with ErrKeyExist if the exact key/value pair is
	// already present (DupSort only).
	NoDupData uint = 0x20

	// Current overwrites the value at the cursor's current position.
	Current uint = 0x40

	// Append assumes keys arrive in sorted order.
	Append uint = 0x20000
)

// Delete flags (cursor delete).
const (
	// DelCurrent removes only the value at the current position.
	DelCurrent uint = 0

	// DelAllDups removes every value of the current key.
	DelAllDups uint = 0x20
)

// Stat describes a table or a whole environment. Returned by value so the
// caller never sees partially filled engine output buffers.
type Stat struct {
	PSize         uint   // page size
	Depth         uint   // tree depth
	BranchPages   uint64 // interior pages
	LeafPages     uint64 // leaf pages
	OverflowPages uint64 // pages holding oversized values
	Entries       uint64 // key/value pairs stored
}

// EnvInfo describes a live environment.
type EnvInfo struct {
	MapSize    int64  // configured data size limit
	LastPgNo   int64  // highest page in use
	LastTxnID  int64  // id of the most recent committed transaction
	MaxReaders uint   // configured reader slots
	NumReaders uint   // reader slots currently in use
}

// Env is the engine side of an environment. Configuration calls (SetMapSize,
// SetMaxReaders, SetMaxDBs) are only meaningful before Open; the safedbx
// layer enforces that ordering so implementations may assume it.
type Env interface {
	// Open attaches the environment to path. mode is the file creation
	// mode for anything the engine creates underneath.
	Open(path string, flags uint, mode os.FileMode) error

	// Close releases the environment. Close after Close is a no-op.
	Close() error

	// Sync flushes buffered writes. With force, the flush is synchronous.
	Sync(force bool) error

	// CopyTo writes a consistent backup of the environment to path.
	CopyTo(path string) error

	// CopyFD writes a consistent backup to an open file descriptor.
	CopyFD(fd uintptr) error

	// SetMapSize bounds the environment's data size.
	SetMapSize(size int64) error

	// SetMaxReaders sizes the reader slot table.
	SetMaxReaders(n int) error

	// MaxReaders reports the configured reader slot count.
	MaxReaders() (int, error)

	// SetMaxDBs bounds the number of named tables.
	SetMaxDBs(n int) error

	// MaxKeySize reports the longest key the engine accepts.
	MaxKeySize() int

	// SetFlags turns the given runtime-changeable flags on or off.
	SetFlags(flags uint, on bool) error

	// Flags reports the environment flags currently in effect.
	Flags() (uint, error)

	// FD exposes the data file descriptor, when the engine has one.
	FD() (uintptr, error)

	// Stat reports statistics over the whole environment.
	Stat() (*Stat, error)

	// Info reports environment geometry and reader usage.
	Info() (*EnvInfo, error)

	// ReaderCheck clears reader slots left behind by dead processes and
	// reports how many were cleared.
	ReaderCheck() (int, error)

	// CloseDBI invalidates a table handle ahead of environment close.
	CloseDBI(dbi DBI)

	// Begin starts a transaction. A nil parent begins a top-level
	// transaction; a non-nil parent begins a nested one. Begin blocks
	// while another write transaction is active when flags request
	// write access.
	Begin(parent Txn, flags uint) (Txn, error)
}

// Txn is the engine side of a transaction. The safedbx layer guarantees the
// handle is never used after Commit or Abort returns, so implementations are
// free to recycle it immediately.
type Txn interface {
	// Commit makes the transaction's writes durable and consumes the
	// handle. The handle is consumed even when Commit fails.
	Commit() error

	// Abort discards the transaction and consumes the handle. Abort on a
	// reset read-only transaction releases the handle as well.
	Abort()

	// Reset releases the read snapshot but keeps the handle for Renew.
	// Only meaningful on read-only transactions.
	Reset()

	// Renew attaches a reset handle to the current engine state.
	Renew() error

	// OpenDBI resolves (and with Create, creates) a named table. An
	// empty name addresses the unnamed root table, which always exists.
	OpenDBI(name string, flags uint) (DBI, error)

	// Drop empties a table, and with del removes it entirely.
	Drop(dbi DBI, del bool) error

	// Get returns the value stored under key, or the first value of its
	// duplicate run. The returned slice aliases engine-owned memory and
	// is valid only until the transaction mutates or ends.
	Get(dbi DBI, key []byte) ([]byte, error)

	// Put stores a value under key. The engine copies key and val.
	Put(dbi DBI, key, val []byte, flags uint) error

	// Del removes values under key. A nil val removes the whole
	// duplicate run; a non-nil val removes only a byte-equal value.
	Del(dbi DBI, key, val []byte) error

	// Cmp orders two keys with the table's comparator.
	Cmp(dbi DBI, a, b []byte) int

	// Stat reports statistics for one table.
	Stat(dbi DBI) (*Stat, error)

	// OpenCursor opens a positional cursor over one table.
	OpenCursor(dbi DBI) (Cursor, error)
}

// Cursor is the engine side of a positional cursor. Returned key/value
// slices alias engine-owned memory with the same validity window as Txn.Get.
type Cursor interface {
	// Get executes a positioning operation. key and val seed the ops
	// that take inputs (Set*, GetBoth*) and are ignored otherwise.
	Get(key, val []byte, op Op) ([]byte, []byte, error)

	// Put stores a pair at or near the cursor position.
	Put(key, val []byte, flags uint) error

	// Del removes the current value, or with DelAllDups the whole run.
	Del(flags uint) error

	// Count reports the duplicate run length at the current position.
	Count() (uint64, error)

	// Close releases the cursor. Cursors do not outlive their
	// transaction; the safedbx layer enforces that.
	Close()
}
