// Package membtree is a pure Go engine for safedbx: an ordered in-memory
// store with snapshot isolation and coarse-grained durability. Committed
// state lives in immutable B-tree snapshots; writers clone the trees, mutate
// the clones, and publish a new snapshot on commit, so readers never block
// and never see a partial write. The data file is a full dump, rewritten on
// commit (or on Sync under NoSync), which keeps the engine honest about
// durability without a page cache of its own.
package membtree

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/google/btree"

	"github.com/Giulio2002/safedbx/engine"
)

const (
	dataFileName = "data.mbt"
	lockFileName = "lock.mbt"

	btreeDegree = 32

	maxKeySize = 511

	defaultMaxReaders = 126
	defaultMaxDBs     = 32
)

// mainDBI is the unnamed root table, present in every environment.
const mainDBI engine.DBI = 0

// table is one named (or the root) table. The tree pointer is immutable
// within a snapshot; writers swap in clones.
type table struct {
	name  string
	dbi   engine.DBI
	flags uint
	data  *btree.BTreeG[item]
}

func newTable(name string, dbi engine.DBI, flags uint) *table {
	return &table{
		name:  name,
		dbi:   dbi,
		flags: flags,
		data:  btree.NewG[item](btreeDegree, lessFunc(flags)),
	}
}

// snapshot is one committed version of the whole environment. Snapshots are
// immutable once published; readers pin one for their lifetime.
type snapshot struct {
	txnID   int64
	nextDBI uint32
	bytes   int64
	tables  map[engine.DBI]*table
	byName  map[string]engine.DBI
}

// Env implements engine.Env over in-memory B-trees.
type Env struct {
	mu      sync.Mutex
	opened  bool
	closed  bool
	path    string
	flags   uint
	mapSize int64
	maxRdrs int
	maxDBs  int

	// writer serializes write transactions. Held from Begin to commit
	// or abort, so Begin blocks like the contract requires.
	writer sync.Mutex

	current atomic.Pointer[snapshot]
	readers *readerTable
	dirty   atomic.Bool

	lockFile *os.File
	dataFile *os.File
}

var _ engine.Env = (*Env)(nil)

// New creates an unopened environment with default limits.
func New() *Env {
	return &Env{
		maxRdrs: defaultMaxReaders,
		maxDBs:  defaultMaxDBs,
		readers: newReaderTable(),
	}
}

func (e *Env) SetMapSize(size int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.opened {
		return engine.ErrIncompatible
	}
	e.mapSize = size
	return nil
}

func (e *Env) SetMaxReaders(n int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.opened || n <= 0 {
		return engine.ErrIncompatible
	}
	e.maxRdrs = n
	return nil
}

func (e *Env) SetMaxDBs(n int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.opened || n < 0 {
		return engine.ErrIncompatible
	}
	e.maxDBs = n
	return nil
}

func (e *Env) MaxReaders() (int, error) {
	return e.maxRdrs, nil
}

func (e *Env) MaxKeySize() int {
	return maxKeySize
}

func (e *Env) Open(path string, flags uint, mode os.FileMode) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.opened || e.closed {
		return engine.ErrBusy
	}

	dataPath := filepath.Join(path, dataFileName)
	lockPath := filepath.Join(path, lockFileName)
	if flags&engine.NoSubdir != 0 {
		dataPath = path
		lockPath = path + "-lock"
	}
	readonly := flags&engine.ReadOnly != 0

	lock, err := acquireLock(lockPath, readonly, mode)
	if err != nil {
		return err
	}

	openFlags := os.O_RDWR | os.O_CREATE
	if readonly {
		openFlags = os.O_RDONLY
	}
	data, err := os.OpenFile(dataPath, openFlags, mode)
	if err != nil {
		releaseLock(lock)
		return err
	}

	snap, err := loadSnapshot(data)
	if err != nil {
		data.Close()
		releaseLock(lock)
		return err
	}

	e.path = path
	e.flags = flags
	e.lockFile = lock
	e.dataFile = data
	e.current.Store(snap)
	e.opened = true
	return nil
}

func (e *Env) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.opened || e.closed {
		e.closed = true
		return nil
	}
	if e.dirty.Load() && e.flags&engine.ReadOnly == 0 {
		e.persistLocked(true)
	}
	e.dataFile.Close()
	releaseLock(e.lockFile)
	e.opened = false
	e.closed = true
	return nil
}

// persistLocked rewrites the data file from the current snapshot. Callers
// hold e.mu or the writer lock, so the snapshot cannot change mid-dump.
func (e *Env) persistLocked(sync bool) error {
	snap := e.current.Load()
	if err := writeSnapshot(e.dataFile, snap); err != nil {
		return err
	}
	if sync {
		if err := e.dataFile.Sync(); err != nil {
			return err
		}
	}
	e.dirty.Store(false)
	return nil
}

func (e *Env) Sync(force bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.opened {
		return engine.ErrBadTxn
	}
	if e.flags&engine.ReadOnly != 0 {
		return engine.ErrPermission
	}
	if !e.dirty.Load() && !force {
		return nil
	}
	return e.persistLocked(true)
}

func (e *Env) CopyTo(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.opened {
		return engine.ErrBadTxn
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := writeSnapshot(f, e.current.Load()); err != nil {
		return err
	}
	return f.Sync()
}

func (e *Env) CopyFD(fd uintptr) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.opened {
		return engine.ErrBadTxn
	}
	return writeSnapshotFD(fd, e.current.Load())
}

func (e *Env) SetFlags(flags uint, on bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	// Only the durability flags may change at runtime.
	if flags&^(engine.NoSync|engine.NoMetaSync) != 0 {
		return engine.ErrIncompatible
	}
	if on {
		e.flags |= flags
	} else {
		e.flags &^= flags
	}
	return nil
}

func (e *Env) Flags() (uint, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flags, nil
}

func (e *Env) FD() (uintptr, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.opened {
		return 0, engine.ErrBadTxn
	}
	return e.dataFile.Fd(), nil
}

func (e *Env) Stat() (*engine.Stat, error) {
	snap := e.current.Load()
	if snap == nil {
		return nil, engine.ErrBadTxn
	}
	var entries uint64
	for _, t := range snap.tables {
		entries += uint64(t.data.Len())
	}
	return &engine.Stat{
		PSize:     pageSize,
		LeafPages: uint64(snap.bytes)/pageSize + 1,
		Entries:   entries,
	}, nil
}

func (e *Env) Info() (*engine.EnvInfo, error) {
	snap := e.current.Load()
	if snap == nil {
		return nil, engine.ErrBadTxn
	}
	return &engine.EnvInfo{
		MapSize:    e.mapSize,
		LastPgNo:   snap.bytes/pageSize + 1,
		LastTxnID:  snap.txnID,
		MaxReaders: uint(e.maxRdrs),
		NumReaders: uint(e.readers.len()),
	}, nil
}

// ReaderCheck has nothing to sweep: all readers live in this process and
// unregister on Abort, so there are never slots owned by dead processes.
func (e *Env) ReaderCheck() (int, error) {
	if e.current.Load() == nil {
		return 0, engine.ErrBadTxn
	}
	return 0, nil
}

func (e *Env) CloseDBI(dbi engine.DBI) {
	// Handles carry no engine-side resources here; the table itself stays
	// until dropped.
}

const pageSize = 4096

func (e *Env) Begin(parent engine.Txn, flags uint) (engine.Txn, error) {
	if parent != nil {
		p, ok := parent.(*Txn)
		if !ok || p.done {
			return nil, engine.ErrBadTxn
		}
		return p.beginChild(flags)
	}
	e.mu.Lock()
	opened := e.opened
	e.mu.Unlock()
	if !opened {
		return nil, engine.ErrBadTxn
	}
	if flags&engine.TxnReadOnly != 0 {
		return e.beginReader()
	}
	return e.beginWriter()
}

func (e *Env) beginReader() (*Txn, error) {
	txn := &Txn{env: e, readonly: true}
	if err := txn.attachSnapshot(); err != nil {
		return nil, err
	}
	return txn, nil
}

func (e *Env) beginWriter() (*Txn, error) {
	if e.flags&engine.ReadOnly != 0 {
		return nil, engine.ErrPermission
	}
	e.writer.Lock()
	snap := e.current.Load()
	txn := &Txn{
		env:     e,
		snap:    snap,
		tables:  make(map[engine.DBI]*table, len(snap.tables)),
		byName:  make(map[string]engine.DBI, len(snap.byName)),
		nextDBI: snap.nextDBI,
		bytes:   snap.bytes,
	}
	for dbi, t := range snap.tables {
		txn.tables[dbi] = &table{name: t.name, dbi: t.dbi, flags: t.flags, data: t.data.Clone()}
	}
	for name, dbi := range snap.byName {
		txn.byName[name] = dbi
	}
	return txn, nil
}
