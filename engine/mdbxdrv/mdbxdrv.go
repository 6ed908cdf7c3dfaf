// Package mdbxdrv binds the safedbx engine contract to libmdbx through
// github.com/erigontech/mdbx-go. This is the production engine: a real
// memory-mapped B+ tree with MVCC and crash-safe commits. The adapter only
// translates flags, ops and status codes; all semantics live in libmdbx.
package mdbxdrv

import (
	"os"
	"sync"

	mdbxgo "github.com/erigontech/mdbx-go/mdbx"

	"github.com/Giulio2002/safedbx/engine"
)

// Env implements engine.Env over an mdbx environment.
type Env struct {
	env *mdbxgo.Env

	mu      sync.Mutex
	flags   uint
	mapSize int64
	maxRdrs int

	// Table flags by handle, recorded at OpenDBI so Cmp can order keys
	// without a cgo round trip.
	dbiMu    sync.RWMutex
	dbiFlags map[engine.DBI]uint
}

var _ engine.Env = (*Env)(nil)

// New creates an unopened mdbx-backed environment.
func New(label string) (*Env, error) {
	menv, err := mdbxgo.NewEnv(mdbxgo.Label(label))
	if err != nil {
		return nil, mapError(err)
	}
	return &Env{
		env:      menv,
		maxRdrs:  126,
		dbiFlags: make(map[engine.DBI]uint),
	}, nil
}

// mapError lifts an mdbx status into the engine's numeric space. The code
// spaces coincide, so a recognized Errno passes through by value.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if mdbxgo.IsNotFound(err) {
		return engine.ErrNotFound
	}
	var e mdbxgo.Errno
	if ok := asErrno(err, &e); ok {
		return engine.Errno(int(e))
	}
	return err
}

func asErrno(err error, out *mdbxgo.Errno) bool {
	for err != nil {
		if e, ok := err.(mdbxgo.Errno); ok {
			*out = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func envFlags(flags uint) uint {
	var out uint
	if flags&engine.NoSubdir != 0 {
		out |= mdbxgo.NoSubdir
	}
	if flags&engine.ReadOnly != 0 {
		out |= mdbxgo.Readonly
	}
	if flags&engine.NoSync != 0 {
		out |= mdbxgo.SafeNoSync
	}
	if flags&engine.NoMetaSync != 0 {
		out |= mdbxgo.NoMetaSync
	}
	return out
}

func dbiFlags(flags uint) uint {
	var out uint
	if flags&engine.ReverseKey != 0 {
		out |= mdbxgo.ReverseKey
	}
	if flags&engine.DupSort != 0 {
		out |= mdbxgo.DupSort
	}
	if flags&engine.IntegerKey != 0 {
		out |= mdbxgo.IntegerKey
	}
	if flags&engine.DupFixed != 0 {
		out |= mdbxgo.DupFixed
	}
	if flags&engine.IntegerDup != 0 {
		out |= mdbxgo.IntegerDup
	}
	if flags&engine.ReverseDup != 0 {
		out |= mdbxgo.ReverseDup
	}
	if flags&engine.Create != 0 {
		out |= mdbxgo.Create
	}
	return out
}

func putFlags(flags uint) uint {
	var out uint = mdbxgo.Upsert
	if flags&engine.NoOverwrite != 0 {
		out |= mdbxgo.NoOverwrite
	}
	if flags&engine.NoDupData != 0 {
		out |= mdbxgo.NoDupData
	}
	if flags&engine.Current != 0 {
		out |= mdbxgo.Current
	}
	if flags&engine.Append != 0 {
		out |= mdbxgo.Append
	}
	return out
}

var opTable = map[engine.Op]uint{
	engine.First:        mdbxgo.First,
	engine.FirstDup:     mdbxgo.FirstDup,
	engine.GetBoth:      mdbxgo.GetBoth,
	engine.GetBothRange: mdbxgo.GetBothRange,
	engine.GetCurrent:   mdbxgo.GetCurrent,
	engine.Last:         mdbxgo.Last,
	engine.LastDup:      mdbxgo.LastDup,
	engine.Next:         mdbxgo.Next,
	engine.NextDup:      mdbxgo.NextDup,
	engine.NextNoDup:    mdbxgo.NextNoDup,
	engine.Prev:         mdbxgo.Prev,
	engine.PrevDup:      mdbxgo.PrevDup,
	engine.PrevNoDup:    mdbxgo.PrevNoDup,
	engine.Set:          mdbxgo.Set,
	engine.SetKey:       mdbxgo.SetKey,
	engine.SetRange:     mdbxgo.SetRange,
}

func (e *Env) Open(path string, flags uint, mode os.FileMode) error {
	e.mu.Lock()
	e.flags = flags
	e.mu.Unlock()
	return mapError(e.env.Open(path, envFlags(flags), mode))
}

func (e *Env) Close() error {
	e.env.Close()
	return nil
}

func (e *Env) Sync(force bool) error {
	return mapError(e.env.Sync(force, false))
}

// CopyTo and CopyFD are not carried through this adapter; take backups with
// the mdbx_copy tool against the same data file.
func (e *Env) CopyTo(path string) error {
	return engine.ErrIncompatible
}

func (e *Env) CopyFD(fd uintptr) error {
	return engine.ErrIncompatible
}

func (e *Env) SetMapSize(size int64) error {
	e.mu.Lock()
	e.mapSize = size
	e.mu.Unlock()
	return mapError(e.env.SetGeometry(-1, -1, int(size), -1, -1, -1))
}

func (e *Env) SetMaxReaders(n int) error {
	if err := e.env.SetOption(mdbxgo.OptMaxReaders, uint64(n)); err != nil {
		return mapError(err)
	}
	e.mu.Lock()
	e.maxRdrs = n
	e.mu.Unlock()
	return nil
}

func (e *Env) MaxReaders() (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.maxRdrs, nil
}

func (e *Env) SetMaxDBs(n int) error {
	return mapError(e.env.SetOption(mdbxgo.OptMaxDB, uint64(n)))
}

// MaxKeySize reports the LMDB-compatible bound. The engine's true limit
// depends on the page size and may be larger; this is the safe floor.
func (e *Env) MaxKeySize() int {
	return 511
}

func (e *Env) SetFlags(flags uint, on bool) error {
	return engine.ErrIncompatible
}

func (e *Env) Flags() (uint, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flags, nil
}

func (e *Env) FD() (uintptr, error) {
	return 0, engine.ErrIncompatible
}

func (e *Env) Stat() (*engine.Stat, error) {
	// The environment-wide view is the root table's statistics.
	txn, err := e.Begin(nil, engine.TxnReadOnly)
	if err != nil {
		return nil, err
	}
	defer txn.Abort()
	dbi, err := txn.OpenDBI("", 0)
	if err != nil {
		return nil, err
	}
	return txn.Stat(dbi)
}

func (e *Env) Info() (*engine.EnvInfo, error) {
	info, err := e.env.Info(nil)
	if err != nil {
		return nil, mapError(err)
	}
	return &engine.EnvInfo{
		MapSize:    int64(info.MapSize),
		LastPgNo:   int64(info.LastPNO),
		LastTxnID:  int64(info.LastTxnID),
		MaxReaders: uint(info.MaxReaders),
		NumReaders: uint(info.NumReaders),
	}, nil
}

func (e *Env) ReaderCheck() (int, error) {
	n, err := e.env.ReaderCheck()
	if err != nil {
		return 0, mapError(err)
	}
	return n, nil
}

func (e *Env) CloseDBI(dbi engine.DBI) {
	e.dbiMu.Lock()
	delete(e.dbiFlags, dbi)
	e.dbiMu.Unlock()
	e.env.CloseDBI(mdbxgo.DBI(dbi))
}

func (e *Env) rememberDBI(dbi engine.DBI, flags uint) {
	e.dbiMu.Lock()
	e.dbiFlags[dbi] = flags
	e.dbiMu.Unlock()
}

func (e *Env) flagsOf(dbi engine.DBI) uint {
	e.dbiMu.RLock()
	defer e.dbiMu.RUnlock()
	return e.dbiFlags[dbi]
}
