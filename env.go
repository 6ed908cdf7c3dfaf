package safedbx

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/Giulio2002/safedbx/engine"
	"github.com/Giulio2002/safedbx/engine/membtree"
)

// envState tracks the environment lifecycle. Configuration is only accepted
// before Open, and data access only after.
type envState int32

const (
	envCreated envState = iota
	envOpened
	envClosed
)

func (s envState) String() string {
	switch s {
	case envCreated:
		return "Created"
	case envOpened:
		return "Opened"
	case envClosed:
		return "Closed"
	}
	return "Unknown"
}

// Env owns the attachment to one data store and hands out transactions and
// table handles. An Env is safe for concurrent use; the transactions and
// cursors it produces are not.
type Env struct {
	eng engine.Env
	log atomic.Pointer[slog.Logger]

	mu    sync.Mutex
	state envState
	flags uint

	// Table handles are cached by name so repeated CreateDB/GetDB calls
	// for the same table hit the engine at most once. Guarded by cacheMu,
	// never by mu, so slow engine opens do not block lifecycle calls.
	cacheMu sync.Mutex
	dbs     map[string]DBHandle
}

// NewEnv creates an unopened environment backed by the built-in pure Go
// engine. Configure it with the Set* methods, then Open it.
func NewEnv() *Env {
	return NewEnvWith(membtree.New())
}

// NewEnvWith creates an unopened environment over the given engine.
func NewEnvWith(eng engine.Env) *Env {
	return &Env{
		eng:   eng,
		state: envCreated,
		dbs:   make(map[string]DBHandle),
	}
}

// SetLogger enables debug tracing of table opens and lifecycle events.
// Pass nil to disable. Accepted in any state, from any goroutine.
func (env *Env) SetLogger(l *slog.Logger) {
	env.log.Store(l)
}

func (env *Env) debugf(msg string, args ...any) {
	if l := env.log.Load(); l != nil {
		l.Debug(msg, args...)
	}
}

// require is the lifecycle guard, mirror of the transaction one.
func (env *Env) require(op string, want envState) error {
	if env.state != want {
		return stateErrorf("%s requires environment state %s, is in %s", op, want, env.state)
	}
	return nil
}

// SetMapSize bounds the data size. Only valid before Open.
func (env *Env) SetMapSize(size int64) error {
	env.mu.Lock()
	defer env.mu.Unlock()
	if err := env.require("set map size", envCreated); err != nil {
		return err
	}
	return mapEngineError(env.eng.SetMapSize(size))
}

// SetMaxReaders sizes the reader slot table. Only valid before Open.
func (env *Env) SetMaxReaders(n int) error {
	env.mu.Lock()
	defer env.mu.Unlock()
	if err := env.require("set max readers", envCreated); err != nil {
		return err
	}
	return mapEngineError(env.eng.SetMaxReaders(n))
}

// SetMaxDBs bounds the number of named tables. Only valid before Open.
func (env *Env) SetMaxDBs(n int) error {
	env.mu.Lock()
	defer env.mu.Unlock()
	if err := env.require("set max dbs", envCreated); err != nil {
		return err
	}
	return mapEngineError(env.eng.SetMaxDBs(n))
}

// Open attaches the environment to path. Without NoSubdir the path is a
// directory and is created if missing; with NoSubdir the path names the data
// file itself and its parent must already exist. If the engine rejects the
// open, the handle is released entirely and the Env moves to Closed, so
// there is never a half-open environment.
func (env *Env) Open(path string, flags uint, mode os.FileMode) error {
	env.mu.Lock()
	defer env.mu.Unlock()
	if err := env.require("open", envCreated); err != nil {
		return err
	}
	if err := prepareEnvPath(path, flags, mode); err != nil {
		return err
	}
	if err := env.eng.Open(path, flags, mode); err != nil {
		env.eng.Close()
		env.state = envClosed
		return mapEngineError(err)
	}
	env.flags = flags
	env.state = envOpened
	env.debugf("environment opened", "path", path, "flags", flags)
	return nil
}

// prepareEnvPath checks the path against the flags before the engine sees
// it, so flag/path mismatches surface as InvalidPath rather than an opaque
// engine status.
func prepareEnvPath(path string, flags uint, mode os.FileMode) error {
	fi, err := os.Stat(path)
	switch {
	case err == nil:
		isDir := fi.IsDir()
		if flags&engine.NoSubdir != 0 && isDir {
			return &Error{Kind: KindInvalidPath,
				Message: fmt.Sprintf("%s is a directory, NoSubdir requires a file", path)}
		}
		if flags&engine.NoSubdir == 0 && !isDir {
			return &Error{Kind: KindInvalidPath,
				Message: fmt.Sprintf("%s is a file, expected a directory", path)}
		}
		return nil
	case os.IsNotExist(err):
		if flags&engine.NoSubdir != 0 {
			// The engine creates the data file itself.
			return nil
		}
		if err := os.MkdirAll(path, mode|0o100); err != nil {
			return &Error{Kind: KindInvalidPath,
				Message: fmt.Sprintf("cannot create %s", path), Err: err}
		}
		return nil
	default:
		return &Error{Kind: KindInvalidPath,
			Message: fmt.Sprintf("cannot stat %s", path), Err: err}
	}
}

// Close releases the environment. Close on a closed or never-opened Env is a
// no-op. Outstanding transactions must be resolved first; what happens to a
// transaction that outlives its environment is the engine's business, so
// don't do that.
func (env *Env) Close() {
	env.mu.Lock()
	defer env.mu.Unlock()
	if env.state != envOpened {
		env.state = envClosed
		return
	}
	env.cacheMu.Lock()
	for _, h := range env.dbs {
		env.eng.CloseDBI(h.dbi)
	}
	env.dbs = make(map[string]DBHandle)
	env.cacheMu.Unlock()
	env.eng.Close()
	env.state = envClosed
	env.debugf("environment closed")
}

func (env *Env) opened(op string) error {
	env.mu.Lock()
	defer env.mu.Unlock()
	return env.require(op, envOpened)
}

// Sync flushes buffered writes to the data file. With force the flush is
// synchronous even under NoSync or NoMetaSync.
func (env *Env) Sync(force bool) error {
	if err := env.opened("sync"); err != nil {
		return err
	}
	return mapEngineError(env.eng.Sync(force))
}

// CopyToPath writes a consistent backup of the environment to path.
func (env *Env) CopyToPath(path string) error {
	if err := env.opened("copy"); err != nil {
		return err
	}
	return mapEngineError(env.eng.CopyTo(path))
}

// CopyToFD writes a consistent backup to an open file descriptor.
func (env *Env) CopyToFD(fd uintptr) error {
	if err := env.opened("copy"); err != nil {
		return err
	}
	return mapEngineError(env.eng.CopyFD(fd))
}

// Stat reports statistics over the whole environment.
func (env *Env) Stat() (*engine.Stat, error) {
	if err := env.opened("stat"); err != nil {
		return nil, err
	}
	st, err := env.eng.Stat()
	if err != nil {
		return nil, mapEngineError(err)
	}
	return st, nil
}

// Info reports environment geometry and reader usage.
func (env *Env) Info() (*engine.EnvInfo, error) {
	if err := env.opened("info"); err != nil {
		return nil, err
	}
	info, err := env.eng.Info()
	if err != nil {
		return nil, mapEngineError(err)
	}
	return info, nil
}

// ReaderCheck clears reader slots left behind by dead processes and reports
// how many were cleared.
func (env *Env) ReaderCheck() (int, error) {
	if err := env.opened("reader check"); err != nil {
		return 0, err
	}
	n, err := env.eng.ReaderCheck()
	if err != nil {
		return 0, mapEngineError(err)
	}
	return n, nil
}

// MaxReaders reports the configured reader slot count.
func (env *Env) MaxReaders() (int, error) {
	if err := env.opened("max readers"); err != nil {
		return 0, err
	}
	n, err := env.eng.MaxReaders()
	if err != nil {
		return 0, mapEngineError(err)
	}
	return n, nil
}

// MaxKeySize reports the longest key the engine accepts.
func (env *Env) MaxKeySize() int {
	return env.eng.MaxKeySize()
}

// SetFlags turns runtime-changeable environment flags on or off.
func (env *Env) SetFlags(flags uint, on bool) error {
	if err := env.opened("set flags"); err != nil {
		return err
	}
	return mapEngineError(env.eng.SetFlags(flags, on))
}

// Flags reports the environment flags currently in effect.
func (env *Env) Flags() (uint, error) {
	if err := env.opened("flags"); err != nil {
		return 0, err
	}
	f, err := env.eng.Flags()
	if err != nil {
		return 0, mapEngineError(err)
	}
	return f, nil
}

// GetFD exposes the data file descriptor, when the engine has one.
func (env *Env) GetFD() (uintptr, error) {
	if err := env.opened("fd"); err != nil {
		return 0, err
	}
	fd, err := env.eng.FD()
	if err != nil {
		return 0, mapEngineError(err)
	}
	return fd, nil
}

// CreateDB resolves a named table, creating it if missing, and returns its
// handle. Handles are cached: the engine is consulted at most once per name,
// and concurrent callers for the same name share one open.
func (env *Env) CreateDB(name string, flags uint) (DBHandle, error) {
	return env.openDB(name, flags|engine.Create)
}

// GetDB resolves an existing named table without creating it.
func (env *Env) GetDB(name string) (DBHandle, error) {
	return env.openDB(name, 0)
}

// GetDefaultDB resolves the unnamed root table, which always exists.
func (env *Env) GetDefaultDB() (DBHandle, error) {
	return env.openDB("", 0)
}

// openDB is the cached table open. Lookup, engine open and cache insert
// happen under one lock so two goroutines racing on the same name cannot
// both reach the engine.
func (env *Env) openDB(name string, flags uint) (DBHandle, error) {
	if err := env.opened("open table"); err != nil {
		return DBHandle{}, err
	}
	env.cacheMu.Lock()
	defer env.cacheMu.Unlock()
	if h, ok := env.dbs[name]; ok {
		return h, nil
	}
	// Table resolution needs a transaction of its own: handles become
	// valid environment-wide only once that transaction commits.
	txnFlags := engine.TxnReadWrite
	if env.flags&engine.ReadOnly != 0 {
		txnFlags = engine.TxnReadOnly
	}
	eng, err := env.eng.Begin(nil, txnFlags)
	if err != nil {
		return DBHandle{}, mapEngineError(err)
	}
	dbi, err := eng.OpenDBI(name, flags)
	if err != nil {
		eng.Abort()
		return DBHandle{}, mapEngineError(err)
	}
	if err := eng.Commit(); err != nil {
		return DBHandle{}, mapEngineError(err)
	}
	h := DBHandle{name: name, dbi: dbi, flags: flags}
	env.dbs[name] = h
	env.debugf("table opened", "name", name, "dbi", uint32(dbi))
	return h, nil
}

// forgetDB drops a handle from the cache after the table was removed.
func (env *Env) forgetDB(name string) {
	env.cacheMu.Lock()
	delete(env.dbs, name)
	env.cacheMu.Unlock()
}

// NewTransaction begins a read-write transaction. Blocks while another write
// transaction is active.
func (env *Env) NewTransaction() (*Txn, error) {
	raw, err := env.beginRaw(engine.TxnReadWrite)
	if err != nil {
		return nil, err
	}
	return &Txn{raw: raw}, nil
}

// GetReader begins a read-only transaction pinned to the current snapshot.
func (env *Env) GetReader() (*ReadonlyTxn, error) {
	raw, err := env.beginRaw(engine.TxnReadOnly)
	if err != nil {
		return nil, err
	}
	return &ReadonlyTxn{raw: raw}, nil
}

func (env *Env) beginRaw(flags uint) (*rawTxn, error) {
	if err := env.opened("begin transaction"); err != nil {
		return nil, err
	}
	eng, err := env.eng.Begin(nil, flags)
	if err != nil {
		return nil, mapEngineError(err)
	}
	return &rawTxn{
		eng:      eng,
		env:      env,
		readonly: flags&engine.TxnReadOnly != 0,
		state:    stateNormal,
	}, nil
}

// Update runs fn inside a read-write transaction. The transaction commits
// when fn returns nil and aborts when fn returns an error or panics.
func (env *Env) Update(fn func(txn *Txn) error) error {
	txn, err := env.NewTransaction()
	if err != nil {
		return err
	}
	defer txn.Abort()
	if err := fn(txn); err != nil {
		return err
	}
	return txn.Commit()
}

// View runs fn inside a read-only transaction, released when fn returns.
func (env *Env) View(fn func(txn *ReadonlyTxn) error) error {
	txn, err := env.GetReader()
	if err != nil {
		return err
	}
	defer txn.Abort()
	return fn(txn)
}
