package safedbx

import (
	"github.com/Giulio2002/safedbx/engine"
)

// txnState is the local transaction state. Every operation is checked
// against it before any engine call is made, so a misused handle fails fast
// without ever touching freed engine resources.
type txnState int32

const (
	// stateNormal allows all operations.
	stateNormal txnState = iota

	// stateReleased holds a read-only handle whose reader slot was given
	// up by Reset. Only Renew and Abort are allowed.
	stateReleased

	// stateInvalid is terminal. The engine handle is gone; nothing may
	// touch it again.
	stateInvalid
)

func (s txnState) String() string {
	switch s {
	case stateNormal:
		return "Normal"
	case stateReleased:
		return "Released"
	case stateInvalid:
		return "Invalid"
	}
	return "Unknown"
}

// rawTxn carries the engine handle and the state machine shared by Txn and
// ReadonlyTxn. Transactions are single-owner: a rawTxn must not be used from
// two goroutines at once, so state needs no locking.
type rawTxn struct {
	eng      engine.Txn
	env      *Env
	readonly bool
	state    txnState
	parent   *rawTxn
	children []*rawTxn
}

// require is the local state guard. It never calls into the engine.
func (t *rawTxn) require(op string, want txnState) error {
	if t.state != want {
		return stateErrorf("%s requires %s, is in %s", op, want, t.state)
	}
	return nil
}

func (t *rawTxn) liveChildren() int {
	n := 0
	for _, c := range t.children {
		if c.state != stateInvalid {
			n++
		}
	}
	return n
}

// commit consumes the transaction. The engine releases the handle whether or
// not the commit itself succeeds, so the local state goes to Invalid on both
// paths and the error, if any, is reported after the transition.
func (t *rawTxn) commit() error {
	if err := t.require("commit", stateNormal); err != nil {
		return err
	}
	if n := t.liveChildren(); n > 0 {
		return stateErrorf("commit with %d unresolved child transactions", n)
	}
	err := t.eng.Commit()
	t.finish()
	if err != nil {
		return mapEngineError(err)
	}
	return nil
}

// abort discards the transaction. Safe to call from any state, including
// after commit, so a deferred Abort is always correct cleanup.
func (t *rawTxn) abort() {
	if t.state == stateInvalid {
		return
	}
	// The engine tears nested handles down together with the parent, so
	// live children are invalidated locally without their own engine
	// call.
	t.orphanChildren()
	t.eng.Abort()
	t.finish()
}

// reset gives up the reader slot but keeps the handle for Renew.
func (t *rawTxn) reset() error {
	if err := t.require("reset", stateNormal); err != nil {
		return err
	}
	t.eng.Reset()
	t.state = stateReleased
	return nil
}

// renew reacquires a reader slot on a reset handle. On failure the handle
// stays Released so the caller may retry or Abort.
func (t *rawTxn) renew() error {
	if err := t.require("renew", stateReleased); err != nil {
		return err
	}
	if err := t.eng.Renew(); err != nil {
		return mapEngineError(err)
	}
	t.state = stateNormal
	return nil
}

// finish moves to the terminal state and unlinks from the parent.
func (t *rawTxn) finish() {
	t.state = stateInvalid
	t.children = nil
	t.parent = nil
}

// orphanChildren marks live children Invalid, depth first, without engine
// calls.
func (t *rawTxn) orphanChildren() {
	for _, c := range t.children {
		if c.state != stateInvalid {
			c.orphanChildren()
			c.state = stateInvalid
			c.children = nil
			c.parent = nil
		}
	}
	t.children = nil
}

// child begins a nested transaction. Nesting is valid only while the parent
// is Normal; the engine inherits the parent's isolation scope.
func (t *rawTxn) child(flags uint) (*rawTxn, error) {
	if err := t.require("child transaction", stateNormal); err != nil {
		return nil, err
	}
	eng, err := t.env.eng.Begin(t.eng, flags)
	if err != nil {
		return nil, mapEngineError(err)
	}
	c := &rawTxn{
		eng:      eng,
		env:      t.env,
		readonly: flags&engine.TxnReadOnly != 0,
		state:    stateNormal,
		parent:   t,
	}
	t.children = append(t.children, c)
	return c, nil
}

// Data operations. Each re-checks the state locally first; the engine is
// only reached from Normal.

func (t *rawTxn) get(dbi engine.DBI, key []byte) ([]byte, error) {
	if err := t.require("get", stateNormal); err != nil {
		return nil, err
	}
	v, err := t.eng.Get(dbi, key)
	if err != nil {
		return nil, mapEngineError(err)
	}
	return v, nil
}

func (t *rawTxn) put(dbi engine.DBI, key, val []byte, flags uint) error {
	if err := t.require("put", stateNormal); err != nil {
		return err
	}
	if t.readonly {
		return stateErrorf("put on a read-only transaction")
	}
	return mapEngineError(t.eng.Put(dbi, key, val, flags))
}

func (t *rawTxn) del(dbi engine.DBI, key, val []byte) error {
	if err := t.require("del", stateNormal); err != nil {
		return err
	}
	if t.readonly {
		return stateErrorf("del on a read-only transaction")
	}
	return mapEngineError(t.eng.Del(dbi, key, val))
}

func (t *rawTxn) drop(dbi engine.DBI, del bool) error {
	if err := t.require("drop", stateNormal); err != nil {
		return err
	}
	if t.readonly {
		return stateErrorf("drop on a read-only transaction")
	}
	return mapEngineError(t.eng.Drop(dbi, del))
}

func (t *rawTxn) stat(dbi engine.DBI) (*engine.Stat, error) {
	if err := t.require("stat", stateNormal); err != nil {
		return nil, err
	}
	st, err := t.eng.Stat(dbi)
	if err != nil {
		return nil, mapEngineError(err)
	}
	return st, nil
}

func (t *rawTxn) openCursor(dbi engine.DBI) (*Cursor, error) {
	if err := t.require("cursor open", stateNormal); err != nil {
		return nil, err
	}
	eng, err := t.eng.OpenCursor(dbi)
	if err != nil {
		return nil, mapEngineError(err)
	}
	return &Cursor{eng: eng, txn: t, dbi: dbi}, nil
}

// Txn is a read-write transaction. At most one read-write transaction is
// active per environment at a time; Env.NewTransaction blocks until the
// writer slot is free. A Txn must stay on one goroutine.
//
// Always resolve a Txn with Commit or Abort. Abort is a no-op once the
// transaction is resolved, so the usual shape is:
//
//	txn, err := env.NewTransaction()
//	if err != nil { ... }
//	defer txn.Abort()
//	...
//	return txn.Commit()
type Txn struct {
	raw *rawTxn
}

// Commit makes the transaction's writes durable and invalidates the handle.
// The handle is invalidated even when the commit fails, because the engine
// has already torn it down by the time the failure is reported.
func (txn *Txn) Commit() error {
	return txn.raw.commit()
}

// Abort discards the transaction. Calling Abort on an already resolved
// transaction does nothing, so it is safe to defer unconditionally.
func (txn *Txn) Abort() {
	txn.raw.abort()
}

// NewChild begins a nested read-write transaction. The child sees the
// parent's uncommitted writes and must be resolved before the parent;
// committing the parent with a live child is a state error.
func (txn *Txn) NewChild() (*Txn, error) {
	raw, err := txn.raw.child(engine.TxnReadWrite)
	if err != nil {
		return nil, err
	}
	return &Txn{raw: raw}, nil
}

// NewReadonlyChild begins a nested read-only transaction.
func (txn *Txn) NewReadonlyChild() (*ReadonlyTxn, error) {
	raw, err := txn.raw.child(engine.TxnReadOnly)
	if err != nil {
		return nil, err
	}
	return &ReadonlyTxn{raw: raw}, nil
}

// Bind pairs a table handle with this transaction for the duration of the
// transaction's life. All data access goes through the bound Database, so a
// handle can never be mixed with a foreign transaction by accident.
func (txn *Txn) Bind(h DBHandle) Database {
	return Database{h: h, txn: txn.raw}
}

// ReadonlyTxn is a read-only transaction. Readers are cheap: many may be
// active at once, each seeing a consistent snapshot taken at creation or at
// the last Renew. A ReadonlyTxn must stay on one goroutine.
//
// There is no Commit on a read-only transaction; a reader is resolved with
// Abort, or parked with Reset and revived with Renew.
type ReadonlyTxn struct {
	raw *rawTxn
}

// Abort releases the reader. Valid from Normal and Released; a no-op once
// the transaction is Invalid.
func (txn *ReadonlyTxn) Abort() {
	txn.raw.abort()
}

// Reset gives up the reader slot but keeps the engine handle. The
// transaction is unusable until Renew. Reset exists so a long-lived reader
// can stop pinning old pages without paying for a fresh transaction later.
func (txn *ReadonlyTxn) Reset() error {
	return txn.raw.reset()
}

// Renew reacquires a reader slot on the same handle, with a fresh snapshot.
// Renew without a prior Reset is a state error.
func (txn *ReadonlyTxn) Renew() error {
	return txn.raw.renew()
}

// NewChild begins a nested read-only transaction.
func (txn *ReadonlyTxn) NewChild() (*ReadonlyTxn, error) {
	raw, err := txn.raw.child(engine.TxnReadOnly)
	if err != nil {
		return nil, err
	}
	return &ReadonlyTxn{raw: raw}, nil
}

// Bind pairs a table handle with this transaction. Write operations on the
// returned Database fail with a state error before reaching the engine.
func (txn *ReadonlyTxn) Bind(h DBHandle) Database {
	return Database{h: h, txn: txn.raw}
}
