package mdbxdrv

import (
	"bytes"
	"encoding/binary"
	"runtime"

	mdbxgo "github.com/erigontech/mdbx-go/mdbx"

	"github.com/Giulio2002/safedbx/engine"
)

// Txn implements engine.Txn over an mdbx transaction. Write transactions pin
// their goroutine to an OS thread for their whole life; libmdbx requires the
// commit to happen on the thread that began the transaction.
type Txn struct {
	env    *Env
	txn    *mdbxgo.Txn
	locked bool
}

var _ engine.Txn = (*Txn)(nil)

func (e *Env) Begin(parent engine.Txn, flags uint) (engine.Txn, error) {
	var mparent *mdbxgo.Txn
	if parent != nil {
		p, ok := parent.(*Txn)
		if !ok {
			return nil, engine.ErrBadTxn
		}
		mparent = p.txn
	}
	var mflags uint
	locked := false
	if flags&engine.TxnReadOnly != 0 {
		mflags = mdbxgo.Readonly
	} else if parent == nil {
		runtime.LockOSThread()
		locked = true
	}
	mtxn, err := e.env.BeginTxn(mparent, mflags)
	if err != nil {
		if locked {
			runtime.UnlockOSThread()
		}
		return nil, mapError(err)
	}
	return &Txn{env: e, txn: mtxn, locked: locked}, nil
}

func (t *Txn) unpin() {
	if t.locked {
		t.locked = false
		runtime.UnlockOSThread()
	}
}

func (t *Txn) Commit() error {
	_, err := t.txn.Commit()
	t.unpin()
	return mapError(err)
}

func (t *Txn) Abort() {
	t.txn.Abort()
	t.unpin()
}

func (t *Txn) Reset() {
	t.txn.Reset()
}

func (t *Txn) Renew() error {
	return mapError(t.txn.Renew())
}

func (t *Txn) OpenDBI(name string, flags uint) (engine.DBI, error) {
	mdbi, err := t.txn.OpenDBI(name, dbiFlags(flags), nil, nil)
	if err != nil {
		return 0, mapError(err)
	}
	dbi := engine.DBI(mdbi)
	t.env.rememberDBI(dbi, flags)
	return dbi, nil
}

func (t *Txn) Drop(dbi engine.DBI, del bool) error {
	return mapError(t.txn.Drop(mdbxgo.DBI(dbi), del))
}

func (t *Txn) Get(dbi engine.DBI, key []byte) ([]byte, error) {
	v, err := t.txn.Get(mdbxgo.DBI(dbi), key)
	if err != nil {
		return nil, mapError(err)
	}
	return v, nil
}

func (t *Txn) Put(dbi engine.DBI, key, val []byte, flags uint) error {
	return mapError(t.txn.Put(mdbxgo.DBI(dbi), key, val, putFlags(flags)))
}

func (t *Txn) Del(dbi engine.DBI, key, val []byte) error {
	return mapError(t.txn.Del(mdbxgo.DBI(dbi), key, val))
}

// Cmp orders keys with the table's comparator, reconstructed from the flags
// the table was opened with. Keeping it in Go avoids a cgo call per
// comparison on iteration hot paths.
func (t *Txn) Cmp(dbi engine.DBI, a, b []byte) int {
	flags := t.env.flagsOf(dbi)
	switch {
	case flags&engine.IntegerKey != 0:
		return integerCompare(a, b)
	case flags&engine.ReverseKey != 0:
		return reverseCompare(a, b)
	}
	return bytes.Compare(a, b)
}

func integerCompare(a, b []byte) int {
	var av, bv uint64
	if len(a) == 4 {
		av = uint64(binary.NativeEndian.Uint32(a))
	} else {
		av = binary.NativeEndian.Uint64(a)
	}
	if len(b) == 4 {
		bv = uint64(binary.NativeEndian.Uint32(b))
	} else {
		bv = binary.NativeEndian.Uint64(b)
	}
	switch {
	case av < bv:
		return -1
	case av > bv:
		return 1
	}
	return 0
}

func reverseCompare(a, b []byte) int {
	for i, j := len(a)-1, len(b)-1; i >= 0 && j >= 0; i, j = i-1, j-1 {
		if a[i] != b[j] {
			if a[i] < b[j] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

func (t *Txn) Stat(dbi engine.DBI) (*engine.Stat, error) {
	st, err := t.txn.StatDBI(mdbxgo.DBI(dbi))
	if err != nil {
		return nil, mapError(err)
	}
	return &engine.Stat{
		PSize:         uint(st.PSize),
		Depth:         uint(st.Depth),
		BranchPages:   st.BranchPages,
		LeafPages:     st.LeafPages,
		OverflowPages: st.OverflowPages,
		Entries:       st.Entries,
	}, nil
}

func (t *Txn) OpenCursor(dbi engine.DBI) (engine.Cursor, error) {
	mc, err := t.txn.OpenCursor(mdbxgo.DBI(dbi))
	if err != nil {
		return nil, mapError(err)
	}
	return &Cursor{c: mc}, nil
}

// Cursor implements engine.Cursor over an mdbx cursor.
type Cursor struct {
	c *mdbxgo.Cursor
}

var _ engine.Cursor = (*Cursor)(nil)

func (c *Cursor) Get(key, val []byte, op engine.Op) ([]byte, []byte, error) {
	mop, ok := opTable[op]
	if !ok {
		return nil, nil, engine.ErrIncompatible
	}
	k, v, err := c.c.Get(key, val, mop)
	if err != nil {
		return nil, nil, mapError(err)
	}
	return k, v, nil
}

func (c *Cursor) Put(key, val []byte, flags uint) error {
	return mapError(c.c.Put(key, val, putFlags(flags)))
}

func (c *Cursor) Del(flags uint) error {
	var mflags uint
	if flags&engine.DelAllDups != 0 {
		mflags = mdbxgo.AllDups
	}
	return mapError(c.c.Del(mflags))
}

func (c *Cursor) Count() (uint64, error) {
	n, err := c.c.Count()
	if err != nil {
		return 0, mapError(err)
	}
	return n, nil
}

func (c *Cursor) Close() {
	c.c.Close()
}
