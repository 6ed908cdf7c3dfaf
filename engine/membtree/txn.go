package membtree

import (
	"bytes"

	"github.com/Giulio2002/safedbx/engine"
)

// Txn implements engine.Txn. A read-only transaction pins the snapshot that
// was current at begin (or at the last Renew) and shares its trees. A write
// transaction owns clones of the current trees; commit publishes them as the
// next snapshot. Nested write transactions clone again and fold back into
// the parent on commit.
type Txn struct {
	env      *Env
	parent   *Txn
	readonly bool

	snap    *snapshot
	tables  map[engine.DBI]*table
	byName  map[string]engine.DBI
	nextDBI uint32
	bytes   int64

	readerID int64
	released bool
	done     bool
}

var _ engine.Txn = (*Txn)(nil)

func (t *Txn) attachSnapshot() error {
	if t.env.readers.len() >= t.env.maxRdrs {
		return engine.ErrReadersFull
	}
	t.readerID = t.env.readers.register(t)
	snap := t.env.current.Load()
	t.snap = snap
	t.tables = snap.tables
	t.byName = snap.byName
	t.nextDBI = snap.nextDBI
	t.bytes = snap.bytes
	t.released = false
	return nil
}

func (t *Txn) beginChild(flags uint) (*Txn, error) {
	child := &Txn{
		env:      t.env,
		parent:   t,
		snap:     t.snap,
		nextDBI:  t.nextDBI,
		bytes:    t.bytes,
		readonly: t.readonly || flags&engine.TxnReadOnly != 0,
	}
	if child.readonly {
		// A read-only child observes the parent's working state
		// directly; the parent pins whatever needs pinning.
		child.tables = t.tables
		child.byName = t.byName
		return child, nil
	}
	child.tables = make(map[engine.DBI]*table, len(t.tables))
	child.byName = make(map[string]engine.DBI, len(t.byName))
	for dbi, tbl := range t.tables {
		child.tables[dbi] = &table{name: tbl.name, dbi: tbl.dbi, flags: tbl.flags, data: tbl.data.Clone()}
	}
	for name, dbi := range t.byName {
		child.byName[name] = dbi
	}
	return child, nil
}

func (t *Txn) Commit() error {
	if t.done {
		return engine.ErrBadTxn
	}
	t.done = true
	if t.readonly {
		if t.parent == nil && !t.released {
			t.env.readers.unregister(t.readerID)
		}
		return nil
	}
	if t.parent != nil {
		t.parent.tables = t.tables
		t.parent.byName = t.byName
		t.parent.nextDBI = t.nextDBI
		t.parent.bytes = t.bytes
		return nil
	}
	next := &snapshot{
		txnID:   t.snap.txnID + 1,
		nextDBI: t.nextDBI,
		bytes:   t.bytes,
		tables:  t.tables,
		byName:  t.byName,
	}
	t.env.current.Store(next)
	t.env.dirty.Store(true)
	var err error
	if t.env.flags&engine.NoSync == 0 {
		err = t.env.persistLocked(t.env.flags&engine.NoMetaSync == 0)
	}
	t.env.writer.Unlock()
	return err
}

func (t *Txn) Abort() {
	if t.done {
		return
	}
	t.done = true
	if t.readonly {
		if t.parent == nil && !t.released {
			t.env.readers.unregister(t.readerID)
		}
		return
	}
	if t.parent == nil {
		t.env.writer.Unlock()
	}
}

func (t *Txn) Reset() {
	if t.done || !t.readonly || t.parent != nil || t.released {
		return
	}
	t.env.readers.unregister(t.readerID)
	t.released = true
}

func (t *Txn) Renew() error {
	if t.done || !t.readonly || t.parent != nil {
		return engine.ErrBadTxn
	}
	if !t.released {
		t.env.readers.unregister(t.readerID)
	}
	return t.attachSnapshot()
}

func (t *Txn) table(dbi engine.DBI) (*table, error) {
	if t.done {
		return nil, engine.ErrBadTxn
	}
	tbl, ok := t.tables[dbi]
	if !ok {
		return nil, engine.ErrBadDBI
	}
	return tbl, nil
}

func (t *Txn) writableTable(dbi engine.DBI) (*table, error) {
	if t.readonly {
		return nil, engine.ErrPermission
	}
	return t.table(dbi)
}

func (t *Txn) OpenDBI(name string, flags uint) (engine.DBI, error) {
	if t.done {
		return 0, engine.ErrBadTxn
	}
	if name == "" {
		return mainDBI, nil
	}
	persistent := flags &^ engine.Create
	if dbi, ok := t.byName[name]; ok {
		if persistent != 0 && persistent != t.tables[dbi].flags {
			return 0, engine.ErrIncompatible
		}
		return dbi, nil
	}
	if flags&engine.Create == 0 {
		return 0, engine.ErrNotFound
	}
	if t.readonly {
		return 0, engine.ErrPermission
	}
	// byName includes the unnamed root table, which does not count
	// against the named-table limit.
	if len(t.byName)-1 >= t.env.maxDBs {
		return 0, engine.ErrDBsFull
	}
	dbi := engine.DBI(t.nextDBI)
	t.nextDBI++
	t.tables[dbi] = newTable(name, dbi, persistent)
	t.byName[name] = dbi
	return dbi, nil
}

func (t *Txn) Drop(dbi engine.DBI, del bool) error {
	tbl, err := t.writableTable(dbi)
	if err != nil {
		return err
	}
	tbl.data.Ascend(func(it item) bool {
		t.bytes -= int64(len(it.key) + len(it.val))
		return true
	})
	if del && dbi != mainDBI {
		delete(t.tables, dbi)
		delete(t.byName, tbl.name)
		return nil
	}
	t.tables[dbi] = newTable(tbl.name, dbi, tbl.flags)
	return nil
}

// runFirst returns the first item of key's duplicate run.
func runFirst(tbl *table, key []byte) (item, bool) {
	var out item
	found := false
	tbl.data.AscendGreaterOrEqual(item{key: key}, func(it item) bool {
		if keyCompare(tbl.flags)(it.key, key) == 0 {
			out = it
			found = true
		}
		return false
	})
	return out, found
}

func (t *Txn) Get(dbi engine.DBI, key []byte) ([]byte, error) {
	tbl, err := t.table(dbi)
	if err != nil {
		return nil, err
	}
	if tbl.flags&engine.DupSort != 0 {
		it, ok := runFirst(tbl, key)
		if !ok {
			return nil, engine.ErrNotFound
		}
		return it.val, nil
	}
	it, ok := tbl.data.Get(item{key: key})
	if !ok {
		return nil, engine.ErrNotFound
	}
	return it.val, nil
}

func (t *Txn) validateSizes(tbl *table, key, val []byte) error {
	if len(key) == 0 || len(key) > maxKeySize {
		return engine.ErrBadValSize
	}
	if tbl.flags&engine.IntegerKey != 0 && len(key) != 4 && len(key) != 8 {
		return engine.ErrBadValSize
	}
	if tbl.flags&engine.IntegerDup != 0 && len(val) != 4 && len(val) != 8 {
		return engine.ErrBadValSize
	}
	return nil
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (t *Txn) Put(dbi engine.DBI, key, val []byte, flags uint) error {
	tbl, err := t.writableTable(dbi)
	if err != nil {
		return err
	}
	if err := t.validateSizes(tbl, key, val); err != nil {
		return err
	}
	if t.env.mapSize > 0 && t.bytes+int64(len(key)+len(val)) > t.env.mapSize {
		return engine.ErrMapFull
	}
	dup := tbl.flags&engine.DupSort != 0

	if flags&engine.NoOverwrite != 0 {
		var exists bool
		if dup {
			_, exists = runFirst(tbl, key)
		} else {
			_, exists = tbl.data.Get(item{key: key})
		}
		if exists {
			return engine.ErrKeyExist
		}
	}
	if flags&engine.NoDupData != 0 && dup {
		if _, ok := tbl.data.Get(item{key: key, val: val}); ok {
			return engine.ErrKeyExist
		}
	}
	if flags&engine.Append != 0 {
		if max, ok := tbl.data.Max(); ok {
			if keyCompare(tbl.flags)(key, max.key) < 0 {
				return engine.ErrKeyMismatch
			}
		}
	}

	stored := item{key: cloneBytes(key), val: cloneBytes(val)}
	old, replaced := tbl.data.ReplaceOrInsert(stored)
	t.bytes += int64(len(key) + len(val))
	if replaced {
		t.bytes -= int64(len(old.key) + len(old.val))
	}
	return nil
}

func (t *Txn) Del(dbi engine.DBI, key, val []byte) error {
	tbl, err := t.writableTable(dbi)
	if err != nil {
		return err
	}
	dup := tbl.flags&engine.DupSort != 0

	if val == nil && dup {
		kcmp := keyCompare(tbl.flags)
		var run []item
		tbl.data.AscendGreaterOrEqual(item{key: key}, func(it item) bool {
			if kcmp(it.key, key) != 0 {
				return false
			}
			run = append(run, it)
			return true
		})
		if len(run) == 0 {
			return engine.ErrNotFound
		}
		for _, it := range run {
			tbl.data.Delete(it)
			t.bytes -= int64(len(it.key) + len(it.val))
		}
		return nil
	}

	probe := item{key: key}
	if dup {
		probe.val = val
	} else if val != nil {
		// On plain tables a value narrows the delete to a matching pair.
		cur, ok := tbl.data.Get(probe)
		if !ok || !bytes.Equal(cur.val, val) {
			return engine.ErrNotFound
		}
	}
	old, ok := tbl.data.Delete(probe)
	if !ok {
		return engine.ErrNotFound
	}
	t.bytes -= int64(len(old.key) + len(old.val))
	return nil
}

func (t *Txn) Cmp(dbi engine.DBI, a, b []byte) int {
	tbl, err := t.table(dbi)
	if err != nil {
		return bytes.Compare(a, b)
	}
	return keyCompare(tbl.flags)(a, b)
}

func (t *Txn) Stat(dbi engine.DBI) (*engine.Stat, error) {
	tbl, err := t.table(dbi)
	if err != nil {
		return nil, err
	}
	return &engine.Stat{
		PSize:   pageSize,
		Entries: uint64(tbl.data.Len()),
	}, nil
}

func (t *Txn) OpenCursor(dbi engine.DBI) (engine.Cursor, error) {
	if _, err := t.table(dbi); err != nil {
		return nil, err
	}
	return &Cursor{txn: t, dbi: dbi}, nil
}
