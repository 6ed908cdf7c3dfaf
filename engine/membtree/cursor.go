package membtree

import "github.com/Giulio2002/safedbx/engine"

// Cursor implements engine.Cursor by tree searches from the current
// position. Every move is O(log n) plus the width of the duplicate run it
// may have to skip. The cursor re-resolves its table per operation so it
// observes tables swapped by Drop or folded back from a child transaction.
type Cursor struct {
	txn *Txn
	dbi engine.DBI

	cur item

	// positioned means cur is a live pair. anchored means cur was
	// deleted and only anchors the next relative move.
	positioned bool
	anchored   bool
	closed     bool
}

var _ engine.Cursor = (*Cursor)(nil)

func (c *Cursor) resolve() (*table, error) {
	if c.closed {
		return nil, engine.ErrBadTxn
	}
	return c.txn.table(c.dbi)
}

func (c *Cursor) land(it item, ok bool) ([]byte, []byte, error) {
	if !ok {
		return nil, nil, engine.ErrNotFound
	}
	c.cur = it
	c.positioned = true
	c.anchored = false
	return it.key, it.val, nil
}

// seekNext returns the first item strictly after pos in tree order.
func seekNext(tbl *table, pos item) (item, bool) {
	less := lessFunc(tbl.flags)
	var out item
	found := false
	tbl.data.AscendGreaterOrEqual(pos, func(it item) bool {
		if !less(pos, it) {
			return true // same position, keep going
		}
		out = it
		found = true
		return false
	})
	return out, found
}

// seekPrev returns the last item strictly before pos in tree order.
func seekPrev(tbl *table, pos item) (item, bool) {
	less := lessFunc(tbl.flags)
	var out item
	found := false
	tbl.data.DescendLessOrEqual(pos, func(it item) bool {
		if !less(it, pos) {
			return true
		}
		out = it
		found = true
		return false
	})
	return out, found
}

// runLast returns the last item of key's duplicate run.
func runLast(tbl *table, key []byte) (item, bool) {
	kcmp := keyCompare(tbl.flags)
	var out item
	found := false
	tbl.data.AscendGreaterOrEqual(item{key: key}, func(it item) bool {
		if kcmp(it.key, key) != 0 {
			return false
		}
		out = it
		found = true
		return true
	})
	return out, found
}

func (c *Cursor) Get(key, val []byte, op engine.Op) ([]byte, []byte, error) {
	tbl, err := c.resolve()
	if err != nil {
		return nil, nil, err
	}
	dup := tbl.flags&engine.DupSort != 0
	kcmp := keyCompare(tbl.flags)

	switch op {
	case engine.First:
		it, ok := tbl.data.Min()
		return c.land(it, ok)

	case engine.Last:
		it, ok := tbl.data.Max()
		return c.land(it, ok)

	case engine.Set, engine.SetKey:
		if dup {
			it, ok := runFirst(tbl, key)
			return c.land(it, ok)
		}
		it, ok := tbl.data.Get(item{key: key})
		return c.land(it, ok)

	case engine.SetRange:
		it, ok := seekGE(tbl, item{key: key})
		return c.land(it, ok)

	case engine.GetBoth:
		if !dup {
			return nil, nil, engine.ErrIncompatible
		}
		it, ok := tbl.data.Get(item{key: key, val: val})
		return c.land(it, ok)

	case engine.GetBothRange:
		if !dup {
			return nil, nil, engine.ErrIncompatible
		}
		it, ok := seekGE(tbl, item{key: key, val: val})
		if ok && kcmp(it.key, key) != 0 {
			ok = false
		}
		return c.land(it, ok)

	case engine.GetCurrent:
		if !c.positioned {
			return nil, nil, engine.ErrNotFound
		}
		return c.cur.key, c.cur.val, nil

	case engine.Next:
		if !c.positioned && !c.anchored {
			it, ok := tbl.data.Min()
			return c.land(it, ok)
		}
		it, ok := seekNext(tbl, c.cur)
		return c.land(it, ok)

	case engine.NextDup:
		if !c.positioned && !c.anchored {
			return nil, nil, engine.ErrNotFound
		}
		it, ok := seekNext(tbl, c.cur)
		if ok && kcmp(it.key, c.cur.key) != 0 {
			ok = false
		}
		return c.land(it, ok)

	case engine.NextNoDup:
		if !c.positioned && !c.anchored {
			it, ok := tbl.data.Min()
			return c.land(it, ok)
		}
		pos := c.cur
		for {
			it, ok := seekNext(tbl, pos)
			if !ok {
				return c.land(item{}, false)
			}
			if kcmp(it.key, c.cur.key) != 0 {
				return c.land(it, true)
			}
			pos = it
		}

	case engine.Prev:
		if !c.positioned && !c.anchored {
			it, ok := tbl.data.Max()
			return c.land(it, ok)
		}
		it, ok := seekPrev(tbl, c.cur)
		return c.land(it, ok)

	case engine.PrevDup:
		if !c.positioned && !c.anchored {
			return nil, nil, engine.ErrNotFound
		}
		it, ok := seekPrev(tbl, c.cur)
		if ok && kcmp(it.key, c.cur.key) != 0 {
			ok = false
		}
		return c.land(it, ok)

	case engine.PrevNoDup:
		if !c.positioned && !c.anchored {
			it, ok := tbl.data.Max()
			return c.land(it, ok)
		}
		pos := c.cur
		for {
			it, ok := seekPrev(tbl, pos)
			if !ok {
				return c.land(item{}, false)
			}
			if kcmp(it.key, c.cur.key) != 0 {
				return c.land(it, true)
			}
			pos = it
		}

	case engine.FirstDup:
		if !c.positioned {
			return nil, nil, engine.ErrNotFound
		}
		it, ok := runFirst(tbl, c.cur.key)
		return c.land(it, ok)

	case engine.LastDup:
		if !c.positioned {
			return nil, nil, engine.ErrNotFound
		}
		it, ok := runLast(tbl, c.cur.key)
		return c.land(it, ok)
	}
	return nil, nil, engine.ErrIncompatible
}

func seekGE(tbl *table, pos item) (item, bool) {
	var out item
	found := false
	tbl.data.AscendGreaterOrEqual(pos, func(it item) bool {
		out = it
		found = true
		return false
	})
	return out, found
}

func (c *Cursor) Put(key, val []byte, flags uint) error {
	tbl, err := c.resolve()
	if err != nil {
		return err
	}
	if flags&engine.Current != 0 {
		if !c.positioned {
			return engine.ErrNotFound
		}
		if _, err := c.txn.writableTable(c.dbi); err != nil {
			return err
		}
		dup := tbl.flags&engine.DupSort != 0
		if dup {
			// Ordering includes the value, so replace is delete
			// plus insert.
			if err := c.txn.Del(c.dbi, c.cur.key, c.cur.val); err != nil {
				return err
			}
		}
		if err := c.txn.Put(c.dbi, c.cur.key, val, engine.Upsert); err != nil {
			return err
		}
		c.cur = item{key: c.cur.key, val: cloneBytes(val)}
		c.positioned = true
		return nil
	}
	if err := c.txn.Put(c.dbi, key, val, flags); err != nil {
		return err
	}
	c.cur = item{key: cloneBytes(key), val: cloneBytes(val)}
	c.positioned = true
	c.anchored = false
	return nil
}

func (c *Cursor) Del(flags uint) error {
	if _, err := c.resolve(); err != nil {
		return err
	}
	if !c.positioned {
		return engine.ErrNotFound
	}
	tbl, _ := c.resolve()
	dup := tbl.flags&engine.DupSort != 0
	var err error
	if flags&engine.DelAllDups != 0 || !dup {
		err = c.txn.Del(c.dbi, c.cur.key, nil)
	} else {
		err = c.txn.Del(c.dbi, c.cur.key, c.cur.val)
	}
	if err != nil {
		return err
	}
	c.positioned = false
	c.anchored = true
	return nil
}

func (c *Cursor) Count() (uint64, error) {
	tbl, err := c.resolve()
	if err != nil {
		return 0, err
	}
	if !c.positioned {
		return 0, engine.ErrNotFound
	}
	if tbl.flags&engine.DupSort == 0 {
		return 1, nil
	}
	kcmp := keyCompare(tbl.flags)
	var n uint64
	tbl.data.AscendGreaterOrEqual(item{key: c.cur.key}, func(it item) bool {
		if kcmp(it.key, c.cur.key) != 0 {
			return false
		}
		n++
		return true
	})
	return n, nil
}

func (c *Cursor) Close() {
	c.closed = true
}
