package safedbx

// iterStrategy drives an Iterator: one call positions the cursor at the
// start of the sequence, the other advances it. Both report false when the
// sequence is exhausted or positioning fails; iteration never restarts.
type iterStrategy interface {
	init(c *Cursor) bool
	next(c *Cursor) bool
}

// Iterator walks a cursor-backed sequence one pair at a time:
//
//	it, err := db.Iter()
//	if err != nil { ... }
//	defer it.Close()
//	for it.Next() {
//		k, v := it.Key(), it.Value()
//		...
//	}
//
// Key and Value alias engine-owned memory with cursor validity rules; copy
// them to keep them past the next call. An Iterator owns its cursor.
type Iterator struct {
	c       *Cursor
	strat   iterStrategy
	started bool
	done    bool
	key     []byte
	val     []byte
}

// Next advances to the next pair, or to the first on the initial call.
// Returns false once the sequence ends; later calls keep returning false.
func (it *Iterator) Next() bool {
	if it.done {
		return false
	}
	var ok bool
	if !it.started {
		it.started = true
		ok = it.strat.init(it.c)
	} else {
		ok = it.strat.next(it.c)
	}
	if !ok {
		it.done = true
		return false
	}
	k, v, err := it.c.Get()
	if err != nil {
		it.done = true
		return false
	}
	it.key, it.val = k, v
	return true
}

// Key returns the key of the current pair. Valid after Next returned true.
func (it *Iterator) Key() []byte { return it.key }

// Value returns the value of the current pair.
func (it *Iterator) Value() []byte { return it.val }

// Close releases the iterator's cursor.
func (it *Iterator) Close() { it.c.Close() }

// fullScan walks distinct keys in order. On a DupSort table each key yields
// the first value of its run; ItemIter walks a run value by value.
type fullScan struct{}

func (fullScan) init(c *Cursor) bool { return c.ToFirst() == nil }
func (fullScan) next(c *Cursor) bool { return c.ToNextKey() == nil }

// keyRange walks distinct keys in [start, end) or, with endInclusive,
// [start, end]. A nil start begins at the first key; a nil end runs to the
// last. The end bound is enforced with the table's own comparator, so it
// respects ReverseKey and IntegerKey ordering.
type keyRange struct {
	start        []byte
	end          []byte
	endInclusive bool
}

func (r *keyRange) init(c *Cursor) bool {
	if r.start == nil {
		if c.ToFirst() != nil {
			return false
		}
	} else if c.ToGteKey(r.start) != nil {
		return false
	}
	return r.inBound(c)
}

func (r *keyRange) next(c *Cursor) bool {
	if c.ToNextKey() != nil {
		return false
	}
	return r.inBound(c)
}

func (r *keyRange) inBound(c *Cursor) bool {
	if r.end == nil {
		return true
	}
	k, err := c.GetKey()
	if err != nil {
		return false
	}
	cmp := c.txn.eng.Cmp(c.dbi, k, r.end)
	if r.endInclusive {
		return cmp <= 0
	}
	return cmp < 0
}

// itemIter walks the duplicate run of a single key.
type itemIter struct {
	key []byte
}

func (i *itemIter) init(c *Cursor) bool { return c.ToKey(i.key) == nil }
func (i *itemIter) next(c *Cursor) bool { return c.ToNextItem() == nil }
