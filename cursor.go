package safedbx

import "github.com/Giulio2002/safedbx/engine"

// Cursor is a positional cursor over one table. A cursor belongs to the
// transaction that opened it: once that transaction leaves the Normal state
// every cursor operation fails with a state error before reaching the
// engine. Cursors are single-owner like their transaction.
type Cursor struct {
	eng engine.Cursor
	txn *rawTxn
	dbi engine.DBI

	key []byte
	val []byte

	// Some positioning ops hand back the value without the stored key.
	// The key is then re-fetched lazily with GetCurrent on first access.
	validKey bool
	closed   bool
}

// navigate executes a positioning op and records the new position.
func (c *Cursor) navigate(key, val []byte, op engine.Op) error {
	if c.closed {
		return stateErrorf("cursor operation on a closed cursor")
	}
	if err := c.txn.require("cursor operation", stateNormal); err != nil {
		return err
	}
	k, v, err := c.eng.Get(key, val, op)
	if err != nil {
		return mapEngineError(err)
	}
	c.key, c.val = k, v
	switch op {
	case engine.Set, engine.FirstDup, engine.LastDup, engine.GetBoth, engine.GetBothRange:
		c.validKey = false
	default:
		c.validKey = true
	}
	return nil
}

// ensureKeyValid re-fetches the stored key after an op that did not return
// it. GetCurrent does not move the cursor.
func (c *Cursor) ensureKeyValid() error {
	if c.validKey {
		return nil
	}
	k, v, err := c.eng.Get(nil, nil, engine.GetCurrent)
	if err != nil {
		return mapEngineError(err)
	}
	c.key, c.val = k, v
	c.validKey = true
	return nil
}

// ToFirst positions at the first pair in the table.
func (c *Cursor) ToFirst() error {
	return c.navigate(nil, nil, engine.First)
}

// ToLast positions at the last pair in the table.
func (c *Cursor) ToLast() error {
	return c.navigate(nil, nil, engine.Last)
}

// ToKey positions at key, on the first value of its run.
func (c *Cursor) ToKey(key []byte) error {
	return c.navigate(key, nil, engine.SetKey)
}

// ToGteKey positions at the first key greater than or equal to key.
func (c *Cursor) ToGteKey(key []byte) error {
	return c.navigate(key, nil, engine.SetRange)
}

// ToItem positions at the exact key/value pair on a DupSort table.
func (c *Cursor) ToItem(key, val []byte) error {
	return c.navigate(key, val, engine.GetBoth)
}

// ToGteItem positions at key and the first value greater than or equal to
// val within its run.
func (c *Cursor) ToGteItem(key, val []byte) error {
	return c.navigate(key, val, engine.GetBothRange)
}

// ToNextKey positions at the first value of the next distinct key.
func (c *Cursor) ToNextKey() error {
	return c.navigate(nil, nil, engine.NextNoDup)
}

// ToNextItem positions at the next value of the current key's run.
func (c *Cursor) ToNextItem() error {
	return c.navigate(nil, nil, engine.NextDup)
}

// ToNext positions at the next pair, walking duplicate runs value by value.
func (c *Cursor) ToNext() error {
	return c.navigate(nil, nil, engine.Next)
}

// ToPrevKey positions at the last value of the previous distinct key.
func (c *Cursor) ToPrevKey() error {
	return c.navigate(nil, nil, engine.PrevNoDup)
}

// ToPrevItem positions at the previous value of the current key's run.
func (c *Cursor) ToPrevItem() error {
	return c.navigate(nil, nil, engine.PrevDup)
}

// ToPrev positions at the previous pair, walking duplicate runs.
func (c *Cursor) ToPrev() error {
	return c.navigate(nil, nil, engine.Prev)
}

// ToFirstItem positions at the first value of the current key's run.
func (c *Cursor) ToFirstItem() error {
	return c.navigate(nil, nil, engine.FirstDup)
}

// ToLastItem positions at the last value of the current key's run.
func (c *Cursor) ToLastItem() error {
	return c.navigate(nil, nil, engine.LastDup)
}

// Get returns the pair at the current position. The slices alias
// engine-owned memory, valid while the transaction is Normal and until the
// next write.
func (c *Cursor) Get() ([]byte, []byte, error) {
	if c.closed {
		return nil, nil, stateErrorf("cursor operation on a closed cursor")
	}
	if err := c.txn.require("cursor operation", stateNormal); err != nil {
		return nil, nil, err
	}
	if err := c.ensureKeyValid(); err != nil {
		return nil, nil, err
	}
	return c.key, c.val, nil
}

// GetKey returns the key at the current position.
func (c *Cursor) GetKey() ([]byte, error) {
	k, _, err := c.Get()
	return k, err
}

// GetValue returns the value at the current position.
func (c *Cursor) GetValue() ([]byte, error) {
	_, v, err := c.Get()
	return v, err
}

func (c *Cursor) modify(op string, fn func() error) error {
	if c.closed {
		return stateErrorf("cursor operation on a closed cursor")
	}
	if err := c.txn.require(op, stateNormal); err != nil {
		return err
	}
	if c.txn.readonly {
		return stateErrorf("%s on a read-only transaction", op)
	}
	return mapEngineError(fn())
}

// Put stores a pair through the cursor and positions at it.
func (c *Cursor) Put(key, val []byte, flags uint) error {
	return c.modify("cursor put", func() error {
		return c.eng.Put(key, val, flags)
	})
}

// Replace overwrites the value at the current position, keeping the key.
func (c *Cursor) Replace(val []byte) error {
	return c.modify("cursor replace", func() error {
		if err := c.ensureKeyValid(); err != nil {
			return err
		}
		return c.eng.Put(c.key, val, engine.Current)
	})
}

// AddItem adds a value to the current key's run on a DupSort table.
func (c *Cursor) AddItem(val []byte) error {
	return c.modify("cursor add item", func() error {
		if err := c.ensureKeyValid(); err != nil {
			return err
		}
		return c.eng.Put(c.key, val, engine.Upsert)
	})
}

// DelItem removes the value at the current position.
func (c *Cursor) DelItem() error {
	return c.modify("cursor del item", func() error {
		return c.eng.Del(engine.DelCurrent)
	})
}

// DelAll removes every value of the current key's run.
func (c *Cursor) DelAll() error {
	return c.modify("cursor del all", func() error {
		return c.eng.Del(engine.DelAllDups)
	})
}

// ItemCount reports the length of the current key's duplicate run.
func (c *Cursor) ItemCount() (uint64, error) {
	if c.closed {
		return 0, stateErrorf("cursor operation on a closed cursor")
	}
	if err := c.txn.require("cursor count", stateNormal); err != nil {
		return 0, err
	}
	n, err := c.eng.Count()
	if err != nil {
		return 0, mapEngineError(err)
	}
	return n, nil
}

// Close releases the cursor. Close after Close is a no-op. Once the owning
// transaction has resolved, the engine handle is already gone and only the
// local state is cleared.
func (c *Cursor) Close() {
	if c.closed {
		return
	}
	c.closed = true
	if c.txn.state == stateNormal {
		c.eng.Close()
	}
}

// ItemAccessor scopes operations to one key's duplicate run on a DupSort
// table. It owns a cursor, so Close it when done.
type ItemAccessor struct {
	c   *Cursor
	key []byte
}

// Get returns the first value of the run.
func (a *ItemAccessor) Get() ([]byte, error) {
	if err := a.c.ToKey(a.key); err != nil {
		return nil, err
	}
	return a.c.GetValue()
}

// Add appends a value to the run.
func (a *ItemAccessor) Add(val []byte) error {
	return a.c.Put(a.key, val, engine.Upsert)
}

// Del removes one exact value from the run.
func (a *ItemAccessor) Del(val []byte) error {
	if err := a.c.ToItem(a.key, val); err != nil {
		return err
	}
	return a.c.DelItem()
}

// DelAll removes the whole run.
func (a *ItemAccessor) DelAll() error {
	if err := a.c.ToKey(a.key); err != nil {
		return err
	}
	return a.c.DelAll()
}

// Count reports the run length. A missing key counts as zero.
func (a *ItemAccessor) Count() (uint64, error) {
	if err := a.c.ToKey(a.key); err != nil {
		if IsNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	return a.c.ItemCount()
}

// Close releases the underlying cursor.
func (a *ItemAccessor) Close() {
	a.c.Close()
}
