package safedbx

import (
	"testing"
)

// dupEnv builds a DupSort table with one key holding four values.
func dupEnv(t *testing.T) (*Env, DBHandle) {
	t.Helper()
	env := newTestEnv(t)
	h, err := env.CreateDB("runs", DupSort)
	if err != nil {
		t.Fatalf("CreateDB failed: %v", err)
	}
	err = env.Update(func(txn *Txn) error {
		db := txn.Bind(h)
		for _, v := range []string{"v1", "v2", "v3", "v4"} {
			if err := db.Put([]byte("key"), []byte(v)); err != nil {
				return err
			}
		}
		return db.Put([]byte("other"), []byte("x"))
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	return env, h
}

func TestCursorNavigation(t *testing.T) {
	env, h := dupEnv(t)
	err := env.View(func(txn *ReadonlyTxn) error {
		c, err := txn.Bind(h).Cursor()
		if err != nil {
			t.Fatalf("Cursor failed: %v", err)
		}
		defer c.Close()

		if err := c.ToFirst(); err != nil {
			t.Fatalf("ToFirst failed: %v", err)
		}
		k, err := c.GetKey()
		if err != nil {
			t.Fatalf("GetKey failed: %v", err)
		}
		if string(k) != "key" {
			t.Errorf("first key = %q, want %q", k, "key")
		}

		if err := c.ToLastItem(); err != nil {
			t.Fatalf("ToLastItem failed: %v", err)
		}
		v, err := c.GetValue()
		if err != nil {
			t.Fatalf("GetValue failed: %v", err)
		}
		if string(v) != "v4" {
			t.Errorf("last item = %q, want %q", v, "v4")
		}

		if err := c.ToNextKey(); err != nil {
			t.Fatalf("ToNextKey failed: %v", err)
		}
		k, v, err = c.Get()
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(k) != "other" || string(v) != "x" {
			t.Errorf("next key = %q/%q, want other/x", k, v)
		}

		if err := c.ToNextKey(); !IsNotFound(err) {
			t.Errorf("ToNextKey at end: want not found, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}
}

func TestCursorToKeyReturnsStoredKey(t *testing.T) {
	env, h := dupEnv(t)
	err := env.View(func(txn *ReadonlyTxn) error {
		c, err := txn.Bind(h).Cursor()
		if err != nil {
			t.Fatalf("Cursor failed: %v", err)
		}
		defer c.Close()

		if err := c.ToItem([]byte("key"), []byte("v2")); err != nil {
			t.Fatalf("ToItem failed: %v", err)
		}
		// ToItem positions by value; the stored key must still be
		// reported.
		k, v, err := c.Get()
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(k) != "key" || string(v) != "v2" {
			t.Errorf("got %q/%q, want key/v2", k, v)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}
}

func TestCursorToGteKey(t *testing.T) {
	env := newTestEnv(t)
	h, err := env.GetDefaultDB()
	if err != nil {
		t.Fatalf("GetDefaultDB failed: %v", err)
	}
	err = env.Update(func(txn *Txn) error {
		db := txn.Bind(h)
		for _, k := range []string{"b", "d", "f"} {
			if err := db.Put([]byte(k), []byte("v")); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	err = env.View(func(txn *ReadonlyTxn) error {
		c, err := txn.Bind(h).Cursor()
		if err != nil {
			t.Fatalf("Cursor failed: %v", err)
		}
		defer c.Close()
		if err := c.ToGteKey([]byte("c")); err != nil {
			t.Fatalf("ToGteKey failed: %v", err)
		}
		k, err := c.GetKey()
		if err != nil {
			t.Fatalf("GetKey failed: %v", err)
		}
		if string(k) != "d" {
			t.Errorf("ToGteKey landed on %q, want %q", k, "d")
		}
		if err := c.ToGteKey([]byte("g")); !IsNotFound(err) {
			t.Errorf("ToGteKey past end: want not found, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}
}

func TestCursorDeleteRun(t *testing.T) {
	env, h := dupEnv(t)
	err := env.Update(func(txn *Txn) error {
		c, err := txn.Bind(h).Cursor()
		if err != nil {
			t.Fatalf("Cursor failed: %v", err)
		}
		defer c.Close()

		if err := c.ToKey([]byte("key")); err != nil {
			t.Fatalf("ToKey failed: %v", err)
		}
		n, err := c.ItemCount()
		if err != nil {
			t.Fatalf("ItemCount failed: %v", err)
		}
		if n != 4 {
			t.Errorf("run length = %d, want 4", n)
		}

		if err := c.DelItem(); err != nil {
			t.Fatalf("DelItem failed: %v", err)
		}
		if err := c.ToKey([]byte("key")); err != nil {
			t.Fatalf("ToKey after DelItem failed: %v", err)
		}
		n, err = c.ItemCount()
		if err != nil {
			t.Fatalf("ItemCount failed: %v", err)
		}
		if n != 3 {
			t.Errorf("run length after DelItem = %d, want 3", n)
		}

		if err := c.DelAll(); err != nil {
			t.Fatalf("DelAll failed: %v", err)
		}
		if err := c.ToKey([]byte("key")); !IsNotFound(err) {
			t.Errorf("ToKey after DelAll: want not found, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
}

func TestCursorReplace(t *testing.T) {
	env := newTestEnv(t)
	h, err := env.GetDefaultDB()
	if err != nil {
		t.Fatalf("GetDefaultDB failed: %v", err)
	}
	err = env.Update(func(txn *Txn) error {
		db := txn.Bind(h)
		if err := db.Put([]byte("k"), []byte("old")); err != nil {
			return err
		}
		c, err := db.Cursor()
		if err != nil {
			return err
		}
		defer c.Close()
		if err := c.ToKey([]byte("k")); err != nil {
			return err
		}
		if err := c.Replace([]byte("new")); err != nil {
			t.Fatalf("Replace failed: %v", err)
		}
		v, err := db.Get([]byte("k"))
		if err != nil {
			return err
		}
		if string(v) != "new" {
			t.Errorf("got %q, want %q", v, "new")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
}

func TestCursorDiesWithTxn(t *testing.T) {
	env, h := dupEnv(t)
	txn, err := env.NewTransaction()
	if err != nil {
		t.Fatalf("NewTransaction failed: %v", err)
	}
	c, err := txn.Bind(h).Cursor()
	if err != nil {
		t.Fatalf("Cursor failed: %v", err)
	}
	if err := c.ToFirst(); err != nil {
		t.Fatalf("ToFirst failed: %v", err)
	}
	txn.Abort()
	if err := c.ToFirst(); !IsStateError(err) {
		t.Errorf("cursor after abort: want state error, got %v", err)
	}
	if _, _, err := c.Get(); !IsStateError(err) {
		t.Errorf("Get after abort: want state error, got %v", err)
	}
	// Close after the transaction resolved releases only local state.
	c.Close()
	c.Close()
}

func TestItemAccessor(t *testing.T) {
	env, h := dupEnv(t)
	err := env.Update(func(txn *Txn) error {
		acc, err := txn.Bind(h).Item([]byte("key"))
		if err != nil {
			t.Fatalf("Item failed: %v", err)
		}
		defer acc.Close()

		n, err := acc.Count()
		if err != nil {
			t.Fatalf("Count failed: %v", err)
		}
		if n != 4 {
			t.Errorf("count = %d, want 4", n)
		}
		if err := acc.Add([]byte("v5")); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
		if err := acc.Del([]byte("v1")); err != nil {
			t.Fatalf("Del failed: %v", err)
		}
		v, err := acc.Get()
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(v) != "v2" {
			t.Errorf("first value = %q, want %q", v, "v2")
		}
		if err := acc.DelAll(); err != nil {
			t.Fatalf("DelAll failed: %v", err)
		}
		n, err = acc.Count()
		if err != nil {
			t.Fatalf("Count after DelAll failed: %v", err)
		}
		if n != 0 {
			t.Errorf("count after DelAll = %d, want 0", n)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
}
