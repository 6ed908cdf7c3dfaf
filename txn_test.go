package safedbx

import (
	"bytes"
	"testing"
)

func TestPutGetRoundtrip(t *testing.T) {
	env := newTestEnv(t)
	h, err := env.GetDefaultDB()
	if err != nil {
		t.Fatalf("GetDefaultDB failed: %v", err)
	}

	txn, err := env.NewTransaction()
	if err != nil {
		t.Fatalf("NewTransaction failed: %v", err)
	}
	db := txn.Bind(h)
	if err := db.Put([]byte("alpha"), []byte("1")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	v, err := db.Get([]byte("alpha"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(v, []byte("1")) {
		t.Errorf("got %q, want %q", v, "1")
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	// Visible to a fresh reader after commit.
	reader, err := env.GetReader()
	if err != nil {
		t.Fatalf("GetReader failed: %v", err)
	}
	defer reader.Abort()
	v, err = reader.Bind(h).Get([]byte("alpha"))
	if err != nil {
		t.Fatalf("Get after commit failed: %v", err)
	}
	if !bytes.Equal(v, []byte("1")) {
		t.Errorf("got %q, want %q", v, "1")
	}
}

func TestAbortDiscardsWrites(t *testing.T) {
	env := newTestEnv(t)
	h, err := env.GetDefaultDB()
	if err != nil {
		t.Fatalf("GetDefaultDB failed: %v", err)
	}

	txn, err := env.NewTransaction()
	if err != nil {
		t.Fatalf("NewTransaction failed: %v", err)
	}
	if err := txn.Bind(h).Put([]byte("ghost"), []byte("x")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	txn.Abort()

	err = env.View(func(txn *ReadonlyTxn) error {
		_, err := txn.Bind(h).Get([]byte("ghost"))
		if !IsNotFound(err) {
			t.Errorf("want not found after abort, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}
}

func TestOverwrite(t *testing.T) {
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
		return db.Put([]byte("k"), []byte("new"))
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	err = env.View(func(txn *ReadonlyTxn) error {
		v, err := txn.Bind(h).Get([]byte("k"))
		if err != nil {
			return err
		}
		if string(v) != "new" {
			t.Errorf("got %q, want %q", v, "new")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}
}

func TestNoOverwriteFlag(t *testing.T) {
	env := newTestEnv(t)
	h, err := env.GetDefaultDB()
	if err != nil {
		t.Fatalf("GetDefaultDB failed: %v", err)
	}
	err = env.Update(func(txn *Txn) error {
		db := txn.Bind(h)
		if err := db.Put([]byte("k"), []byte("v")); err != nil {
			return err
		}
		if err := db.PutFlags([]byte("k"), []byte("v2"), NoOverwrite); !IsKeyExists(err) {
			t.Errorf("want key exists error, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
}

func TestReadonlyTxnRejectsWrites(t *testing.T) {
	env := newTestEnv(t)
	h, err := env.GetDefaultDB()
	if err != nil {
		t.Fatalf("GetDefaultDB failed: %v", err)
	}
	reader, err := env.GetReader()
	if err != nil {
		t.Fatalf("GetReader failed: %v", err)
	}
	defer reader.Abort()
	db := reader.Bind(h)
	if err := db.Put([]byte("k"), []byte("v")); !IsStateError(err) {
		t.Errorf("Put on reader: want state error, got %v", err)
	}
	if err := db.Del([]byte("k")); !IsStateError(err) {
		t.Errorf("Del on reader: want state error, got %v", err)
	}
	if err := db.Clear(); !IsStateError(err) {
		t.Errorf("Clear on reader: want state error, got %v", err)
	}
}

func TestDupSort(t *testing.T) {
	env := newTestEnv(t)
	h, err := env.CreateDB("dups", DupSort)
	if err != nil {
		t.Fatalf("CreateDB failed: %v", err)
	}
	err = env.Update(func(txn *Txn) error {
		db := txn.Bind(h)
		for _, v := range []string{"c", "a", "b"} {
			if err := db.Put([]byte("k"), []byte(v)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	err = env.Update(func(txn *Txn) error {
		db := txn.Bind(h)
		// Get returns the first value in sorted order.
		v, err := db.Get([]byte("k"))
		if err != nil {
			return err
		}
		if string(v) != "a" {
			t.Errorf("first dup = %q, want %q", v, "a")
		}
		// DelExact removes one value, the rest stay.
		if err := db.DelExact([]byte("k"), []byte("a")); err != nil {
			return err
		}
		v, err = db.Get([]byte("k"))
		if err != nil {
			return err
		}
		if string(v) != "b" {
			t.Errorf("first dup after DelExact = %q, want %q", v, "b")
		}
		// Del removes the whole run.
		if err := db.Del([]byte("k")); err != nil {
			return err
		}
		if _, err := db.Get([]byte("k")); !IsNotFound(err) {
			t.Errorf("want not found after Del, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
}

func TestResetRenewSnapshot(t *testing.T) {
	env := newTestEnv(t)
	h, err := env.GetDefaultDB()
	if err != nil {
		t.Fatalf("GetDefaultDB failed: %v", err)
	}
	err = env.Update(func(txn *Txn) error {
		return txn.Bind(h).Put([]byte("k"), []byte("v1"))
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	reader, err := env.GetReader()
	if err != nil {
		t.Fatalf("GetReader failed: %v", err)
	}
	defer reader.Abort()

	// A write after the reader began is invisible to it.
	err = env.Update(func(txn *Txn) error {
		return txn.Bind(h).Put([]byte("k"), []byte("v2"))
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	v, err := reader.Bind(h).Get([]byte("k"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(v) != "v1" {
		t.Errorf("reader sees %q, want snapshot value %q", v, "v1")
	}

	// Renew moves the reader to the current snapshot.
	if err := reader.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if err := reader.Renew(); err != nil {
		t.Fatalf("Renew failed: %v", err)
	}
	v, err = reader.Bind(h).Get([]byte("k"))
	if err != nil {
		t.Fatalf("Get after Renew failed: %v", err)
	}
	if string(v) != "v2" {
		t.Errorf("renewed reader sees %q, want %q", v, "v2")
	}
}

func TestRenewWithoutReset(t *testing.T) {
	env := newTestEnv(t)
	reader, err := env.GetReader()
	if err != nil {
		t.Fatalf("GetReader failed: %v", err)
	}
	defer reader.Abort()
	if err := reader.Renew(); !IsStateError(err) {
		t.Errorf("Renew without Reset: want state error, got %v", err)
	}
}

func TestChildTxn(t *testing.T) {
	env := newTestEnv(t)
	h, err := env.GetDefaultDB()
	if err != nil {
		t.Fatalf("GetDefaultDB failed: %v", err)
	}

	txn, err := env.NewTransaction()
	if err != nil {
		t.Fatalf("NewTransaction failed: %v", err)
	}
	defer txn.Abort()
	if err := txn.Bind(h).Put([]byte("parent"), []byte("p")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	child, err := txn.NewChild()
	if err != nil {
		t.Fatalf("NewChild failed: %v", err)
	}
	// The child sees the parent's uncommitted write.
	if _, err := child.Bind(h).Get([]byte("parent")); err != nil {
		t.Fatalf("child Get failed: %v", err)
	}
	if err := child.Bind(h).Put([]byte("child"), []byte("c")); err != nil {
		t.Fatalf("child Put failed: %v", err)
	}

	// Committing the parent with a live child is a state error.
	if err := txn.Commit(); !IsStateError(err) {
		t.Fatalf("Commit with live child: want state error, got %v", err)
	}

	if err := child.Commit(); err != nil {
		t.Fatalf("child Commit failed: %v", err)
	}
	// The child's write is now part of the parent.
	if _, err := txn.Bind(h).Get([]byte("child")); err != nil {
		t.Fatalf("parent Get after child commit failed: %v", err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	err = env.View(func(rt *ReadonlyTxn) error {
		if _, err := rt.Bind(h).Get([]byte("child")); err != nil {
			t.Errorf("committed child write missing: %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}
}

func TestParentAbortInvalidatesChildren(t *testing.T) {
	env := newTestEnv(t)
	h, err := env.GetDefaultDB()
	if err != nil {
		t.Fatalf("GetDefaultDB failed: %v", err)
	}

	txn, err := env.NewTransaction()
	if err != nil {
		t.Fatalf("NewTransaction failed: %v", err)
	}
	child, err := txn.NewChild()
	if err != nil {
		t.Fatalf("NewChild failed: %v", err)
	}
	txn.Abort()

	if err := child.Bind(h).Put([]byte("k"), []byte("v")); !IsStateError(err) {
		t.Errorf("Put on orphaned child: want state error, got %v", err)
	}
	if err := child.Commit(); !IsStateError(err) {
		t.Errorf("Commit on orphaned child: want state error, got %v", err)
	}
}

func TestReadonlyChild(t *testing.T) {
	env := newTestEnv(t)
	h, err := env.GetDefaultDB()
	if err != nil {
		t.Fatalf("GetDefaultDB failed: %v", err)
	}
	txn, err := env.NewTransaction()
	if err != nil {
		t.Fatalf("NewTransaction failed: %v", err)
	}
	defer txn.Abort()
	if err := txn.Bind(h).Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	child, err := txn.NewReadonlyChild()
	if err != nil {
		t.Fatalf("NewReadonlyChild failed: %v", err)
	}
	defer child.Abort()
	if _, err := child.Bind(h).Get([]byte("k")); err != nil {
		t.Fatalf("child Get failed: %v", err)
	}
	if err := child.Bind(h).Put([]byte("x"), []byte("y")); !IsStateError(err) {
		t.Errorf("Put on readonly child: want state error, got %v", err)
	}
}
