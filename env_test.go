package safedbx

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func newTestEnv(t *testing.T) *Env {
	t.Helper()
	env := NewEnv()
	if err := env.Open(t.TempDir(), EnvDefaults, 0o644); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(env.Close)
	return env
}

func TestOpenClose(t *testing.T) {
	env := NewEnv()
	if err := env.Open(t.TempDir(), EnvDefaults, 0o644); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	env.Close()
	env.Close() // second close is a no-op
}

func TestOpenCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "store")
	env := NewEnv()
	if err := env.Open(path, EnvDefaults, 0o755); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer env.Close()
	fi, err := os.Stat(path)
	if err != nil || !fi.IsDir() {
		t.Fatalf("expected %s to be a directory, stat: %v", path, err)
	}
}

func TestOpenInvalidPath(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "plain")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	// A file where a directory is expected.
	env := NewEnv()
	if err := env.Open(file, EnvDefaults, 0o644); !IsInvalidPath(err) {
		t.Errorf("want invalid path error, got %v", err)
	}

	// A directory where NoSubdir expects a file.
	env = NewEnv()
	if err := env.Open(dir, NoSubdir, 0o644); !IsInvalidPath(err) {
		t.Errorf("want invalid path error, got %v", err)
	}
}

func TestConfigureAfterOpen(t *testing.T) {
	env := newTestEnv(t)
	if err := env.SetMapSize(1 << 20); !IsStateError(err) {
		t.Errorf("SetMapSize after open: want state error, got %v", err)
	}
	if err := env.SetMaxReaders(10); !IsStateError(err) {
		t.Errorf("SetMaxReaders after open: want state error, got %v", err)
	}
	if err := env.SetMaxDBs(10); !IsStateError(err) {
		t.Errorf("SetMaxDBs after open: want state error, got %v", err)
	}
}

func TestOperationsBeforeOpen(t *testing.T) {
	env := NewEnv()
	if _, err := env.NewTransaction(); !IsStateError(err) {
		t.Errorf("NewTransaction before open: want state error, got %v", err)
	}
	if _, err := env.CreateDB("t", DBDefaults); !IsStateError(err) {
		t.Errorf("CreateDB before open: want state error, got %v", err)
	}
	if err := env.Sync(true); !IsStateError(err) {
		t.Errorf("Sync before open: want state error, got %v", err)
	}
}

func TestDBHandleCaching(t *testing.T) {
	env := newTestEnv(t)
	h1, err := env.CreateDB("orders", DBDefaults)
	if err != nil {
		t.Fatalf("CreateDB failed: %v", err)
	}
	h2, err := env.CreateDB("orders", DBDefaults)
	if err != nil {
		t.Fatalf("second CreateDB failed: %v", err)
	}
	if h1 != h2 {
		t.Errorf("cached handle mismatch: %+v vs %+v", h1, h2)
	}
	h3, err := env.GetDB("orders")
	if err != nil {
		t.Fatalf("GetDB failed: %v", err)
	}
	if h3 != h1 {
		t.Errorf("GetDB returned a different handle: %+v vs %+v", h3, h1)
	}
}

func TestGetDBMissing(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.GetDB("nope"); !IsNotFound(err) {
		t.Errorf("GetDB on missing table: want not found, got %v", err)
	}
}

func TestConcurrentCreateDB(t *testing.T) {
	ce := newCountingEnv()
	env := NewEnvWith(ce)
	if err := env.Open(t.TempDir(), EnvDefaults, 0o644); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer env.Close()

	const goroutines = 8
	handles := make([]DBHandle, goroutines)
	errs := make([]error, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i], errs[i] = env.CreateDB("shared", DBDefaults)
		}(i)
	}
	wg.Wait()
	for i := 0; i < goroutines; i++ {
		if errs[i] != nil {
			t.Fatalf("CreateDB %d failed: %v", i, errs[i])
		}
		if handles[i] != handles[0] {
			t.Errorf("goroutine %d got a different handle", i)
		}
	}
	// All racing callers share a single engine table open.
	if n := ce.calls["txn.opendbi"]; n != 1 {
		t.Errorf("engine saw %d table opens, want 1", n)
	}
}

func TestSetLogger(t *testing.T) {
	env := NewEnv()
	if err := env.SetMaxDBs(128); err != nil {
		t.Fatalf("SetMaxDBs failed: %v", err)
	}
	if err := env.Open(t.TempDir(), EnvDefaults, 0o644); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer env.Close()

	var buf bytes.Buffer
	env.SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	if _, err := env.CreateDB("traced", DBDefaults); err != nil {
		t.Fatalf("CreateDB failed: %v", err)
	}
	if !strings.Contains(buf.String(), "table opened") {
		t.Errorf("debug log missing table open, got %q", buf.String())
	}

	// Swapping the logger while tables open must be safe.
	discard := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 64; i++ {
			env.SetLogger(discard)
			env.SetLogger(nil)
		}
	}()
	for i := 0; i < 64; i++ {
		if _, err := env.CreateDB(fmt.Sprintf("t%02d", i), DBDefaults); err != nil {
			t.Fatalf("CreateDB %d failed: %v", i, err)
		}
	}
	<-done
}

func TestUpdateAndView(t *testing.T) {
	env := newTestEnv(t)
	h, err := env.GetDefaultDB()
	if err != nil {
		t.Fatalf("GetDefaultDB failed: %v", err)
	}
	err = env.Update(func(txn *Txn) error {
		return txn.Bind(h).Put([]byte("a"), []byte("1"))
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	err = env.View(func(txn *ReadonlyTxn) error {
		v, err := txn.Bind(h).Get([]byte("a"))
		if err != nil {
			return err
		}
		if string(v) != "1" {
			t.Errorf("got %q, want %q", v, "1")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}
}

func TestEnvInfoAndStat(t *testing.T) {
	env := newTestEnv(t)
	h, err := env.GetDefaultDB()
	if err != nil {
		t.Fatalf("GetDefaultDB failed: %v", err)
	}
	err = env.Update(func(txn *Txn) error {
		return txn.Bind(h).Put([]byte("a"), []byte("1"))
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	st, err := env.Stat()
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if st.Entries != 1 {
		t.Errorf("Stat entries = %d, want 1", st.Entries)
	}
	info, err := env.Info()
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if info.LastTxnID == 0 {
		t.Error("Info reports no committed transactions")
	}
	if _, err := env.ReaderCheck(); err != nil {
		t.Errorf("ReaderCheck failed: %v", err)
	}
}

func TestOpenFromConfig(t *testing.T) {
	dir := t.TempDir()
	storePath := filepath.Join(dir, "store")
	cfgPath := filepath.Join(dir, "env.yaml")
	cfg := "path: " + storePath + "\nmap_size: 1048576\nmax_dbs: 8\nmode: \"0644\"\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	env, err := OpenFromConfig(cfgPath)
	if err != nil {
		t.Fatalf("OpenFromConfig failed: %v", err)
	}
	defer env.Close()

	h, err := env.CreateDB("cfg", DBDefaults)
	if err != nil {
		t.Fatalf("CreateDB failed: %v", err)
	}
	err = env.Update(func(txn *Txn) error {
		return txn.Bind(h).Put([]byte("k"), []byte("v"))
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
}
