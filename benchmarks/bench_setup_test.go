package benchmarks

import (
	"path/filepath"
	"testing"

	mdbxgo "github.com/erigontech/mdbx-go/mdbx"
	"github.com/tecbot/gorocksdb"
	bolt "go.etcd.io/bbolt"
)

func setupMdbx(b *testing.B) (*mdbxgo.Env, mdbxgo.DBI) {
	b.Helper()
	env, err := mdbxgo.NewEnv(mdbxgo.Label("bench"))
	if err != nil {
		b.Fatal(err)
	}
	env.SetOption(mdbxgo.OptMaxDB, 10)
	env.SetGeometry(-1, -1, 1<<30, -1, -1, 4096)
	path := filepath.Join(b.TempDir(), "bench.db")
	if err := env.Open(path, mdbxgo.NoSubdir|mdbxgo.NoMetaSync, 0o644); err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { env.Close() })

	txn, err := env.BeginTxn(nil, 0)
	if err != nil {
		b.Fatal(err)
	}
	dbi, err := txn.OpenDBI("bench", mdbxgo.Create, nil, nil)
	if err != nil {
		b.Fatal(err)
	}
	for i := 0; i < benchKeys; i++ {
		if err := txn.Put(dbi, benchKey(i), benchVal(i), mdbxgo.Upsert); err != nil {
			b.Fatal(err)
		}
	}
	if _, err := txn.Commit(); err != nil {
		b.Fatal(err)
	}
	return env, dbi
}

func setupBolt(b *testing.B) *bolt.DB {
	b.Helper()
	path := filepath.Join(b.TempDir(), "bench_bolt.db")
	db, err := bolt.Open(path, 0o644, &bolt.Options{
		NoSync:         true,
		NoFreelistSync: true,
	})
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { db.Close() })

	err = db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte("bench"))
		if err != nil {
			return err
		}
		for i := 0; i < benchKeys; i++ {
			if err := bucket.Put(benchKey(i), benchVal(i)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		b.Fatal(err)
	}
	return db
}

func setupRocks(b *testing.B) *gorocksdb.DB {
	b.Helper()
	opts := gorocksdb.NewDefaultOptions()
	opts.SetCreateIfMissing(true)
	db, err := gorocksdb.OpenDb(opts, filepath.Join(b.TempDir(), "bench_rocks"))
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() {
		db.Close()
		opts.Destroy()
	})

	wo := gorocksdb.NewDefaultWriteOptions()
	wo.DisableWAL(true)
	defer wo.Destroy()
	for i := 0; i < benchKeys; i++ {
		if err := db.Put(wo, benchKey(i), benchVal(i)); err != nil {
			b.Fatal(err)
		}
	}
	return db
}
