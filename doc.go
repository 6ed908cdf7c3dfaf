// Package safedbx is a safe client layer for MDBX-style embedded
// transactional key-value engines.
//
// The engine underneath owns pages, B+ trees, MVCC snapshots and
// durability; safedbx owns everything a careless caller can get wrong on
// top of it: transaction lifecycle, handle ownership, and cursor validity.
// Every operation is checked against a local state machine before the
// engine is touched, so misuse surfaces as an ordinary error instead of a
// crash on freed engine memory.
//
// Key properties:
//   - Transactions move through Normal, Released and Invalid states; an
//     operation from the wrong state fails without reaching the engine
//   - Read-write and read-only transactions are distinct types, so calls
//     like Commit on a reader do not compile
//   - Table handles are cached per environment and bound to a transaction
//     before use, so a handle cannot meet a foreign transaction
//   - Cursors and iterators die with their transaction, checked at runtime
//
// Engines plug in through the engine package. The built-in membtree engine
// is a pure Go ordered store with snapshot isolation; mdbxdrv binds to
// libmdbx for production storage.
//
// Basic usage:
//
//	env := safedbx.NewEnv()
//	if err := env.Open("/path/to/db", safedbx.EnvDefaults, 0644); err != nil {
//	    log.Fatal(err)
//	}
//	defer env.Close()
//
//	db, err := env.GetDefaultDB()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	err = env.Update(func(txn *safedbx.Txn) error {
//	    return txn.Bind(db).Put([]byte("key"), []byte("value"))
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	err = env.View(func(txn *safedbx.ReadonlyTxn) error {
//	    v, err := txn.Bind(db).Get([]byte("key"))
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Printf("%s\n", v)
//	    return nil
//	})
package safedbx
