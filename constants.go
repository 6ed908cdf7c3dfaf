package safedbx

import "github.com/Giulio2002/safedbx/engine"

// Environment flags (untyped uint constants, fixed at Open time).
const (
	// EnvDefaults is the default durable mode.
	EnvDefaults uint = 0

	// NoSubdir means the path is a data file, not a directory.
	NoSubdir = engine.NoSubdir

	// ReadOnly opens the environment without write access.
	ReadOnly = engine.ReadOnly

	// NoSync skips flushing system buffers on commit. Trades durability
	// for speed; integrity holds as long as the OS preserves write order.
	NoSync = engine.NoSync

	// NoMetaSync skips the meta flush on commit.
	NoMetaSync = engine.NoMetaSync
)

// Table flags, fixed at table creation.
const (
	// DBDefaults uses lexicographic keys and a single value per key.
	DBDefaults uint = 0

	// ReverseKey compares keys back to front.
	ReverseKey = engine.ReverseKey

	// DupSort allows multiple values per key, kept sorted.
	DupSort = engine.DupSort

	// IntegerKey treats keys as native-endian unsigned integers. All
	// keys in the table must be 4 or 8 bytes long.
	IntegerKey = engine.IntegerKey

	// DupFixed marks all duplicate values as same-sized (DupSort only).
	DupFixed = engine.DupFixed

	// IntegerDup treats duplicate values as native-endian integers.
	IntegerDup = engine.IntegerDup

	// ReverseDup compares duplicate values back to front.
	ReverseDup = engine.ReverseDup
)

// Put flags.
const (
	// Upsert is the default insert-or-update mode.
	Upsert = engine.Upsert

	// NoOverwrite fails with a key-exists error if the key is present.
	NoOverwrite = engine.NoOverwrite

	// NoDupData fails with a key-exists error if the exact key/value
	// pair is present (DupSort only).
	NoDupData = engine.NoDupData

	// Append assumes keys arrive in sorted order.
	Append = engine.Append
)
