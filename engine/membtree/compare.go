package membtree

import (
	"bytes"
	"encoding/binary"

	"github.com/google/btree"

	"github.com/Giulio2002/safedbx/engine"
)

// item is one stored pair. Tables without DupSort hold at most one item per
// key; DupSort tables order items by key first, then by value, so a
// duplicate run is a contiguous span of the tree.
type item struct {
	key []byte
	val []byte
}

// compareFunc orders byte strings per the table flags it was built for.
type compareFunc func(a, b []byte) int

func reverseCompare(a, b []byte) int {
	for i, j := len(a)-1, len(b)-1; i >= 0 && j >= 0; i, j = i-1, j-1 {
		if a[i] != b[j] {
			if a[i] < b[j] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

// integerCompare orders 4 or 8 byte native-endian unsigned integers. Keys of
// other lengths never reach it; Put rejects them.
func integerCompare(a, b []byte) int {
	var av, bv uint64
	if len(a) == 4 {
		av = uint64(binary.NativeEndian.Uint32(a))
	} else {
		av = binary.NativeEndian.Uint64(a)
	}
	if len(b) == 4 {
		bv = uint64(binary.NativeEndian.Uint32(b))
	} else {
		bv = binary.NativeEndian.Uint64(b)
	}
	switch {
	case av < bv:
		return -1
	case av > bv:
		return 1
	}
	return 0
}

func keyCompare(flags uint) compareFunc {
	switch {
	case flags&engine.IntegerKey != 0:
		return integerCompare
	case flags&engine.ReverseKey != 0:
		return reverseCompare
	}
	return bytes.Compare
}

func valCompare(flags uint) compareFunc {
	switch {
	case flags&engine.IntegerDup != 0:
		return integerCompare
	case flags&engine.ReverseDup != 0:
		return reverseCompare
	}
	return bytes.Compare
}

// lessFunc builds the tree ordering for a table. On DupSort tables the value
// takes part in the ordering, which is what makes duplicate runs sorted and
// exact-pair lookups tree searches.
func lessFunc(flags uint) btree.LessFunc[item] {
	kcmp := keyCompare(flags)
	if flags&engine.DupSort == 0 {
		return func(a, b item) bool {
			return kcmp(a.key, b.key) < 0
		}
	}
	vcmp := valCompare(flags)
	return func(a, b item) bool {
		if c := kcmp(a.key, b.key); c != 0 {
			return c < 0
		}
		// A nil value is the run's lower sentinel so key-only seeks
		// land on the first duplicate.
		if a.val == nil {
			return b.val != nil
		}
		if b.val == nil {
			return false
		}
		return vcmp(a.val, b.val) < 0
	}
}
