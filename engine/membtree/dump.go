package membtree

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/Giulio2002/safedbx/engine"
)

// The data file is a full snapshot dump:
//
//	magic "MBT1"
//	u64 txnID, u32 nextDBI, u32 table count
//	per table: u16 name length, name, u32 flags, u32 dbi, u64 entry count
//	per entry: u32 key length, key, u32 value length, value
//
// All integers little-endian. The file is rewritten whole on persist; a
// truncated or garbled file reports corruption instead of a partial load.

var dumpMagic = [4]byte{'M', 'B', 'T', '1'}

func newEmptySnapshot() *snapshot {
	return &snapshot{
		nextDBI: uint32(mainDBI) + 1,
		tables:  map[engine.DBI]*table{mainDBI: newTable("", mainDBI, 0)},
		byName:  map[string]engine.DBI{"": mainDBI},
	}
}

func writeSnapshot(f *os.File, snap *snapshot) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	if err := encodeSnapshot(bw, snap); err != nil {
		return err
	}
	return bw.Flush()
}

func encodeSnapshot(w *bufio.Writer, snap *snapshot) error {
	if _, err := w.Write(dumpMagic[:]); err != nil {
		return err
	}
	putU64(w, uint64(snap.txnID))
	putU32(w, snap.nextDBI)
	putU32(w, uint32(len(snap.tables)))
	for _, t := range snap.tables {
		putU16(w, uint16(len(t.name)))
		w.WriteString(t.name)
		putU32(w, uint32(t.flags))
		putU32(w, uint32(t.dbi))
		putU64(w, uint64(t.data.Len()))
		var werr error
		t.data.Ascend(func(it item) bool {
			putU32(w, uint32(len(it.key)))
			if _, werr = w.Write(it.key); werr != nil {
				return false
			}
			putU32(w, uint32(len(it.val)))
			_, werr = w.Write(it.val)
			return werr == nil
		})
		if werr != nil {
			return werr
		}
	}
	return nil
}

func loadSnapshot(f *os.File) (*snapshot, error) {
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if fi.Size() == 0 {
		return newEmptySnapshot(), nil
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	br := bufio.NewReader(f)
	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil || magic != dumpMagic {
		return nil, engine.ErrCorrupted
	}
	txnID, err := getU64(br)
	if err != nil {
		return nil, engine.ErrCorrupted
	}
	nextDBI, err := getU32(br)
	if err != nil {
		return nil, engine.ErrCorrupted
	}
	count, err := getU32(br)
	if err != nil {
		return nil, engine.ErrCorrupted
	}
	snap := &snapshot{
		txnID:   int64(txnID),
		nextDBI: nextDBI,
		tables:  make(map[engine.DBI]*table, count),
		byName:  make(map[string]engine.DBI, count),
	}
	for i := uint32(0); i < count; i++ {
		t, err := decodeTable(br, snap)
		if err != nil {
			return nil, err
		}
		snap.tables[t.dbi] = t
		snap.byName[t.name] = t.dbi
	}
	if _, ok := snap.tables[mainDBI]; !ok {
		return nil, engine.ErrCorrupted
	}
	return snap, nil
}

func decodeTable(br *bufio.Reader, snap *snapshot) (*table, error) {
	nameLen, err := getU16(br)
	if err != nil {
		return nil, engine.ErrCorrupted
	}
	name := make([]byte, nameLen)
	if _, err := io.ReadFull(br, name); err != nil {
		return nil, engine.ErrCorrupted
	}
	flags, err := getU32(br)
	if err != nil {
		return nil, engine.ErrCorrupted
	}
	dbi, err := getU32(br)
	if err != nil {
		return nil, engine.ErrCorrupted
	}
	entries, err := getU64(br)
	if err != nil {
		return nil, engine.ErrCorrupted
	}
	t := newTable(string(name), engine.DBI(dbi), uint(flags))
	for j := uint64(0); j < entries; j++ {
		key, err := readBlob(br)
		if err != nil {
			return nil, err
		}
		val, err := readBlob(br)
		if err != nil {
			return nil, err
		}
		t.data.ReplaceOrInsert(item{key: key, val: val})
		snap.bytes += int64(len(key) + len(val))
	}
	return t, nil
}

func readBlob(br *bufio.Reader) ([]byte, error) {
	n, err := getU32(br)
	if err != nil {
		return nil, engine.ErrCorrupted
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(br, b); err != nil {
		return nil, engine.ErrCorrupted
	}
	return b, nil
}

func putU16(w *bufio.Writer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.Write(b[:])
}

func putU32(w *bufio.Writer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.Write(b[:])
}

func putU64(w *bufio.Writer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.Write(b[:])
}

func getU16(br *bufio.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(br, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

func getU32(br *bufio.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(br, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func getU64(br *bufio.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(br, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}
