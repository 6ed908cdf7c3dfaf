package engine

import "fmt"

// Errno is a numeric engine status. The values occupy the MDBX error space
// so that adapters over LMDB-family engines can pass codes through without
// translation, and so unknown codes survive the trip to the caller intact.
type Errno int

// Engine status codes.
const (
	// ErrKeyExist indicates the key/value pair already exists.
	ErrKeyExist Errno = -30799

	// ErrNotFound indicates the key/value pair was not found.
	ErrNotFound Errno = -30798

	// ErrPageNotFound indicates a referenced page is missing (corruption).
	ErrPageNotFound Errno = -30797

	// ErrCorrupted indicates the data file is corrupted.
	ErrCorrupted Errno = -30796

	// ErrPanic indicates the engine hit a fatal inconsistency and the
	// environment needs recovery.
	ErrPanic Errno = -30795

	// ErrMapFull indicates the configured map size was reached.
	ErrMapFull Errno = -30792

	// ErrDBsFull indicates the named-table limit was reached.
	ErrDBsFull Errno = -30791

	// ErrReadersFull indicates no reader slot was available.
	ErrReadersFull Errno = -30790

	// ErrTxnFull indicates the transaction holds too many dirty pages.
	ErrTxnFull Errno = -30788

	// ErrCursorFull indicates a cursor stack overflow.
	ErrCursorFull Errno = -30787

	// ErrPageFull indicates an internal page had no room.
	ErrPageFull Errno = -30786

	// ErrIncompatible indicates the operation or flags do not fit the
	// table or engine capability.
	ErrIncompatible Errno = -30784

	// ErrBadTxn indicates a transaction handle in an unusable state.
	ErrBadTxn Errno = -30782

	// ErrBadValSize indicates a key or value size the engine rejects.
	ErrBadValSize Errno = -30781

	// ErrBadDBI indicates an invalid table handle.
	ErrBadDBI Errno = -30780

	// ErrBusy indicates another write transaction is running.
	ErrBusy Errno = -30778

	// ErrKeyMismatch indicates an append out of key order.
	ErrKeyMismatch Errno = -30418

	// ErrPermission indicates a write attempted through a read-only
	// environment or transaction.
	ErrPermission Errno = 13
)

var errnoText = map[Errno]string{
	ErrKeyExist:     "key/value pair already exists",
	ErrNotFound:     "key/value pair not found",
	ErrPageNotFound: "requested page not found",
	ErrCorrupted:    "data file is corrupted",
	ErrPanic:        "fatal engine error, recovery required",
	ErrMapFull:      "map size limit reached",
	ErrDBsFull:      "named table limit reached",
	ErrReadersFull:  "reader slot limit reached",
	ErrTxnFull:      "transaction has too many dirty pages",
	ErrCursorFull:   "cursor stack overflow",
	ErrPageFull:     "page has no space",
	ErrIncompatible: "incompatible operation or flags",
	ErrBadTxn:       "transaction handle is invalid",
	ErrBadValSize:   "invalid key or value size",
	ErrBadDBI:       "invalid table handle",
	ErrBusy:         "another write transaction is running",
	ErrKeyMismatch:  "key out of order for append",
	ErrPermission:   "permission denied",
}

func (e Errno) Error() string {
	if msg, ok := errnoText[e]; ok {
		return msg
	}
	return fmt.Sprintf("engine error %d", int(e))
}

// Is reports whether target is the same Errno.
func (e Errno) Is(target error) bool {
	t, ok := target.(Errno)
	return ok && t == e
}
