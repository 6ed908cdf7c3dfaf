package membtree

import (
	"sync/atomic"

	"github.com/zhangyunhao116/skipmap"
)

// readerTable tracks live read-only transactions. It exists for Info's
// reader count and for enforcing the reader slot limit; lookups and
// registration are lock-free so readers never contend with each other.
type readerTable struct {
	nextID atomic.Int64
	slots  *skipmap.FuncMap[int64, *Txn]
}

func newReaderTable() *readerTable {
	return &readerTable{
		slots: skipmap.NewFunc[int64, *Txn](func(a, b int64) bool { return a < b }),
	}
}

func (r *readerTable) register(txn *Txn) int64 {
	id := r.nextID.Add(1)
	r.slots.Store(id, txn)
	return id
}

func (r *readerTable) unregister(id int64) {
	r.slots.Delete(id)
}

func (r *readerTable) len() int {
	return r.slots.Len()
}
