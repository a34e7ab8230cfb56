package scheduler

import (
	"container/heap"
	"time"

	"github.com/kode4food/sequin/pkg/api"
	"github.com/kode4food/sequin/pkg/util"
)

type (
	// deadline is one pending Action, ordered by when it is due
	deadline struct {
		path  api.Path
		at    time.Time
		fn    Action
		index int
	}

	// deadlines is a min-heap of pending deadlines, indexed by context
	// path so that a path holds at most one deadline
	deadlines struct {
		items  []*deadline
		byPath *util.PathTree[*deadline]
	}
)

func newDeadlines() *deadlines {
	return &deadlines{
		byPath: util.NewPathTree[*deadline](),
	}
}

func (d *deadlines) set(path api.Path, at time.Time, fn Action) {
	if old, ok := d.byPath.Get(path); ok {
		old.at = at
		old.fn = fn
		heap.Fix(d, old.index)
		return
	}
	heap.Push(d, &deadline{path: path, at: at, fn: fn})
}

// cancel drops the deadline at the path and every deadline below it
func (d *deadlines) cancel(path api.Path) {
	for _, old := range d.byPath.Detach(path) {
		heap.Remove(d, old.index)
	}
}

func (d *deadlines) next() (time.Time, bool) {
	if len(d.items) == 0 {
		return time.Time{}, false
	}
	return d.items[0].at, true
}

func (d *deadlines) pop() (*deadline, bool) {
	if len(d.items) == 0 {
		return nil, false
	}
	return heap.Pop(d).(*deadline), true
}

func (d *deadlines) Len() int {
	return len(d.items)
}

func (d *deadlines) Less(i, j int) bool {
	return d.items[i].at.Before(d.items[j].at)
}

func (d *deadlines) Swap(i, j int) {
	d.items[i], d.items[j] = d.items[j], d.items[i]
	d.items[i].index = i
	d.items[j].index = j
}

func (d *deadlines) Push(x any) {
	dl := x.(*deadline)
	dl.index = len(d.items)
	d.items = append(d.items, dl)
	d.byPath.Insert(dl.path, dl)
}

func (d *deadlines) Pop() any {
	n := len(d.items)
	dl := d.items[n-1]
	d.items[n-1] = nil
	d.items = d.items[:n-1]
	dl.index = -1
	if cur, ok := d.byPath.Get(dl.path); ok && cur == dl {
		d.byPath.Remove(dl.path)
	}
	return dl
}
