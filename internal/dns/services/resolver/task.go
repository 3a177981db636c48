package resolver

import (
	"github.com/haukened/rr-dns/internal/dns/common/names"
	"github.com/haukened/rr-dns/internal/dns/domain"
)

// task is one outstanding (name, type, class) to resolve, the unit the task
// queue operates on.
type task struct {
	name  names.Name
	rtype domain.RRType
	class domain.RRClass
}

// taskQueue holds the work for a single request. Questions are seeded in
// order (consumed FIFO); pushFront puts work ahead of any remaining seeded
// question (LIFO for follow-up work). Resolve only seeds questions: it does
// not call pushFront, and a referral chase runs to completion inside the
// task being drained.
type taskQueue struct {
	items []task
}

func newTaskQueue(questions []domain.Question) *taskQueue {
	q := &taskQueue{items: make([]task, 0, len(questions))}
	for _, question := range questions {
		q.items = append(q.items, task{name: question.Name, rtype: question.Type, class: question.Class})
	}
	return q
}

func (q *taskQueue) empty() bool {
	return len(q.items) == 0
}

// pop removes and returns the head of the queue.
func (q *taskQueue) pop() (task, bool) {
	if len(q.items) == 0 {
		return task{}, false
	}
	t := q.items[0]
	q.items = q.items[1:]
	return t, true
}

// pushFront inserts t ahead of everything currently queued.
func (q *taskQueue) pushFront(t task) {
	q.items = append([]task{t}, q.items...)
}
