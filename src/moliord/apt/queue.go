// Package apt is the publish-queue collaborator: the core only enqueues
// publish requests, delivery and completion semantics belong to the
// external APT backend.
package apt

import "github.com/bitswalk/molior/src/moliord/engine"

// Item is a single publish-queue entry, e.g. {"src_publish": [buildID]}.
type Item struct {
	Action  string
	BuildID int64
}

// Queue is a thin enqueue-only wrapper around engine.Queue, reusing the same
// unbounded-FIFO primitive the task queue is built on rather than a second
// bespoke implementation.
type Queue struct {
	q *engine.Queue[Item]
}

// New creates an APT publish Queue.
func New() *Queue {
	return &Queue{q: engine.NewQueue[Item](nil)}
}

// Enqueue accepts a publish-queue item.
func (q *Queue) Enqueue(item Item) {
	q.q.Enqueue(item)
}

// SrcPublish enqueues a {"src_publish": [buildID]} item.
func (q *Queue) SrcPublish(buildID int64) {
	q.Enqueue(Item{Action: "src_publish", BuildID: buildID})
}

// Len reports the current queue depth, for tests and diagnostics.
func (q *Queue) Len() int {
	return q.q.Len()
}
