package queue

import (
	"fmt"

	"github.com/pbanos/treehash/batch"
)

// Task represents a batch of trees to be encoded
type Task struct {
	// Key identifies the task within its queue
	Key string
	// Batch holds the trees to encode
	Batch *batch.Batch
}

// NewTask returns the task to encode the n-th batch of a dataset
func NewTask(n int, b *batch.Batch) *Task {
	return &Task{Key: fmt.Sprintf("batch-%d", n), Batch: b}
}

// ID returns a string that identifies the task
func (t *Task) ID() string {
	return t.Key
}

func (t *Task) String() string {
	return fmt.Sprintf("{Task %s: %d trees}", t.Key, t.Batch.Size())
}
