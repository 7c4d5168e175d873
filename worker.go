package treehash

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pbanos/treehash/batch"
	"github.com/pbanos/treehash/codestore"
	"github.com/pbanos/treehash/dataset"
	"github.com/pbanos/treehash/queue"
	"github.com/pbanos/treehash/semhash"
)

// Seed takes a context, a dataset, a batcher and a queue and
// pushes on the queue a task for every batch the batcher cuts
// the dataset into, so that workers that consume from the queue
// afterwards encode the whole dataset.
// The function returns the number of samples in the pushed
// tasks or an error
// if the dataset cannot be read or a task pushed to the queue
// (in the amount of time allowed by the given context).
func Seed(ctx context.Context, ds dataset.Dataset, br *batch.Batcher, q queue.Queue) (int, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	samples, errs := ds.Read(ctx)
	batches, berrs := br.Batches(ctx, samples)
	var n, tasks int
	for b := range batches {
		err := q.Push(ctx, queue.NewTask(tasks, b))
		if err != nil {
			return n, err
		}
		n += b.Size()
		tasks++
	}
	if err := <-errs; err != nil {
		return n, err
	}
	if err := <-berrs; err != nil {
		return n, err
	}
	return n, nil
}

// Work takes a context, a model, a queue, a code store and an
// emptyQueueSleep duration and enters a loop in which it:
//   * pulls a task from the queue,
//   * encodes its batch with the model,
//   * puts the records of its trees in the store
//   * marks the task as completed on the queue
//
// If at some point no task can be pulled from the queue and
// the sum of tasks running and pending on the queue is 0, the
// worker ends returning nil. If no task can be pulled but the
// sum is not 0, then the worker will sleep for the given
// emptyQueueSleep duration and then retry.
//
// Work will return a non-nil error if the given context
// times out or is cancelled, if the store fails to put the
// records or if an operation with the given queue returns a
// non-nil error.
func Work(ctx context.Context, model *Autoencoder, q queue.Queue, s codestore.Store, emptyQueueSleep time.Duration) error {
	for {
		task, tctx, err := q.Pull(ctx)
		if err != nil {
			return err
		}
		if task == nil {
			p, r, err := q.Count(ctx)
			if err != nil {
				return err
			}
			if r+p == 0 {
				break
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(emptyQueueSleep):
			}
			continue
		}
		mctx, cancel := mergeCtxCancel(tctx, ctx)
		err = workTask(mctx, task, model, q, s)
		cancel()
		if err != nil {
			return err
		}
		err = ctx.Err()
		if err != nil {
			return err
		}
	}
	return nil
}

func workTask(ctx context.Context, task *queue.Task, model *Autoencoder, q queue.Queue, s codestore.Store) error {
	defer func() {
		q.Drop(ctx, task.ID())
	}()
	out := model.Forward(task.Batch, false, semhash.UnknownStep, nil)
	err := s.Put(ctx, out.Records(task.Batch)...)
	if err != nil {
		return fmt.Errorf("storing codes of %s: %v", task, err)
	}
	return q.Complete(ctx, task.ID())
}

func mergeCtxCancel(ctx1, ctx2 context.Context) (context.Context, context.CancelFunc) {
	mctx, cancel := context.WithCancel(ctx1)
	go func() {
		select {
		case <-mctx.Done():
		case <-ctx2.Done():
			cancel()
		}
	}()
	return mctx, cancel
}

/*
EncodeAll takes a context, a model, a dataset, a code store, a
number of workers and a logger, and puts in the store the record
of every sample of the dataset, encoding its batches with the
given number of concurrent workers. It returns the number of
records stored or the first error a worker ran into.
*/
func EncodeAll(ctx context.Context, model *Autoencoder, ds dataset.Dataset, s codestore.Store, workers int, logger Logger) (int, error) {
	if workers < 1 {
		workers = 1
	}
	cfg := model.Config
	q := queue.New()
	defer q.Stop(ctx)
	br := &batch.Batcher{Size: cfg.BatchSize, BufferSize: cfg.BatchSize * cfg.BufferSize}
	count, err := Seed(ctx, ds, br, q)
	if err != nil {
		return 0, fmt.Errorf("seeding encoding tasks: %v", err)
	}
	if logger != nil {
		logger.Logf("Processing %d elements", count)
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := Work(ctx, model, q, s, 10*time.Millisecond); err != nil {
				errs <- err
				cancel()
			}
		}()
	}
	wg.Wait()
	close(errs)
	if err := <-errs; err != nil {
		return 0, err
	}
	return count, nil
}
