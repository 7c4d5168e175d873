package dataset

import (
	"context"
)

/*
Dataset represents a collection of samples that can be read
sequentially.

Its Read method returns a channel on which the samples are sent
in input order and a channel on which at most one error is sent
before both are closed. Cancelling the context stops the
reading.

Its Count method returns the number of samples in the dataset.
*/
type Dataset interface {
	Read(context.Context) (<-chan Sample, <-chan error)
	Count(context.Context) (int, error)
}

// Logger is used by datasets to report lines they skip
type Logger interface {
	Logf(format string, a ...interface{})
}

type memoryDataset struct {
	samples []Sample
}

/*
New takes a slice of samples and returns a dataset built with them.
*/
func New(samples []Sample) Dataset {
	return &memoryDataset{samples}
}

func (md *memoryDataset) Count(ctx context.Context) (int, error) {
	return len(md.samples), nil
}

func (md *memoryDataset) Read(ctx context.Context) (<-chan Sample, <-chan error) {
	samples := make(chan Sample)
	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		defer close(samples)
		for _, s := range md.samples {
			select {
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			case samples <- s:
			}
		}
	}()
	return samples, errs
}

/*
Samples takes a context and a dataset, reads the whole dataset and
returns its samples or the error that interrupted the reading.
*/
func Samples(ctx context.Context, ds Dataset) ([]Sample, error) {
	var result []Sample
	sampleChan, errs := ds.Read(ctx)
	for s := range sampleChan {
		result = append(result, s)
	}
	if err := <-errs; err != nil {
		return nil, err
	}
	return result, nil
}
