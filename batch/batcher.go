package batch

import (
	"context"
	"math/rand"
	"sort"

	"github.com/pbanos/treehash/dataset"
)

/*
Batcher turns a stream of samples into batches. Samples are
buffered; every full buffer is sorted by tree size and cut into
consecutive chunks of Size samples, so that each batch holds
trees of similar size and little padding.

A chunk shorter than Size is not emitted while more data may
follow: its samples are leaked into the next buffer. At the end
of the data the short chunk is emitted, unless the batcher is in
training mode, in which case it is kept for the next call to
Batches.
*/
type Batcher struct {
	// Size is the number of samples per batch
	Size int
	// BufferSize is the number of samples sorted together
	BufferSize int
	// Shuffle makes batches of a buffer come out in random order
	Shuffle bool
	// Train keeps short final chunks for the next pass
	Train bool
	// Rand is used to shuffle, a seeded source is created if nil
	Rand *rand.Rand

	leak []dataset.Sample
}

// Leaked returns the number of samples held back for the next pass
func (br *Batcher) Leaked() int {
	return len(br.leak)
}

/*
Batches takes a context and a channel of samples and returns a
channel on which batches are sent and a channel on which at most
one error is sent, the context's, before both are closed.
*/
func (br *Batcher) Batches(ctx context.Context, samples <-chan dataset.Sample) (<-chan *Batch, <-chan error) {
	batches := make(chan *Batch)
	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		defer close(batches)
		send := func(bs []*Batch) bool {
			for _, b := range bs {
				select {
				case <-ctx.Done():
					errs <- ctx.Err()
					return false
				case batches <- b:
				}
			}
			return true
		}
		buffer := br.leak
		br.leak = nil
		bufferSize := br.BufferSize
		if bufferSize < br.Size {
			bufferSize = br.Size
		}
		for s := range samples {
			buffer = append(buffer, s)
			if len(buffer) >= bufferSize {
				if !send(br.handleBuffer(buffer, false)) {
					return
				}
				buffer = br.leak
				br.leak = nil
			}
		}
		if len(buffer) > 0 {
			send(br.handleBuffer(buffer, true))
		}
	}()
	return batches, errs
}

/*
Split takes a slice of samples and the signal of whether no more
data follows, and returns the batches it is cut into. Leaked
samples are kept by the batcher and prepended to the next buffer.
*/
func (br *Batcher) Split(samples []dataset.Sample, endOfData bool) []*Batch {
	buffer := append(br.leak, samples...)
	br.leak = nil
	return br.handleBuffer(buffer, endOfData)
}

func (br *Batcher) handleBuffer(buffer []dataset.Sample, endOfData bool) []*Batch {
	sorted := make([]dataset.Sample, len(buffer))
	copy(sorted, buffer)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Tree.Size() < sorted[j].Tree.Size()
	})
	chunks := chunk(sorted, br.Size)
	if br.Shuffle {
		br.random().Shuffle(len(chunks), func(i, j int) {
			chunks[i], chunks[j] = chunks[j], chunks[i]
		})
	}
	var result []*Batch
	for _, c := range chunks {
		if len(c) < br.Size && (!endOfData || br.Train) {
			br.leak = append(br.leak, c...)
			continue
		}
		result = append(result, New(c))
	}
	return result
}

func (br *Batcher) random() *rand.Rand {
	if br.Rand == nil {
		br.Rand = rand.New(rand.NewSource(1))
	}
	return br.Rand
}

// chunk cuts samples into consecutive chunks of size elements,
// the remainder going into a last, shorter chunk.
func chunk(samples []dataset.Sample, size int) [][]dataset.Sample {
	if size <= 0 {
		size = 1
	}
	var chunks [][]dataset.Sample
	for i := 0; i < len(samples); i += size {
		end := i + size
		if end > len(samples) {
			end = len(samples)
		}
		chunks = append(chunks, samples[i:end])
	}
	return chunks
}
