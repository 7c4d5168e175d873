package treehash

import (
	"context"
	"testing"

	"github.com/pbanos/treehash/batch"
	"github.com/pbanos/treehash/codestore"
	"github.com/pbanos/treehash/dataset"
	"github.com/pbanos/treehash/queue"
)

func TestSeed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	samples, _ := testSamples(t, 2)
	q := queue.New()
	n, err := Seed(ctx, dataset.New(samples), &batch.Batcher{Size: 3, BufferSize: 8}, q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != len(samples) {
		t.Errorf("got %d samples seeded, expected %d", n, len(samples))
	}
	pending, running, err := q.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if pending != 3 || running != 0 {
		t.Errorf("got %d pending %d running, expected 3 0", pending, running)
	}
}

func TestEncodeAll(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	samples, v := testSamples(t, 3)
	cfg := testConfig()
	cfg.BatchSize = 2
	ae := newModel(t, cfg, v.Size(), 0, 1)
	ds := dataset.New(samples)
	expected, err := Evaluate(ctx, ae, ds, cfg.BatchSize, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, workers := range []int{1, 3} {
		s := codestore.NewMemoryStore()
		logger := &recordingLogger{}
		n, err := EncodeAll(ctx, ae, ds, s, workers, logger)
		if err != nil {
			t.Fatalf("unexpected error with %d workers: %v", workers, err)
		}
		if n != len(samples) {
			t.Errorf("got %d samples encoded with %d workers, expected %d", n, workers, len(samples))
		}
		records, err := s.List(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(records) != len(expected.Records) {
			t.Fatalf("got %d records with %d workers, expected %d", len(records), workers, len(expected.Records))
		}
		for i, r := range records {
			e := expected.Records[i]
			if r.ID != e.ID || r.Code != e.Code || !floatsClose(r.Repr, e.Repr, 1e-5) {
				t.Errorf("got record %v with %d workers, expected %v", r, workers, e)
			}
		}
		if logger.count("Processing") != 1 {
			t.Errorf("expected the number of elements to be logged once")
		}
	}
}
