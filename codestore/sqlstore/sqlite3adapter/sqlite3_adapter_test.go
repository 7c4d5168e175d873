package sqlite3adapter

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/pbanos/treehash/codestore"
	"github.com/pbanos/treehash/codestore/sqlstore"
)

func TestStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	a, err := New(filepath.Join(t.TempDir(), "codes.db"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s, err := sqlstore.New(ctx, a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Close(ctx)
	var records []*codestore.Record
	for i := 24; i >= 0; i-- {
		records = append(records, &codestore.Record{ID: i, Code: i % 4, Repr: []float32{float32(i), 0.5}})
	}
	if err := s.Put(ctx, records...); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Put(ctx, &codestore.Record{ID: 3, Code: 9, Repr: []float32{-1}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r, err := s.Get(ctx, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r == nil || r.Code != 9 || len(r.Repr) != 1 || r.Repr[0] != -1 {
		t.Errorf("expected a put to replace the record with the same id, got %v", r)
	}
	if r, err := s.Get(ctx, 99); r != nil || err != nil {
		t.Errorf("expected nil, nil for a missing record, got %v, %v", r, err)
	}
	listed, err := s.List(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(listed) != 25 {
		t.Fatalf("got %d records, expected 25", len(listed))
	}
	for i, r := range listed {
		if r.ID != i {
			t.Errorf("got record %d at position %d", r.ID, i)
		}
		if i != 3 && fmt.Sprint(r.Repr) != fmt.Sprint([]float32{float32(i), 0.5}) {
			t.Errorf("got representation %v for record %d", r.Repr, i)
		}
	}
}
