/*
Package sqlstore provides an implementation of codestore.Store
over an SQL database, through an Adapter that deals with the
particularities of its engine.
*/
package sqlstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/pbanos/treehash/codestore"
)

/*
Adapter is an interface providing the methods
needed to implement a Store with a database backend.
*/
type Adapter interface {
	CreateRecordTable(ctx context.Context) error
	AddRecords(ctx context.Context, records []*codestore.Record) (int, error)
	GetRecord(ctx context.Context, id int) (*codestore.Record, error)
	ListRecords(ctx context.Context) ([]*codestore.Record, error)
	Close() error
}

type sqlStore struct {
	Adapter
}

/*
New takes a context and an adapter, ensures the table of records
exists on its database and returns a codestore.Store over it, or
an error.
*/
func New(ctx context.Context, a Adapter) (codestore.Store, error) {
	err := a.CreateRecordTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating record table: %v", err)
	}
	return &sqlStore{a}, nil
}

func (ss *sqlStore) Put(ctx context.Context, records ...*codestore.Record) error {
	n, err := ss.AddRecords(ctx, records)
	if err != nil {
		return fmt.Errorf("storing records: %d of %d stored: %v", n, len(records), err)
	}
	return nil
}

func (ss *sqlStore) Get(ctx context.Context, id int) (*codestore.Record, error) {
	return ss.GetRecord(ctx, id)
}

func (ss *sqlStore) List(ctx context.Context) ([]*codestore.Record, error) {
	return ss.ListRecords(ctx)
}

func (ss *sqlStore) Close(ctx context.Context) error {
	return ss.Adapter.Close()
}

// EncodeRepr returns the text representation of a dense
// representation adapters keep in their repr column
func EncodeRepr(repr []float32) string {
	fields := make([]string, len(repr))
	for i, v := range repr {
		fields[i] = strconv.FormatFloat(float64(v), 'g', -1, 32)
	}
	return strings.Join(fields, " ")
}

// DecodeRepr parses a representation encoded with EncodeRepr
func DecodeRepr(text string) ([]float32, error) {
	fields := strings.Fields(text)
	repr := make([]float32, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return nil, fmt.Errorf("decoding representation: %v", err)
		}
		repr[i] = float32(v)
	}
	return repr, nil
}

/*
Chunks takes a number of items and the maximum per chunk and
returns the [start, end) bounds of the chunks they are cut into,
all of them full but the last one.
*/
func Chunks(n, max int) [][2]int {
	var bounds [][2]int
	for start := 0; start < n; start += max {
		end := start + max
		if end > n {
			end = n
		}
		bounds = append(bounds, [2]int{start, end})
	}
	return bounds
}
