package json

import (
	"reflect"
	"testing"

	"github.com/pbanos/treehash/codestore"
)

func TestDecodeEncoded(t *testing.T) {
	t.Parallel()
	red := New()
	r := &codestore.Record{ID: 3, Code: 200, Repr: []float32{0.25, -1}}
	data, err := red.Encode(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := red.Decode(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got, r) {
		t.Errorf("got %+v, expected %+v", got, r)
	}
}

func TestDecodeErrors(t *testing.T) {
	t.Parallel()
	red := New()
	testCases := []struct {
		name string
		data string
	}{
		{"not json", `code 3`},
		{"negative code", `{"id":1,"code":-2}`},
		{"wrong type", `{"id":"one","code":2}`},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if r, err := red.Decode([]byte(tc.data)); err == nil {
				t.Errorf("expected an error decoding %q, got %v", tc.data, r)
			}
		})
	}
}
