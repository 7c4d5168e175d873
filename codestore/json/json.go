/*
Package json provides the encoding of code records as JSON
documents that stores without a schema of their own keep.
*/
package json

import (
	"encoding/json"
	"fmt"

	"github.com/pbanos/treehash/codestore"
)

/*
RecordEncodeDecoder is an interface for objects
that allow encoding records into slices of
bytes and decoding them back to records.
*/
type RecordEncodeDecoder interface {

	//Encode receives a *codestore.Record
	//and returns a slice of bytes with the record
	//encoded or an error if the encoding could not
	//be performed for some reason.
	Encode(*codestore.Record) ([]byte, error)

	//Decode receives a slice of bytes
	//and returns a *codestore.Record decoded from the
	//slice of bytes or an error if the decoding
	//could not be performed for some reason.
	Decode([]byte) (*codestore.Record, error)
}

type recordEncodeDecoder struct{}

type record struct {
	ID   int       `json:"id"`
	Code int       `json:"code"`
	Repr []float32 `json:"repr,omitempty"`
}

// New returns a RecordEncodeDecoder
func New() RecordEncodeDecoder {
	return &recordEncodeDecoder{}
}

func (red *recordEncodeDecoder) Encode(r *codestore.Record) ([]byte, error) {
	return json.Marshal(&record{ID: r.ID, Code: r.Code, Repr: r.Repr})
}

func (red *recordEncodeDecoder) Decode(data []byte) (*codestore.Record, error) {
	jr := &record{}
	err := json.Unmarshal(data, jr)
	if err != nil {
		return nil, err
	}
	if jr.Code < 0 {
		return nil, fmt.Errorf("record %d has negative code %d", jr.ID, jr.Code)
	}
	return &codestore.Record{ID: jr.ID, Code: jr.Code, Repr: jr.Repr}, nil
}
