/*
Package checkpoint persists the state of a training run, the model
configuration and parameters together with the training progress,
as BSON documents.
*/
package checkpoint

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/pbanos/treehash/config"
	"gopkg.in/mgo.v2/bson"
)

// Checkpoint is the state of a training run
type Checkpoint struct {
	Config *config.Config       `bson:"config"`
	Params map[string][]float64 `bson:"params"`
	Epoch  int                  `bson:"epoch"`
	Step   int                  `bson:"step"`
	Best   float64              `bson:"best"`
}

// New returns a checkpoint holding a copy of the given parameters
func New(cfg *config.Config, params map[string][]float32, epoch, step int, best float64) *Checkpoint {
	cp := &Checkpoint{
		Config: cfg,
		Params: make(map[string][]float64, len(params)),
		Epoch:  epoch,
		Step:   step,
		Best:   best,
	}
	for name, values := range params {
		converted := make([]float64, len(values))
		for i, v := range values {
			converted[i] = float64(v)
		}
		cp.Params[name] = converted
	}
	return cp
}

// Parameters returns the parameters of the checkpoint as float32
// slices keyed by name
func (cp *Checkpoint) Parameters() map[string][]float32 {
	res := make(map[string][]float32, len(cp.Params))
	for name, values := range cp.Params {
		converted := make([]float32, len(values))
		for i, v := range values {
			converted[i] = float32(v)
		}
		res[name] = converted
	}
	return res
}

// Marshal returns the checkpoint as a BSON document
func (cp *Checkpoint) Marshal() ([]byte, error) {
	data, err := bson.Marshal(cp)
	if err != nil {
		return nil, fmt.Errorf("serializing checkpoint: %v", err)
	}
	return data, nil
}

// Unmarshal parses a BSON document into a checkpoint
func Unmarshal(data []byte) (*Checkpoint, error) {
	cp := &Checkpoint{}
	if err := bson.Unmarshal(data, cp); err != nil {
		return nil, fmt.Errorf("parsing checkpoint: %v", err)
	}
	if cp.Config == nil {
		return nil, fmt.Errorf("parsing checkpoint: no configuration")
	}
	return cp, nil
}

/*
WriteFile writes the checkpoint into the file at path. The file is
written under a temporary name and then renamed, so an existing
checkpoint is never left half written.
*/
func (cp *Checkpoint) WriteFile(path string) error {
	data, err := cp.Marshal()
	if err != nil {
		return err
	}
	tmp, err := ioutil.TempFile(filepath.Dir(path), filepath.Base(path)+".tmp")
	if err != nil {
		return fmt.Errorf("writing checkpoint %s: %v", path, err)
	}
	_, err = tmp.Write(data)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp.Name(), path)
	}
	if err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing checkpoint %s: %v", path, err)
	}
	return nil
}

// ReadFile reads the checkpoint stored in the file at path
func ReadFile(path string) (*Checkpoint, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading checkpoint %s: %v", path, err)
	}
	cp, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("reading checkpoint %s: %v", path, err)
	}
	return cp, nil
}
