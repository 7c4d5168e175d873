/*
Package vocab provides the label vocabularies mapping tree labels
and source tokens to the integer ids the model embeds.

Vocabularies are read from plain files with a label per line, ids
following line order, or from YAML documents mapping each label
to its id.
*/
package vocab

import (
	"bufio"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pbanos/treehash/semhash"
	"github.com/pbanos/treehash/tree"
	yaml "gopkg.in/yaml.v2"
)

// Reserved labels and their ids
const (
	PadLabel     = "<pad>"
	UnknownLabel = "<unk>"
	PadID        = 0
	UnknownID    = 1
)

/*
Vocabulary maps labels to ids and back. Labels absent from it get
UnknownID.
*/
type Vocabulary struct {
	ids    map[string]int
	labels []string
}

// New returns a vocabulary with the reserved labels followed by
// the given ones, in order. Repeated labels keep their first id.
func New(labels []string) *Vocabulary {
	v := &Vocabulary{ids: map[string]int{}}
	v.Add(PadLabel)
	v.Add(UnknownLabel)
	for _, l := range labels {
		v.Add(l)
	}
	return v
}

// Add gives label the next free id unless it already has one, and
// returns its id
func (v *Vocabulary) Add(label string) int {
	if id, ok := v.ids[label]; ok {
		return id
	}
	id := len(v.labels)
	v.set(label, id)
	return id
}

func (v *Vocabulary) set(label string, id int) {
	for len(v.labels) <= id {
		v.labels = append(v.labels, "")
	}
	v.labels[id] = label
	v.ids[label] = id
}

// IDOf returns the id of label, UnknownID if it has none
func (v *Vocabulary) IDOf(label string) int {
	if id, ok := v.ids[label]; ok {
		return id
	}
	return UnknownID
}

// Size returns the number of ids of the vocabulary, one more than
// the highest id
func (v *Vocabulary) Size() int {
	return len(v.labels)
}

// Label returns the label with the given id, the unknown label if
// no label has it
func (v *Vocabulary) Label(id int) string {
	if id < 0 || id >= len(v.labels) || v.labels[id] == "" {
		return UnknownLabel
	}
	return v.labels[id]
}

// Labels returns the labels of the vocabulary ordered by id
func (v *Vocabulary) Labels() []string {
	var result []string
	for _, l := range v.labels {
		if l != "" {
			result = append(result, l)
		}
	}
	return result
}

/*
IDs takes a slice of tokens and returns their ids, unknown tokens
getting UnknownID.
*/
func (v *Vocabulary) IDs(tokens []string) []int {
	ids := make([]int, len(tokens))
	for i, t := range tokens {
		ids[i] = v.IDOf(t)
	}
	return ids
}

/*
AddCodes appends n code tokens, <cl0> to <cl{n-1}>, with ids
following the highest id of the vocabulary, and returns them.
*/
func (v *Vocabulary) AddCodes(n int) []string {
	tokens := make([]string, n)
	last := len(v.labels) - 1
	for i := range tokens {
		tokens[i] = semhash.CodeToken(i)
		v.set(tokens[i], last+i+1)
	}
	return tokens
}

/*
Build takes trees and a minimum count and returns the vocabulary
of the labels found at least minCount times in them, the most
frequent first and ties in lexical order.
*/
func Build(trees []*tree.Tree, minCount int) *Vocabulary {
	counts := map[string]int{}
	for _, t := range trees {
		for _, l := range t.Labels() {
			counts[l]++
		}
	}
	var labels []string
	for l, c := range counts {
		if c >= minCount && l != PadLabel && l != UnknownLabel {
			labels = append(labels, l)
		}
	}
	sort.Slice(labels, func(i, j int) bool {
		if counts[labels[i]] != counts[labels[j]] {
			return counts[labels[i]] > counts[labels[j]]
		}
		return labels[i] < labels[j]
	})
	return New(labels)
}

/*
ReadPlain takes a reader with a label per line and returns the
vocabulary giving each label the id of its line among the
non-empty ones. Reserved labels are added at the front if the
reader does not declare them at their ids.
*/
func ReadPlain(r io.Reader) (*Vocabulary, error) {
	var labels []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		labels = append(labels, fields[0])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading vocabulary: %v", err)
	}
	if len(labels) >= 2 && labels[PadID] == PadLabel && labels[UnknownID] == UnknownLabel {
		labels = labels[2:]
	}
	return New(labels), nil
}

/*
ReadYAML takes a YAML document mapping labels to ids and returns
the vocabulary it describes. The reserved labels get their ids
unless the document gives them others. It returns an error if the
document cannot be parsed, or if an id is negative or given to two
labels.
*/
func ReadYAML(data []byte) (*Vocabulary, error) {
	entries := map[string]int{}
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing yml vocabulary: %v", err)
	}
	v := &Vocabulary{ids: map[string]int{}}
	owners := map[int]string{}
	for l, id := range entries {
		if id < 0 {
			return nil, fmt.Errorf("negative id %d for label %q", id, l)
		}
		if other, ok := owners[id]; ok {
			return nil, fmt.Errorf("id %d given to both %q and %q", id, other, l)
		}
		owners[id] = l
		v.set(l, id)
	}
	for _, r := range []struct {
		label string
		id    int
	}{{PadLabel, PadID}, {UnknownLabel, UnknownID}} {
		if _, ok := v.ids[r.label]; ok {
			continue
		}
		if _, taken := owners[r.id]; taken {
			return nil, fmt.Errorf("reserved id %d of %s given to %q", r.id, r.label, owners[r.id])
		}
		v.set(r.label, r.id)
	}
	return v, nil
}

/*
ReadFile takes the path of a vocabulary file and returns the
vocabulary read from it, as YAML if its extension is .yml or
.yaml and as a plain file otherwise.
*/
func ReadFile(path string) (*Vocabulary, error) {
	if isYAML(path) {
		data, err := ioutil.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading vocabulary file %s: %v", path, err)
		}
		v, err := ReadYAML(data)
		if err != nil {
			err = fmt.Errorf("parsing vocabulary file %s: %v", path, err)
		}
		return v, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading vocabulary file %s: %v", path, err)
	}
	defer f.Close()
	return ReadPlain(f)
}

// WritePlain writes the labels of the vocabulary, one per line,
// ordered by id
func (v *Vocabulary) WritePlain(w io.Writer) error {
	for _, l := range v.Labels() {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}

// WriteYAML writes the vocabulary as a YAML document mapping each
// label to its id, ordered by id
func (v *Vocabulary) WriteYAML(w io.Writer) error {
	var ms yaml.MapSlice
	for id, l := range v.labels {
		if l != "" {
			ms = append(ms, yaml.MapItem{Key: l, Value: id})
		}
	}
	data, err := yaml.Marshal(ms)
	if err != nil {
		return fmt.Errorf("serializing vocabulary: %v", err)
	}
	_, err = w.Write(data)
	return err
}

// WriteFile writes the vocabulary into the file at path, as YAML
// if its extension is .yml or .yaml and as a plain file otherwise.
func (v *Vocabulary) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating vocabulary file %s: %v", path, err)
	}
	if isYAML(path) {
		err = v.WriteYAML(f)
	} else {
		err = v.WritePlain(f)
	}
	if err != nil {
		f.Close()
		return fmt.Errorf("writing vocabulary file %s: %v", path, err)
	}
	return f.Close()
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yml" || ext == ".yaml"
}
