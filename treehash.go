/*
Package treehash learns fixed-size discrete codes for parse trees.

An Autoencoder composes each tree of a batch bottom-up into a
vector, squeezes that vector through a semantic hashing bottleneck
into a code, and reconstructs the tree's labels top-down from the
bottleneck's output. A Trainer fits its parameters to a dataset
and evaluates it, and EncodeAll computes the codes of a dataset
with several workers.
*/
package treehash

import (
	"fmt"
	"math/rand"

	"github.com/emer/etable/etensor"
	"github.com/pbanos/treehash/attention"
	"github.com/pbanos/treehash/batch"
	"github.com/pbanos/treehash/codestore"
	"github.com/pbanos/treehash/config"
	"github.com/pbanos/treehash/loss"
	"github.com/pbanos/treehash/nn"
	"github.com/pbanos/treehash/semhash"
	"github.com/pbanos/treehash/treelstm"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec32"
)

/*
Autoencoder is a tree LSTM autoencoder with a discrete bottleneck.
The output projection shares the weights of the label embedding
when tied, OutputWeights being nil then. Source fields are nil
unless the configuration conditions on source sentences, and
Bypass replaces Bottleneck when the configuration disables it.
*/
type Autoencoder struct {
	Config       *config.Config
	VocabSize    int
	SrcVocabSize int

	Embedding     *nn.Embedding
	Encoder       *treelstm.Encoder
	Bottleneck    *semhash.Bottleneck
	Bypass        *anynet.FC
	DecoderInit   *anynet.FC
	Decoder       *treelstm.Decoder
	OutputWeights *anydiff.Var

	SrcEmbedding *nn.Embedding
	SrcEncoder   *attention.Encoder
}

/*
New takes a configuration, the size of the label vocabulary, the
size of the source vocabulary and a random source and returns an
autoencoder with random parameters, or a
*config.ConfigurationError if the configuration is invalid or the
vocabularies cannot serve it.
*/
func New(cfg *config.Config, vocabSize, srcVocabSize int, r *rand.Rand) (*Autoencoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if vocabSize <= 2 {
		return nil, &config.ConfigurationError{Field: "vocabulary", Reason: fmt.Sprintf("size %d leaves no room for labels", vocabSize)}
	}
	if cfg.UseSrc && srcVocabSize <= 1 {
		return nil, &config.ConfigurationError{Field: "use_src", Reason: "source conditioning requires a source vocabulary"}
	}
	tie, err := cfg.TieOutput()
	if err != nil {
		return nil, err
	}
	c := anyvec32.CurrentCreator()
	ae := &Autoencoder{
		Config:      cfg,
		VocabSize:   vocabSize,
		Embedding:   nn.NewEmbedding(c, vocabSize, cfg.InputDim, r),
		Encoder:     treelstm.NewEncoder(c, cfg.InputDim, cfg.MemDim),
		DecoderInit: anynet.NewFC(c, cfg.MemDim, 2*cfg.MemDim),
		Decoder:     treelstm.NewDecoder(c, cfg.InputDim, cfg.MemDim, cfg.MaxNumChildren),
	}
	if cfg.UseBottleneck {
		ae.Bottleneck = semhash.New(c, cfg.MemDim, cfg.BitNumber, cfg.FilterSize, cfg.NoiseDev, cfg.StartupSize, cfg.DiscreteMix)
	} else {
		ae.Bypass = anynet.NewFC(c, cfg.MemDim, cfg.MemDim)
	}
	if !tie {
		ae.OutputWeights = nn.NewMatrix(c, vocabSize, cfg.MemDim, r)
	}
	if cfg.UseSrc {
		ae.SrcVocabSize = srcVocabSize
		ae.SrcEmbedding = nn.NewEmbedding(c, srcVocabSize, cfg.MemDim, r)
		ae.SrcEncoder = attention.NewEncoder(c, cfg.NumLayer, cfg.NumHead, cfg.MemDim, 4*cfg.MemDim, cfg.AtnDropout)
	}
	return ae, nil
}

/*
Output holds what the autoencoder computes for a batch: the label
logits of every decode position, the code and representation of
every tree, and the loss and accuracy of the reconstruction.
*/
type Output struct {
	// Logits is shaped [batch, decLen, vocab]
	Logits *etensor.Float32
	// Codes holds a code per tree
	Codes []int
	// Repr is shaped [batch, mem], the bottleneck output per tree
	Repr *etensor.Float32

	// Loss is the mean over trees of their per-node loss
	Loss    float64
	Correct int
	Total   int

	lossRes anydiff.Res
	tape    *nn.Tape
}

// Accuracy returns the percentage of correctly predicted labels
func (o *Output) Accuracy() float64 {
	if o.Total == 0 {
		return 0
	}
	return 100 * float64(o.Correct) / float64(o.Total)
}

/*
Records takes the batch the output was computed for and returns
a record per tree with its sample id, code and representation, in
batch order.
*/
func (o *Output) Records(b *batch.Batch) []*codestore.Record {
	mem := o.Repr.Dim(1)
	records := make([]*codestore.Record, len(o.Codes))
	for i, code := range o.Codes {
		repr := make([]float32, mem)
		copy(repr, o.Repr.Values[i*mem:(i+1)*mem])
		records[i] = &codestore.Record{ID: b.IDs[i], Code: code, Repr: repr}
	}
	return records
}

/*
Backward accumulates into g the gradient of the output's loss with
respect to the parameters present in g. It must be called at most
once per output.
*/
func (o *Output) Backward(g anydiff.Grad) {
	one := o.lossRes.Output().Creator().MakeVectorData([]float32{1})
	o.tape.Backward(o.lossRes, one, g)
}

/*
Forward takes a batch, whether the model is training, the current
training step (semhash.UnknownStep if unknown) and a random source
for the bottleneck, and returns the output of the autoencoder on
the batch.

Forward panics with a *batch.ShapeMismatchError if the batch is
inconsistent, and if the model conditions on sources and the batch
has none. It also panics when training without a random source.
*/
func (ae *Autoencoder) Forward(b *batch.Batch, training bool, step int, r *rand.Rand) *Output {
	if err := b.Validate(); err != nil {
		panic(err)
	}
	if training && r == nil {
		panic("training requires a random source")
	}
	size, mem := b.Size(), ae.Config.MemDim
	tp := &nn.Tape{}

	enc := ae.Encoder.Encode(tp, ae.Embedding, b).H
	var src anydiff.Res
	if ae.SrcEncoder != nil {
		if b.S == nil {
			panic("model conditions on sources but the batch has none")
		}
		dropout := r
		if !training {
			dropout = nil
		}
		src = ae.encodeSource(b, dropout)
		enc = anydiff.Add(enc, src)
	}

	var dense anydiff.Res
	var codes []int
	if ae.Bottleneck != nil {
		out := ae.Bottleneck.Apply(enc, size, training, step, r)
		dense, codes = out.Dense, out.Codes
	} else {
		dense = ae.Bypass.Apply(enc, size)
		codes = make([]int, size)
		for i := range codes {
			codes[i] = 1
		}
	}
	repr := etensor.NewFloat32([]int{size, mem}, nil, nil)
	copy(repr.Values, nn.Float32s(dense.Output()))
	if src != nil {
		dense = anydiff.Add(dense, src)
	}

	states := ae.Decoder.Decode(tp, ae.Embedding, b, ae.DecoderInit.Apply(dense, size))
	decLen, vocab := b.DecodeLen(), ae.VocabSize
	logits := ae.logits(states, size)
	targets := make([]int, len(b.Y.Values))
	for i, y := range b.Y.Values {
		targets[i] = int(y)
	}
	lossRes := loss.Masked(logits, targets, b.YM.Values, size, decLen, vocab)

	out := &Output{
		Logits:  etensor.NewFloat32([]int{size, decLen, vocab}, nil, nil),
		Codes:   codes,
		Repr:    repr,
		Loss:    float64(nn.Float32s(lossRes.Output())[0]),
		lossRes: lossRes,
		tape:    tp,
	}
	copy(out.Logits.Values, nn.Float32s(logits.Output()))
	out.Correct, out.Total, _ = loss.Accuracy(out.Logits.Values, targets, b.YM.Values, vocab)
	return out
}

// logits projects the hidden vectors of every decode position to
// label logits laid out as [batch, decLen, vocab]
func (ae *Autoencoder) logits(states []anydiff.Res, size int) anydiff.Res {
	mem, vocab := ae.Config.MemDim, ae.VocabSize
	var weights anydiff.Res = ae.Embedding.Weights
	if ae.OutputWeights != nil {
		weights = ae.OutputWeights
	}
	steps := make([]anydiff.Res, len(states))
	for t, h := range states {
		steps[t] = nn.MatMulT(h, size, mem, weights, vocab)
	}
	decLen := len(states)
	table := make([]int, size*decLen*vocab)
	for i := 0; i < size; i++ {
		for t := 0; t < decLen; t++ {
			for v := 0; v < vocab; v++ {
				table[(i*decLen+t)*vocab+v] = (t*size+i)*vocab + v
			}
		}
	}
	c := weights.Output().Creator()
	return anydiff.Map(c.MakeMapper(len(table), table), anydiff.Concat(steps...))
}

/*
encodeSource runs the source tokens of every tree through the
self-attention encoder and returns the mean of the encoded tokens
of each tree, padding excluded. Unknown ids are read as id 1.
*/
func (ae *Autoencoder) encodeSource(b *batch.Batch, r *rand.Rand) anydiff.Res {
	size, srcLen, mem := b.Size(), b.SourceLen(), ae.Config.MemDim
	ids := make([]int, size*srcLen)
	mask := make([]float32, size*srcLen)
	pool := make([]float32, size*size*srcLen)
	for i := 0; i < size; i++ {
		var count float32
		for t := 0; t < srcLen; t++ {
			id := int(b.S.Value([]int{i, t}))
			if id >= ae.SrcVocabSize || id < 0 {
				id = 1
			}
			ids[i*srcLen+t] = id
			if id != 0 {
				mask[i*srcLen+t] = 1
				count++
			}
		}
		for t := 0; t < srcLen; t++ {
			if mask[i*srcLen+t] != 0 {
				pool[i*size*srcLen+i*srcLen+t] = 1 / count
			}
		}
	}
	encoded := ae.SrcEncoder.Encode(ae.SrcEmbedding.Lookup(ids), mask, size, srcLen, r)
	c := ae.SrcEmbedding.Weights.Vector.Creator()
	return anydiff.MatMul(false, false,
		&anydiff.Matrix{Data: nn.Const(c, pool), Rows: size, Cols: size * srcLen},
		&anydiff.Matrix{Data: encoded, Rows: size * srcLen, Cols: mem},
	).Data
}

// NamedParameter is a parameter of the model with a stable name
type NamedParameter struct {
	Name string
	Var  *anydiff.Var
}

// NamedParameters returns the parameters of the model with their
// names, always in the same order
func (ae *Autoencoder) NamedParameters() []NamedParameter {
	var res []NamedParameter
	add := func(prefix string, vars []*anydiff.Var) {
		for i, v := range vars {
			res = append(res, NamedParameter{fmt.Sprintf("%s.%d", prefix, i), v})
		}
	}
	add("emb", ae.Embedding.Parameters())
	add("encoder", ae.Encoder.Parameters())
	if ae.Bottleneck != nil {
		add("bottleneck", ae.Bottleneck.Parameters())
	} else {
		add("bypass", ae.Bypass.Parameters())
	}
	add("decoder_init", ae.DecoderInit.Parameters())
	add("decoder", ae.Decoder.Parameters())
	if ae.OutputWeights != nil {
		add("output", []*anydiff.Var{ae.OutputWeights})
	}
	if ae.SrcEncoder != nil {
		add("src_emb", ae.SrcEmbedding.Parameters())
		add("src_encoder", ae.SrcEncoder.Parameters())
	}
	return res
}

// Parameters returns the parameters of the model
func (ae *Autoencoder) Parameters() []*anydiff.Var {
	named := ae.NamedParameters()
	res := make([]*anydiff.Var, len(named))
	for i, np := range named {
		res[i] = np.Var
	}
	return res
}

/*
Snapshot returns a copy of the values of every parameter, keyed by
name.
*/
func (ae *Autoencoder) Snapshot() map[string][]float32 {
	res := map[string][]float32{}
	for _, np := range ae.NamedParameters() {
		res[np.Name] = nn.Float32s(np.Var.Vector)
	}
	return res
}

/*
Restore sets the parameters of the model to the values of a
snapshot. It returns an error, leaving the model unchanged, if
the snapshot misses a parameter or has one of a different size.
*/
func (ae *Autoencoder) Restore(snapshot map[string][]float32) error {
	named := ae.NamedParameters()
	for _, np := range named {
		values, ok := snapshot[np.Name]
		if !ok {
			return fmt.Errorf("restoring parameters: missing %s", np.Name)
		}
		if len(values) != np.Var.Vector.Len() {
			return fmt.Errorf("restoring parameters: %s has %d values, expected %d", np.Name, len(values), np.Var.Vector.Len())
		}
	}
	for _, np := range named {
		np.Var.Vector.SetData(anyvec.NumericList(append([]float32{}, snapshot[np.Name]...)))
	}
	return nil
}
