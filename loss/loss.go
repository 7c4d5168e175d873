/*
Package loss reduces per-node label predictions of a batch of
trees to a cross-entropy loss and an accuracy, ignoring padding.
*/
package loss

import (
	"github.com/unixpickle/anydiff"
)

/*
Masked takes logits laid out as [batch, length, vocab], integer
targets and a 0/1 mask laid out as [batch, length], and returns the
differentiable loss: the masked negative log likelihood of the
targets is averaged over the valid positions of each tree, and the
tree losses are averaged over the batch.

Only the logits of valid positions are read, so padded positions
contribute nothing to the loss or its gradient, whatever their
values, infinities included.
*/
func Masked(logits anydiff.Res, targets []int, mask []float32, batch, length, vocab int) anydiff.Res {
	c := logits.Output().Creator()
	var rows, picks []int
	var weights []float32
	for b := 0; b < batch; b++ {
		var total float32
		for t := 0; t < length; t++ {
			total += mask[b*length+t]
		}
		for t := 0; t < length; t++ {
			i := b*length + t
			if mask[i] == 0 {
				continue
			}
			for v := 0; v < vocab; v++ {
				rows = append(rows, i*vocab+v)
			}
			picks = append(picks, len(picks)*vocab+targets[i])
			weights = append(weights, -mask[i]/total/float32(batch))
		}
	}
	if len(picks) == 0 {
		return anydiff.NewConst(c.MakeVector(1))
	}
	valid := anydiff.Map(c.MakeMapper(batch*length*vocab, rows), logits)
	logProbs := anydiff.LogSoftmax(valid, vocab)
	picked := anydiff.Map(c.MakeMapper(len(rows), picks), logProbs)
	return anydiff.Sum(anydiff.Mul(picked, anydiff.NewConst(c.MakeVectorData(weights))))
}

/*
Accuracy takes logits laid out as [batch, length, vocab], integer
targets and a 0/1 mask laid out as [batch, length] and returns the
number of valid positions whose highest logit is the target, the
number of valid positions and the percentage of correct ones.
*/
func Accuracy(logits []float32, targets []int, mask []float32, vocab int) (correct, total int, pct float64) {
	for i, target := range targets {
		if mask[i] == 0 {
			continue
		}
		total++
		if argmax(logits[i*vocab:(i+1)*vocab]) == target {
			correct++
		}
	}
	if total > 0 {
		pct = 100 * float64(correct) / float64(total)
	}
	return
}

func argmax(v []float32) int {
	best := 0
	for i, x := range v {
		if x > v[best] {
			best = i
		}
	}
	return best
}
