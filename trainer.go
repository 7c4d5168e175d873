package treehash

import (
	"context"
	"fmt"
	"math/rand"
	"os"

	"github.com/pbanos/treehash/batch"
	"github.com/pbanos/treehash/checkpoint"
	"github.com/pbanos/treehash/codestore"
	"github.com/pbanos/treehash/dataset"
	"github.com/pbanos/treehash/nn"
	"github.com/pbanos/treehash/semhash"
	"github.com/unixpickle/anydiff"
)

// TempSuffix is appended to the checkpoint path to name the
// checkpoint saved periodically during an epoch
const TempSuffix = ".tmp"

// Logger is used to report progress
type Logger interface {
	Logf(format string, a ...interface{})
}

/*
Trainer fits the parameters of an autoencoder to a dataset.

Step counts the optimizer updates since the start of the training
and drives the schedule of the bottleneck. Best is the best dev
accuracy seen so far, whose parameters are kept at
CheckpointPath. Every SaveFreq steps the current state is saved at
CheckpointPath plus TempSuffix. No checkpoint is written if
CheckpointPath is empty.
*/
type Trainer struct {
	Model          *Autoencoder
	Optimizer      *nn.Optimizer
	Logger         Logger
	Rand           *rand.Rand
	CheckpointPath string

	Epoch int
	Step  int
	Best  float64

	batcher *batch.Batcher
	grad    anydiff.Grad
	pending int
}

/*
NewTrainer takes an autoencoder, the path of its checkpoint and a
logger, and returns a trainer for it with the optimizer and random
source its configuration describes, or an error if the optimizer
is unknown.
*/
func NewTrainer(model *Autoencoder, checkpointPath string, logger Logger) (*Trainer, error) {
	cfg := model.Config
	o, err := nn.NewOptimizer(cfg.Optim, cfg.LR, cfg.WD)
	if err != nil {
		return nil, err
	}
	r := rand.New(rand.NewSource(cfg.Seed))
	return &Trainer{
		Model:          model,
		Optimizer:      o,
		Logger:         logger,
		Rand:           r,
		CheckpointPath: checkpointPath,
		Best:           -1,
		batcher: &batch.Batcher{
			Size:       cfg.BatchSize,
			BufferSize: cfg.BatchSize * cfg.BufferSize,
			Shuffle:    true,
			Train:      true,
			Rand:       rand.New(rand.NewSource(cfg.Seed + 1)),
		},
	}, nil
}

/*
Train takes a context, a training dataset and a dev dataset, and
trains the model for the epochs left until the configured number
of epochs. After each epoch the model is evaluated on the dev
dataset, if not nil, and its parameters are saved if they reach
the best dev accuracy so far.
*/
func (t *Trainer) Train(ctx context.Context, train, dev dataset.Dataset) error {
	for t.Epoch < t.Model.Config.Epochs {
		err := t.TrainEpoch(ctx, train)
		if err != nil {
			return err
		}
		t.Epoch++
		if dev == nil {
			continue
		}
		ev, err := Evaluate(ctx, t.Model, dev, t.Model.Config.BatchSize, t.Logger)
		if err != nil {
			return fmt.Errorf("evaluating epoch %d: %v", t.Epoch, err)
		}
		t.logf("Dev Loss %.3f ACC %.3f", ev.Loss, ev.Accuracy)
		if ev.Accuracy > t.Best {
			t.Best = ev.Accuracy
			t.logf("New optimum found")
			err = t.save(t.CheckpointPath)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

/*
TrainEpoch takes a context and a dataset and goes once through the
dataset, updating the parameters of the model every NumGradAgg
batches with the sum of their gradients. Batches of trees of
similar size are fed in random order. Samples left out of the
last batch are kept for the next epoch.
*/
func (t *Trainer) TrainEpoch(ctx context.Context, ds dataset.Dataset) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	cfg := t.Model.Config
	params := t.Model.Parameters()
	samples, errs := ds.Read(ctx)
	batches, berrs := t.batcher.Batches(ctx, samples)
	for b := range batches {
		out := t.Model.Forward(b, true, t.Step, t.Rand)
		if t.grad == nil {
			t.grad = nn.NewGrad(params)
		}
		out.Backward(t.grad)
		t.pending++
		if t.pending < cfg.NumGradAgg {
			continue
		}
		t.Optimizer.Step(params, t.grad)
		t.grad, t.pending = nil, 0
		if t.Step%cfg.DispFreq == 0 && t.Step > 0 {
			sizes := b.SizeStats()
			t.logf("Epoch %d Step %d Loss %.3f ACC %.3f Size %.1f/%.0f", t.Epoch, t.Step, out.Loss, out.Accuracy(), sizes.Avg, sizes.Max)
		}
		t.Step++
		if t.Step%cfg.SaveFreq == 0 && t.CheckpointPath != "" {
			if err := t.save(t.CheckpointPath + TempSuffix); err != nil {
				return err
			}
		}
	}
	if err := <-errs; err != nil {
		return fmt.Errorf("reading training data: %v", err)
	}
	if err := <-berrs; err != nil {
		return fmt.Errorf("batching training data: %v", err)
	}
	return nil
}

// Checkpoint returns the current state of the training
func (t *Trainer) Checkpoint() *checkpoint.Checkpoint {
	return checkpoint.New(t.Model.Config, t.Model.Snapshot(), t.Epoch, t.Step, t.Best)
}

/*
Resume sets the parameters of the model and the progress of the
trainer to those of a checkpoint, or returns an error if the
checkpoint does not fit the model.
*/
func (t *Trainer) Resume(cp *checkpoint.Checkpoint) error {
	err := t.Model.Restore(cp.Parameters())
	if err != nil {
		return err
	}
	t.Epoch, t.Step, t.Best = cp.Epoch, cp.Step, cp.Best
	return nil
}

/*
ResumeLatest resumes the training from the checkpoint LatestCheckpoint
finds for CheckpointPath. It returns false if there is none.
*/
func (t *Trainer) ResumeLatest() (bool, error) {
	cp, err := LatestCheckpoint(t.CheckpointPath)
	if err != nil || cp == nil {
		return false, err
	}
	t.logf("Resuming from epoch %d step %d", cp.Epoch, cp.Step)
	return true, t.Resume(cp)
}

/*
LatestCheckpoint returns whichever of the checkpoint at path and
the one saved periodically next to it has gone through more steps,
the first one on a tie, or nil if neither exists. The returned
checkpoint carries the best dev accuracy of both.
*/
func LatestCheckpoint(path string) (*checkpoint.Checkpoint, error) {
	if path == "" {
		return nil, nil
	}
	var latest *checkpoint.Checkpoint
	var best float64
	for _, p := range []string{path, path + TempSuffix} {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		cp, err := checkpoint.ReadFile(p)
		if err != nil {
			return nil, err
		}
		if latest == nil {
			best = cp.Best
		} else if cp.Best > best {
			best = cp.Best
		}
		if latest == nil || cp.Step > latest.Step {
			latest = cp
		}
	}
	if latest != nil {
		latest.Best = best
	}
	return latest, nil
}

func (t *Trainer) save(path string) error {
	if path == "" {
		return nil
	}
	return t.Checkpoint().WriteFile(path)
}

func (t *Trainer) logf(format string, a ...interface{}) {
	if t.Logger != nil {
		t.Logger.Logf(format, a...)
	}
}

/*
Evaluation is the outcome of running a model over a dataset: the
mean loss per tree, the accuracy over every node, and a record with
the code and representation of every sample, sorted by sample id.
*/
type Evaluation struct {
	Loss     float64
	Accuracy float64
	Correct  int
	Total    int
	Records  []*codestore.Record
}

/*
Evaluate takes a context, a model, a dataset, a batch size and a
logger, and returns the evaluation of the model on the whole
dataset, or the error that interrupted reading it.
*/
func Evaluate(ctx context.Context, model *Autoencoder, ds dataset.Dataset, batchSize int, logger Logger) (*Evaluation, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	br := &batch.Batcher{Size: batchSize, BufferSize: batchSize * model.Config.BufferSize}
	samples, errs := ds.Read(ctx)
	batches, berrs := br.Batches(ctx, samples)
	ev := &Evaluation{}
	var lossSum float64
	for b := range batches {
		out := model.Forward(b, false, semhash.UnknownStep, nil)
		lossSum += out.Loss * float64(b.Size())
		ev.Correct += out.Correct
		ev.Total += out.Total
		ev.Records = append(ev.Records, out.Records(b)...)
	}
	if err := <-errs; err != nil {
		return nil, err
	}
	if err := <-berrs; err != nil {
		return nil, err
	}
	codestore.SortByID(ev.Records)
	if logger != nil {
		logger.Logf("Processing %d elements", len(ev.Records))
	}
	if len(ev.Records) > 0 {
		ev.Loss = lossSum / float64(len(ev.Records))
	}
	if ev.Total > 0 {
		ev.Accuracy = 100 * float64(ev.Correct) / float64(ev.Total)
	}
	return ev, nil
}
