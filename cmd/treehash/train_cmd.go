package main

import (
	"fmt"
	"math/rand"
	"os"

	"github.com/pbanos/treehash"
	"github.com/pbanos/treehash/checkpoint"
	"github.com/pbanos/treehash/config"
	"github.com/pbanos/treehash/dataset"
	"github.com/spf13/cobra"
)

type trainCmdConfig struct {
	*rootCmdConfig
	vocabFlags
	configInput      string
	trainInput       string
	trainSrcInput    string
	devInput         string
	devSrcInput      string
	checkpointOutput string
	epochs           int
	seed             int64
}

func trainCmd(rootConfig *rootCmdConfig) *cobra.Command {
	config := &trainCmdConfig{rootCmdConfig: rootConfig}
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train an autoencoder on a set of trees",
		Long:  `Train a tree autoencoder on a set of trees, evaluating it on a dev set after every epoch and keeping the parameters that reach the best dev accuracy. An interrupted training resumes from its checkpoint.`,
		Run: func(cmd *cobra.Command, args []string) {
			err := config.Validate()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			cp, err := treehash.LatestCheckpoint(config.checkpointOutput)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(2)
			}
			cfg, err := config.modelConfig(cmd, cp)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(2)
			}
			v, srcV, err := config.load(cfg)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(3)
			}
			loader := newLoader(cfg, v, srcV)
			train, closeTrain, err := openDataset(config.Context(), config.trainInput, config.trainSrcInput, loader)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(4)
			}
			defer closeTrain()
			var dev dataset.Dataset
			if config.devInput != "" {
				var closeDev func()
				dev, closeDev, err = openDataset(config.Context(), config.devInput, config.devSrcInput, loader)
				if err != nil {
					fmt.Fprintln(os.Stderr, err)
					os.Exit(4)
				}
				defer closeDev()
			}
			var srcSize int
			if srcV != nil {
				srcSize = srcV.Size()
			}
			model, err := treehash.New(cfg, v.Size(), srcSize, rand.New(rand.NewSource(cfg.Seed)))
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(5)
			}
			trainer, err := treehash.NewTrainer(model, config.checkpointOutput, config)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(5)
			}
			if cp != nil {
				err = trainer.Resume(cp)
				if err != nil {
					fmt.Fprintln(os.Stderr, err)
					os.Exit(6)
				}
				config.Logf("Resuming from epoch %d step %d", cp.Epoch, cp.Step)
			}
			config.Logf("Training a model of %d parameters on a vocabulary of %d labels...", countParameters(model), v.Size())
			err = trainer.Train(config.Context(), train, dev)
			if err != nil {
				fmt.Fprintf(os.Stderr, "training the model: %v\n", err)
				os.Exit(7)
			}
			config.Logf("Done")
		},
	}
	cmd.PersistentFlags().StringVarP(&(config.configInput), "config", "c", "", "path to a YML file with the configuration of the model and its training (defaults to the default configuration)")
	cmd.PersistentFlags().StringVarP(&(config.trainInput), "train", "t", "", "path to a file with a training tree per line, or a MongoDB connection URL (required)")
	cmd.PersistentFlags().StringVar(&(config.trainSrcInput), "train-src", "", "path to a file with the source sentence of every training tree")
	cmd.PersistentFlags().StringVarP(&(config.devInput), "dev", "d", "", "path to a file with a dev tree per line, or a MongoDB connection URL")
	cmd.PersistentFlags().StringVar(&(config.devSrcInput), "dev-src", "", "path to a file with the source sentence of every dev tree")
	cmd.PersistentFlags().StringVar(&(config.vocabInput), "vocab", "", "path to a plain or YML (.yml) label vocabulary (required)")
	cmd.PersistentFlags().StringVar(&(config.srcVocabInput), "src-vocab", "", "path to a plain or YML (.yml) source vocabulary")
	cmd.PersistentFlags().StringVarP(&(config.checkpointOutput), "checkpoint", "o", "", "path to the checkpoint of the best parameters, the periodic checkpoint going to the same path with a .tmp suffix (required)")
	cmd.PersistentFlags().IntVar(&(config.epochs), "epochs", 0, "number of epochs to train, overriding the configuration")
	cmd.PersistentFlags().Int64Var(&(config.seed), "seed", 0, "seed of the random sources, overriding the configuration")
	return cmd
}

func (tcc *trainCmdConfig) Validate() error {
	if tcc.trainInput == "" {
		return fmt.Errorf("required train flag was not set")
	}
	if tcc.checkpointOutput == "" {
		return fmt.Errorf("required checkpoint flag was not set")
	}
	return tcc.vocabFlags.Validate()
}

/*
modelConfig returns the configuration of the checkpoint to resume
from, if any, or the one in the config file, or the default one,
with the values of the overriding flags.
*/
func (tcc *trainCmdConfig) modelConfig(cmd *cobra.Command, cp *checkpoint.Checkpoint) (*config.Config, error) {
	cfg := config.Default()
	switch {
	case cp != nil:
		tcc.Logf("Using the configuration of the checkpoint at %s", tcc.checkpointOutput)
		cfg = cp.Config
	case tcc.configInput != "":
		var err error
		cfg, err = config.ReadFile(tcc.configInput)
		if err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("epochs") {
		cfg.Epochs = tcc.epochs
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed = tcc.seed
	}
	return cfg, cfg.Validate()
}

func countParameters(model *treehash.Autoencoder) int {
	var n int
	for _, p := range model.Parameters() {
		n += p.Vector.Len()
	}
	return n
}
