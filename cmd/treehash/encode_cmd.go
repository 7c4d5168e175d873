package main

import (
	"bufio"
	"fmt"
	"math/rand"
	"os"
	"runtime"
	"strconv"

	"github.com/pbanos/treehash"
	"github.com/pbanos/treehash/checkpoint"
	"github.com/pbanos/treehash/codestore"
	"github.com/pbanos/treehash/semhash"
	"github.com/pbanos/treehash/vocab"
	"github.com/spf13/cobra"
)

type modelFlags struct {
	vocabFlags
	checkpointInput string
	input           string
	srcInput        string
}

func (mf *modelFlags) Validate() error {
	if mf.checkpointInput == "" {
		return fmt.Errorf("required checkpoint flag was not set")
	}
	if mf.input == "" {
		return fmt.Errorf("required input flag was not set")
	}
	return mf.vocabFlags.Validate()
}

func (mf *modelFlags) addFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(&(mf.checkpointInput), "checkpoint", "k", "", "path to the checkpoint of the model (required)")
	cmd.PersistentFlags().StringVarP(&(mf.input), "input", "i", "", "path to a file with a tree per line, or a MongoDB connection URL (required)")
	cmd.PersistentFlags().StringVar(&(mf.srcInput), "src", "", "path to a file with the source sentence of every tree")
	cmd.PersistentFlags().StringVar(&(mf.vocabInput), "vocab", "", "path to a plain or YML (.yml) label vocabulary (required)")
	cmd.PersistentFlags().StringVar(&(mf.srcVocabInput), "src-vocab", "", "path to a plain or YML (.yml) source vocabulary")
}

/*
loadModel reads the checkpoint and the vocabularies and returns the
model of the checkpoint and the vocabularies, the source one being
nil unless the model uses sources.
*/
func (mf *modelFlags) loadModel() (*treehash.Autoencoder, *vocab.Vocabulary, *vocab.Vocabulary, error) {
	cp, err := checkpoint.ReadFile(mf.checkpointInput)
	if err != nil {
		return nil, nil, nil, err
	}
	v, srcV, err := mf.load(cp.Config)
	if err != nil {
		return nil, nil, nil, err
	}
	var srcSize int
	if srcV != nil {
		srcSize = srcV.Size()
	}
	model, err := treehash.New(cp.Config, v.Size(), srcSize, rand.New(rand.NewSource(cp.Config.Seed)))
	if err != nil {
		return nil, nil, nil, err
	}
	err = model.Restore(cp.Parameters())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading checkpoint %s: %v", mf.checkpointInput, err)
	}
	return model, v, srcV, nil
}

type encodeCmdConfig struct {
	*rootCmdConfig
	modelFlags
	storeURL string
	output   string
	workers  int
	withRepr bool
}

func encodeCmd(rootConfig *rootCmdConfig) *cobra.Command {
	config := &encodeCmdConfig{rootCmdConfig: rootConfig}
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode a set of trees into codes",
		Long:  `Encode a set of trees into codes with a trained model, writing a code token per tree in input order and, optionally, storing the codes and representations in a database.`,
		Run: func(cmd *cobra.Command, args []string) {
			err := config.Validate()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			model, v, srcV, err := config.loadModel()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(2)
			}
			ds, closeDataset, err := openDataset(config.Context(), config.input, config.srcInput, newLoader(model.Config, v, srcV))
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(3)
			}
			defer closeDataset()
			store, err := openStore(config.Context(), config.storeURL)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(4)
			}
			defer store.Close(config.Context())
			config.Logf("Encoding with %d workers...", config.workers)
			_, err = treehash.EncodeAll(config.Context(), model, ds, store, config.workers, config)
			if err != nil {
				fmt.Fprintf(os.Stderr, "encoding: %v\n", err)
				os.Exit(5)
			}
			records, err := store.List(config.Context())
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(6)
			}
			err = config.writeRecords(records)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(7)
			}
			config.Logf("Done")
		},
	}
	config.addFlags(cmd)
	cmd.PersistentFlags().StringVarP(&(config.storeURL), "store", "s", "", "SQLite3 file (.db), PostgreSQL (postgresql://...) or redis (redis://host:port/db?prefix=...) URL of a database where records are stored (defaults to memory)")
	cmd.PersistentFlags().StringVarP(&(config.output), "output", "o", "", "path to a file to which a code token per tree will be written (defaults to STDOUT)")
	cmd.PersistentFlags().IntVarP(&(config.workers), "workers", "w", runtime.NumCPU(), "number of trees batches encoded concurrently")
	cmd.PersistentFlags().BoolVar(&(config.withRepr), "repr", false, "write the representation of every tree after its code token")
	return cmd
}

func (ecc *encodeCmdConfig) writeRecords(records []*codestore.Record) error {
	f, err := outputFile(ecc.output)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	for _, r := range records {
		w.WriteString(semhash.CodeToken(r.Code))
		if ecc.withRepr {
			for _, x := range r.Repr {
				w.WriteByte(' ')
				w.WriteString(strconv.FormatFloat(float64(x), 'g', 6, 32))
			}
		}
		w.WriteByte('\n')
	}
	return w.Flush()
}
