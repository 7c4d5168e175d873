package main

import (
	"fmt"
	"os"

	"github.com/pbanos/treehash/dataset"
	"github.com/pbanos/treehash/dataset/textdataset"
	"github.com/pbanos/treehash/tree"
	"github.com/pbanos/treehash/vocab"
	"github.com/spf13/cobra"
)

type vocabCmdConfig struct {
	*rootCmdConfig
	output string
}

func vocabCmd(rootConfig *rootCmdConfig) *cobra.Command {
	config := &vocabCmdConfig{rootCmdConfig: rootConfig}
	cmd := &cobra.Command{
		Use:   "vocab",
		Short: "Manage label vocabularies",
		Long:  `Manage the vocabularies that give ids to the labels of trees`,
	}
	cmd.PersistentFlags().StringVarP(&(config.output), "output", "o", "", "path to the file to which the vocabulary is written, in YML if it ends in .yml or .yaml and plain otherwise")
	cmd.AddCommand(vocabBuildCmd(config), vocabAddCodesCmd(config))
	return cmd
}

type vocabBuildCmdConfig struct {
	*vocabCmdConfig
	input      string
	minCount   int
	keepLeaves bool
}

func vocabBuildCmd(vocabConfig *vocabCmdConfig) *cobra.Command {
	config := &vocabBuildCmdConfig{vocabCmdConfig: vocabConfig}
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build a vocabulary from a set of trees",
		Long:  `Build the vocabulary of the labels found in a file of trees, the most frequent first.`,
		Run: func(cmd *cobra.Command, args []string) {
			err := config.Validate()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			loader := &dataset.Loader{KeepLeaves: config.keepLeaves, Logger: logger(true)}
			samples, err := dataset.Samples(config.Context(), textdataset.New(config.input, "", loader))
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(2)
			}
			trees := make([]*tree.Tree, len(samples))
			for i, s := range samples {
				trees[i] = s.Tree
			}
			v := vocab.Build(trees, config.minCount)
			config.Logf("Built a vocabulary of %d labels from %d trees", v.Size(), len(trees))
			err = v.WriteFile(config.output)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(3)
			}
		},
	}
	cmd.Flags().StringVarP(&(config.input), "input", "i", "", "path to a file with a tree per line (required)")
	cmd.Flags().IntVar(&(config.minCount), "min-count", 1, "minimum number of occurrences of a label to be in the vocabulary")
	cmd.Flags().BoolVar(&(config.keepLeaves), "keep-leaves", false, "include the lexical leaves of the trees")
	return cmd
}

func (vbcc *vocabBuildCmdConfig) Validate() error {
	if vbcc.input == "" {
		return fmt.Errorf("required input flag was not set")
	}
	if vbcc.output == "" {
		return fmt.Errorf("required output flag was not set")
	}
	return nil
}

type vocabAddCodesCmdConfig struct {
	*vocabCmdConfig
	vocabInput string
	number     int
}

func vocabAddCodesCmd(vocabConfig *vocabCmdConfig) *cobra.Command {
	config := &vocabAddCodesCmdConfig{vocabCmdConfig: vocabConfig}
	cmd := &cobra.Command{
		Use:   "add-codes",
		Short: "Add code tokens to a vocabulary",
		Long:  `Add the code tokens <cl0> to <clN-1> to a vocabulary, with ids following its last one.`,
		Run: func(cmd *cobra.Command, args []string) {
			if config.vocabInput == "" || config.number <= 0 {
				fmt.Fprintln(os.Stderr, "required vocab and number flags were not set")
				os.Exit(1)
			}
			v, err := vocab.ReadFile(config.vocabInput)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(2)
			}
			tokens := v.AddCodes(config.number)
			config.Logf("Added %s to %s", fmt.Sprintf("%s...%s", tokens[0], tokens[len(tokens)-1]), config.vocabInput)
			output := config.output
			if output == "" {
				output = config.vocabInput
			}
			err = v.WriteFile(output)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(3)
			}
		},
	}
	cmd.Flags().StringVar(&(config.vocabInput), "vocab", "", "path to a plain or YML (.yml) vocabulary (required)")
	cmd.Flags().IntVarP(&(config.number), "number", "n", 0, "number of codes to add (required)")
	return cmd
}
