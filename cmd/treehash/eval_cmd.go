package main

import (
	"fmt"
	"os"

	"github.com/pbanos/treehash"
	"github.com/spf13/cobra"
)

type evalCmdConfig struct {
	*rootCmdConfig
	modelFlags
}

func evalCmd(rootConfig *rootCmdConfig) *cobra.Command {
	config := &evalCmdConfig{rootCmdConfig: rootConfig}
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Evaluate a model on a set of trees",
		Long:  `Evaluate how well a trained model reconstructs a set of trees, printing the mean loss per tree and the accuracy over every node.`,
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
			ev, err := treehash.Evaluate(config.Context(), model, ds, model.Config.BatchSize, config)
			if err != nil {
				fmt.Fprintf(os.Stderr, "evaluating: %v\n", err)
				os.Exit(4)
			}
			fmt.Printf("Loss %.3f ACC %.3f (%d/%d)\n", ev.Loss, ev.Accuracy, ev.Correct, ev.Total)
		},
	}
	config.addFlags(cmd)
	return cmd
}
