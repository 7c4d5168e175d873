package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/pbanos/treehash/tree"
	"github.com/spf13/cobra"
)

type pruneCmdConfig struct {
	*rootCmdConfig
	input        string
	output       string
	depth        int
	removeLeaves bool
	outline      bool
}

func pruneCmd(rootConfig *rootCmdConfig) *cobra.Command {
	config := &pruneCmdConfig{rootCmdConfig: rootConfig}
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Prune a set of trees",
		Long:  `Prune a set of trees in bracketed notation, one per line, removing their lexical leaves and everything below a depth. A line that cannot be parsed is reported and written out empty, so the output stays aligned with the input.`,
		Run: func(cmd *cobra.Command, args []string) {
			in := os.Stdin
			if config.input != "" {
				f, err := os.Open(config.input)
				if err != nil {
					fmt.Fprintf(os.Stderr, "opening %s: %v\n", config.input, err)
					os.Exit(1)
				}
				defer f.Close()
				in = f
			}
			out, err := outputFile(config.output)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(2)
			}
			defer out.Close()
			n, err := config.prune(in, out)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(3)
			}
			config.Logf("Pruned %d trees", n)
		},
	}
	cmd.PersistentFlags().StringVarP(&(config.input), "input", "i", "", "path to a file with a tree per line (defaults to STDIN)")
	cmd.PersistentFlags().StringVarP(&(config.output), "output", "o", "", "path to a file to which the pruned trees will be written (defaults to STDOUT)")
	cmd.PersistentFlags().IntVarP(&(config.depth), "depth", "d", -1, "depth below which nodes are removed (defaults to -1: no limit)")
	cmd.PersistentFlags().BoolVarP(&(config.removeLeaves), "remove-leaves", "r", false, "remove the lexical leaves of the trees")
	cmd.PersistentFlags().BoolVar(&(config.outline), "outline", false, "draw each pruned tree as an outline, one node per line, for inspection")
	return cmd
}

/*
prune reads trees from r, one per line, and writes them pruned to
w. It returns the number of trees pruned.
*/
func (pcc *pruneCmdConfig) prune(r io.Reader, w io.Writer) (int, error) {
	var n int
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	bw := bufio.NewWriter(w)
	for line := 1; scanner.Scan(); line++ {
		t, err := tree.Parse(scanner.Text(), tree.Unlimited, tree.Unlimited)
		if err != nil {
			logger(true).Logf("skipping line %d: %v", line, err)
			bw.WriteByte('\n')
			continue
		}
		pruned := tree.Prune(t, pcc.depth, pcc.removeLeaves)
		if pcc.outline {
			fmt.Fprintln(bw, pruned.Outline())
		} else {
			fmt.Fprintln(bw, pruned)
		}
		n++
	}
	if err := scanner.Err(); err != nil {
		return n, fmt.Errorf("reading trees: %v", err)
	}
	return n, bw.Flush()
}
