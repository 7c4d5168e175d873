package main

import (
	"bufio"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/pbanos/treehash/semhash"
	"github.com/spf13/cobra"
)

type sampleCmdConfig struct {
	*rootCmdConfig
	count int
	first int
	last  int
	seed  int64
}

func sampleCmd(rootConfig *rootCmdConfig) *cobra.Command {
	config := &sampleCmdConfig{rootCmdConfig: rootConfig}
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Print random code tokens",
		Long:  `Print code tokens drawn uniformly from a range of codes, first and last included, one per line.`,
		Run: func(cmd *cobra.Command, args []string) {
			if config.last < config.first || config.first < 0 {
				fmt.Fprintf(os.Stderr, "invalid code range [%d, %d]\n", config.first, config.last)
				os.Exit(1)
			}
			if !cmd.Flags().Changed("seed") {
				config.seed = time.Now().UnixNano()
			}
			w := bufio.NewWriter(os.Stdout)
			for _, code := range sampleCodes(rand.New(rand.NewSource(config.seed)), config.count, config.first, config.last) {
				fmt.Fprintln(w, semhash.CodeToken(code))
			}
			w.Flush()
		},
	}
	cmd.Flags().IntVarP(&(config.count), "count", "n", 1, "number of codes to print")
	cmd.Flags().IntVar(&(config.first), "first", 0, "first code of the range")
	cmd.Flags().IntVar(&(config.last), "last", 255, "last code of the range")
	cmd.Flags().Int64Var(&(config.seed), "seed", 0, "seed of the random source (defaults to the current time)")
	return cmd
}

// sampleCodes returns n codes drawn uniformly from [first, last]
func sampleCodes(r *rand.Rand, n, first, last int) []int {
	codes := make([]int, n)
	for i := range codes {
		codes[i] = first + r.Intn(last-first+1)
	}
	return codes
}
