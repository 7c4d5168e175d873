package main

import (
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/pbanos/treehash/semhash"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

type statsCmdConfig struct {
	*rootCmdConfig
	input     string
	storeURL  string
	histogram bool
	bits      int
}

// codeStats summarizes how a set of trees spreads over the codes
type codeStats struct {
	Total      int
	Distinct   int
	Counts     map[int]int
	Entropy    float64
	Perplexity float64
	// BitRates holds the fraction of codes with each bit set,
	// least significant first
	BitRates []float64
}

func statsCmd(rootConfig *rootCmdConfig) *cobra.Command {
	config := &statsCmdConfig{rootCmdConfig: rootConfig}
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Describe the distribution of codes",
		Long:  `Report the number of distinct codes, the entropy in bits and the perplexity of the codes given to a set of trees, read from a codes file or a store.`,
		Run: func(cmd *cobra.Command, args []string) {
			if (config.input == "") == (config.storeURL == "") {
				fmt.Fprintln(os.Stderr, "exactly one of the input and store flags must be set")
				os.Exit(1)
			}
			codes, err := config.codes()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(2)
			}
			if len(codes) == 0 {
				fmt.Fprintln(os.Stderr, "no codes to describe")
				os.Exit(3)
			}
			s := describeCodes(codes, config.bits)
			fmt.Printf("Total %d Distinct %d Entropy %.3f bits Perplexity %.3f\n", s.Total, s.Distinct, s.Entropy, s.Perplexity)
			for i, rate := range s.BitRates {
				fmt.Printf("Bit %d set in %.1f%%\n", i, 100*rate)
			}
			if config.histogram {
				keys := make([]int, 0, len(s.Counts))
				for code := range s.Counts {
					keys = append(keys, code)
				}
				sort.Ints(keys)
				for _, code := range keys {
					fmt.Printf("%d\t%d\n", code, s.Counts[code])
				}
			}
		},
	}
	cmd.Flags().StringVarP(&(config.input), "input", "i", "", "path to a file of code tokens, one per line")
	cmd.Flags().StringVarP(&(config.storeURL), "store", "s", "", "URL of a code store (redis://, postgresql:// or a path to a .db sqlite3 file)")
	cmd.Flags().BoolVar(&(config.histogram), "histogram", false, "print the number of trees per code")
	cmd.Flags().IntVar(&(config.bits), "bits", 0, "number of bits of the codes (defaults to the fewest that hold the largest code)")
	return cmd
}

func (scc *statsCmdConfig) codes() ([]int, error) {
	if scc.input != "" {
		return readCodes(scc.input)
	}
	ctx := scc.Context()
	store, err := openStore(ctx, scc.storeURL)
	if err != nil {
		return nil, err
	}
	defer store.Close(ctx)
	records, err := store.List(ctx)
	if err != nil {
		return nil, err
	}
	codes := make([]int, len(records))
	for i, r := range records {
		codes[i] = r.Code
	}
	return codes, nil
}

/*
describeCodes takes codes and their number of bits, 0 to infer it
from the largest code, and returns their statistics.
*/
func describeCodes(codes []int, bits int) *codeStats {
	s := &codeStats{Total: len(codes), Counts: make(map[int]int)}
	for _, c := range codes {
		s.Counts[c]++
	}
	s.Distinct = len(s.Counts)
	if s.Total == 0 {
		return s
	}
	p := make([]float64, 0, len(s.Counts))
	for _, n := range s.Counts {
		p = append(p, float64(n))
	}
	floats.Scale(1/floats.Sum(p), p)
	s.Entropy = stat.Entropy(p) / math.Ln2
	s.Perplexity = math.Exp2(s.Entropy)
	if bits <= 0 {
		bits = 1
		for _, c := range codes {
			for c>>uint(bits) > 0 {
				bits++
			}
		}
	}
	s.BitRates = make([]float64, bits)
	for code, n := range s.Counts {
		for i, b := range semhash.IntToBits(code, bits, 2) {
			s.BitRates[i] += float64(b * n)
		}
	}
	floats.Scale(1/float64(s.Total), s.BitRates)
	return s
}
