/*
Package textdataset provides an implementation of dataset.Dataset
that reads trees in bracketed notation from a file, one per line,
and optionally the sentences they were parsed from from another
file, line by line.
*/
package textdataset

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/pbanos/treehash/dataset"
)

// MaxLineSize is the longest line the dataset can read
const MaxLineSize = 1 << 20

type textDataset struct {
	treePath string
	srcPath  string
	loader   *dataset.Loader
}

/*
New takes the path of a file of trees, the path of a file of
source sentences, empty if there is none, and a loader, and
returns a dataset with a sample per line of the tree file.

The id of a sample is the 0-based index of its line. A line that
cannot be parsed is skipped and reported through the loader, the
ids of the following lines being unaffected.
*/
func New(treePath, srcPath string, loader *dataset.Loader) dataset.Dataset {
	return &textDataset{treePath, srcPath, loader}
}

func (td *textDataset) Count(ctx context.Context) (int, error) {
	var count int
	err := td.scan(ctx, func(int, string, string) error {
		count++
		return nil
	})
	return count, err
}

func (td *textDataset) Read(ctx context.Context) (<-chan dataset.Sample, <-chan error) {
	samples := make(chan dataset.Sample)
	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		defer close(samples)
		err := td.scan(ctx, func(i int, treeLine, srcLine string) error {
			s, err := td.loader.Sample(i, i+1, treeLine, srcLine)
			if err != nil {
				td.loader.Skip(err)
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case samples <- s:
			}
			return nil
		})
		if err != nil {
			errs <- err
		}
	}()
	return samples, errs
}

func (td *textDataset) scan(ctx context.Context, f func(int, string, string) error) error {
	treeFile, err := os.Open(td.treePath)
	if err != nil {
		return fmt.Errorf("opening tree file: %v", err)
	}
	defer treeFile.Close()
	trees := newScanner(treeFile)
	var srcs *bufio.Scanner
	if td.srcPath != "" {
		srcFile, err := os.Open(td.srcPath)
		if err != nil {
			return fmt.Errorf("opening source file: %v", err)
		}
		defer srcFile.Close()
		srcs = newScanner(srcFile)
	}
	for i := 0; trees.Scan(); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		var src string
		if srcs != nil {
			if !srcs.Scan() {
				if err := srcs.Err(); err != nil {
					return fmt.Errorf("reading source file: %v", err)
				}
				return fmt.Errorf("source file %s ends before line %d of the tree file", td.srcPath, i+1)
			}
			src = srcs.Text()
		}
		if err := f(i, trees.Text(), src); err != nil {
			return err
		}
	}
	if err := trees.Err(); err != nil {
		return fmt.Errorf("reading tree file: %v", err)
	}
	return nil
}

func newScanner(f *os.File) *bufio.Scanner {
	s := bufio.NewScanner(f)
	s.Buffer(make([]byte, 64*1024), MaxLineSize)
	return s
}
