package main

import (
	"bufio"
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/pbanos/treehash/codestore"
	"github.com/pbanos/treehash/codestore/json"
	"github.com/pbanos/treehash/codestore/redisstore"
	"github.com/pbanos/treehash/codestore/sqlstore"
	"github.com/pbanos/treehash/codestore/sqlstore/pgadapter"
	"github.com/pbanos/treehash/codestore/sqlstore/sqlite3adapter"
	"github.com/pbanos/treehash/config"
	"github.com/pbanos/treehash/dataset"
	"github.com/pbanos/treehash/dataset/mongodataset"
	"github.com/pbanos/treehash/dataset/textdataset"
	"github.com/pbanos/treehash/semhash"
	"github.com/pbanos/treehash/vocab"
	mgo "gopkg.in/mgo.v2"
	"gopkg.in/redis.v5"
)

// defaultRedisPrefix is the key prefix of records in a redis store
// whose URL does not set one
const defaultRedisPrefix = "treehash:codes"

type vocabFlags struct {
	vocabInput    string
	srcVocabInput string
}

func (vf *vocabFlags) Validate() error {
	if vf.vocabInput == "" {
		return fmt.Errorf("required vocab flag was not set")
	}
	return nil
}

/*
load reads the label vocabulary and, if the configuration uses
sources, the source vocabulary.
*/
func (vf *vocabFlags) load(cfg *config.Config) (*vocab.Vocabulary, *vocab.Vocabulary, error) {
	v, err := vocab.ReadFile(vf.vocabInput)
	if err != nil {
		return nil, nil, err
	}
	if !cfg.UseSrc {
		return v, nil, nil
	}
	if vf.srcVocabInput == "" {
		return nil, nil, fmt.Errorf("the configuration uses sources but the src-vocab flag was not set")
	}
	srcV, err := vocab.ReadFile(vf.srcVocabInput)
	if err != nil {
		return nil, nil, err
	}
	return v, srcV, nil
}

// newLoader returns the loader of samples for a model with the
// given configuration and vocabularies, srcV being nil without
// sources. Skipped lines are always reported.
func newLoader(cfg *config.Config, v, srcV *vocab.Vocabulary) *dataset.Loader {
	l := &dataset.Loader{
		Vocabulary: v,
		DepthLimit: cfg.MaxDepth,
		SizeLimit:  cfg.MaxTreeSize,
		SrcLimit:   cfg.MaxSrcLen,
		Logger:     logger(true),
	}
	if srcV != nil {
		l.SrcVocabulary = srcV
	}
	return l
}

/*
openDataset takes an input, either the path to a file of trees or
a MongoDB connection URL, the path of the file of their sources
and a loader, and returns a dataset over them and a function to
release it.
*/
func openDataset(ctx context.Context, input, srcInput string, loader *dataset.Loader) (dataset.Dataset, func(), error) {
	if strings.HasPrefix(input, "mongodb://") {
		session, err := mgo.Dial(input)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to %s: %v", input, err)
		}
		ds, err := mongodataset.Open(ctx, session, loader)
		if err != nil {
			session.Close()
			return nil, nil, fmt.Errorf("opening dataset at %s: %v", input, err)
		}
		return ds, session.Close, nil
	}
	return textdataset.New(input, srcInput, loader), func() {}, nil
}

/*
openStore takes a store URL and returns the code store it points
to: an SQLite3 file (.db), a PostgreSQL database
(postgresql://...), a redis DB (redis://[:password@]host:port[/db][?prefix=...])
or, if empty, the process memory.
*/
func openStore(ctx context.Context, storeURL string) (codestore.Store, error) {
	switch {
	case storeURL == "":
		return codestore.NewMemoryStore(), nil
	case strings.HasPrefix(storeURL, "postgresql://") || strings.HasPrefix(storeURL, "postgres://"):
		a, err := pgadapter.New(storeURL)
		if err != nil {
			return nil, err
		}
		return sqlstore.New(ctx, a)
	case strings.HasPrefix(storeURL, "redis://"):
		return openRedisStore(storeURL)
	case strings.HasSuffix(storeURL, ".db"):
		a, err := sqlite3adapter.New(storeURL)
		if err != nil {
			return nil, err
		}
		return sqlstore.New(ctx, a)
	}
	return nil, fmt.Errorf("unknown kind of store %q", storeURL)
}

func openRedisStore(storeURL string) (codestore.Store, error) {
	opts, prefix, err := redisOptions(storeURL)
	if err != nil {
		return nil, err
	}
	return redisstore.New(redis.NewClient(opts), prefix, json.New()), nil
}

func redisOptions(storeURL string) (*redis.Options, string, error) {
	u, err := url.Parse(storeURL)
	if err != nil {
		return nil, "", fmt.Errorf("parsing redis URL: %v", err)
	}
	opts := &redis.Options{Addr: u.Host}
	if u.User != nil {
		opts.Password, _ = u.User.Password()
	}
	if db := strings.Trim(u.Path, "/"); db != "" {
		opts.DB, err = strconv.Atoi(db)
		if err != nil {
			return nil, "", fmt.Errorf("parsing redis DB number %q: %v", db, err)
		}
	}
	prefix := u.Query().Get("prefix")
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return opts, prefix, nil
}

// readCodes reads the code tokens at the start of every line of
// the file at path
func readCodes(path string) ([]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening codes file: %v", err)
	}
	defer f.Close()
	var codes []int
	scanner := bufio.NewScanner(f)
	for line := 1; scanner.Scan(); line++ {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		code, ok := semhash.ParseCodeToken(fields[0])
		if !ok {
			return nil, fmt.Errorf("line %d of %s holds no code token: %q", line, path, fields[0])
		}
		codes = append(codes, code)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading codes file: %v", err)
	}
	return codes, nil
}

// outputFile returns the file at path, created, or STDOUT if path
// is empty
func outputFile(path string) (*os.File, error) {
	if path == "" {
		return os.Stdout, nil
	}
	return os.Create(path)
}
