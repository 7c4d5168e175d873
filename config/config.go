/*
Package config holds the hyper-parameters of a tree autoencoder and
of its training, with their defaults, and reads them from YAML
documents.
*/
package config

import (
	"fmt"
	"io/ioutil"

	"github.com/pbanos/treehash/tree"
	yaml "gopkg.in/yaml.v2"
)

// Tying modes for the output projection and the label embedding
const (
	TieAuto   = "auto"
	TieAlways = "always"
	TieNever  = "never"
)

// Config holds every hyper-parameter of a model and its training
type Config struct {
	// Model
	InputDim       int     `yaml:"input_dim"`
	MemDim         int     `yaml:"mem_dim"`
	MaxNumChildren int     `yaml:"max_num_children"`
	BitNumber      int     `yaml:"bit_number"`
	FilterSize     int     `yaml:"filter_size"`
	StartupSize    int     `yaml:"startup_size"`
	NoiseDev       float64 `yaml:"noise_dev"`
	DiscreteMix    float64 `yaml:"discrete_mix"`
	UseBottleneck  bool    `yaml:"use_bottleneck"`
	TieEmbeddings  string  `yaml:"tie_embeddings"`
	UseSrc         bool    `yaml:"use_src"`
	NumLayer       int     `yaml:"num_layer"`
	NumHead        int     `yaml:"num_head"`
	AtnDropout     float64 `yaml:"atn_dp"`

	// Data
	MaxDepth    int `yaml:"max_depth"`
	MaxTreeSize int `yaml:"max_tree_size"`
	MaxSrcLen   int `yaml:"max_src_len"`

	// Training
	Epochs     int     `yaml:"epochs"`
	BatchSize  int     `yaml:"batchsize"`
	BufferSize int     `yaml:"buffersize"`
	NumGradAgg int     `yaml:"num_grad_agg"`
	LR         float64 `yaml:"lr"`
	WD         float64 `yaml:"wd"`
	Optim      string  `yaml:"optim"`
	Seed       int64   `yaml:"seed"`
	DispFreq   int     `yaml:"disp_freq"`
	SaveFreq   int     `yaml:"save_freq"`
}

// Default returns the configuration with every parameter at its
// default value
func Default() *Config {
	return &Config{
		InputDim:       256,
		MemDim:         256,
		MaxNumChildren: 10,
		BitNumber:      8,
		FilterSize:     2048,
		StartupSize:    10000,
		NoiseDev:       0.5,
		DiscreteMix:    0.5,
		UseBottleneck:  true,
		TieEmbeddings:  TieAuto,
		NumLayer:       4,
		NumHead:        4,
		AtnDropout:     0.1,
		MaxDepth:       tree.Unlimited,
		MaxTreeSize:    tree.Unlimited,
		MaxSrcLen:      tree.Unlimited,
		Epochs:         15,
		BatchSize:      25,
		BufferSize:     1024,
		NumGradAgg:     1,
		LR:             0.01,
		WD:             1e-4,
		Optim:          "adagrad",
		Seed:           123,
		DispFreq:       1,
		SaveFreq:       5000,
	}
}

// ConfigurationError is returned for a configuration that cannot
// build or train a model
type ConfigurationError struct {
	Field  string
	Reason string
}

func (ce *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration of %s: %s", ce.Field, ce.Reason)
}

/*
Validate returns a *ConfigurationError describing the first
invalid parameter of the configuration, or nil.
*/
func (c *Config) Validate() error {
	positives := []struct {
		field string
		value int
	}{
		{"input_dim", c.InputDim},
		{"mem_dim", c.MemDim},
		{"max_num_children", c.MaxNumChildren},
		{"bit_number", c.BitNumber},
		{"filter_size", c.FilterSize},
		{"max_depth", c.MaxDepth},
		{"max_tree_size", c.MaxTreeSize},
		{"max_src_len", c.MaxSrcLen},
		{"epochs", c.Epochs},
		{"batchsize", c.BatchSize},
		{"buffersize", c.BufferSize},
		{"num_grad_agg", c.NumGradAgg},
		{"disp_freq", c.DispFreq},
		{"save_freq", c.SaveFreq},
	}
	for _, p := range positives {
		if p.value <= 0 {
			return &ConfigurationError{p.field, fmt.Sprintf("must be positive, got %d", p.value)}
		}
	}
	if c.BitNumber > 62 {
		return &ConfigurationError{"bit_number", fmt.Sprintf("codes of %d bits do not fit an integer", c.BitNumber)}
	}
	if c.StartupSize < 0 {
		return &ConfigurationError{"startup_size", "must not be negative"}
	}
	if c.NoiseDev < 0 {
		return &ConfigurationError{"noise_dev", "must not be negative"}
	}
	if c.DiscreteMix < 0 || c.DiscreteMix > 1 {
		return &ConfigurationError{"discrete_mix", fmt.Sprintf("must be a probability, got %v", c.DiscreteMix)}
	}
	if c.UseSrc {
		if c.NumLayer < 0 {
			return &ConfigurationError{"num_layer", "must not be negative"}
		}
		if c.NumHead <= 0 || c.MemDim%c.NumHead != 0 {
			return &ConfigurationError{"num_head", fmt.Sprintf("%d heads do not divide mem_dim %d", c.NumHead, c.MemDim)}
		}
		if c.AtnDropout < 0 || c.AtnDropout >= 1 {
			return &ConfigurationError{"atn_dp", fmt.Sprintf("must be a probability below 1, got %v", c.AtnDropout)}
		}
	}
	if c.LR <= 0 {
		return &ConfigurationError{"lr", "must be positive"}
	}
	if c.WD < 0 {
		return &ConfigurationError{"wd", "must not be negative"}
	}
	switch c.Optim {
	case "adagrad", "adam", "sgd":
	default:
		return &ConfigurationError{"optim", fmt.Sprintf("unknown optimization method %q", c.Optim)}
	}
	if _, err := c.TieOutput(); err != nil {
		return err
	}
	return nil
}

/*
TieOutput returns whether the output projection shares its weights
with the label embedding: always when the embedding and state
dimensions match under the auto mode. It returns a
*ConfigurationError when tying is required with different
dimensions or the mode is unknown.
*/
func (c *Config) TieOutput() (bool, error) {
	switch c.TieEmbeddings {
	case TieAuto, "":
		return c.InputDim == c.MemDim, nil
	case TieNever:
		return false, nil
	case TieAlways:
		if c.InputDim != c.MemDim {
			return false, &ConfigurationError{"tie_embeddings", fmt.Sprintf("input_dim %d differs from mem_dim %d", c.InputDim, c.MemDim)}
		}
		return true, nil
	}
	return false, &ConfigurationError{"tie_embeddings", fmt.Sprintf("unknown mode %q", c.TieEmbeddings)}
}

/*
Read takes a YAML document and returns the configuration it
describes, parameters it omits keeping their defaults. The result
is validated.
*/
func Read(data []byte) (*Config, error) {
	c := Default()
	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return nil, fmt.Errorf("parsing yml configuration: %v", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// ReadFile reads the file at path and returns the configuration
// Read parses from it
func ReadFile(path string) (*Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration file %s: %v", path, err)
	}
	c, err := Read(data)
	if err != nil {
		return nil, fmt.Errorf("loading configuration file %s: %w", path, err)
	}
	return c, nil
}

// Marshal returns the configuration as a YAML document
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
