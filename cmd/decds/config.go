package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// configFile is looked up in the working directory. Flags override it.
const configFile = "decds.yaml"

// fileConfig holds optional defaults for all subcommands.
type fileConfig struct {
	// Workers bounds chunkset-level parallelism. Zero means one per CPU.
	Workers int `yaml:"workers"`
	// Seed keys the coding RNG. Zero means a random seed per run.
	Seed uint64 `yaml:"seed"`
	// Output is the default target directory.
	Output string `yaml:"output"`
}

func loadConfig() (fileConfig, error) {
	var cfg fileConfig

	b, err := os.ReadFile(configFile)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read %s: %w", configFile, err)
	}
	if err := yaml.UnmarshalStrict(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", configFile, err)
	}
	return cfg, nil
}
