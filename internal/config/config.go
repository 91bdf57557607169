// Package config implements redisd's Config struct and YAML file loading,
// following database.ParseGeneratorConfig's read-file-then-decode-with-
// KnownFields pattern (SPEC_FULL.md §1).
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the server's full startup configuration: bind address, password,
// database count, and the two persistence/replication knobs (spec.md §9's
// "shared process state").
type Config struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	Password     string `yaml:"password"`
	Databases    int    `yaml:"databases"`
	SnapshotPath string `yaml:"snapshot_path"`
	ReplicaOf    string `yaml:"replica_of"`
}

// Default matches the original's out-of-the-box server.cpp defaults: all
// interfaces, port 6379, 16 databases, no password, no persistence.
func Default() Config {
	return Config{
		Host:      "0.0.0.0",
		Port:      6379,
		Databases: 16,
	}
}

// ParseFile loads a YAML config file, rejecting unknown keys the same way
// database.ParseGeneratorConfig does via yaml.Decoder.KnownFields(true).
func ParseFile(path string) (Config, error) {
	if path == "" {
		return Config{}, nil
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(buf))
	dec.KnownFields(true)
	var c Config
	if err := dec.Decode(&c); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return c, nil
}

// Merge layers override on top of base, field by field, with override's
// non-zero-value fields taking precedence — mirroring
// database.MergeGeneratorConfig's merge-by-zero-value convention, which is
// exactly how cmd/redisd's CLI flags take precedence over a --config file.
func Merge(base, override Config) Config {
	result := base
	if override.Host != "" {
		result.Host = override.Host
	}
	if override.Port != 0 {
		result.Port = override.Port
	}
	if override.Password != "" {
		result.Password = override.Password
	}
	if override.Databases != 0 {
		result.Databases = override.Databases
	}
	if override.SnapshotPath != "" {
		result.SnapshotPath = override.SnapshotPath
	}
	if override.ReplicaOf != "" {
		result.ReplicaOf = override.ReplicaOf
	}
	return result
}
