package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/deepnoodle-ai/sme/compiler"
)

// Config is the build configuration, read from flags, the environment
// (SME_ prefix) and an optional sme.yaml file, in that order of precedence.
type Config struct {
	Entry     string
	OutputDir string
	Level     int
	SourceMap bool
	Workers   int
	CacheDir  string
	LogLevel  string
	LogJSON   bool
	NoColor   bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("build.entry", "")
	v.SetDefault("build.output_dir", "dist")
	v.SetDefault("build.optimization_level", "release")
	v.SetDefault("build.source_map", false)
	v.SetDefault("build.workers", 0)
	v.SetDefault("build.cache_dir", "")
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.json", false)
	v.SetDefault("no-color", false)
}

// parseLevel accepts a numeric optimization level or one of the names
// "debug" (0) and "release" (the highest level).
func parseLevel(s string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return 0, nil
	case "release", "":
		return compiler.MaxLevel, nil
	}
	level, err := strconv.Atoi(s)
	if err != nil || level < 0 || level > compiler.MaxLevel {
		return 0, fmt.Errorf("invalid optimization level %q (valid: 0-%d, debug, release)", s, compiler.MaxLevel)
	}
	return level, nil
}

// loadConfig reads and validates the configuration.
func loadConfig(v *viper.Viper) (*Config, error) {
	level, err := parseLevel(v.GetString("build.optimization_level"))
	if err != nil {
		return nil, err
	}
	cfg := &Config{
		Entry:     v.GetString("build.entry"),
		OutputDir: v.GetString("build.output_dir"),
		Level:     level,
		SourceMap: v.GetBool("build.source_map"),
		Workers:   v.GetInt("build.workers"),
		CacheDir:  v.GetString("build.cache_dir"),
		LogLevel:  v.GetString("log.level"),
		LogJSON:   v.GetBool("log.json"),
		NoColor:   v.GetBool("no-color"),
	}
	if strings.TrimSpace(cfg.OutputDir) == "" {
		return nil, fmt.Errorf("output directory must not be empty")
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("invalid worker count %d", cfg.Workers)
	}
	if cfg.OutputDir, err = homedir.Expand(cfg.OutputDir); err != nil {
		return nil, err
	}
	if cfg.CacheDir, err = homedir.Expand(cfg.CacheDir); err != nil {
		return nil, err
	}
	if cfg.Entry, err = homedir.Expand(cfg.Entry); err != nil {
		return nil, err
	}
	return cfg, nil
}
