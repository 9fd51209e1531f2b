package config

import (
	"time"

	"github.com/spf13/pflag"
)

// WatchConfig holds configuration for the watch command.
type WatchConfig struct {
	Market
	Borrowers   []string
	Interval    time.Duration
	Concurrency int
	Out         string
	PGDSN       string
	MetricsAddr string
}

// LoadWatch merges config file, environment variables, and flags into WatchConfig.
func LoadWatch(cfgFile string, flags *pflag.FlagSet) (WatchConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"interval":    time.Minute,
		"concurrency": 4,
		"out":         "./data/evaluations.jsonl",
	})
	if err != nil {
		return WatchConfig{}, err
	}

	return WatchConfig{
		Market:      loadMarket(v),
		Borrowers:   getStringSlice(v, "borrower"),
		Interval:    v.GetDuration("interval"),
		Concurrency: v.GetInt("concurrency"),
		Out:         v.GetString("out"),
		PGDSN:       v.GetString("pg-dsn"),
		MetricsAddr: v.GetString("metrics-addr"),
	}, nil
}
