package config

import "github.com/spf13/pflag"

// EvaluateConfig holds configuration for the evaluate command.
type EvaluateConfig struct {
	Market
	Snapshot string
	Borrower string
	Out      string
	PGDSN    string
}

// LoadEvaluate merges config file, environment variables, and flags into EvaluateConfig.
func LoadEvaluate(cfgFile string, flags *pflag.FlagSet) (EvaluateConfig, error) {
	v, err := newViper(cfgFile, flags, nil)
	if err != nil {
		return EvaluateConfig{}, err
	}

	borrower := ""
	if borrowers := getStringSlice(v, "borrower"); len(borrowers) > 0 {
		borrower = borrowers[0]
	}

	return EvaluateConfig{
		Market:   loadMarket(v),
		Snapshot: v.GetString("snapshot"),
		Borrower: borrower,
		Out:      v.GetString("out"),
		PGDSN:    v.GetString("pg-dsn"),
	}, nil
}
