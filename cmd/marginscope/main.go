package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "marginscope",
		Short:        "Margin account solvency and liquidation thresholds",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	evaluateCmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate one account from a snapshot file or from chain",
		RunE:  runEvaluate,
	}

	marketFlags(evaluateCmd.Flags())
	evaluateCmd.Flags().String("snapshot", "", "account snapshot JSON file (skips RPC)")
	evaluateCmd.Flags().String("borrower", "", "borrower account address")
	evaluateCmd.Flags().String("out", "", "optional JSONL path to append the evaluation to")
	evaluateCmd.Flags().String("pg-dsn", "", "optional Postgres DSN")

	root.AddCommand(evaluateCmd)

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Periodically re-evaluate borrowers and publish the results",
		RunE:  runWatch,
	}

	marketFlags(watchCmd.Flags())
	watchCmd.Flags().StringSlice("borrower", nil, "borrower account addresses (comma-separated)")
	watchCmd.Flags().Duration("interval", time.Minute, "time between cycles")
	watchCmd.Flags().Int("concurrency", 4, "accounts read in parallel")
	watchCmd.Flags().String("out", "./data/evaluations.jsonl", "output JSONL path, empty to disable")
	watchCmd.Flags().String("pg-dsn", "", "optional Postgres DSN")
	watchCmd.Flags().String("metrics-addr", "", "Prometheus listen address (e.g. :9100)")

	root.AddCommand(watchCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func marketFlags(flags *pflag.FlagSet) {
	flags.String("rpc", "", "RPC URL")
	flags.String("pool", "", "Uniswap V3 pool address")
	flags.String("lender0", "", "token0 lender address")
	flags.String("lender1", "", "token1 lender address")
	flags.String("sigma", "0.05", "volatility estimate")
	flags.Bool("include-interest-bearing", false, "count lender shares as collateral and widen the probes")
	flags.Int("iterations", 30, "bisection steps per threshold")
	flags.Int("max-retries", 5, "maximum retry attempts")
	flags.Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
