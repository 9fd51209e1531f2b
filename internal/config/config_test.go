package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
)

func watchFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("watch", pflag.ContinueOnError)
	flags.StringSlice("borrower", nil, "")
	flags.String("pool", "", "")
	flags.String("sigma", "0.05", "")
	flags.Duration("interval", time.Minute, "")
	flags.Int("concurrency", 4, "")
	flags.String("metrics-addr", "", "")
	if err := flags.Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return flags
}

func TestLoadWatchFlags(t *testing.T) {
	flags := watchFlags(t,
		"--borrower", "0x00000000000000000000000000000000000000aa, 0x00000000000000000000000000000000000000bb",
		"--pool", "0x00000000000000000000000000000000000000cc",
		"--interval", "15s",
		"--metrics-addr", ":9100",
	)
	cfg, err := LoadWatch("", flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Borrowers) != 2 {
		t.Fatalf("expected 2 borrowers, got %v", cfg.Borrowers)
	}
	if cfg.Interval != 15*time.Second || cfg.Concurrency != 4 || cfg.MetricsAddr != ":9100" {
		t.Fatalf("unexpected watch config: %+v", cfg)
	}
	if cfg.Sigma != "0.05" || cfg.Iterations != 30 || cfg.MaxRetries != 5 || cfg.LogLevel != "info" {
		t.Fatalf("unexpected defaults: %+v", cfg.Market)
	}
	if cfg.Out != "./data/evaluations.jsonl" {
		t.Fatalf("unexpected out: %s", cfg.Out)
	}
}

func TestLoadWatchEnv(t *testing.T) {
	t.Setenv("MARGINSCOPE_BORROWER", "0x00000000000000000000000000000000000000aa,,0x00000000000000000000000000000000000000bb")
	t.Setenv("MARGINSCOPE_INCLUDE_INTEREST_BEARING", "true")
	t.Setenv("MARGINSCOPE_PG_DSN", "postgres://localhost/margin")

	cfg, err := LoadWatch("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Borrowers) != 2 {
		t.Fatalf("expected 2 borrowers from env, got %v", cfg.Borrowers)
	}
	if !cfg.IncludeInterestBearing {
		t.Fatalf("expected include-interest-bearing from env")
	}
	if cfg.PGDSN != "postgres://localhost/margin" {
		t.Fatalf("unexpected dsn: %s", cfg.PGDSN)
	}
}

func TestLoadEvaluateConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "margin.yaml")
	content := "snapshot: ./account.json\nsigma: \"0.08\"\niterations: 40\nborrower:\n  - \"0x00000000000000000000000000000000000000aa\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadEvaluate(path, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Snapshot != "./account.json" || cfg.Sigma != "0.08" || cfg.Iterations != 40 {
		t.Fatalf("unexpected evaluate config: %+v", cfg)
	}
	if cfg.Borrower != "0x00000000000000000000000000000000000000aa" {
		t.Fatalf("unexpected borrower: %s", cfg.Borrower)
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	if _, err := LoadEvaluate(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestParseAddresses(t *testing.T) {
	addresses, err := ParseAddresses([]string{" 0x00000000000000000000000000000000000000aa ", ""})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(addresses) != 1 || addresses[0] != common.HexToAddress("0x00000000000000000000000000000000000000aa") {
		t.Fatalf("unexpected addresses: %v", addresses)
	}
	if _, err := ParseAddresses([]string{"0x1234"}); err == nil {
		t.Fatalf("expected invalid address error")
	}

	zero, err := ParseOptionalAddress("")
	if err != nil || zero != (common.Address{}) {
		t.Fatalf("expected zero address, got %s (%v)", zero.Hex(), err)
	}
}

func TestParseSigma(t *testing.T) {
	sigma, err := ParseSigma(" 0.25 ")
	if err != nil || sigma.String() != "0.25" {
		t.Fatalf("unexpected sigma %s (%v)", sigma, err)
	}
	for _, input := range []string{"", "abc", "-0.1"} {
		if _, err := ParseSigma(input); !errors.Is(err, ErrInvalidSigma) {
			t.Fatalf("%q: expected ErrInvalidSigma, got %v", input, err)
		}
	}
}
