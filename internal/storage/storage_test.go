package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"marginScope/internal/model"
)

func sampleEvaluation(block uint64) model.Evaluation {
	return model.Evaluation{
		ChainID:      1,
		BlockNumber:  block,
		Borrower:     "0x1111111111111111111111111111111111111111",
		Token0:       model.TokenMeta{Symbol: "WETH", Decimals: 18},
		Token1:       model.TokenMeta{Symbol: "USDC", Decimals: 6},
		SqrtPriceX96: "79228162514264337593543950336",
		Price:        decimal.RequireFromString("1850.25"),
		Sigma:        decimal.RequireFromString("0.04"),
		Solvency:     model.Solvency{SolventAtLower: true, SolventAtUpper: true},
		Thresholds: model.LiquidationThresholds{
			Lower: decimal.RequireFromString("1012.5"),
			Upper: decimal.RequireFromString("3999.75"),
		},
		ComputedAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestJsonlStorageAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "evaluations.jsonl")
	store := NewJsonlStorage(path)

	if err := store.PutEvaluations(context.Background(), []model.Evaluation{sampleEvaluation(10)}); err != nil {
		t.Fatalf("first batch: %v", err)
	}
	if err := store.PutEvaluations(context.Background(), []model.Evaluation{sampleEvaluation(11), sampleEvaluation(12)}); err != nil {
		t.Fatalf("second batch: %v", err)
	}
	if err := store.PutEvaluations(context.Background(), nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer file.Close()

	var blocks []uint64
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var decoded model.Evaluation
		if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
			t.Fatalf("decode line: %v", err)
		}
		if !decoded.Thresholds.Lower.Equal(decimal.RequireFromString("1012.5")) {
			t.Fatalf("threshold mismatch: %s", decoded.Thresholds.Lower)
		}
		blocks = append(blocks, decoded.BlockNumber)
	}
	if len(blocks) != 3 || blocks[0] != 10 || blocks[2] != 12 {
		t.Fatalf("unexpected blocks: %v", blocks)
	}
}

func TestJsonlStorageFieldNames(t *testing.T) {
	line, err := json.Marshal(sampleEvaluation(10))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(line, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"chain_id", "block_number", "sqrt_price_x96", "thresholds", "solvency", "token0_share"} {
		if _, ok := raw[key]; !ok {
			t.Fatalf("missing key %s in %s", key, line)
		}
	}
	if raw["price"] != "1850.25" {
		t.Fatalf("price should be a decimal string, got %v", raw["price"])
	}
}

type recordingSink struct {
	got []model.Evaluation
	err error
}

func (r *recordingSink) PutEvaluations(_ context.Context, evaluations []model.Evaluation) error {
	r.got = append(r.got, evaluations...)
	return r.err
}

func TestMultiFansOut(t *testing.T) {
	failing := &recordingSink{err: errors.New("db down")}
	healthy := &recordingSink{}
	multi := Multi{failing, nil, healthy}

	err := multi.PutEvaluations(context.Background(), []model.Evaluation{sampleEvaluation(1)})
	if err == nil || err.Error() != "db down" {
		t.Fatalf("expected joined error, got %v", err)
	}
	if len(failing.got) != 1 || len(healthy.got) != 1 {
		t.Fatalf("every sink should receive the batch: %d %d", len(failing.got), len(healthy.got))
	}
}
