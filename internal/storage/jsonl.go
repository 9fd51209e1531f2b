package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"marginScope/internal/model"
)

// JsonlStorage appends evaluations to a JSONL file, or to stdout when the path is "-".
type JsonlStorage struct {
	path string
	mu   sync.Mutex
}

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

// PutEvaluations appends a batch of evaluations as JSON lines.
func (s *JsonlStorage) PutEvaluations(_ context.Context, evaluations []model.Evaluation) error {
	if len(evaluations) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "-" {
		return writeLines(os.Stdout, evaluations)
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	return writeLines(file, evaluations)
}

func writeLines(w io.Writer, evaluations []model.Evaluation) error {
	writer := bufio.NewWriter(w)
	for _, evaluation := range evaluations {
		line, err := json.Marshal(evaluation)
		if err != nil {
			return fmt.Errorf("marshal evaluation: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write evaluation: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}
