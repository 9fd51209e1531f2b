package storage

import (
	"context"
	"errors"

	"marginScope/internal/model"
)

// Sink receives published evaluations.
type Sink interface {
	PutEvaluations(ctx context.Context, evaluations []model.Evaluation) error
}

// Multi fans a batch out to every sink. All sinks are attempted; their errors are joined.
type Multi []Sink

func (m Multi) PutEvaluations(ctx context.Context, evaluations []model.Evaluation) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.PutEvaluations(ctx, evaluations); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
