package query

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/hawkins7575/toozalink-sub000/errors"
)

// ExecuteAll runs every description concurrently through Execute. Each item
// settles on its own; outcomes are returned in input order. Only when every
// item fails does ExecuteAll return an *errors.BatchError carrying each
// failure.
func (e *Executor) ExecuteAll(ctx context.Context, ds []Description) ([]Outcome, error) {
	outcomes := make([]Outcome, len(ds))
	if len(ds) == 0 {
		return outcomes, nil
	}
	if e.metrics != nil {
		e.metrics.RecordBatch(len(ds))
	}

	var g errgroup.Group
	for i := range ds {
		i := i
		g.Go(func() error {
			rows, err := e.Execute(ctx, ds[i])
			outcomes[i] = Outcome{Rows: rows, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	failures := make([]error, 0, len(ds))
	for _, o := range outcomes {
		if o.Err != nil {
			failures = append(failures, o.Err)
		}
	}
	if len(failures) == len(ds) {
		e.logger.Error("Batch failed", "items", len(ds))
		return outcomes, &errors.BatchError{Errs: failures}
	}

	e.logger.Debug("Batch settled", "items", len(ds), "failed", len(failures))
	return outcomes, nil
}
