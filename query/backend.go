package query

import (
	"context"
	"fmt"

	"github.com/hawkins7575/toozalink-sub000/errors"
)

// Backend is the data service the executor reads from.
type Backend interface {
	Query(resource, fields string) Builder
}

// Builder accumulates one backend call. Run executes it and must honour ctx.
type Builder interface {
	Filter(field string, op Operator, value any) Builder
	OrderBy(field string, ascending bool) Builder
	Limit(n int) Builder
	Run(ctx context.Context) (Result, error)
}

// Pinger is implemented by backends that have a cheaper liveness check than
// running a query.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Lower translates d into a builder on b.
func Lower(b Backend, d Description) (Builder, error) {
	builder := b.Query(d.Resource, d.SelectedFields())

	for _, f := range d.Filters {
		switch f.Operator {
		case Eq, In, Contains, Gte, Lte:
			builder = builder.Filter(f.Field, f.Operator, f.Value)
		default:
			return nil, errors.WrapInvalid(fmt.Errorf("%w: %q", errors.ErrUnknownOperator, f.Operator),
				"query", "Lower", "filter "+f.Field)
		}
	}

	if d.OrderBy != nil {
		builder = builder.OrderBy(d.OrderBy.Field, d.OrderBy.Ascending)
	}
	if d.Limit != nil {
		builder = builder.Limit(*d.Limit)
	}
	return builder, nil
}

// ProbeFunc returns a liveness check for b: Ping when available, otherwise a
// one-row query on resource.
func ProbeFunc(b Backend, resource string) func(ctx context.Context) error {
	if p, ok := b.(Pinger); ok {
		return p.Ping
	}
	return func(ctx context.Context) error {
		_, err := b.Query(resource, "*").Limit(1).Run(ctx)
		return err
	}
}
