// Package postgres implements query.Backend on a PostgreSQL database through
// a pgx connection pool. Descriptions are lowered to parameterized SELECT
// statements; resource and field names are quoted as identifiers.
package postgres

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hawkins7575/toozalink-sub000/errors"
	"github.com/hawkins7575/toozalink-sub000/pkg/retry"
	"github.com/hawkins7575/toozalink-sub000/query"
)

// Config configures the pool.
type Config struct {
	DSN            string        `json:"dsn" yaml:"dsn"`
	MaxConns       int32         `json:"max_conns" yaml:"max_conns"`
	ConnectTimeout time.Duration `json:"connect_timeout" yaml:"connect_timeout"`
}

// querier is the subset of *pgxpool.Pool the backend needs.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
}

var (
	_ query.Backend = (*Backend)(nil)
	_ query.Pinger  = (*Backend)(nil)
)

// Backend reads rows from PostgreSQL tables.
type Backend struct {
	db   querier
	pool *pgxpool.Pool
}

// startupRetry rides out a database that is still coming up when Open runs.
var startupRetry = retry.Quick()

// Open creates the pool and verifies it with a ping, retried on transient
// failures.
func Open(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.DSN == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "postgres", "Open", "dsn is required")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err), "postgres", "Open", "parse dsn")
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errors.WrapTransient(err, "postgres", "Open", "create pool")
	}
	if err := waitReady(ctx, pool, startupRetry); err != nil {
		pool.Close()
		return nil, err
	}
	return &Backend{db: pool, pool: pool}, nil
}

// waitReady pings db until it answers. Invalid or fatal failures such as a
// rejected password stop at once.
func waitReady(ctx context.Context, db querier, cfg retry.Config) error {
	cfg.Retryable = errors.IsRetryable
	return retry.Do(ctx, cfg, func() error {
		return classify(db.Ping(ctx), "Open", "ping")
	})
}

// Close releases every pooled connection.
func (b *Backend) Close() {
	if b.pool != nil {
		b.pool.Close()
	}
}

// Ping checks a pooled connection.
func (b *Backend) Ping(ctx context.Context) error {
	return classify(b.db.Ping(ctx), "Ping", "ping")
}

// Query starts a SELECT on resource. A dotted resource names schema.table.
func (b *Backend) Query(resource, fields string) query.Builder {
	return &builder{db: b.db, resource: resource, fields: fields}
}

type builder struct {
	db       querier
	resource string
	fields   string
	filters  []query.Filter
	order    *query.Order
	limit    *int
}

func (q *builder) Filter(field string, op query.Operator, value any) query.Builder {
	q.filters = append(q.filters, query.Filter{Field: field, Operator: op, Value: value})
	return q
}

func (q *builder) OrderBy(field string, ascending bool) query.Builder {
	q.order = &query.Order{Field: field, Ascending: ascending}
	return q
}

func (q *builder) Limit(n int) query.Builder {
	q.limit = &n
	return q
}

func (q *builder) Run(ctx context.Context) (query.Result, error) {
	sql, args, err := q.toSQL()
	if err != nil {
		return query.Result{}, err
	}

	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return query.Result{}, classify(err, "Run", "query "+q.resource)
	}
	records, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return query.Result{}, classify(err, "Run", "read rows of "+q.resource)
	}

	return query.Result{Rows: records}, nil
}

// toSQL renders the statement and its positional arguments.
func (q *builder) toSQL() (string, []any, error) {
	var sb strings.Builder
	var args []any

	sb.WriteString("SELECT ")
	sb.WriteString(selectList(q.fields))
	sb.WriteString(" FROM ")
	sb.WriteString(pgx.Identifier(strings.Split(q.resource, ".")).Sanitize())

	for i, f := range q.filters {
		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		col := pgx.Identifier{f.Field}.Sanitize()
		args = append(args, f.Value)
		param := fmt.Sprintf("$%d", len(args))

		switch f.Operator {
		case query.Eq:
			sb.WriteString(col + " = " + param)
		case query.In:
			sb.WriteString(col + " = ANY(" + param + ")")
		case query.Contains:
			if s, ok := f.Value.(string); ok {
				args[len(args)-1] = "%" + likeEscaper.Replace(s) + "%"
				sb.WriteString(col + "::text ILIKE " + param + ` ESCAPE '\'`)
			} else {
				sb.WriteString(param + " = ANY(" + col + ")")
			}
		case query.Gte:
			sb.WriteString(col + " >= " + param)
		case query.Lte:
			sb.WriteString(col + " <= " + param)
		default:
			return "", nil, errors.WrapInvalid(fmt.Errorf("%w: %q", errors.ErrUnknownOperator, f.Operator),
				"postgres", "Run", "filter "+f.Field)
		}
	}

	if q.order != nil {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(pgx.Identifier{q.order.Field}.Sanitize())
		if q.order.Ascending {
			sb.WriteString(" ASC")
		} else {
			sb.WriteString(" DESC")
		}
	}
	if q.limit != nil {
		args = append(args, *q.limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	return sb.String(), args, nil
}

// likeEscaper makes LIKE wildcards in a contains value match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func selectList(fields string) string {
	fields = strings.TrimSpace(fields)
	if fields == "" || fields == "*" {
		return "*"
	}
	parts := strings.Split(fields, ",")
	cols := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			cols = append(cols, pgx.Identifier{p}.Sanitize())
		}
	}
	if len(cols) == 0 {
		return "*"
	}
	return strings.Join(cols, ", ")
}

// classify maps driver errors onto error classes. SQL state classes 22
// (data exception) and 42 (syntax or access rule) are the caller's fault;
// everything else may succeed on retry.
func classify(err error, method, action string) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "42"), strings.HasPrefix(pgErr.Code, "22"):
			return errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrInvalidQuery, pgErr.Message), "postgres", method, action)
		case strings.HasPrefix(pgErr.Code, "28"):
			return errors.WrapFatal(err, "postgres", method, action)
		case pgErr.Code == "57014":
			return errors.WrapCancelled(err, "postgres", method, action)
		}
		return errors.WrapTransient(err, "postgres", method, action)
	}
	return errors.WrapClassified(err, "postgres", method, action)
}
