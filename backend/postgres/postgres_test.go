package postgres

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hawkins7575/toozalink-sub000/errors"
	"github.com/hawkins7575/toozalink-sub000/pkg/retry"
	"github.com/hawkins7575/toozalink-sub000/query"
)

func sqlOf(t *testing.T, b query.Builder) (string, []any) {
	t.Helper()
	sql, args, err := b.(*builder).toSQL()
	require.NoError(t, err)
	return sql, args
}

func TestToSQL(t *testing.T) {
	b := &Backend{}

	tests := []struct {
		name     string
		build    func() query.Builder
		wantSQL  string
		wantArgs []any
	}{
		{
			name:    "select all",
			build:   func() query.Builder { return b.Query("sites", "*") },
			wantSQL: `SELECT * FROM "sites"`,
		},
		{
			name:    "projection and schema",
			build:   func() query.Builder { return b.Query("market.quotes", "symbol, price") },
			wantSQL: `SELECT "symbol", "price" FROM "market"."quotes"`,
		},
		{
			name: "every operator",
			build: func() query.Builder {
				return b.Query("sites", "").
					Filter("category", query.Eq, "news").
					Filter("id", query.In, []int{1, 2}).
					Filter("name", query.Contains, "chart").
					Filter("tags", query.Contains, 7).
					Filter("rating", query.Gte, 3).
					Filter("rating", query.Lte, 5)
			},
			wantSQL: `SELECT * FROM "sites" WHERE "category" = $1 AND "id" = ANY($2)` +
				` AND "name"::text ILIKE $3 ESCAPE '\' AND $4 = ANY("tags")` +
				` AND "rating" >= $5 AND "rating" <= $6`,
			wantArgs: []any{"news", []int{1, 2}, "%chart%", 7, 3, 5},
		},
		{
			name: "contains matches wildcards literally",
			build: func() query.Builder {
				return b.Query("deals", "*").Filter("title", query.Contains, `50%_off\now`)
			},
			wantSQL:  `SELECT * FROM "deals" WHERE "title"::text ILIKE $1 ESCAPE '\'`,
			wantArgs: []any{`%50\%\_off\\now%`},
		},
		{
			name: "order and limit",
			build: func() query.Builder {
				return b.Query("board", "*").Filter("author", query.Eq, "kim").OrderBy("created_at", false).Limit(20)
			},
			wantSQL:  `SELECT * FROM "board" WHERE "author" = $1 ORDER BY "created_at" DESC LIMIT $2`,
			wantArgs: []any{"kim", 20},
		},
		{
			name:    "identifiers are quoted",
			build:   func() query.Builder { return b.Query(`sites"; DROP TABLE x; --`, "*") },
			wantSQL: `SELECT * FROM "sites""; DROP TABLE x; --"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := sqlOf(t, tt.build())
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestToSQL_UnknownOperator(t *testing.T) {
	b := &Backend{}
	_, _, err := b.Query("sites", "*").Filter("x", query.Operator("like"), 1).(*builder).toSQL()
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrUnknownOperator))
}

func TestClassify(t *testing.T) {
	undefinedTable := &pgconn.PgError{Code: "42P01", Message: `relation "nope" does not exist`}
	err := classify(undefinedTable, "Run", "query")
	assert.True(t, errors.IsInvalid(err))
	assert.False(t, errors.IsRetryable(err))

	cancelled := &pgconn.PgError{Code: "57014", Message: "canceling statement due to user request"}
	assert.True(t, errors.IsCancelled(classify(cancelled, "Run", "query")))

	tooMany := &pgconn.PgError{Code: "53300", Message: "too many connections"}
	assert.True(t, errors.IsRetryable(classify(tooMany, "Run", "query")))

	assert.True(t, errors.IsCancelled(classify(context.DeadlineExceeded, "Run", "query")))
	assert.NoError(t, classify(nil, "Run", "query"))
}

// pingDB answers pings from a script and never serves queries.
type pingDB struct {
	pings   int
	results []error
}

func (p *pingDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, stderrors.New("not used")
}

func (p *pingDB) Ping(context.Context) error {
	p.pings++
	if p.pings > len(p.results) {
		return nil
	}
	return p.results[p.pings-1]
}

func fastStartup() retry.Config {
	cfg := retry.Quick()
	cfg.Delay, cfg.MaxDelay, cfg.AddJitter = time.Millisecond, time.Millisecond, false
	return cfg
}

func TestWaitReady_RetriesUntilDatabaseAnswers(t *testing.T) {
	refused := stderrors.New("dial tcp: connection refused")
	db := &pingDB{results: []error{refused, refused}}

	require.NoError(t, waitReady(context.Background(), db, fastStartup()))
	assert.Equal(t, 3, db.pings)
}

func TestWaitReady_GivesUpAfterQuickAttempts(t *testing.T) {
	results := make([]error, 20)
	for i := range results {
		results[i] = stderrors.New("dial tcp: connection refused")
	}
	db := &pingDB{results: results}

	err := waitReady(context.Background(), db, fastStartup())
	require.Error(t, err)
	assert.Equal(t, retry.Quick().MaxAttempts, db.pings)
	assert.True(t, errors.IsTransient(err))
}

func TestWaitReady_AuthFailureStopsImmediately(t *testing.T) {
	badPassword := &pgconn.PgError{Code: "28P01", Message: "password authentication failed"}
	db := &pingDB{results: []error{badPassword, badPassword}}

	err := waitReady(context.Background(), db, fastStartup())
	require.Error(t, err)
	assert.Equal(t, 1, db.pings)
	assert.True(t, errors.IsFatal(err))
}

func TestOpen_Validation(t *testing.T) {
	_, err := Open(context.Background(), Config{})
	assert.True(t, errors.IsInvalid(err))

	_, err = Open(context.Background(), Config{DSN: "postgres://%zz"})
	assert.True(t, errors.IsInvalid(err))
}
