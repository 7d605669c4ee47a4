package memory

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hawkins7575/toozalink-sub000/errors"
	"github.com/hawkins7575/toozalink-sub000/query"
)

func seeded(t *testing.T) *Backend {
	t.Helper()
	b := New()
	b.Insert("sites",
		query.Record{"id": 1, "name": "Investing Daily", "category": "news", "rating": 4.5, "tags": []any{"macro", "fx"}, "added": "2024-01-10T00:00:00Z"},
		query.Record{"id": 2, "name": "Chart School", "category": "education", "rating": 3.0, "tags": []any{"ta"}, "added": "2024-02-01T00:00:00Z"},
		query.Record{"id": 3, "name": "Market Wire", "category": "news", "rating": 4.0, "tags": []any{"equities"}, "added": "2024-03-15T00:00:00Z"},
	)
	return b
}

func run(t *testing.T, b query.Builder) []query.Record {
	t.Helper()
	res, err := b.Run(context.Background())
	require.NoError(t, err)
	return res.Rows
}

func ids(rows []query.Record) []any {
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = r["id"]
	}
	return out
}

func TestFilters(t *testing.T) {
	b := seeded(t)

	tests := []struct {
		name  string
		field string
		op    query.Operator
		value any
		want  []any
	}{
		{"eq string", "category", query.Eq, "news", []any{1, 3}},
		{"eq number across types", "id", query.Eq, float64(2), []any{2}},
		{"in", "category", query.In, []any{"education", "video"}, []any{2}},
		{"in typed slice", "id", query.In, []int{1, 3}, []any{1, 3}},
		{"contains case-insensitive", "name", query.Contains, "market", []any{3}},
		{"contains slice membership", "tags", query.Contains, "fx", []any{1}},
		{"gte number", "rating", query.Gte, 4, []any{1, 3}},
		{"lte number", "rating", query.Lte, 4, []any{2, 3}},
		{"gte time", "added", query.Gte, "2024-02-01T00:00:00Z", []any{2, 3}},
		{"missing field", "owner", query.Eq, "me", []any{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := run(t, b.Query("sites", "*").Filter(tt.field, tt.op, tt.value))
			assert.Equal(t, tt.want, ids(rows))
		})
	}
}

func TestFiltersAreANDed(t *testing.T) {
	b := seeded(t)
	rows := run(t, b.Query("sites", "*").
		Filter("category", query.Eq, "news").
		Filter("rating", query.Gte, 4.2))
	assert.Equal(t, []any{1}, ids(rows))
}

func TestOrderLimitProject(t *testing.T) {
	b := seeded(t)

	rows := run(t, b.Query("sites", "id, name").OrderBy("rating", false).Limit(2))
	require.Len(t, rows, 2)
	assert.Equal(t, []any{1, 3}, ids(rows))
	assert.Equal(t, query.Record{"id": 1, "name": "Investing Daily"}, rows[0])

	rows = run(t, b.Query("sites", "*").OrderBy("name", true))
	assert.Equal(t, []any{2, 1, 3}, ids(rows))

	rows = run(t, b.Query("sites", "*").Limit(0))
	assert.Empty(t, rows)
}

func TestReturnedRowsAreCopies(t *testing.T) {
	b := seeded(t)
	rows := run(t, b.Query("sites", "*").Filter("id", query.Eq, 1))
	rows[0]["name"] = "mutated"

	rows = run(t, b.Query("sites", "*").Filter("id", query.Eq, 1))
	assert.Equal(t, "Investing Daily", rows[0]["name"])
}

func TestUnknownResourceAndOperator(t *testing.T) {
	b := seeded(t)

	_, err := b.Query("nope", "*").Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	_, err = b.Query("sites", "*").Filter("id", query.Operator("like"), 1).Run(context.Background())
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrUnknownOperator))
}

func TestFaultInjection(t *testing.T) {
	b := seeded(t)
	b.FailNext(2, errors.ErrConnectionLost)

	assert.ErrorIs(t, b.Ping(context.Background()), errors.ErrConnectionLost)
	_, err := b.Query("sites", "*").Run(context.Background())
	assert.ErrorIs(t, err, errors.ErrConnectionLost)
	assert.NoError(t, b.Ping(context.Background()))

	b.SetLatency(time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = b.Query("sites", "*").Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"channels": [{"id": 1, "title": "Daily Close"}],
		"board": []
	}`), 0o600))

	b := New()
	require.NoError(t, b.LoadFile(path))
	assert.Equal(t, []string{"board", "channels"}, b.Tables())

	rows := run(t, b.Query("channels", "title"))
	assert.Equal(t, []query.Record{{"title": "Daily Close"}}, rows)

	assert.Error(t, b.Load([]byte(`not json`)))
	assert.Error(t, b.LoadFile(filepath.Join(t.TempDir(), "missing.json")))
}

func TestWorksBehindExecutor(t *testing.T) {
	b := seeded(t)
	e, err := query.NewExecutor(query.Deps{Backend: b})
	require.NoError(t, err)

	rows, err := e.Execute(context.Background(), query.Description{
		Resource: "sites",
		Filters:  []query.Filter{{Field: "category", Operator: query.Eq, Value: "news"}},
	})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
