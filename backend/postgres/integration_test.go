//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/hawkins7575/toozalink-sub000/errors"
	"github.com/hawkins7575/toozalink-sub000/query"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "toozalink",
			"POSTGRES_PASSWORD": "toozalink",
			"POSTGRES_DB":       "toozalink",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://toozalink:toozalink@%s:%s/toozalink?sslmode=disable", host, port.Port())
}

func TestIntegration_Queries(t *testing.T) {
	dsn := startPostgres(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	b, err := Open(ctx, Config{DSN: dsn, MaxConns: 4})
	require.NoError(t, err)
	defer b.Close()

	_, err = b.pool.Exec(ctx, `
		CREATE TABLE sites (id int PRIMARY KEY, name text, category text, rating numeric, tags text[]);
		INSERT INTO sites VALUES
			(1, 'Investing Daily', 'news', 4.5, '{macro,fx}'),
			(2, 'Chart School', 'education', 3.0, '{ta}'),
			(3, 'Market Wire', 'news', 4.0, '{equities}');
	`)
	require.NoError(t, err)

	require.NoError(t, b.Ping(ctx))

	res, err := b.Query("sites", "id,name").
		Filter("category", query.Eq, "news").
		OrderBy("id", false).
		Limit(5).
		Run(ctx)
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.EqualValues(t, 3, res.Rows[0]["id"])
	assert.NotContains(t, res.Rows[0], "category")

	res, err = b.Query("sites", "id").Filter("name", query.Contains, "chart").Run(ctx)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)

	res, err = b.Query("sites", "id").Filter("name", query.Contains, "_").Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Rows, "underscore must not act as a wildcard")

	res, err = b.Query("sites", "id").Filter("rating", query.Gte, 4).Run(ctx)
	require.NoError(t, err)
	assert.Len(t, res.Rows, 2)

	res, err = b.Query("sites", "id").Filter("id", query.In, []int32{1, 2}).Run(ctx)
	require.NoError(t, err)
	assert.Len(t, res.Rows, 2)

	_, err = b.Query("nope", "*").Run(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}
