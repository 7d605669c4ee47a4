// Package memory is an in-process table store implementing query.Backend.
// It backs local development and tests; rows live only as long as the
// Backend value.
package memory

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/hawkins7575/toozalink-sub000/errors"
	"github.com/hawkins7575/toozalink-sub000/query"
)

var (
	_ query.Backend = (*Backend)(nil)
	_ query.Pinger  = (*Backend)(nil)
)

// Backend holds named tables of rows.
type Backend struct {
	mu     sync.RWMutex
	tables map[string][]query.Record

	faultMu  sync.Mutex
	latency  time.Duration
	failures int
	failErr  error
}

// New creates an empty backend.
func New() *Backend {
	return &Backend{tables: make(map[string][]query.Record)}
}

// Insert appends rows to table, creating it when needed.
func (b *Backend) Insert(table string, rows ...query.Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.tables[table]; !ok {
		b.tables[table] = []query.Record{}
	}
	for _, r := range rows {
		b.tables[table] = append(b.tables[table], cloneRecord(r))
	}
}

// Truncate removes every row of table. The table itself stays known.
func (b *Backend) Truncate(table string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tables[table] = []query.Record{}
}

// Tables lists table names in sorted order.
func (b *Backend) Tables() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.tables))
	for name := range b.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadFile seeds tables from a JSON document of the form
// {"table": [{...}, ...], ...}.
func (b *Backend) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.WrapFatal(err, "memory", "LoadFile", "read seed file")
	}
	return b.Load(data)
}

// Load seeds tables from JSON data in the LoadFile format.
func (b *Backend) Load(data []byte) error {
	var seed map[string][]query.Record
	if err := json.Unmarshal(data, &seed); err != nil {
		return errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrParsingFailed, err), "memory", "Load", "decode seed")
	}
	for table, rows := range seed {
		b.Insert(table, rows...)
	}
	return nil
}

// SetLatency delays every call by d, honouring the call context.
func (b *Backend) SetLatency(d time.Duration) {
	b.faultMu.Lock()
	b.latency = d
	b.faultMu.Unlock()
}

// FailNext makes the next n calls (queries and pings) fail with err.
func (b *Backend) FailNext(n int, err error) {
	b.faultMu.Lock()
	b.failures = n
	b.failErr = err
	b.faultMu.Unlock()
}

func (b *Backend) fault(ctx context.Context) error {
	b.faultMu.Lock()
	latency := b.latency
	var err error
	if b.failures > 0 {
		b.failures--
		err = b.failErr
	}
	b.faultMu.Unlock()

	if latency > 0 {
		timer := time.NewTimer(latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

// Ping succeeds unless a failure was injected.
func (b *Backend) Ping(ctx context.Context) error {
	return b.fault(ctx)
}

// Query starts a read of table.
func (b *Backend) Query(resource, fields string) query.Builder {
	return &builder{backend: b, table: resource, fields: parseFields(fields)}
}

type builder struct {
	backend *Backend
	table   string
	fields  []string
	filters []query.Filter
	order   *query.Order
	limit   int
	err     error
}

func (q *builder) Filter(field string, op query.Operator, value any) query.Builder {
	if !op.Valid() && q.err == nil {
		q.err = errors.WrapInvalid(fmt.Errorf("%w: %q", errors.ErrUnknownOperator, op), "memory", "Filter", field)
	}
	q.filters = append(q.filters, query.Filter{Field: field, Operator: op, Value: value})
	return q
}

func (q *builder) OrderBy(field string, ascending bool) query.Builder {
	q.order = &query.Order{Field: field, Ascending: ascending}
	return q
}

func (q *builder) Limit(n int) query.Builder {
	q.limit = n
	if n == 0 {
		q.limit = -1
	}
	return q
}

// Run filters, orders, limits and projects the table.
func (q *builder) Run(ctx context.Context) (query.Result, error) {
	if q.err != nil {
		return query.Result{}, q.err
	}
	if err := q.backend.fault(ctx); err != nil {
		return query.Result{}, err
	}

	q.backend.mu.RLock()
	rows, ok := q.backend.tables[q.table]
	var matched []query.Record
	for _, row := range rows {
		keep := true
		for _, f := range q.filters {
			if !match(row[f.Field], f.Operator, f.Value) {
				keep = false
				break
			}
		}
		if keep {
			matched = append(matched, row)
		}
	}
	q.backend.mu.RUnlock()

	if !ok {
		return query.Result{}, errors.WrapInvalid(
			fmt.Errorf("%w: unknown resource %q", errors.ErrInvalidQuery, q.table), "memory", "Run", "lookup table")
	}

	if q.order != nil {
		field, asc := q.order.Field, q.order.Ascending
		sort.SliceStable(matched, func(i, j int) bool {
			c, ok := compare(matched[i][field], matched[j][field])
			if !ok {
				return false
			}
			if asc {
				return c < 0
			}
			return c > 0
		})
	}

	switch {
	case q.limit < 0:
		matched = nil
	case q.limit > 0 && len(matched) > q.limit:
		matched = matched[:q.limit]
	}

	out := make([]query.Record, 0, len(matched))
	for _, row := range matched {
		out = append(out, project(row, q.fields))
	}
	return query.Result{Rows: out}, nil
}

func parseFields(fields string) []string {
	fields = strings.TrimSpace(fields)
	if fields == "" || fields == "*" {
		return nil
	}
	parts := strings.Split(fields, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func project(row query.Record, fields []string) query.Record {
	if fields == nil {
		return cloneRecord(row)
	}
	out := make(query.Record, len(fields))
	for _, f := range fields {
		if v, ok := row[f]; ok {
			out[f] = v
		}
	}
	return out
}

func cloneRecord(r query.Record) query.Record {
	out := make(query.Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
