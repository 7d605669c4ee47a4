package testutil

import (
	"github.com/hawkins7575/toozalink-sub000/backend/memory"
	"github.com/hawkins7575/toozalink-sub000/query"
)

// Sites is the seeded "sites" table. Two rows are in the news category.
func Sites() []query.Record {
	return []query.Record{
		{"id": 1, "name": "Investing Daily", "category": "news", "rating": 4.5},
		{"id": 2, "name": "Chart School", "category": "education", "rating": 3.0},
		{"id": 3, "name": "Market Wire", "category": "news", "rating": 4.0},
	}
}

// Bookmarks is the seeded "bookmarks" table.
func Bookmarks() []query.Record {
	return []query.Record{
		{"id": 10, "user_id": "u1", "site_id": 1},
		{"id": 11, "user_id": "u2", "site_id": 3},
	}
}

// Channels is the seeded "channels" table.
func Channels() []query.Record {
	return []query.Record{
		{"id": 1, "title": "Morning Brief"},
	}
}

// SeededBackend returns a memory backend holding Sites, Bookmarks and
// Channels. Each call returns an independent backend.
func SeededBackend() *memory.Backend {
	b := memory.New()
	b.Insert("sites", Sites()...)
	b.Insert("bookmarks", Bookmarks()...)
	b.Insert("channels", Channels()...)
	return b
}

// NewsSites is the description most tests run against the seeded backend.
func NewsSites() query.Description {
	return query.Description{
		Resource:     "sites",
		Fields:       "id,name",
		Filters:      []query.Filter{{Field: "category", Operator: query.Eq, Value: "news"}},
		OrderBy:      &query.Order{Field: "id", Ascending: true},
		CacheEnabled: true,
	}
}
