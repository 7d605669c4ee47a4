package query

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheKey_FilterOrderIrrelevant(t *testing.T) {
	a := Description{Resource: "sites", Filters: []Filter{
		{Field: "category", Operator: Eq, Value: "news"},
		{Field: "rating", Operator: Gte, Value: 3},
	}}
	b := Description{Resource: "sites", Filters: []Filter{
		{Field: "rating", Operator: Gte, Value: 3},
		{Field: "category", Operator: Eq, Value: "news"},
	}}

	ka, err := CacheKey(a)
	require.NoError(t, err)
	kb, err := CacheKey(b)
	require.NoError(t, err)
	assert.Equal(t, ka, kb)
	assert.True(t, strings.HasPrefix(ka, "sites:"))
}

func TestCacheKey_Distinguishes(t *testing.T) {
	one, two := 1, 2
	base := Description{Resource: "quotes", Limit: &one}

	k1, err := CacheKey(base)
	require.NoError(t, err)

	other := base
	other.Limit = &two
	k2, err := CacheKey(other)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)

	other = base
	other.Resource = "sites"
	k3, err := CacheKey(other)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k3)

	other = base
	other.OrderBy = &Order{Field: "symbol"}
	k4, err := CacheKey(other)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k4)
}

func TestCacheKey_IgnoresCacheFlagAndDefaultFields(t *testing.T) {
	a := Description{Resource: "quotes", CacheEnabled: true}
	b := Description{Resource: "quotes", Fields: "*"}

	ka, err := CacheKey(a)
	require.NoError(t, err)
	kb, err := CacheKey(b)
	require.NoError(t, err)
	assert.Equal(t, ka, kb)
}

func TestCacheKey_MapValuesStable(t *testing.T) {
	a := Description{Resource: "r", Filters: []Filter{{Field: "meta", Operator: Eq, Value: map[string]any{"x": 1, "y": 2}}}}
	b := Description{Resource: "r", Filters: []Filter{{Field: "meta", Operator: Eq, Value: map[string]any{"y": 2, "x": 1}}}}

	ka, err := CacheKey(a)
	require.NoError(t, err)
	kb, err := CacheKey(b)
	require.NoError(t, err)
	assert.Equal(t, ka, kb)
}

func TestCacheKey_LongKeyDigested(t *testing.T) {
	symbols := make([]any, 200)
	for i := range symbols {
		symbols[i] = "SYMBOL"
	}
	d := Description{Resource: "quotes", Filters: []Filter{{Field: "symbol", Operator: In, Value: symbols}}}

	key, err := CacheKey(d)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(key), MaxKeyLength)
	assert.True(t, strings.HasPrefix(key, "quotes:#"))

	again, err := CacheKey(d)
	require.NoError(t, err)
	assert.Equal(t, key, again)
}

func TestCacheKey_UnencodableValue(t *testing.T) {
	d := Description{Resource: "quotes", Filters: []Filter{{Field: "f", Operator: Eq, Value: make(chan int)}}}
	_, err := CacheKey(d)
	assert.Error(t, err)
}
