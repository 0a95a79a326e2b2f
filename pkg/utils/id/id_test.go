package id

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewULID(t *testing.T) {
	a := NewULID()
	b := NewULID()

	require.NoError(t, Parse(a))
	require.NoError(t, Parse(b))
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 26)
}

func TestULIDGeneratorMonotonic(t *testing.T) {
	gen := NewULIDGenerator()

	prev := gen.Generate()
	for i := 0; i < 100; i++ {
		next := gen.Generate()
		assert.Less(t, prev, next)
		prev = next
	}
}

func TestULIDGeneratorConcurrent(t *testing.T) {
	gen := NewULIDGenerator()

	const n = 50
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = gen.Generate()
		}(i)
	}
	wg.Wait()

	seen := make(map[string]struct{}, n)
	for _, s := range ids {
		require.NoError(t, Parse(s))
		seen[s] = struct{}{}
	}
	assert.Len(t, seen, n)
}

func TestParseRejectsGarbage(t *testing.T) {
	assert.Error(t, Parse("not-a-ulid"))
	assert.Error(t, Parse(""))
}
