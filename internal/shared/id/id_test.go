package id

import (
	"bytes"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateWithPrefix(t *testing.T) {
	g := NewGenerator()

	tests := []struct {
		name   string
		prefix string
	}{
		{"boot", BootPrefix},
		{"stream", StreamPrefix},
		{"request", RequestPrefix},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := g.GenerateWithPrefix(tt.prefix)
			assert.True(t, strings.HasPrefix(s, tt.prefix+"_"))
			assert.Len(t, s, len(tt.prefix)+1+26)

			prefix, _, err := Parse(s)
			require.NoError(t, err)
			assert.Equal(t, tt.prefix, prefix)
		})
	}
}

func TestTypedIDs(t *testing.T) {
	assert.True(t, strings.HasPrefix(NewBootID().String(), "boot_"))
	assert.True(t, strings.HasPrefix(NewStreamID().String(), "con_"))
	assert.True(t, strings.HasPrefix(NewRequestID().String(), "req_"))
	assert.NotEqual(t, NewBootID(), NewBootID())
}

func TestParseErrors(t *testing.T) {
	_, _, err := Parse("01ARZ3NDEKTSV4RRFFQ69G5FAV")
	assert.Error(t, err, "missing prefix")

	_, _, err = Parse("boot_not-a-ulid")
	assert.Error(t, err)
}

func TestTimestamp(t *testing.T) {
	before := time.Now().Add(-time.Second)
	ts, err := Timestamp(NewBootID().String())
	require.NoError(t, err)
	assert.True(t, ts.After(before))
	assert.True(t, ts.Before(time.Now().Add(time.Second)))
}

func TestDeterministicEntropy(t *testing.T) {
	seed := bytes.Repeat([]byte{7}, 64)
	a := NewGeneratorWithEntropy(bytes.NewReader(seed)).Generate()
	b := NewGeneratorWithEntropy(bytes.NewReader(seed)).Generate()
	assert.Equal(t, a.Entropy(), b.Entropy())
}

func TestConcurrentGeneration(t *testing.T) {
	g := Default()
	const workers, each = 8, 100

	var mu sync.Mutex
	seen := make(map[string]struct{}, workers*each)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < each; j++ {
				s := g.GenerateWithPrefix(BootPrefix)
				mu.Lock()
				seen[s] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, workers*each)
}

func TestLexicographicSorting(t *testing.T) {
	g := NewGenerator()
	ids := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		ids = append(ids, g.GenerateWithPrefix(RequestPrefix))
		time.Sleep(2 * time.Millisecond)
	}
	assert.True(t, sort.StringsAreSorted(ids))
}

func BenchmarkGenerateWithPrefix(b *testing.B) {
	g := NewGenerator()
	for i := 0; i < b.N; i++ {
		_ = g.GenerateWithPrefix(BootPrefix)
	}
}
