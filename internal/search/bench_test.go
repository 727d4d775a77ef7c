package search

import (
	"context"
	"fmt"
	"testing"

	"github.com/Aman-CERP/fuzzidx/internal/index"
	"github.com/Aman-CERP/fuzzidx/internal/store"
)

var benchWords = []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot", "golf", "hotel"}

func benchOwners(n int) index.SliceSource {
	owners := make(index.SliceSource, n)
	for i := range owners {
		owners[i] = index.Owner{
			ID:   fmt.Sprintf("%d", i),
			Text: benchWords[i%len(benchWords)] + " " + benchWords[(i/len(benchWords))%len(benchWords)],
		}
	}
	return owners
}

func benchMatch(b *testing.B, st store.Store) {
	b.Helper()
	ctx := context.Background()
	s, err := index.New(st)
	if err != nil {
		b.Fatal(err)
	}
	if _, err := s.ReindexBatch(ctx, "User", "name", benchOwners(1000)); err != nil {
		b.Fatal(err)
	}
	m, err := NewMatcher(st, DefaultConfig())
	if err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := m.Match(ctx, "User", "name", "charly delt", Options{}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkMatch_Memory(b *testing.B) {
	benchMatch(b, store.NewMemoryStore())
}

func BenchmarkMatch_SQLite(b *testing.B) {
	st, err := store.NewSQLiteStore("", store.DefaultConfig())
	if err != nil {
		b.Fatal(err)
	}
	defer func() { _ = st.Close() }()
	benchMatch(b, st)
}
