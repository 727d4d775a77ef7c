package trigram

import "testing"

var benchTexts = []string{
	"hello world",
	"Crème Brûlée recipe with caramelised sugar",
	"the quick brown fox jumps over the lazy dog",
	"   ",
}

func BenchmarkExtract(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = Extract(benchTexts[i%len(benchTexts)])
	}
}

func BenchmarkCache_Extract(b *testing.B) {
	c, err := NewCache(64)
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.Extract(benchTexts[i%len(benchTexts)])
	}
}
