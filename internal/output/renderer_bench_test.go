package output

import (
	"bytes"
	"testing"
)

// Benchmark rendering performance

func BenchmarkTextRenderer_RenderOutcome(b *testing.B) {
	out := successOutcome()
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		var buf bytes.Buffer
		r := &TextRenderer{w: &buf}
		r.RenderOutcome(updateSQL, out)
	}
}

func BenchmarkPlainRenderer_RenderOutcome(b *testing.B) {
	out := successOutcome()
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		var buf bytes.Buffer
		r := &PlainRenderer{w: &buf}
		r.RenderOutcome(updateSQL, out)
	}
}

func BenchmarkJSONRenderer_RenderOutcome(b *testing.B) {
	out := successOutcome()
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		var buf bytes.Buffer
		r := &JSONRenderer{w: &buf}
		r.RenderOutcome(updateSQL, out)
	}
}

func BenchmarkTextRenderer_RenderConnection(b *testing.B) {
	env := deficientEnv()
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		var buf bytes.Buffer
		r := &TextRenderer{w: &buf}
		r.RenderConnection(testConn(), env, nil)
	}
}
