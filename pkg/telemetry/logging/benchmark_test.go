package logging

import (
	"context"
	"io"
	"testing"
)

func BenchmarkLogger_Info_Enabled(b *testing.B) {
	logger, err := New(Config{Level: "info", Format: "json", Writer: io.Discard})
	if err != nil {
		b.Fatalf("New() error = %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Info("scene evaluated", "fired", 3, "n", i)
	}
}

func BenchmarkLogger_Debug_Disabled(b *testing.B) {
	logger, err := New(Config{Level: "info", Format: "json", Writer: io.Discard})
	if err != nil {
		b.Fatalf("New() error = %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Debug("scene fact", "fact", "ego, intend, turn")
	}
}

func BenchmarkLogger_InfoContext(b *testing.B) {
	logger, err := New(Config{Level: "info", Format: "json", Writer: io.Discard})
	if err != nil {
		b.Fatalf("New() error = %v", err)
	}
	ctx := WithSceneID(WithRunID(context.Background(), "run-1"), "scene_0001")

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.InfoContext(ctx, "scene evaluated", "fired", 3)
	}
}
