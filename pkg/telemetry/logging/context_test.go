package logging

import (
	"context"
	"reflect"
	"testing"
)

func TestContextKeys(t *testing.T) {
	ctx := context.Background()

	ctx = WithRequestID(ctx, "req-123")
	if got := GetRequestID(ctx); got != "req-123" {
		t.Errorf("GetRequestID() = %q, want %q", got, "req-123")
	}

	ctx = WithRunID(ctx, "run-7")
	if got := GetRunID(ctx); got != "run-7" {
		t.Errorf("GetRunID() = %q, want %q", got, "run-7")
	}

	ctx = WithSceneID(ctx, "scene_0001")
	if got := GetSceneID(ctx); got != "scene_0001" {
		t.Errorf("GetSceneID() = %q, want %q", got, "scene_0001")
	}

	ctx = WithTraceID(ctx, "abc")
	if got := GetTraceID(ctx); got != "abc" {
		t.Errorf("GetTraceID() = %q, want %q", got, "abc")
	}
}

func TestExtractContextFields(t *testing.T) {
	if got := extractContextFields(context.Background()); len(got) != 0 {
		t.Errorf("extractContextFields(empty) = %v", got)
	}

	ctx := WithSceneID(WithRunID(context.Background(), "run-7"), "scene_0001")
	want := []any{"run_id", "run-7", "scene_id", "scene_0001"}
	if got := extractContextFields(ctx); !reflect.DeepEqual(got, want) {
		t.Errorf("extractContextFields() = %v, want %v", got, want)
	}
}
