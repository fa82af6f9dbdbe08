package services_test

import (
	"context"
	"testing"

	"mediaflow/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithExecutionID(ctx, 42)
	ctx = services.WithItemIndex(ctx, 3)
	ctx = services.WithStage(ctx, "download")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.ExecutionIDFromContext(ctx); !ok || id != 42 {
		t.Fatalf("unexpected execution id: %v %v", id, ok)
	}
	if idx, ok := services.ItemIndexFromContext(ctx); !ok || idx != 3 {
		t.Fatalf("unexpected item index: %v %v", idx, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "download" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestStageBlankPreservesContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
	ctx = services.WithItemIndex(ctx, 0)
	if _, ok := services.ItemIndexFromContext(ctx); ok {
		t.Fatal("expected no item index for zero")
	}
}
