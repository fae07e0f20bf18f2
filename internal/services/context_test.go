package services_test

import (
	"context"
	"testing"

	"platter/internal/services"
)

func TestContextHelpersRoundTrip(t *testing.T) {
	ctx := context.Background()

	if _, ok := services.ItemIDFromContext(ctx); ok {
		t.Fatal("expected no item ID on empty context")
	}

	ctx = services.WithItemID(ctx, 42)
	if id, ok := services.ItemIDFromContext(ctx); !ok || id != 42 {
		t.Fatalf("expected item ID 42, got %d (ok=%v)", id, ok)
	}

	ctx = services.WithStage(ctx, "ripping")
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "ripping" {
		t.Fatalf("expected stage ripping, got %q (ok=%v)", stage, ok)
	}

	ctx = services.WithLane(ctx, "foreground")
	if lane, ok := services.LaneFromContext(ctx); !ok || lane != "foreground" {
		t.Fatalf("expected lane foreground, got %q (ok=%v)", lane, ok)
	}

	ctx = services.WithRequestID(ctx, "req-1")
	if id, ok := services.RequestIDFromContext(ctx); !ok || id != "req-1" {
		t.Fatalf("expected request ID req-1, got %q (ok=%v)", id, ok)
	}
}

func TestContextHelpersIgnoreEmptyValues(t *testing.T) {
	ctx := context.Background()
	if services.WithStage(ctx, "") != ctx {
		t.Fatal("expected empty stage to be ignored")
	}
	if services.WithLane(ctx, "") != ctx {
		t.Fatal("expected empty lane to be ignored")
	}
	if services.WithRequestID(ctx, "") != ctx {
		t.Fatal("expected empty request ID to be ignored")
	}
}
