package health

import (
	"context"
	"testing"
)

func TestRegistry_AllHealthy(t *testing.T) {
	r := NewRegistry()
	r.Register("db", func(ctx context.Context) Status {
		return Status{Name: "db", Healthy: true}
	})
	r.Register("catalog", func(ctx context.Context) Status {
		return Status{Name: "catalog", Healthy: true}
	})

	healthy, statuses := r.CheckAll(context.Background())
	if !healthy {
		t.Error("Expected aggregate healthy")
	}
	if len(statuses) != 2 {
		t.Fatalf("Expected 2 statuses, got %d", len(statuses))
	}
}

func TestRegistry_OneUnhealthy(t *testing.T) {
	r := NewRegistry()
	r.Register("db", func(ctx context.Context) Status {
		return Status{Name: "db", Healthy: false, Detail: "connection refused"}
	})
	r.Register("catalog", func(ctx context.Context) Status {
		return Status{Name: "catalog", Healthy: true}
	})

	healthy, statuses := r.CheckAll(context.Background())
	if healthy {
		t.Error("Expected aggregate unhealthy")
	}
	if statuses[0].Detail != "connection refused" {
		t.Errorf("Expected detail to propagate, got %q", statuses[0].Detail)
	}
}

func TestRegistry_FillsMissingName(t *testing.T) {
	r := NewRegistry()
	r.Register("db", func(ctx context.Context) Status {
		return Status{Healthy: true}
	})

	_, statuses := r.CheckAll(context.Background())
	if statuses[0].Name != "db" {
		t.Errorf("Expected registered name to backfill, got %q", statuses[0].Name)
	}
}

func TestRegistry_ChecksAreBounded(t *testing.T) {
	r := NewRegistry()
	r.Register("db", func(ctx context.Context) Status {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("Expected probe context to carry a deadline")
		}
		return Status{Name: "db", Healthy: true}
	})
	r.CheckAll(context.Background())
}

func TestRegistry_Empty(t *testing.T) {
	r := NewRegistry()
	healthy, statuses := r.CheckAll(context.Background())
	if !healthy {
		t.Error("Expected empty registry to be healthy")
	}
	if len(statuses) != 0 {
		t.Errorf("Expected no statuses, got %d", len(statuses))
	}
}
