package stage_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"mediaflow/internal/graph"
	"mediaflow/internal/services"
	"mediaflow/internal/stage"
)

type schemaHandler struct {
	stage.HandlerFunc
}

func (schemaHandler) ConfigSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"platform"},
		"properties": map[string]any{
			"platform": map[string]any{"type": "string", "minLength": 1},
		},
	}
}

func (schemaHandler) HealthCheck(context.Context) stage.Health {
	return stage.Unhealthy("upload", "no credentials")
}

func noop(context.Context, stage.Request) error { return nil }

func newRegistry(t *testing.T) *stage.Registry {
	t.Helper()
	reg := stage.NewRegistry()
	discover := stage.DiscovererFunc(func(context.Context, stage.Request) ([]stage.Item, error) { return nil, nil })
	if err := reg.RegisterDiscovery("scan", discover); err != nil {
		t.Fatalf("RegisterDiscovery: %v", err)
	}
	if err := reg.Register("download", stage.CapabilityFetch, stage.HandlerFunc(noop)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register("upload", stage.CapabilityPublish, schemaHandler{stage.HandlerFunc(noop)}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return reg
}

func TestRegistryLookups(t *testing.T) {
	reg := newRegistry(t)

	if !reg.IsDiscovery("scan") || reg.IsDiscovery("download") || reg.IsDiscovery("missing") {
		t.Fatal("unexpected discovery classification")
	}
	if _, ok := reg.Handler("scan"); ok {
		t.Fatal("discovery stage should not expose a pipeline handler")
	}
	if _, ok := reg.Discoverer("scan"); !ok {
		t.Fatal("expected discoverer for scan")
	}
	if capability, _ := reg.Capability("upload"); capability != stage.CapabilityPublish {
		t.Fatalf("unexpected capability %q", capability)
	}
	if diff := cmp.Diff([]string{"download", "scan", "upload"}, reg.Types()); diff != "" {
		t.Fatalf("types mismatch:\n%s", diff)
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	reg := newRegistry(t)
	if err := reg.Register("download", stage.CapabilityFetch, stage.HandlerFunc(noop)); err == nil {
		t.Fatal("expected duplicate registration error")
	}
	if err := reg.Register("scan2", stage.CapabilityDiscovery, stage.HandlerFunc(noop)); err == nil {
		t.Fatal("expected error registering discovery through Register")
	}
}

func TestValidateNode(t *testing.T) {
	reg := newRegistry(t)

	tests := []struct {
		name string
		node graph.Node
		want graph.Reason
	}{
		{"unknown type", graph.Node{ID: "x", Type: "translate"}, graph.ReasonUnknownStageType},
		{"missing platform", graph.Node{ID: "u", Type: "upload"}, graph.ReasonInvalidConfig},
		{"wrong type", graph.Node{ID: "u", Type: "upload", Data: graph.NodeData{Config: map[string]any{"platform": 3}}}, graph.ReasonInvalidConfig},
		{"valid", graph.Node{ID: "u", Type: "upload", Data: graph.NodeData{Config: map[string]any{"platform": "youtube"}}}, ""},
		{"no schema", graph.Node{ID: "d", Type: "download"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := reg.ValidateNode(tt.node)
			if tt.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, services.ErrConfiguration) {
				t.Fatalf("expected configuration error, got %v", err)
			}
			if reason, _ := graph.ReasonOf(err); reason != tt.want {
				t.Fatalf("reason = %q, want %q", reason, tt.want)
			}
		})
	}
}

func TestHealthUsesCheckers(t *testing.T) {
	reg := newRegistry(t)
	health := reg.Health(context.Background())
	if len(health) != 3 {
		t.Fatalf("expected three entries, got %d", len(health))
	}
	if health[2].Ready || health[2].Detail != "no credentials" {
		t.Fatalf("unexpected upload health: %+v", health[2])
	}
	if !health[0].Ready {
		t.Fatalf("expected download healthy: %+v", health[0])
	}
}
