package graph_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"mediaflow/internal/graph"
	"mediaflow/internal/services"
)

func isScan(stageType string) bool { return stageType == "scan" }

func node(id, typ string) graph.Node {
	return graph.Node{ID: id, Type: typ, Data: graph.NodeData{Label: id}}
}

func stageIDs(p *graph.Pipeline) []string {
	ids := make([]string, 0, len(p.Stages))
	for _, n := range p.Stages {
		ids = append(ids, n.ID)
	}
	return ids
}

func TestResolveReturnsPathInEdgeOrder(t *testing.T) {
	def := graph.Definition{
		Nodes: []graph.Node{node("up", "upload"), node("dl", "download"), node("s", "scan"), node("b", "burn")},
		Edges: []graph.Edge{{Source: "b", Target: "up"}, {Source: "s", Target: "dl"}, {Source: "dl", Target: "b"}},
	}
	pipeline, err := graph.Resolve(def, isScan, graph.Options{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if pipeline.Discovery.ID != "s" {
		t.Fatalf("unexpected discovery node %q", pipeline.Discovery.ID)
	}
	if diff := cmp.Diff([]string{"dl", "b", "up"}, stageIDs(pipeline)); diff != "" {
		t.Fatalf("stage order mismatch (-want +got):\n%s", diff)
	}
	if len(pipeline.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", pipeline.Warnings)
	}

	again, err := graph.Resolve(def, isScan, graph.Options{})
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if diff := cmp.Diff(pipeline, again); diff != "" {
		t.Fatalf("resolution is not deterministic:\n%s", diff)
	}
}

func TestResolveEmptyPipeline(t *testing.T) {
	def := graph.Definition{Nodes: []graph.Node{node("s", "scan")}}
	pipeline, err := graph.Resolve(def, isScan, graph.Options{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(pipeline.Stages) != 0 {
		t.Fatalf("expected empty pipeline, got %v", stageIDs(pipeline))
	}
}

func TestResolveBranchTakesFirstEdge(t *testing.T) {
	def := graph.Definition{
		Nodes: []graph.Node{node("s", "scan"), node("a", "download"), node("b", "download")},
		Edges: []graph.Edge{{Source: "s", Target: "b"}, {Source: "s", Target: "a"}, {Source: "s", Target: "b"}},
	}
	pipeline, err := graph.Resolve(def, isScan, graph.Options{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if diff := cmp.Diff([]string{"b"}, stageIDs(pipeline)); diff != "" {
		t.Fatalf("stage mismatch (-want +got):\n%s", diff)
	}
	if len(pipeline.Warnings) != 1 {
		t.Fatalf("expected one warning, got %v", pipeline.Warnings)
	}

	_, err = graph.Resolve(def, isScan, graph.Options{Strict: true})
	if reason, _ := graph.ReasonOf(err); reason != graph.ReasonBranch {
		t.Fatalf("expected branch error in strict mode, got %v", err)
	}
}

func TestResolveConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		def  graph.Definition
		want graph.Reason
	}{
		{
			name: "no discovery",
			def:  graph.Definition{Nodes: []graph.Node{node("d", "download")}},
			want: graph.ReasonMissingDiscovery,
		},
		{
			name: "two discovery",
			def:  graph.Definition{Nodes: []graph.Node{node("s1", "scan"), node("s2", "scan")}},
			want: graph.ReasonMultipleDiscovery,
		},
		{
			name: "unknown edge target",
			def: graph.Definition{
				Nodes: []graph.Node{node("s", "scan")},
				Edges: []graph.Edge{{Source: "s", Target: "ghost"}},
			},
			want: graph.ReasonUnknownNode,
		},
		{
			name: "cycle",
			def: graph.Definition{
				Nodes: []graph.Node{node("s", "scan"), node("a", "download"), node("b", "burn")},
				Edges: []graph.Edge{{Source: "s", Target: "a"}, {Source: "a", Target: "b"}, {Source: "b", Target: "a"}},
			},
			want: graph.ReasonCycle,
		},
		{
			name: "back to discovery",
			def: graph.Definition{
				Nodes: []graph.Node{node("s", "scan"), node("a", "download")},
				Edges: []graph.Edge{{Source: "s", Target: "a"}, {Source: "a", Target: "s"}},
			},
			want: graph.ReasonCycle,
		},
		{
			name: "duplicate ids",
			def:  graph.Definition{Nodes: []graph.Node{node("s", "scan"), node("s", "download")}},
			want: graph.ReasonInvalidDefinition,
		},
		{
			name: "missing type",
			def:  graph.Definition{Nodes: []graph.Node{{ID: "s"}}},
			want: graph.ReasonInvalidDefinition,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := graph.Resolve(tt.def, isScan, graph.Options{})
			if err == nil {
				t.Fatal("expected error")
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

func TestParseReactFlowShape(t *testing.T) {
	raw := `{
		"nodes": [
			{"id": "1", "type": "scan", "position": {"x": 0, "y": 0}, "data": {"label": "Scan", "config": {"url": "https://youtube.com/@chan", "video_limit": 3}}},
			{"id": "2", "type": "download", "data": {"label": "Download"}}
		],
		"edges": [{"id": "e1", "source": "1", "target": "2"}]
	}`
	def, err := graph.Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if def.Nodes[0].Config()["url"] != "https://youtube.com/@chan" {
		t.Fatalf("unexpected config: %v", def.Nodes[0].Config())
	}
	if def.Nodes[1].Config() == nil || def.Nodes[1].Label() != "Download" {
		t.Fatalf("unexpected second node: %+v", def.Nodes[1])
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flow.yaml")
	body := "nodes:\n  - id: s\n    type: scan\n    data:\n      config:\n        url: https://example.com\n  - id: d\n    type: download\nedges:\n  - source: s\n    target: d\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	def, err := graph.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	pipeline, err := graph.Resolve(def, isScan, graph.Options{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if diff := cmp.Diff([]string{"d"}, stageIDs(pipeline)); diff != "" {
		t.Fatalf("stage mismatch:\n%s", diff)
	}
	if pipeline.Discovery.Label() != "s" {
		t.Fatalf("expected label fallback to id, got %q", pipeline.Discovery.Label())
	}
}
