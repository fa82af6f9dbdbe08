package testsupport

import (
	"context"
	"testing"

	"mediaflow/internal/config"
	"mediaflow/internal/graph"
	"mediaflow/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewWorkflow stores an active workflow for tests.
func NewWorkflow(t testing.TB, st *store.Store, name string, def graph.Definition) *store.Workflow {
	t.Helper()

	wf, err := st.CreateWorkflow(context.Background(), store.Workflow{Name: name, Definition: def, IsActive: true})
	if err != nil {
		t.Fatalf("store.CreateWorkflow: %v", err)
	}
	return wf
}

// LinearDefinition builds scan -> types[0] -> types[1] ... with node ids
// equal to their types.
func LinearDefinition(discoveryConfig map[string]any, types ...string) graph.Definition {
	def := graph.Definition{
		Nodes: []graph.Node{{ID: "scan", Type: "scan", Data: graph.NodeData{Label: "Scan", Config: discoveryConfig}}},
	}
	prev := "scan"
	for _, typ := range types {
		def.Nodes = append(def.Nodes, graph.Node{ID: typ, Type: typ, Data: graph.NodeData{Label: typ}})
		def.Edges = append(def.Edges, graph.Edge{Source: prev, Target: typ})
		prev = typ
	}
	return def
}
