package graph

import "fmt"

// DiscoveryFunc reports whether a stage type tag is a discovery stage.
type DiscoveryFunc func(stageType string) bool

// Options tune resolution.
type Options struct {
	// Strict turns a branching node into a ConfigError instead of a warning.
	Strict bool
}

// Pipeline is a resolved workflow: the discovery node plus the ordered
// stages every discovered item passes through.
type Pipeline struct {
	Discovery Node
	Stages    []Node
	Warnings  []string
}

// Resolve turns a definition into an ordered pipeline. It locates the single
// discovery node and follows outgoing edges until a node has none. When a node
// has more than one distinct successor the first edge in definition order is
// taken. Resolve never mutates def and returns identical output for identical
// input.
func Resolve(def Definition, isDiscovery DiscoveryFunc, opts Options) (*Pipeline, error) {
	if isDiscovery == nil {
		return nil, fmt.Errorf("resolve workflow: discovery predicate is required")
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}

	nodes := make(map[string]Node, len(def.Nodes))
	var discovery []Node
	for _, node := range def.Nodes {
		nodes[node.ID] = node
		if isDiscovery(node.Type) {
			discovery = append(discovery, node)
		}
	}
	switch len(discovery) {
	case 0:
		return nil, newConfigError(ReasonMissingDiscovery, "", "workflow has no discovery node")
	case 1:
	default:
		return nil, newConfigError(ReasonMultipleDiscovery, discovery[1].ID,
			fmt.Sprintf("workflow has %d discovery nodes", len(discovery)))
	}

	successors, err := buildAdjacency(def.Edges, nodes)
	if err != nil {
		return nil, err
	}

	pipeline := &Pipeline{Discovery: discovery[0]}
	visited := map[string]bool{discovery[0].ID: true}
	current := discovery[0].ID
	for {
		next := successors[current]
		if len(next) == 0 {
			break
		}
		if len(next) > 1 {
			if opts.Strict {
				return nil, newConfigError(ReasonBranch, current,
					fmt.Sprintf("node has %d outgoing edges", len(next)))
			}
			pipeline.Warnings = append(pipeline.Warnings,
				fmt.Sprintf("node %s has %d outgoing edges; following %s", current, len(next), next[0]))
		}
		target := next[0]
		if visited[target] {
			return nil, newConfigError(ReasonCycle, target,
				fmt.Sprintf("edge %s -> %s revisits a node", current, target))
		}
		visited[target] = true
		pipeline.Stages = append(pipeline.Stages, nodes[target])
		current = target
	}
	return pipeline, nil
}

// buildAdjacency maps each source to its distinct targets in edge order.
func buildAdjacency(edges []Edge, nodes map[string]Node) (map[string][]string, error) {
	successors := make(map[string][]string, len(edges))
	for _, edge := range edges {
		if _, ok := nodes[edge.Source]; !ok {
			return nil, newConfigError(ReasonUnknownNode, edge.Source,
				fmt.Sprintf("edge source %q is not a node", edge.Source))
		}
		if _, ok := nodes[edge.Target]; !ok {
			return nil, newConfigError(ReasonUnknownNode, edge.Target,
				fmt.Sprintf("edge target %q is not a node", edge.Target))
		}
		duplicate := false
		for _, existing := range successors[edge.Source] {
			if existing == edge.Target {
				duplicate = true
				break
			}
		}
		if !duplicate {
			successors[edge.Source] = append(successors[edge.Source], edge.Target)
		}
	}
	return successors, nil
}
