package dag

import (
	"fmt"
	"sort"
	"strings"

	"github.com/deployops/taskrun/internal/task"
)

// Visualization renders a dependency graph for inspection alongside the
// dry-run preview.
type Visualization struct {
	graph *Graph
}

// NewVisualization creates a visualization helper.
func NewVisualization(graph *Graph) *Visualization {
	return &Visualization{graph: graph}
}

// NodeInfo describes one node of the rendered graph.
type NodeInfo struct {
	Identity     string   `json:"identity"`
	Kind         string   `json:"kind"`
	Timestamp    string   `json:"timestamp"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// EdgeInfo describes one dependency edge.
type EdgeInfo struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// GraphInfo is the full graph structure.
type GraphInfo struct {
	Nodes []NodeInfo `json:"nodes"`
	Edges []EdgeInfo `json:"edges"`
}

// GenerateGraphInfo builds the structural description of the graph.
func (v *Visualization) GenerateGraphInfo() (*GraphInfo, error) {
	ids := v.graph.AllIdentities()
	sort.Strings(ids)

	info := &GraphInfo{
		Nodes: make([]NodeInfo, 0, len(ids)),
	}
	for _, id := range ids {
		t, err := v.graph.GetTask(id)
		if err != nil {
			return nil, err
		}
		deps, err := v.graph.GetDependencies(id)
		if err != nil {
			return nil, err
		}
		sort.Strings(deps)

		info.Nodes = append(info.Nodes, NodeInfo{
			Identity:     t.Identity,
			Kind:         t.Kind.String(),
			Timestamp:    t.Timestamp,
			Dependencies: deps,
		})
		for _, dep := range deps {
			info.Edges = append(info.Edges, EdgeInfo{From: dep, To: id})
		}
	}
	return info, nil
}

// RenderDOT renders the graph in Graphviz DOT format. Schema changes are
// drawn as boxes, operations as ellipses.
func (v *Visualization) RenderDOT() (string, error) {
	info, err := v.GenerateGraphInfo()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("digraph tasks {\n")
	b.WriteString("  rankdir=TB;\n")

	for _, node := range info.Nodes {
		shape := "ellipse"
		if node.Kind == task.KindSchemaChange.String() {
			shape = "box"
		}
		b.WriteString(fmt.Sprintf("  %q [shape=%s, label=%q];\n", node.Identity, shape, node.Identity))
	}
	for _, edge := range info.Edges {
		b.WriteString(fmt.Sprintf("  %q -> %q;\n", edge.From, edge.To))
	}
	b.WriteString("}\n")
	return b.String(), nil
}
