package dag

import (
	"fmt"
	"sync"

	"github.com/autom8ter/dagger"

	"github.com/deployops/taskrun/internal/task"
)

const (
	DefaultNodeType = "task"
	DefaultEdgeType = "dependency"
)

// Graph is the transient dependency graph of one orchestration run. Nodes are
// tasks keyed by identity; edges point from a dependency to its dependent.
type Graph struct {
	graph *dagger.Graph
	nodes map[string]*task.Task
	mutex sync.RWMutex
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		graph: dagger.NewGraph(),
		nodes: make(map[string]*task.Task),
	}
}

// Build constructs the graph for a discovered task list. Dependencies on
// identities not discovered in this run are omitted; they are checked against
// the persisted store at execution time instead.
func Build(tasks []*task.Task) (*Graph, error) {
	g := NewGraph()

	for _, t := range tasks {
		if err := g.AddNode(t); err != nil {
			return nil, err
		}
	}
	for _, t := range tasks {
		deps, err := t.ResolveDependencies()
		if err != nil {
			return nil, err
		}
		for _, dep := range deps {
			if _, discovered := g.nodes[dep]; !discovered {
				continue
			}
			if err := g.AddDependency(dep, t.Identity); err != nil {
				return nil, err
			}
		}
	}
	return g, nil
}

// AddNode adds a task node to the graph. Two same-identity tasks are the same
// dependency-graph node; re-adding one is an error.
func (g *Graph) AddNode(t *task.Task) error {
	if t == nil {
		return fmt.Errorf("node cannot be nil")
	}
	if t.Identity == "" {
		return fmt.Errorf("node identity cannot be empty")
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	if _, exists := g.nodes[t.Identity]; exists {
		return fmt.Errorf("node with identity %s already exists", t.Identity)
	}

	path := dagger.Path{XID: t.Identity, XType: DefaultNodeType}
	attributes := dagger.Attributes{"task": t}
	g.graph.SetNode(path, attributes)

	g.nodes[t.Identity] = t
	return nil
}

// AddDependency creates a directed edge (fromID -> toID), meaning toID
// depends on fromID.
func (g *Graph) AddDependency(fromID, toID string) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if _, exists := g.nodes[fromID]; !exists {
		return fmt.Errorf("source node %s does not exist", fromID)
	}
	if _, exists := g.nodes[toID]; !exists {
		return fmt.Errorf("target node %s does not exist", toID)
	}

	fromPath := dagger.Path{XID: fromID, XType: DefaultNodeType}
	toPath := dagger.Path{XID: toID, XType: DefaultNodeType}
	edgeNode := dagger.Node{
		Path:       dagger.Path{XType: DefaultEdgeType},
		Attributes: dagger.Attributes{"type": "dependency"},
	}

	if _, err := g.graph.SetEdge(fromPath, toPath, edgeNode); err != nil {
		return fmt.Errorf("failed to add dependency from %s to %s: %w", fromID, toID, err)
	}
	return nil
}

// GetTask retrieves a task by identity.
func (g *Graph) GetTask(id string) (*task.Task, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	t, exists := g.nodes[id]
	if !exists {
		return nil, fmt.Errorf("node %s not found", id)
	}
	return t, nil
}

// GetDependencies returns the identities that must complete before id.
func (g *Graph) GetDependencies(id string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	if _, exists := g.nodes[id]; !exists {
		return nil, fmt.Errorf("node %s not found", id)
	}
	return g.getDependenciesUnsafe(id), nil
}

func (g *Graph) getDependenciesUnsafe(id string) []string {
	var deps []string
	nodePath := dagger.Path{XID: id, XType: DefaultNodeType}

	g.graph.RangeEdgesTo(DefaultEdgeType, nodePath, func(e dagger.Edge) bool {
		deps = append(deps, e.From.XID)
		return true
	})
	return deps
}

// GetDependents returns the identities that depend on id.
func (g *Graph) GetDependents(id string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	if _, exists := g.nodes[id]; !exists {
		return nil, fmt.Errorf("node %s not found", id)
	}
	return g.getDependentsUnsafe(id), nil
}

func (g *Graph) getDependentsUnsafe(id string) []string {
	var dependents []string
	nodePath := dagger.Path{XID: id, XType: DefaultNodeType}

	g.graph.RangeEdgesFrom(DefaultEdgeType, nodePath, func(e dagger.Edge) bool {
		dependents = append(dependents, e.To.XID)
		return true
	})
	return dependents
}

// AllIdentities returns all node identities in the graph.
func (g *Graph) AllIdentities() []string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	return ids
}

// Size returns the number of nodes in the graph.
func (g *Graph) Size() int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return len(g.nodes)
}

// Validate checks the graph for cycles.
func (g *Graph) Validate() error {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	if g.hasCycle() {
		return fmt.Errorf("dependency graph contains cycles")
	}
	return nil
}

func (g *Graph) hasCycle() bool {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)

	for id := range g.nodes {
		if !visited[id] {
			if g.hasCycleDFS(id, visited, recStack) {
				return true
			}
		}
	}
	return false
}

func (g *Graph) hasCycleDFS(nodeID string, visited, recStack map[string]bool) bool {
	visited[nodeID] = true
	recStack[nodeID] = true

	for _, depID := range g.getDependentsUnsafe(nodeID) {
		if !visited[depID] {
			if g.hasCycleDFS(depID, visited, recStack) {
				return true
			}
		} else if recStack[depID] {
			return true
		}
	}

	recStack[nodeID] = false
	return false
}

// Close releases graph resources.
func (g *Graph) Close() {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if g.graph != nil {
		g.graph.Close()
	}
}
