package stores

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	v "github.com/cohesivestack/valgo"
	"github.com/theapemachine/bridge-go/pkg/errors"
)

const (
	maxGraphNodes = 500
	maxGraphEdges = 1000
)

/*
Node is a labeled vertex in the knowledge graph.  Node ids are unique;
inserting a duplicate is rejected rather than overwritten.
*/
type Node struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Label string `json:"label"`
}

/*
Edge links two existing nodes.  Edges are append-only and never cascade:
when the node cap later drops a referenced node, the edge silently dangles.
*/
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label"`
}

/*
Graph is the whole labeled node/edge structure, serialized wholesale to a
single JSON document.
*/
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

/*
GraphStore owns the knowledge-graph file.  Both collections are capped by
plain truncation to the first N in insertion order, not by any eviction
policy; that can orphan edges whose endpoint fell past the node cap, which
is preserved behavior.
*/
type GraphStore struct {
	mu   sync.Mutex
	path string
}

func NewGraphStore(path string) *GraphStore {
	return &GraphStore{path: path}
}

func (store *GraphStore) load() Graph {
	empty := Graph{Nodes: []Node{}, Edges: []Edge{}}

	raw, err := os.ReadFile(store.path)

	if err != nil {
		return empty
	}

	var graph Graph

	if err := json.Unmarshal(raw, &graph); err != nil {
		log.Warn("graph file is corrupt, starting empty", "path", store.path, "error", err)
		return empty
	}

	if graph.Nodes == nil {
		graph.Nodes = []Node{}
	}

	if graph.Edges == nil {
		graph.Edges = []Edge{}
	}

	return graph
}

func (store *GraphStore) save(graph Graph) error {
	raw, err := json.MarshalIndent(graph, "", "  ")

	if err != nil {
		return errors.ErrPersistence.WithMessagef("failed to encode graph: %v", err)
	}

	if err := os.WriteFile(store.path, raw, 0644); err != nil {
		return errors.ErrPersistence.WithMessagef("failed to write %s: %v", store.path, err)
	}

	return nil
}

/*
Graph returns the current graph without mutating it.
*/
func (store *GraphStore) Graph() Graph {
	store.mu.Lock()
	defer store.mu.Unlock()

	return store.load()
}

/*
AddNode inserts a new node.  Duplicate ids are a validation error and leave
the graph unchanged.  Past 500 nodes the collection is truncated to the
first 500 in insertion order.
*/
func (store *GraphStore) AddNode(id, nodeType, label string) (Node, error) {
	val := v.Is(
		v.String(id, "node id").Not().Blank(),
		v.String(label, "label").Not().Blank(),
	)

	if !val.Valid() {
		return Node{}, errors.ErrValidation.WithMessagef("%v", val.Error())
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	graph := store.load()

	for _, node := range graph.Nodes {
		if node.ID == id {
			return Node{}, errors.ErrValidation.WithMessagef("node with id %q already exists", id)
		}
	}

	node := Node{ID: id, Type: nodeType, Label: label}
	graph.Nodes = append(graph.Nodes, node)

	if len(graph.Nodes) > maxGraphNodes {
		graph.Nodes = graph.Nodes[:maxGraphNodes]
	}

	return node, store.save(graph)
}

/*
AddEdge inserts a new edge.  Both endpoints must reference existing node ids
at insertion time.  Past 1000 edges the collection is truncated to the first
1000 in insertion order.
*/
func (store *GraphStore) AddEdge(source, target, label string) (Edge, error) {
	val := v.Is(
		v.String(source, "source").Not().Blank(),
		v.String(target, "target").Not().Blank(),
		v.String(label, "label").Not().Blank(),
	)

	if !val.Valid() {
		return Edge{}, errors.ErrValidation.WithMessagef("%v", val.Error())
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	graph := store.load()

	exists := func(id string) bool {
		for _, node := range graph.Nodes {
			if node.ID == id {
				return true
			}
		}
		return false
	}

	if !exists(source) || !exists(target) {
		return Edge{}, errors.ErrValidation.WithMessagef("source or target node does not exist")
	}

	edge := Edge{Source: source, Target: target, Label: label}
	graph.Edges = append(graph.Edges, edge)

	if len(graph.Edges) > maxGraphEdges {
		graph.Edges = graph.Edges[:maxGraphEdges]
	}

	return edge, store.save(graph)
}
