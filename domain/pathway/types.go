package pathway

import (
	"fmt"
	"strings"

	"omicpath/domain/core"
	"omicpath/domain/reduction"
)

// Edge is a gene-gene relation. Directed edges are kept as metadata; modules
// are computed on the undirected skeleton.
type Edge struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Directed bool   `json:"directed,omitempty"`
}

// Graph is a named pathway from an external knowledge base. Read-only.
type Graph struct {
	Name  string   `json:"name"`
	Nodes []string `json:"nodes"`
	Edges []Edge   `json:"edges,omitempty"`
}

// Validate checks node uniqueness and that edges reference known nodes
func (g *Graph) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return core.NewInvalidInputError("pathway", "empty name")
	}
	seen := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if seen[n] {
			return core.NewInvalidInputError("pathway "+g.Name, "duplicate node "+n)
		}
		seen[n] = true
	}
	for _, e := range g.Edges {
		if !seen[e.From] || !seen[e.To] {
			return core.NewInvalidInputError("pathway "+g.Name, fmt.Sprintf("edge %s-%s references unknown node", e.From, e.To))
		}
	}
	return nil
}

// Topology converts the edge list for topology-aware reduction
func (g *Graph) Topology() *reduction.Topology {
	return edgesToTopology(g.Edges)
}

// Module is a connected component of a pathway restricted to data genes.
type Module struct {
	Pathway *Graph   `json:"-"`
	Index   int      `json:"index"` // 1-based within its pathway
	Genes   []string `json:"genes"`
	Edges   []Edge   `json:"edges,omitempty"`
}

// Name returns "pathway#index"
func (m Module) Name() string {
	if m.Pathway == nil {
		return fmt.Sprintf("#%d", m.Index)
	}
	return fmt.Sprintf("%s#%d", m.Pathway.Name, m.Index)
}

// Topology converts the module edges for topology-aware reduction
func (m Module) Topology() *reduction.Topology {
	return edgesToTopology(m.Edges)
}

func edgesToTopology(edges []Edge) *reduction.Topology {
	t := &reduction.Topology{Edges: make([]reduction.Edge, 0, len(edges))}
	for _, e := range edges {
		t.Edges = append(t.Edges, reduction.Edge{From: e.From, To: e.To})
	}
	return t
}

// Collection is an ordered set of pathways with unique names
type Collection struct {
	graphs []*Graph
	byName map[string]*Graph
}

// NewCollection validates every graph and rejects duplicate names
func NewCollection(graphs ...*Graph) (*Collection, error) {
	c := &Collection{byName: make(map[string]*Graph, len(graphs))}
	for _, g := range graphs {
		if g == nil {
			return nil, core.NewInvalidInputError("pathway", "nil graph")
		}
		if err := g.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byName[g.Name]; dup {
			return nil, core.NewInvalidInputError("pathway", "duplicate pathway "+g.Name)
		}
		c.graphs = append(c.graphs, g)
		c.byName[g.Name] = g
	}
	return c, nil
}

// Graphs returns pathways in insertion order
func (c *Collection) Graphs() []*Graph {
	return append([]*Graph(nil), c.graphs...)
}

// Lookup finds a pathway by name
func (c *Collection) Lookup(name string) (*Graph, bool) {
	g, ok := c.byName[name]
	return g, ok
}

// Len returns the number of pathways
func (c *Collection) Len() int { return len(c.graphs) }

// Hash returns a content hash of names, nodes and edges in order
func (c *Collection) Hash() core.Hash {
	h := &core.Hasher{}
	for _, g := range c.graphs {
		h.WriteString("pathway").WriteString(g.Name)
		for _, n := range g.Nodes {
			h.WriteString(n)
		}
		for _, e := range g.Edges {
			h.WriteString(e.From + ">" + e.To + fmt.Sprint(e.Directed))
		}
	}
	return h.Sum()
}
