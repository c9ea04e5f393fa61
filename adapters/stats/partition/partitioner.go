package partition

import (
	"sort"

	"omicpath/domain/pathway"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Partitioner splits pathway graphs into connected modules over the genes
// actually measured.
type Partitioner struct {
	// MinSize is the smallest component kept as a module. Values below 1 mean 1.
	MinSize int
}

// NewPartitioner creates a partitioner keeping components of at least minSize genes
func NewPartitioner(minSize int) *Partitioner {
	if minSize < 1 {
		minSize = 1
	}
	return &Partitioner{MinSize: minSize}
}

// Partition restricts g to the nodes in universe and returns its connected
// components as modules. Genes inside a module follow the pathway's node order
// and modules are numbered by the position of their first gene, so identical
// inputs always give identical numbering. An empty result is not an error.
func (p *Partitioner) Partition(g *pathway.Graph, universe []string) []pathway.Module {
	if g == nil {
		return nil
	}
	inUniverse := make(map[string]bool, len(universe))
	for _, u := range universe {
		inUniverse[u] = true
	}

	ug := simple.NewUndirectedGraph()
	pos := make(map[string]int64)
	var kept []string
	for _, n := range g.Nodes {
		if !inUniverse[n] {
			continue
		}
		if _, dup := pos[n]; dup {
			continue
		}
		id := int64(len(kept))
		pos[n] = id
		kept = append(kept, n)
		ug.AddNode(simple.Node(id))
	}
	if len(kept) == 0 {
		return nil
	}

	for _, e := range g.Edges {
		a, okA := pos[e.From]
		b, okB := pos[e.To]
		if !okA || !okB || a == b {
			continue
		}
		ug.SetEdge(ug.NewEdge(simple.Node(a), simple.Node(b)))
	}

	components := topo.ConnectedComponents(ug)
	ordered := make([][]int64, 0, len(components))
	for _, comp := range components {
		ids := make([]int64, len(comp))
		for i, n := range comp {
			ids[i] = n.ID()
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		ordered = append(ordered, ids)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i][0] < ordered[j][0] })

	minSize := p.MinSize
	if minSize < 1 {
		minSize = 1
	}

	var modules []pathway.Module
	for _, ids := range ordered {
		if len(ids) < minSize {
			continue
		}
		member := make(map[string]bool, len(ids))
		genes := make([]string, len(ids))
		for i, id := range ids {
			genes[i] = kept[id]
			member[kept[id]] = true
		}
		var edges []pathway.Edge
		for _, e := range g.Edges {
			if member[e.From] && member[e.To] {
				edges = append(edges, e)
			}
		}
		modules = append(modules, pathway.Module{
			Pathway: g,
			Index:   len(modules) + 1,
			Genes:   genes,
			Edges:   edges,
		})
	}
	return modules
}
