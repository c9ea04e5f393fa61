package partition

import (
	"testing"

	"omicpath/domain/pathway"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoComponentGraph() *pathway.Graph {
	return &pathway.Graph{
		Name:  "hsa04110",
		Nodes: []string{"7157", "1029", "4193", "595", "1019", "5925", "999"},
		Edges: []pathway.Edge{
			{From: "7157", To: "4193", Directed: true},
			{From: "4193", To: "1029"},
			{From: "595", To: "1019"},
			{From: "1019", To: "5925"},
			{From: "999", To: "999"},
		},
	}
}

func TestPartition_ConnectedComponentsInNodeOrder(t *testing.T) {
	g := twoComponentGraph()
	universe := []string{"999", "5925", "1019", "595", "4193", "1029", "7157"}

	modules := NewPartitioner(1).Partition(g, universe)
	require.Len(t, modules, 3)

	assert.Equal(t, 1, modules[0].Index)
	assert.Equal(t, []string{"7157", "1029", "4193"}, modules[0].Genes)
	assert.Len(t, modules[0].Edges, 2)

	assert.Equal(t, 2, modules[1].Index)
	assert.Equal(t, []string{"595", "1019", "5925"}, modules[1].Genes)

	assert.Equal(t, []string{"999"}, modules[2].Genes, "self loop leaves a singleton")
	assert.Equal(t, "hsa04110#3", modules[2].Name())
	assert.Same(t, g, modules[2].Pathway)
}

func TestPartition_Deterministic(t *testing.T) {
	g := twoComponentGraph()
	universe := []string{"7157", "1029", "4193", "595", "1019", "5925", "999"}
	p := NewPartitioner(1)

	first := p.Partition(g, universe)
	for i := 0; i < 50; i++ {
		again := p.Partition(g, universe)
		require.Equal(t, len(first), len(again))
		for j := range first {
			assert.Equal(t, first[j].Index, again[j].Index)
			assert.Equal(t, first[j].Genes, again[j].Genes)
		}
	}
}

func TestPartition_RestrictionSplitsComponents(t *testing.T) {
	g := twoComponentGraph()
	// removing the bridge 1019 splits 595 and 5925
	modules := NewPartitioner(1).Partition(g, []string{"595", "5925"})
	require.Len(t, modules, 2)
	assert.Equal(t, []string{"595"}, modules[0].Genes)
	assert.Equal(t, []string{"5925"}, modules[1].Genes)
	assert.Empty(t, modules[0].Edges)
}

func TestPartition_MinSizeDropsSmallComponents(t *testing.T) {
	g := twoComponentGraph()
	universe := []string{"7157", "1029", "4193", "595", "1019", "5925", "999"}

	modules := NewPartitioner(2).Partition(g, universe)
	require.Len(t, modules, 2)
	assert.Equal(t, 1, modules[0].Index)
	assert.Equal(t, 2, modules[1].Index)
}

func TestPartition_NoOverlapGivesEmptyList(t *testing.T) {
	modules := NewPartitioner(1).Partition(twoComponentGraph(), []string{"1", "2"})
	assert.Empty(t, modules)

	assert.Empty(t, NewPartitioner(1).Partition(&pathway.Graph{Name: "empty"}, []string{"1"}))
}
