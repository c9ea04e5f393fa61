package pathways

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"omicpath/domain/core"
	"omicpath/domain/pathway"

	"gopkg.in/yaml.v3"
)

type edgeFile struct {
	From     string `json:"from" yaml:"from"`
	To       string `json:"to" yaml:"to"`
	Directed bool   `json:"directed,omitempty" yaml:"directed,omitempty"`
}

type graphFile struct {
	Name  string     `json:"name" yaml:"name"`
	Nodes []string   `json:"nodes" yaml:"nodes"`
	Edges []edgeFile `json:"edges" yaml:"edges"`
}

type collectionFile struct {
	Pathways []graphFile `json:"pathways" yaml:"pathways"`
}

// LoadFile reads a pathway collection from .json, .yaml or .yml
func LoadFile(path string) (*pathway.Collection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, core.NewInvalidInputError(path, err.Error())
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return Decode(f, FormatJSON)
	case ".yaml", ".yml":
		return Decode(f, FormatYAML)
	}
	return nil, core.NewInvalidInputError(path, "unsupported pathway file (want .json, .yaml or .yml)")
}

// Format of a pathway document
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Decode parses a collection document. Nodes referenced only by edges are
// appended to the node list in first-seen order.
func Decode(r io.Reader, format Format) (*pathway.Collection, error) {
	var doc collectionFile
	switch format {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&doc); err != nil {
			return nil, core.NewInvalidInputError("pathways", "decode json: "+err.Error())
		}
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
			return nil, core.NewInvalidInputError("pathways", "decode yaml: "+err.Error())
		}
	default:
		return nil, core.NewInvalidInputError("pathways", fmt.Sprintf("unknown format %q", format))
	}

	graphs := make([]*pathway.Graph, 0, len(doc.Pathways))
	for _, gf := range doc.Pathways {
		g := &pathway.Graph{Name: gf.Name}
		seen := make(map[string]bool, len(gf.Nodes))
		add := func(n string) {
			if n != "" && !seen[n] {
				seen[n] = true
				g.Nodes = append(g.Nodes, n)
			}
		}
		for _, n := range gf.Nodes {
			add(n)
		}
		for _, e := range gf.Edges {
			add(e.From)
			add(e.To)
			g.Edges = append(g.Edges, pathway.Edge{From: e.From, To: e.To, Directed: e.Directed})
		}
		graphs = append(graphs, g)
	}
	return pathway.NewCollection(graphs...)
}
