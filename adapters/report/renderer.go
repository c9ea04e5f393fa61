package report

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"

	domain "omicpath/domain/report"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// Renderer turns a ranked report into markdown or a standalone HTML page
type Renderer struct {
	// MaxRows caps the ranked table; zero renders every row
	MaxRows int
	Title   string
}

// NewRenderer creates a renderer with a default title
func NewRenderer(maxRows int) *Renderer {
	return &Renderer{MaxRows: maxRows, Title: "Pathway association report"}
}

// Markdown renders the report as a markdown document
func (r *Renderer) Markdown(rep *domain.Report) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# %s\n\n", r.Title)
	if rep.RunID != "" {
		fmt.Fprintf(&b, "- Run: `%s`\n", rep.RunID)
	}
	if rep.Mode != "" {
		fmt.Fprintf(&b, "- Mode: %s\n", rep.Mode)
	}
	if rep.Outcome != "" {
		fmt.Fprintf(&b, "- Outcome: %s\n", rep.Outcome)
	}
	fmt.Fprintf(&b, "- Units ranked: %d\n", len(rep.Rows))
	if rep.Alpha > 0 {
		fmt.Fprintf(&b, "- Significant at %g: %d\n", rep.Alpha, len(rep.Significant(rep.Alpha)))
	}
	fmt.Fprintf(&b, "- Not ranked: %d\n", len(rep.Failures))
	if m := rep.Manifest; m != nil {
		fmt.Fprintf(&b, "- Samples: %d (%s)\n", m.Samples, strings.Join(m.Omics, ", "))
		fmt.Fprintf(&b, "- Fingerprint: `%s`\n", m.Fingerprint)
	}
	b.WriteString("\n")

	rows := rep.Top(r.MaxRows)
	if len(rows) > 0 {
		b.WriteString("## Ranked units\n\n")
		b.WriteString("| Rank | Unit | p-value | BH | Stability | Covariates |\n")
		b.WriteString("|---:|---|---:|---:|---:|---|\n")
		for _, row := range rows {
			stability := "n/a"
			if row.SuccessCount != nil {
				stability = fmt.Sprintf("%d/%d", *row.SuccessCount, row.Iterations)
			}
			fmt.Fprintf(&b, "| %d | %s | %.3g | %.3g | %s | %s |\n",
				row.Rank, escape(string(row.Unit)), row.PValue, row.AdjustedPValue, stability, covariateCell(row.CovariatePValues))
		}
		if len(rows) < len(rep.Rows) {
			fmt.Fprintf(&b, "\n_%d more units not shown._\n", len(rep.Rows)-len(rows))
		}
		b.WriteString("\n")
	}

	if len(rep.Failures) > 0 {
		b.WriteString("## Not ranked\n\n| Unit | Status | Reason |\n|---|---|---|\n")
		for _, f := range rep.Failures {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", escape(string(f.Unit)), f.Status, escape(f.Reason))
		}
	}
	return b.Bytes()
}

// HTML renders the markdown through gomarkdown into a complete page
func (r *Renderer) HTML(rep *domain.Report) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	doc := p.Parse(r.Markdown(rep))
	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.CompletePage,
		Title: r.Title,
	})
	return markdown.Render(doc, renderer)
}

// WriteFile writes markdown for .md paths and HTML otherwise
func (r *Renderer) WriteFile(path string, rep *domain.Report) error {
	out := r.HTML(rep)
	if strings.HasSuffix(strings.ToLower(path), ".md") {
		out = r.Markdown(rep)
	}
	return os.WriteFile(path, out, 0o644)
}

func covariateCell(ps map[string]float64) string {
	names := make([]string, 0, len(ps))
	for n := range ps {
		names = append(names, n)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = fmt.Sprintf("%s (%.2g)", escape(n), ps[n])
	}
	return strings.Join(parts, ", ")
}

func escape(s string) string {
	return strings.NewReplacer("|", `\|`, "\n", " ").Replace(s)
}
