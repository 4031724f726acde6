package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/boobootoo2/medbilldozer-sub000/internal/model"
	"github.com/boobootoo2/medbilldozer-sub000/internal/source"
)

const advisoryFooter = "_Findings are advisory. Confirm every issue with your provider or insurer before disputing a charge._"

// Renderer writes session reports
type Renderer struct {
	includeFooter bool
}

// NewRenderer creates a renderer
func NewRenderer(includeFooter bool) *Renderer {
	return &Renderer{includeFooter: includeFooter}
}

// JSON encodes the session with indentation
func (r *Renderer) JSON(s *model.Session) ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}
	return append(data, '\n'), nil
}

// Markdown renders documents, issues, coverage and savings
func (r *Renderer) Markdown(s *model.Session) string {
	var b strings.Builder

	b.WriteString("# Billing Review\n\n")
	fmt.Fprintf(&b, "Session `%s` · %s\n\n", s.ID, s.CreatedAt.Format("2006-01-02 15:04 MST"))

	b.WriteString("## Savings\n\n")
	fmt.Fprintf(&b, "- Potential savings: **$%.2f**\n", s.Summary.TotalMaxSavings)
	fmt.Fprintf(&b, "- High-confidence savings: **$%.2f**\n", s.Summary.HighConfidenceSavings)
	fmt.Fprintf(&b, "- Issues: %d across %d documents (confidence: %s)\n\n", s.Summary.IssueCount, s.Summary.Documents, s.Summary.Confidence)

	b.WriteString("## Documents\n\n")
	b.WriteString("| ID | Document | Type | Provider | Issues | Savings |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	for _, d := range s.Documents {
		provider := d.Provider
		if fb, ok := d.Meta["fallback_provider"]; ok {
			provider = fmt.Sprintf("%s (fallback)", fb)
		}
		fmt.Fprintf(&b, "| `%s` | %s | %s | %s | %d | $%.2f |\n",
			d.ID, cell(d.Label), d.Type.Title(), provider, len(d.Issues), d.SavingsTotal())
	}
	b.WriteString("\n")

	b.WriteString("## Issues\n\n")
	all := allIssues(s)
	if len(all) == 0 {
		b.WriteString("No issues found.\n\n")
	} else {
		b.WriteString("| Type | Summary | Code | Date | Max Savings | Confidence | Source |\n")
		b.WriteString("|---|---|---|---|---|---|---|\n")
		for _, i := range all {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s |\n",
				i.Type, cell(i.Summary), i.Code, i.Date, money(i.MaxSavings), percent(i.Confidence), i.Source)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Coverage\n\n")
	if len(s.Coverage) == 0 {
		b.WriteString("No line items to reconcile.\n\n")
	} else {
		b.WriteString("| Date | Service | Receipt | Insurance | FSA/HSA | Status |\n")
		b.WriteString("|---|---|---|---|---|---|\n")
		for _, row := range s.Coverage {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
				row.Date, cell(row.Description), slot(row.Receipt), slot(row.Insurance), slot(row.FSA), row.Status)
		}
		b.WriteString("\n")
	}

	if len(s.Summary.Signals) > 0 {
		b.WriteString("## Signals\n\n")
		for _, sig := range s.Summary.Signals {
			fmt.Fprintf(&b, "- **%s** (%s): %s\n", sig.Type, sig.Severity, sig.Description)
		}
		b.WriteString("\n")
	}

	if r.includeFooter {
		b.WriteString("---\n\n")
		b.WriteString(advisoryFooter)
		b.WriteString("\n")
	}
	return b.String()
}

// Summary prints a short human summary
func (r *Renderer) Summary(w io.Writer, s *model.Session) {
	fmt.Fprintf(w, "\n📄 %d documents, %d issues\n", s.Summary.Documents, s.Summary.IssueCount)
	for _, d := range s.Documents {
		fmt.Fprintf(w, "  • %s [%s] %d issues\n", d.Label, d.Provider, len(d.Issues))
	}

	types := make([]string, 0, len(s.Summary.ByType))
	for t := range s.Summary.ByType {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(w, "    %-22s %d\n", t, s.Summary.ByType[t])
	}

	fmt.Fprintf(w, "💰 Potential savings: $%.2f ($%.2f high confidence)\n",
		s.Summary.TotalMaxSavings, s.Summary.HighConfidenceSavings)

	for _, sig := range s.Summary.Signals {
		if sig.Severity != model.SeverityInfo {
			fmt.Fprintf(w, "⚠️  %s\n", sig.Description)
		}
	}
}

// Render writes JSON and Markdown outputs (local paths or gs:// URLs) and
// prints the summary to w. Empty paths are skipped.
func (r *Renderer) Render(ctx context.Context, s *model.Session, jsonPath, mdPath string, w io.Writer, verbose bool) error {
	if jsonPath != "" {
		data, err := r.JSON(s)
		if err != nil {
			return err
		}
		if err := writeOutput(ctx, jsonPath, data, "application/json"); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		if verbose {
			fmt.Fprintf(w, "✓ Wrote JSON: %s\n", jsonPath)
		}
	}

	if mdPath != "" {
		if err := writeOutput(ctx, mdPath, []byte(r.Markdown(s)), "text/markdown"); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		if verbose {
			fmt.Fprintf(w, "✓ Wrote Markdown: %s\n", mdPath)
		}
	}

	r.Summary(w, s)
	return nil
}

// WriteFile writes data to a local path or gs:// URL
func (r *Renderer) WriteFile(ctx context.Context, path string, data []byte, contentType string) error {
	return writeOutput(ctx, path, data, contentType)
}

func writeOutput(ctx context.Context, path string, data []byte, contentType string) error {
	if strings.HasPrefix(path, "gs://") {
		return source.UploadGCS(ctx, path, data, contentType, true)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}

func allIssues(s *model.Session) []model.Issue {
	var out []model.Issue
	for _, d := range s.Documents {
		out = append(out, d.Issues...)
	}
	return append(out, s.Issues...)
}

func cell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "|", "\\|"), "\n", " ")
}

func money(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("$%.2f", *v)
}

func percent(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.0f%%", *v*100)
}

func slot(s *model.CoverageSlot) string {
	if s == nil {
		return "-"
	}
	if s.Paid != "" {
		return fmt.Sprintf("$%s (paid $%s)", s.Amount, s.Paid)
	}
	return "$" + s.Amount
}
