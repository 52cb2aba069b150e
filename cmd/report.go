package cmd

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	"os"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/spf13/cobra"

	"github.com/secaudit/secaudit/internal/finding"
	"github.com/secaudit/secaudit/internal/report"
)

//go:embed templates/report.html templates/report.md
var reportTemplateFS embed.FS

var reportTemplateFuncs = map[string]interface{}{
	"formatTime":     formatShortTimestamp,
	"formatDuration": func(seconds float64) string { return fmt.Sprintf("%.2fs", seconds) },
	"severityClass":  severityClass,
	"upper":          strings.ToUpper,
}

var (
	htmlReportTemplate = htmltemplate.Must(
		htmltemplate.New("report.html").Funcs(reportTemplateFuncs).ParseFS(reportTemplateFS, "templates/report.html"),
	)
	markdownReportTemplate = texttemplate.Must(
		texttemplate.New("report.md").Funcs(reportTemplateFuncs).ParseFS(reportTemplateFS, "templates/report.md"),
	)
)

// TemplateData holds the data for markdown/HTML/PDF rendering.
type TemplateData struct {
	Report         *report.AuditReport
	GeneratedAt    time.Time
	SeverityCounts map[finding.Severity]int
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render a stored audit report",
}

var reportGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Render a stored report as markdown, HTML, PDF or JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		inPath, _ := cmd.Flags().GetString("in")
		outPath, _ := cmd.Flags().GetString("out")
		format, _ := cmd.Flags().GetString("format")

		format = strings.ToLower(format)
		if format != "json" && format != "md" && format != "html" && format != "pdf" {
			return fmt.Errorf("invalid format: %s (must be json, md, html, or pdf)", format)
		}
		if outPath == "" {
			outPath = strings.TrimSuffix(inPath, ".json") + "." + format
		}

		rep, err := report.Read(inPath)
		if err != nil {
			return err
		}

		data := TemplateData{
			Report:         rep,
			GeneratedAt:    time.Now().UTC(),
			SeverityCounts: rep.CountBySeverity(),
		}

		var content []byte
		switch format {
		case "json":
			content, err = json.MarshalIndent(rep, "", "  ")
		case "md":
			content, err = renderMarkdownReport(data)
		case "html":
			content, err = renderHTMLReport(data)
		case "pdf":
			content, err = renderPDFReport(data)
		}
		if err != nil {
			return fmt.Errorf("render report: %w", err)
		}

		if err := os.WriteFile(outPath, content, 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}

		fmt.Printf("Report generated: %s\n", outPath)
		fmt.Printf("Format: %s\n", format)
		fmt.Printf("Findings: %d across %d target(s)\n", len(rep.Findings), len(rep.Targets))
		return nil
	},
}

func renderMarkdownReport(data TemplateData) ([]byte, error) {
	var buf bytes.Buffer
	if err := markdownReportTemplate.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderHTMLReport(data TemplateData) ([]byte, error) {
	var buf bytes.Buffer
	if err := htmlReportTemplate.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderPDFReport(data TemplateData) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Security Audit Report", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Security Audit Report")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 10)
	meta := data.Report.Metadata
	lines := []string{
		fmt.Sprintf("Generated: %s", formatShortTimestamp(data.GeneratedAt)),
		fmt.Sprintf("Run: %s - %s", formatShortTimestamp(meta.StartedAt), formatShortTimestamp(meta.CompletedAt)),
		fmt.Sprintf("Targets: %d   Findings: %d   Invocations: %d",
			len(data.Report.Targets), len(data.Report.Findings), len(meta.Invocations)),
	}
	if meta.Partial {
		lines = append(lines, "PARTIAL RUN: cancelled before all adapters completed")
	}
	for _, line := range lines {
		pdf.CellFormat(0, 6, line, "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(25, 7, "Severity", "1", 0, "L", false, 0, "")
	pdf.CellFormat(35, 7, "Category", "1", 0, "L", false, 0, "")
	pdf.CellFormat(40, 7, "Target", "1", 0, "L", false, 0, "")
	pdf.CellFormat(90, 7, "Description", "1", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	for _, f := range data.Report.Findings {
		pdf.CellFormat(25, 6, string(f.Severity), "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 6, string(f.Category), "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, truncate(f.Target, 24), "1", 0, "L", false, 0, "")
		pdf.CellFormat(90, 6, truncate(f.Description, 60), "1", 1, "L", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func formatShortTimestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04:05 UTC")
}

func severityClass(s finding.Severity) string {
	switch s {
	case finding.SeverityCritical, finding.SeverityHigh:
		return "sev-high"
	case finding.SeverityMedium:
		return "sev-medium"
	default:
		return "sev-low"
	}
}

func init() {
	reportGenerateCmd.Flags().String("in", "", "stored report file (required)")
	reportGenerateCmd.Flags().String("format", "md", "output format: json, md, html, pdf")
	reportGenerateCmd.Flags().String("out", "", "output path (default: derived from --in)")
	_ = reportGenerateCmd.MarkFlagRequired("in")

	reportCmd.AddCommand(reportGenerateCmd)
}
