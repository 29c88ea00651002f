package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/rewired-gh/ratiosentry/internal/models"
)

// Summary formats.
const (
	FormatJSON     = "json"
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

// Extension returns the file extension used for a summary format.
func Extension(format string) string {
	switch format {
	case FormatText:
		return ".txt"
	case FormatMarkdown:
		return ".md"
	case FormatHTML:
		return ".html"
	default:
		return ".json"
	}
}

// WriteSummary renders the summary part of rep in the given format.
func WriteSummary(w io.Writer, rep *models.Report, format string) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, rep)
	case FormatText:
		return writeText(w, rep)
	case FormatMarkdown:
		_, err := io.WriteString(w, Markdown(rep))
		return err
	case FormatHTML:
		return writeHTML(w, rep)
	default:
		return fmt.Errorf("unknown summary format %q", format)
	}
}

func writeJSON(w io.Writer, rep *models.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

func writeText(w io.Writer, rep *models.Report) error {
	var b strings.Builder
	p := rep.Params
	t := rep.Totals

	fmt.Fprintf(&b, "RUN %s\n", rep.RunID)
	fmt.Fprintf(&b, "window=%d lag=%d min_samples=%d z=%g mode=%s min_total_periods=%d\n",
		p.WindowSize, p.Lag, p.MinSamples, p.ZThreshold, p.WindowMode, p.MinTotalPeriods)
	b.WriteString(strings.Repeat("=", 96) + "\n")

	fmt.Fprintf(&b, "Entities: %d (%d evaluated, %d excluded)\n", t.Entities, t.EvaluatedEntities, t.ExcludedEntities)
	fmt.Fprintf(&b, "Observations: %d evaluated, %d flagged (%d high, %d low), %d degenerate baselines\n",
		t.EvaluatedCount, t.FlaggedCount, t.HighCount, t.LowCount, t.DegenerateCount)
	fmt.Fprintf(&b, "Rate: %.4f vs %.4f expected under null (expected %.1f, ratio %.2f, excess z %+.2f)\n\n",
		t.Rate, t.ExpectedRate, t.ExpectedCount, t.ObservedToExpected, t.ExcessZ)

	fmt.Fprintf(&b, "%-16s %9s %8s %6s %6s %8s %9s %8s %8s\n",
		"CATEGORY", "EVALUATED", "FLAGGED", "HIGH", "LOW", "RATE", "EXPECTED", "OBS/EXP", "EXCESS_Z")
	for _, c := range rep.Categories {
		fmt.Fprintf(&b, "%-16s %9d %8d %6d %6d %8.4f %9.1f %8.2f %+8.2f\n",
			c.Category, c.EvaluatedCount, c.FlaggedCount, c.HighCount, c.LowCount,
			c.Rate, c.ExpectedCount, c.ObservedToExpected, c.ExcessZ)
	}

	if len(rep.TopEntities) > 0 {
		b.WriteString("\nTop entities by flags:\n")
		for i, e := range rep.TopEntities {
			fmt.Fprintf(&b, "  %2d. %-32s %-16s %d of %d\n", i+1, entityLabel(e.EntityID, e.EntityName), e.Category, e.FlaggedCount, e.EvaluatedCount)
		}
	}

	if len(rep.UnknownEntities) > 0 {
		labels := make([]string, len(rep.UnknownEntities))
		for i, e := range rep.UnknownEntities {
			labels[i] = entityLabel(e.EntityID, e.EntityName)
		}
		fmt.Fprintf(&b, "\nEntities with UNKNOWN category: %s\n", strings.Join(labels, ", "))
	}

	if len(rep.Exclusions) > 0 {
		b.WriteString("\nExcluded entities:\n")
		for _, x := range rep.Exclusions {
			fmt.Fprintf(&b, "  %-32s %-16s %4d of %d periods  %s\n",
				entityLabel(x.EntityID, x.EntityName), x.Category, x.TotalPeriods, x.MinimumRequired, x.Reason)
		}
	}

	for _, n := range rep.Notes {
		fmt.Fprintf(&b, "\nNote: %s\n", n)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// Markdown renders the summary as GitHub-flavoured Markdown.
func Markdown(rep *models.Report) string {
	var b strings.Builder
	p := rep.Params
	t := rep.Totals

	b.WriteString("# Anomaly summary\n\n")
	fmt.Fprintf(&b, "Run `%s`\n\n", rep.RunID)

	b.WriteString("## Parameters\n\n")
	b.WriteString("| window_size | lag | min_samples | z_threshold | spread_floor | min_total_periods | window_mode |\n")
	b.WriteString("|---:|---:|---:|---:|---:|---:|---|\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %g | %g | %d | %s |\n\n",
		p.WindowSize, p.Lag, p.MinSamples, p.ZThreshold, p.SpreadFloor, p.MinTotalPeriods, p.WindowMode)

	b.WriteString("## Totals\n\n")
	b.WriteString("| entities | evaluated entities | excluded entities | evaluated | flagged | high | low | degenerate | rate | expected rate | expected count | observed/expected | excess z |\n")
	b.WriteString("|---:|---:|---:|---:|---:|---:|---:|---:|---:|---:|---:|---:|---:|\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %d | %d | %d | %d | %d | %.4f | %.4f | %.1f | %.2f | %+.2f |\n\n",
		t.Entities, t.EvaluatedEntities, t.ExcludedEntities, t.EvaluatedCount, t.FlaggedCount,
		t.HighCount, t.LowCount, t.DegenerateCount, t.Rate, t.ExpectedRate, t.ExpectedCount,
		t.ObservedToExpected, t.ExcessZ)

	b.WriteString("## Categories\n\n")
	b.WriteString("| category | evaluated | flagged | high | low | rate | expected rate | expected count | observed/expected | excess z |\n")
	b.WriteString("|---|---:|---:|---:|---:|---:|---:|---:|---:|---:|\n")
	for _, c := range rep.Categories {
		fmt.Fprintf(&b, "| %s | %d | %d | %d | %d | %.4f | %.4f | %.1f | %.2f | %+.2f |\n",
			mdEscape(string(c.Category)), c.EvaluatedCount, c.FlaggedCount, c.HighCount, c.LowCount,
			c.Rate, c.ExpectedRate, c.ExpectedCount, c.ObservedToExpected, c.ExcessZ)
	}
	b.WriteString("\n")

	if len(rep.TopEntities) > 0 {
		b.WriteString("## Top entities\n\n")
		b.WriteString("| entity | name | category | flagged | evaluated |\n")
		b.WriteString("|---|---|---|---:|---:|\n")
		for _, e := range rep.TopEntities {
			fmt.Fprintf(&b, "| %s | %s | %s | %d | %d |\n",
				mdEscape(e.EntityID), mdEscape(e.EntityName), mdEscape(string(e.Category)), e.FlaggedCount, e.EvaluatedCount)
		}
		b.WriteString("\n")
	}

	if len(rep.UnknownEntities) > 0 {
		b.WriteString("## Entities with UNKNOWN category\n\n")
		for _, e := range rep.UnknownEntities {
			fmt.Fprintf(&b, "- %s\n", mdEscape(entityLabel(e.EntityID, e.EntityName)))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Exclusions\n\n")
	if len(rep.Exclusions) == 0 {
		b.WriteString("None.\n\n")
	} else {
		b.WriteString("| entity | name | category | total periods | minimum required | reason |\n")
		b.WriteString("|---|---|---|---:|---:|---|\n")
		for _, x := range rep.Exclusions {
			fmt.Fprintf(&b, "| %s | %s | %s | %d | %d | %s |\n",
				mdEscape(x.EntityID), mdEscape(x.EntityName), mdEscape(string(x.Category)), x.TotalPeriods, x.MinimumRequired, x.Reason)
		}
		b.WriteString("\n")
	}

	for _, n := range rep.Notes {
		fmt.Fprintf(&b, "> %s\n", mdEscape(n))
	}
	return b.String()
}

// entityLabel renders an entity as "id (name)", or just the id when unnamed.
func entityLabel(id, name string) string {
	if name == "" {
		return id
	}
	return id + " (" + name + ")"
}

// mdEscape keeps user-supplied labels from breaking tables or markup.
func mdEscape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "|", `\|`, "*", `\*`, "_", `\_`, "`", "\\`", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}

func writeHTML(w io.Writer, rep *models.Report) error {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))

	var body bytes.Buffer
	if err := md.Convert([]byte(Markdown(rep)), &body); err != nil {
		return fmt.Errorf("failed to render HTML: %w", err)
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>Anomaly summary %s</title>\n", html.EscapeString(rep.RunID))
	b.WriteString("<style>body{font-family:sans-serif;max-width:72em;margin:2em auto}table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:.25em .6em}</style>\n")
	b.WriteString("</head>\n<body>\n")
	b.Write(body.Bytes())
	b.WriteString("</body>\n</html>\n")

	_, err := io.WriteString(w, b.String())
	return err
}
