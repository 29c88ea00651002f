package report

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rewired-gh/ratiosentry/internal/models"
	"github.com/rewired-gh/ratiosentry/internal/storage"
)

// Artifacts names the files one run writes.
type Artifacts struct {
	Dir            string
	EvaluationFile string
	SummaryFile    string // extension is added from the format when missing
	SummaryFormat  string
}

// Paths returns the evaluation table and summary paths.
func (a Artifacts) Paths() (evaluations, summary string) {
	evaluations = filepath.Join(a.Dir, a.EvaluationFile)
	summary = filepath.Join(a.Dir, a.SummaryFile)
	if filepath.Ext(summary) == "" {
		summary += Extension(strings.ToLower(a.SummaryFormat))
	}
	return evaluations, summary
}

// WriteArtifacts renders both artifacts fully in memory, then writes each
// atomically. A failure leaves any previous artifact in place.
func WriteArtifacts(a Artifacts, rep *models.Report) (evaluations, summary string, err error) {
	evaluations, summary = a.Paths()

	var table bytes.Buffer
	if err := WriteEvaluations(&table, rep.Evaluations); err != nil {
		return "", "", fmt.Errorf("failed to encode evaluation table: %w", err)
	}
	var sum bytes.Buffer
	if err := WriteSummary(&sum, rep, strings.ToLower(a.SummaryFormat)); err != nil {
		return "", "", fmt.Errorf("failed to encode summary: %w", err)
	}

	if err := storage.WriteFileAtomic(evaluations, table.Bytes(), 0644); err != nil {
		return "", "", fmt.Errorf("failed to write evaluation table: %w", err)
	}
	if err := storage.WriteFileAtomic(summary, sum.Bytes(), 0644); err != nil {
		return "", "", fmt.Errorf("failed to write summary: %w", err)
	}
	return evaluations, summary, nil
}
