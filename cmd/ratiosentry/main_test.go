package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/ratiosentry/internal/models"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, exitOK},
		{errors.New("boom"), exitFailure},
		{fmt.Errorf("wrapped: %w", models.ErrInvalidConfig), exitFailure},
		{&models.InputValidationError{Row: 3, Reason: "bad"}, exitInputValidation},
		{fmt.Errorf("load: %w", &models.InputValidationError{Reason: "bad"}), exitInputValidation},
		{models.ErrEmptyResultSet, exitEmptyResultSet},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, exitCode(tt.err), "%v", tt.err)
	}
}

func TestSynthThenRun(t *testing.T) {
	dir := t.TempDir()
	for _, format := range []string{"csv", "sqlite"} {
		t.Run(format, func(t *testing.T) {
			input := filepath.Join(dir, "obs."+format)
			_, err := execute(t, "synth", "--output", input, "--format", format,
				"--entities", "12", "--trend-entities", "3", "--periods", "40", "--log-level", "error")
			require.NoError(t, err)

			outDir := filepath.Join(dir, "out-"+format)
			stdout, err := execute(t, "run", "--input", input, "--input-format", format,
				"--output-dir", outDir, "--workers", "3", "--log-level", "error")
			require.NoError(t, err)
			assert.Contains(t, stdout, "observations evaluated")

			table, err := os.ReadFile(filepath.Join(outDir, "evaluations.csv"))
			require.NoError(t, err)
			lines := strings.Split(strings.TrimSpace(string(table)), "\n")
			// 15 entities, periods 8..40 each.
			assert.Len(t, lines, 1+15*33)

			raw, err := os.ReadFile(filepath.Join(outDir, "summary.json"))
			require.NoError(t, err)
			var rep models.Report
			require.NoError(t, json.Unmarshal(raw, &rep))
			assert.Equal(t, 15, rep.Totals.Entities)
			assert.Equal(t, 15*33, rep.Totals.EvaluatedCount)
			require.Len(t, rep.Categories, 2)
		})
	}
}

func TestRunWithConfigFile(t *testing.T) {
	input := writeFile(t, "obs.csv", strings.Join([]string{
		"entity_id,category,period,value",
		"R1,train,2020-01,0.70",
		"R1,train,2020-02,0.72",
		"R1,train,2020-03,0.68",
		"R1,train,2020-04,0.74",
		"R1,train,2020-05,0.69",
		"R1,train,2020-06,0.71",
		"R1,train,2020-07,0.71",
		"R1,train,2020-08,0.40",
		"R2,bus,2020-01,0.5",
	}, "\n"))
	outDir := t.TempDir()
	cfgPath := writeFile(t, "config.yaml", fmt.Sprintf(`
input:
  format: csv
  path: %q
analysis:
  categories: [TRAIN, BUS]
  known_events:
    "2020-08": "timetable change"
output:
  dir: %q
  summary_format: markdown
logging:
  level: error
`, input, outDir))

	_, err := execute(t, "run", "--config", cfgPath)
	require.NoError(t, err)

	table, err := os.ReadFile(filepath.Join(outDir, "evaluations.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(table), "R1,,TRAIN,2020-08,0.4,")
	assert.Contains(t, string(table), ",LOW,true,timetable change")

	summary, err := os.ReadFile(filepath.Join(outDir, "summary.md"))
	require.NoError(t, err)
	assert.Contains(t, string(summary), "| R2 |  | BUS | 1 | 8 | insufficient_history |")
}

// writeTransitDB builds the routes/otp_monthly layout the example config
// queries. Route X9 has no routes row, so its mode and name are NULL.
func writeTransitDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "otp.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	stmts := []string{
		`CREATE TABLE routes (route_id TEXT PRIMARY KEY, route_name TEXT, mode TEXT)`,
		`CREATE TABLE otp_monthly (route_id TEXT, month TEXT, otp REAL)`,
		`INSERT INTO routes VALUES
			('1', 'Freeport Road', 'BUS'),
			('RED', 'Red Line - South Hills Village', 'RAIL'),
			('MI', 'Monongahela Incline', 'INCLINE')`,
	}
	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}

	base := map[string]float64{"1": 0.68, "RED": 0.86, "MI": 0.97, "X9": 0.61}
	for id, otp := range base {
		for m := 1; m <= 10; m++ {
			v := otp + 0.01*float64(m%3)
			if id == "RED" && m == 10 {
				v = 0.55
			}
			_, err := db.Exec(`INSERT INTO otp_monthly VALUES (?, ?, ?)`, id, fmt.Sprintf("2019-%02d", m), v)
			require.NoError(t, err)
		}
	}
	return path
}

func TestRunExampleConfig(t *testing.T) {
	input := writeTransitDB(t)
	outDir := t.TempDir()

	stdout, err := execute(t, "run", "--config", filepath.Join("..", "..", "configs", "config.example.yaml"),
		"--input", input, "--output-dir", outDir, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, stdout, "observations evaluated")

	table, err := os.ReadFile(filepath.Join(outDir, "evaluations.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(table)), "\n")
	assert.Len(t, lines, 1+4*3)
	assert.Contains(t, string(table), "\nRED,Red Line - South Hills Village,RAIL,2019-10,0.55,")
	assert.Contains(t, string(table), "\nMI,Monongahela Incline,INCLINE,2019-08,")
	assert.Contains(t, string(table), "\nX9,,UNKNOWN,2019-08,")

	summary, err := os.ReadFile(filepath.Join(outDir, "summary.md"))
	require.NoError(t, err)
	for _, category := range []string{"BUS", "RAIL", "INCLINE", "UNKNOWN"} {
		assert.Contains(t, string(summary), "| "+category+" |")
	}
	assert.Contains(t, string(summary), "| RED | Red Line - South Hills Village | RAIL | 1 | 3 |")
	assert.Contains(t, string(summary), "- X9\n")
}

func TestRunFailures(t *testing.T) {
	outDir := t.TempDir()

	t.Run("missing input flag", func(t *testing.T) {
		_, err := execute(t, "run", "--output-dir", outDir)
		require.ErrorIs(t, err, models.ErrInvalidConfig)
		assert.Equal(t, exitFailure, exitCode(err))
	})

	t.Run("value out of range", func(t *testing.T) {
		input := writeFile(t, "bad.csv", "entity_id,category,period,value\nR1,TRAIN,2020-01,1.5\n")
		_, err := execute(t, "run", "--input", input, "--output-dir", outDir, "--log-level", "error")
		require.Error(t, err)
		assert.Equal(t, exitInputValidation, exitCode(err))
		assert.Contains(t, err.Error(), "entity R1")
	})

	t.Run("duplicate period", func(t *testing.T) {
		input := writeFile(t, "dup.csv", "entity_id,category,period,value\nR1,TRAIN,2020-01,0.5\nR1,TRAIN,2020-01,0.6\n")
		_, err := execute(t, "run", "--input", input, "--output-dir", outDir, "--log-level", "error")
		assert.Equal(t, exitInputValidation, exitCode(err))
	})

	t.Run("empty input", func(t *testing.T) {
		input := writeFile(t, "empty.csv", "entity_id,category,period,value\n")
		_, err := execute(t, "run", "--input", input, "--output-dir", outDir, "--log-level", "error")
		assert.Equal(t, exitEmptyResultSet, exitCode(err))
	})
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "ratiosentry dev\n", out)
}
