package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rewired-gh/ratiosentry/internal/models"
)

// Columns is the required input column set, in the order WriteCSV emits it.
var Columns = []string{"entity_id", "category", "period", "value"}

// NameColumn is the optional entity display name column.
const NameColumn = "entity_name"

// isNull reports whether a cell means "no value".
func isNull(cell string) bool {
	switch strings.ToLower(strings.TrimSpace(cell)) {
	case "", "null", "na", "nan":
		return true
	}
	return false
}

// ReadCSV parses observation records from r. The header row must name
// entity_id, category, period and value in any order and may name
// entity_name; other columns are ignored. Row numbers on the returned
// records count data rows from 1.
func ReadCSV(r io.Reader) ([]models.Record, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	pos := make([]int, len(Columns))
	for i, name := range Columns {
		p, ok := index[name]
		if !ok {
			return nil, &models.InputValidationError{Reason: fmt.Sprintf("CSV header is missing column %q", name)}
		}
		pos[i] = p
	}
	namePos, hasName := index[NameColumn]
	cr.FieldsPerRecord = len(header)

	var records []models.Record
	for row := 1; ; row++ {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &models.InputValidationError{Row: row, Reason: err.Error()}
		}

		rec := models.Record{
			Row:      row,
			EntityID: strings.TrimSpace(fields[pos[0]]),
			Period:   strings.TrimSpace(fields[pos[2]]),
		}
		if hasName {
			rec.EntityName = strings.TrimSpace(fields[namePos])
		}
		if cat := fields[pos[1]]; !isNull(cat) {
			c := strings.TrimSpace(cat)
			rec.Category = &c
		}
		if cell := fields[pos[3]]; !isNull(cell) {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, &models.InputValidationError{
					Row:      row,
					EntityID: rec.EntityID,
					Period:   rec.Period,
					Reason:   fmt.Sprintf("value %q is not a number", cell),
				}
			}
			rec.Value = &v
		}
		records = append(records, rec)
	}
	return records, nil
}

// WriteCSV writes records with the standard header, plus entity_name when
// any record carries a name. Missing categories and values are written as
// empty cells.
func WriteCSV(w io.Writer, records []models.Record) error {
	withName := false
	for _, r := range records {
		if r.EntityName != "" {
			withName = true
			break
		}
	}

	header := Columns
	if withName {
		header = append(append([]string{}, Columns...), NameColumn)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range records {
		var category, value string
		if r.Category != nil {
			category = *r.Category
		}
		if r.Value != nil {
			value = strconv.FormatFloat(*r.Value, 'f', -1, 64)
		}
		row := []string{r.EntityID, category, r.Period, value}
		if withName {
			row = append(row, r.EntityName)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
