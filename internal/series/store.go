// Package series builds the read-only, in-memory Series Store: every input
// record validated, resolved to a category once, grouped per entity and
// ordered by period. Nothing in the store changes after Build returns.
package series

import (
	"fmt"
	"sort"

	"github.com/rewired-gh/ratiosentry/internal/logger"
	"github.com/rewired-gh/ratiosentry/internal/models"
)

// Store is an immutable view of all entity series for one run.
type Store struct {
	entities []*models.EntitySeries // sorted by EntityID
	index    map[string]int
	rows     int
}

type entityRow struct {
	period models.Period
	value  float64
	has    bool
	row    int
}

type entityBuild struct {
	id          string
	name        string
	category    models.Category
	categorySet bool
	categoryRow int
	rows        []entityRow
}

// Build validates records and assembles the store. Any malformed record
// aborts the whole build with an *models.InputValidationError.
func Build(records []models.Record, categories *models.CategorySet) (*Store, error) {
	if categories == nil {
		categories = models.NewCategorySet(nil)
	}

	builds := make(map[string]*entityBuild)
	for i := range records {
		rec := &records[i]
		if err := rec.Validate(); err != nil {
			return nil, err
		}

		period, err := models.ParsePeriod(rec.Period)
		if err != nil {
			return nil, &models.InputValidationError{Row: rec.Row, EntityID: rec.EntityID, Period: rec.Period, Reason: err.Error()}
		}

		b, ok := builds[rec.EntityID]
		if !ok {
			b = &entityBuild{id: rec.EntityID, category: models.CategoryUnknown}
			builds[rec.EntityID] = b
		}

		if rec.Category != nil {
			cat, err := categories.Resolve(rec.Category)
			if err != nil {
				return nil, &models.InputValidationError{Row: rec.Row, EntityID: rec.EntityID, Period: rec.Period, Reason: err.Error()}
			}
			if !cat.IsUnknown() {
				if b.categorySet && b.category != cat {
					return nil, &models.InputValidationError{
						Row:      rec.Row,
						EntityID: rec.EntityID,
						Period:   rec.Period,
						Reason:   fmt.Sprintf("category %s conflicts with %s declared at row %d", cat, b.category, b.categoryRow),
					}
				}
				b.category, b.categorySet, b.categoryRow = cat, true, rec.Row
			}
		}

		if b.name == "" {
			b.name = rec.EntityName
		}

		r := entityRow{period: period, row: rec.Row}
		if rec.Value != nil {
			r.value, r.has = *rec.Value, true
		}
		b.rows = append(b.rows, r)
	}

	s := &Store{
		entities: make([]*models.EntitySeries, 0, len(builds)),
		index:    make(map[string]int, len(builds)),
		rows:     len(records),
	}
	ids := make([]string, 0, len(builds))
	for id := range builds {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for i, id := range ids {
		es, err := builds[id].series()
		if err != nil {
			return nil, err
		}
		s.entities = append(s.entities, es)
		s.index[id] = i
	}

	logger.Debug("Series store built: %d records, %d entities", len(records), len(s.entities))
	return s, nil
}

// series sorts the entity's rows and rejects mixed period kinds and duplicates.
func (b *entityBuild) series() (*models.EntitySeries, error) {
	first := b.rows[0]
	for _, r := range b.rows[1:] {
		if !r.period.Comparable(first.period) {
			return nil, &models.InputValidationError{
				Row:      r.row,
				EntityID: b.id,
				Period:   r.period.Token,
				Reason: fmt.Sprintf("period is a %s token but row %d uses a %s token; periods are not comparable",
					r.period.Kind, first.row, first.period.Kind),
			}
		}
	}

	sort.SliceStable(b.rows, func(i, j int) bool {
		return b.rows[i].period.Before(b.rows[j].period)
	})

	es := &models.EntitySeries{
		EntityID:   b.id,
		EntityName: b.name,
		Category:   b.category,
		Periods:    make([]models.Period, len(b.rows)),
		Values:     make([]float64, len(b.rows)),
		Present:    make([]bool, len(b.rows)),
	}
	for i, r := range b.rows {
		if i > 0 && r.period.Ordinal == b.rows[i-1].period.Ordinal {
			return nil, &models.InputValidationError{
				Row:      r.row,
				EntityID: b.id,
				Period:   r.period.Token,
				Reason:   fmt.Sprintf("duplicate period (also at row %d)", b.rows[i-1].row),
			}
		}
		es.Periods[i] = r.period
		es.Values[i] = r.value
		es.Present[i] = r.has
	}
	return es, nil
}

// Entities returns every series in entity-id order. Callers must not modify them.
func (s *Store) Entities() []*models.EntitySeries {
	return s.entities
}

// Entity returns the series for id.
func (s *Store) Entity(id string) (*models.EntitySeries, bool) {
	i, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return s.entities[i], true
}

// Len returns the number of entities.
func (s *Store) Len() int {
	return len(s.entities)
}

// Rows returns the number of records the store was built from.
func (s *Store) Rows() int {
	return s.rows
}
