// Package fakestore is an in-memory row store for tests.
package fakestore

import (
	"context"
	"fmt"
	"sync"

	"github.com/setlive/setlive-go/pkg/models"
	"github.com/setlive/setlive-go/pkg/store"
)

// Store implements store.Store over per-table slices. Hooks allow tests to
// inject failures for specific calls.
type Store struct {
	mu     sync.Mutex
	tables map[string][]models.RawRecord
	nextID int

	// QueryErr fails every Query while set.
	QueryErr error
	// InsertHook, when non-nil, runs before an insert; a non-nil return
	// aborts the insert with that error.
	InsertHook func(table string, rec models.RawRecord) error

	QueryCalls  int
	InsertCalls int
	UpdateCalls int
	DeleteCalls int
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{tables: make(map[string][]models.RawRecord)}
}

// Seed replaces the rows of a table.
func (s *Store) Seed(table string, rows []models.RawRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[table] = rows
}

// Rows returns a copy of a table's rows.
func (s *Store) Rows(table string) []models.RawRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.RawRecord(nil), s.tables[table]...)
}

func (s *Store) Query(ctx context.Context, table string, opts store.QueryOpts) ([]models.RawRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.QueryCalls++
	if s.QueryErr != nil {
		return nil, s.QueryErr
	}

	var out []models.RawRecord
	for _, row := range s.tables[table] {
		if matches(row, opts.Filter) {
			out = append(out, row)
		}
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (s *Store) Insert(ctx context.Context, table string, record models.RawRecord) (models.RawRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.InsertCalls++
	if s.InsertHook != nil {
		if err := s.InsertHook(table, record); err != nil {
			return nil, err
		}
	}

	s.nextID++
	rec := make(models.RawRecord, len(record)+1)
	for k, v := range record {
		rec[k] = v
	}
	rec["id"] = fmt.Sprintf("%s-%d", table, s.nextID)
	s.tables[table] = append(s.tables[table], rec)
	return rec, nil
}

func (s *Store) Update(ctx context.Context, table, id string, fields models.RawRecord) (models.RawRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.UpdateCalls++

	for i, row := range s.tables[table] {
		if row.String("id") != id {
			continue
		}
		for k, v := range fields {
			row[k] = v
		}
		s.tables[table][i] = row
		return row, nil
	}
	return nil, &store.Error{Code: store.CodeNotFound, Message: id}
}

func (s *Store) Delete(ctx context.Context, table, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DeleteCalls++

	rows := s.tables[table]
	for i, row := range rows {
		if row.String("id") == id {
			s.tables[table] = append(rows[:i], rows[i+1:]...)
			return nil
		}
	}
	return &store.Error{Code: store.CodeNotFound, Message: id}
}

func matches(row models.RawRecord, filter map[string]any) bool {
	for k, want := range filter {
		if fmt.Sprint(row[k]) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}
