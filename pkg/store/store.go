// Package store defines the row-oriented persistence API the sync layer
// consumes. Implementations live in subpackages; the sync layer never
// depends on a concrete backend.
package store

import (
	"context"

	"github.com/setlive/setlive-go/pkg/models"
)

// QueryOpts narrows and shapes a table read.
type QueryOpts struct {
	// Filter is an equality match on column values.
	Filter map[string]any
	// Expand names child tables to embed as nested record lists.
	Expand []string
	// OrderBy names the sort column; Desc reverses it.
	OrderBy string
	Desc    bool
	// Limit caps the row count; zero means no cap.
	Limit int
}

// Store is the row store's query/mutation surface. Every call returns either
// rows or a *Error carrying a machine-readable code.
type Store interface {
	Query(ctx context.Context, table string, opts QueryOpts) ([]models.RawRecord, error)
	Insert(ctx context.Context, table string, record models.RawRecord) (models.RawRecord, error)
	Update(ctx context.Context, table, id string, fields models.RawRecord) (models.RawRecord, error)
	Delete(ctx context.Context, table, id string) error
}
