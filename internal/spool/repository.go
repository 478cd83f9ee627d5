package spool

import "context"

// Repository persists spools.
type Repository interface {
	LoadSpool(ctx context.Context, id int64) (*Spool, error)
	// SaveSpool inserts a spool with ID 0, otherwise updates it if its
	// Version still matches the stored one. On success ID and Version are
	// updated in place.
	SaveSpool(ctx context.Context, s *Spool) error
	DeleteSpool(ctx context.Context, id int64) error
	ListSpools(ctx context.Context, q Query) ([]*Spool, error)
	CountSpools(ctx context.Context, q Query) (int, error)
	LoadTemplates(ctx context.Context) ([]*Spool, error)
	Catalogs(ctx context.Context) (*Catalogs, error)
}

// Catalogs lists the distinct values in use, for filter pickers.
type Catalogs struct {
	Vendors   []string
	Materials []string
	Labels    []string
	Colors    []Color
}
