package main

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned by store lookups that match no row.
var ErrNotFound = errors.New("not found")

// SourceFile is the fingerprint of an analysed file at build time.
type SourceFile struct {
	Path     string
	Hash     string
	Revision string
}

// Store persists locations and dependency edges. Every operation runs in its
// own short-lived connection and transaction; no uniqueness is enforced on
// coordinates, and lookups over duplicates return the lowest id.
type Store interface {
	// Init creates the schema if absent.
	Init(ctx context.Context) error
	// Reset removes every persisted row.
	Reset(ctx context.Context) error

	InsertLocation(ctx context.Context, loc Location) (int64, error)
	InsertEdge(ctx context.Context, lhsID, rhsID int64) error

	FindLocation(ctx context.Context, file string, line, col int) (StoredLocation, error)
	FindLocationByID(ctx context.Context, id int64) (StoredLocation, error)
	// FindLocationsOnLine returns every location on a line, ordered by column then id.
	FindLocationsOnLine(ctx context.Context, file string, line int) ([]StoredLocation, error)
	EdgesFrom(ctx context.Context, loc StoredLocation) ([]Edge, error)

	RecordSource(ctx context.Context, src SourceFile) error
	SourceHash(ctx context.Context, file string) (SourceFile, error)

	Close() error
}

// graphWriter is implemented by stores that can persist a whole graph in one
// transaction.
type graphWriter interface {
	WriteGraph(ctx context.Context, res *BuildResult, sources []SourceFile) (GraphCounts, error)
}

// OpenStore selects a backend from dsn: postgres:// and postgresql:// URLs use
// PostgreSQL, anything else is a SQLite file path.
func OpenStore(ctx context.Context, dsn string) (Store, error) {
	var s Store
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		pg, err := NewPGStore(ctx, dsn)
		if err != nil {
			return nil, err
		}
		s = pg
	} else {
		s = NewSQLiteStore(dsn)
	}
	if err := s.Init(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}
