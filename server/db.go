package main

import (
	"database/sql"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DB wraps *sql.DB and provides dependency-graph query helpers.
type DB struct {
	*sql.DB
	slices  *lru.Cache[sliceKey, *Slice]
	version atomic.Int64
}

type sliceKey struct {
	id    int64
	depth int
}

// NewDB returns a DB wrapper caching up to cacheSize slices. The cache is
// dropped whenever a rebuild commits to the database file.
func NewDB(db *sql.DB, cacheSize int) (*DB, error) {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	cache, err := lru.New[sliceKey, *Slice](cacheSize)
	if err != nil {
		return nil, err
	}
	return &DB{DB: db, slices: cache}, nil
}

// Location is a loc_info row.
type Location struct {
	ID    int64  `json:"id"`
	Ident string `json:"ident"`
	File  string `json:"file"`
	Line  int    `json:"line"`
	Col   int    `json:"col"`
	Depth int    `json:"depth,omitempty"` // distance from the slice root
}

// Dependency is a dependencies row: the value at LHS is computed from RHS.
type Dependency struct {
	ID  int64 `json:"id"`
	LHS int64 `json:"lhs"`
	RHS int64 `json:"rhs"`
}

// Slice is the transitive dependency closure of one location.
type Slice struct {
	Root      int64        `json:"root"`
	Depth     int          `json:"depth"`
	Locations []Location   `json:"locations"`
	Edges     []Dependency `json:"edges"`
}

// Stats counts stored rows.
type Stats struct {
	Locations    int `json:"locations"`
	Dependencies int `json:"dependencies"`
	Sources      int `json:"sources"`
}

// syncCache purges cached slices if another connection has committed since
// the last check.
func (db *DB) syncCache() error {
	var v int64
	if err := db.QueryRow("PRAGMA data_version").Scan(&v); err != nil {
		return err
	}
	if db.version.Swap(v) != v {
		db.slices.Purge()
	}
	return nil
}
