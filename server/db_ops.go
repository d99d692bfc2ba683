package main

import (
	"database/sql"
	"fmt"
	"strings"
)

type scanner interface {
	Scan(dest ...any) error
}

func scanLocation(s scanner) (Location, error) {
	var l Location
	err := s.Scan(&l.ID, &l.Ident, &l.Line, &l.Col, &l.File)
	return l, err
}

// LocationByID returns sql.ErrNoRows when id is unknown.
func (db *DB) LocationByID(id int64) (Location, error) {
	return scanLocation(db.QueryRow(queryLocationByID, id))
}

// LocationsAt returns the rows at an exact coordinate, or every row on the
// line when col is 0.
func (db *DB) LocationsAt(file string, line, col int) ([]Location, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if col == 0 {
		rows, err = db.Query(queryLocationsOnLine, file, line, maxLineRows)
	} else {
		rows, err = db.Query(queryLocationsAt, file, line, col)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Location{}
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// EdgesFrom returns every dependency whose lhs is id.
func (db *DB) EdgesFrom(id int64) ([]Dependency, error) {
	rows, err := db.Query(queryEdgesFrom, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Dependency{}
	for rows.Next() {
		var d Dependency
		if err := rows.Scan(&d.ID, &d.LHS, &d.RHS); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Slice returns the locations reachable from id within depth dependency
// steps, with the edges among them. It returns sql.ErrNoRows when id is
// unknown.
func (db *DB) Slice(id int64, depth int) (*Slice, error) {
	if depth <= 0 || depth > maxSliceDepth {
		depth = maxSliceDepth
	}
	if err := db.syncCache(); err != nil {
		return nil, err
	}
	key := sliceKey{id: id, depth: depth}
	if s, ok := db.slices.Get(key); ok {
		return s, nil
	}

	rows, err := db.Query(queryDependencySlice, id, depth, maxSliceNodes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	s := &Slice{Root: id, Depth: depth, Locations: []Location{}, Edges: []Dependency{}}
	for rows.Next() {
		var l Location
		if err := rows.Scan(&l.ID, &l.Ident, &l.Line, &l.Col, &l.File, &l.Depth); err != nil {
			return nil, err
		}
		s.Locations = append(s.Locations, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(s.Locations) == 0 {
		return nil, sql.ErrNoRows
	}

	edges, err := db.sliceEdges(s.Locations)
	if err != nil {
		return nil, err
	}
	s.Edges = edges
	db.slices.Add(key, s)
	return s, nil
}

// sliceEdges returns the dependencies between the given locations.
func (db *DB) sliceEdges(locs []Location) ([]Dependency, error) {
	placeholders := strings.Repeat("?,", len(locs))
	placeholders = placeholders[:len(placeholders)-1]
	q := fmt.Sprintf("SELECT id, lhs_id, rhs_id FROM dependencies WHERE lhs_id IN (%s) AND rhs_id IN (%s) ORDER BY id LIMIT %d",
		placeholders, placeholders, maxSliceEdges)
	args := make([]any, 0, len(locs)*2)
	for _, l := range locs {
		args = append(args, l.ID)
	}
	for _, l := range locs {
		args = append(args, l.ID)
	}
	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Dependency{}
	for rows.Next() {
		var d Dependency
		if err := rows.Scan(&d.ID, &d.LHS, &d.RHS); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Stats counts rows in every table.
func (db *DB) Stats() (Stats, error) {
	var s Stats
	err := db.QueryRow(queryStats).Scan(&s.Locations, &s.Dependencies, &s.Sources)
	return s, err
}
