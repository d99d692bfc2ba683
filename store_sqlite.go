package main

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS loc_info (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	ident     TEXT NOT NULL,
	line_num  INTEGER NOT NULL,
	col_num   INTEGER NOT NULL,
	file_path TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS dependencies (
	id     INTEGER PRIMARY KEY AUTOINCREMENT,
	lhs_id INTEGER NOT NULL,
	rhs_id INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS source_files (
	file_path TEXT PRIMARY KEY,
	hash      TEXT NOT NULL,
	revision  TEXT
);
CREATE INDEX IF NOT EXISTS idx_loc_info_pos ON loc_info(file_path, line_num, col_num);
CREATE INDEX IF NOT EXISTS idx_dependencies_lhs ON dependencies(lhs_id);
`

const locColumns = `id, ident, line_num, col_num, file_path`

// SQLiteStore is a Store backed by a SQLite file.
type SQLiteStore struct {
	path string
}

// NewSQLiteStore returns a store for the database at path. Nothing is opened
// until the first operation.
func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) open(ctx context.Context) (*sqlite.Conn, error) {
	conn, err := sqlite.OpenConn(s.path, sqlite.OpenCreate, sqlite.OpenReadWrite, sqlite.OpenWAL)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	conn.SetInterrupt(ctx.Done())
	if err := sqlitex.ExecuteTransient(conn, "PRAGMA busy_timeout = 5000", nil); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

// Init creates tables and indexes.
func (s *SQLiteStore) Init(ctx context.Context) error {
	conn, err := s.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()
	if err := sqlitex.ExecuteScript(conn, sqliteSchema, nil); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

const sqliteClear = `
DELETE FROM dependencies;
DELETE FROM loc_info;
DELETE FROM source_files;
DELETE FROM sqlite_sequence;
`

// Reset empties every table and restarts row ids in one transaction. The
// database file stays in place so open readers see the new graph.
func (s *SQLiteStore) Reset(ctx context.Context) (err error) {
	conn, err := s.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	if err := sqlitex.ExecuteScript(conn, sqliteSchema, nil); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	endFn, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer endFn(&err)
	if err := sqlitex.ExecuteScript(conn, sqliteClear, nil); err != nil {
		return fmt.Errorf("clear graph: %w", err)
	}
	return nil
}

func (s *SQLiteStore) InsertLocation(ctx context.Context, loc Location) (id int64, err error) {
	conn, err := s.open(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = conn.Close() }()

	endFn, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer endFn(&err)

	err = sqlitex.Execute(conn,
		`INSERT INTO loc_info (ident, line_num, col_num, file_path) VALUES (?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{loc.Ident, loc.Line, loc.Col, loc.File}})
	if err != nil {
		return 0, fmt.Errorf("insert location %s: %w", loc, err)
	}
	return conn.LastInsertRowID(), nil
}

func (s *SQLiteStore) InsertEdge(ctx context.Context, lhsID, rhsID int64) (err error) {
	conn, err := s.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	endFn, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer endFn(&err)

	err = sqlitex.Execute(conn,
		`INSERT INTO dependencies (lhs_id, rhs_id) VALUES (?, ?)`,
		&sqlitex.ExecOptions{Args: []any{lhsID, rhsID}})
	if err != nil {
		return fmt.Errorf("insert edge %d -> %d: %w", lhsID, rhsID, err)
	}
	return nil
}

// queryLocations runs a loc_info query and scans every row.
func (s *SQLiteStore) queryLocations(ctx context.Context, query string, args ...any) ([]StoredLocation, error) {
	conn, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Close() }()

	var out []StoredLocation
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			out = append(out, scanLocation(stmt))
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func scanLocation(stmt *sqlite.Stmt) StoredLocation {
	return StoredLocation{
		ID: stmt.ColumnInt64(0),
		Location: Location{
			Ident: stmt.ColumnText(1),
			Line:  stmt.ColumnInt(2),
			Col:   stmt.ColumnInt(3),
			File:  stmt.ColumnText(4),
		},
	}
}

func (s *SQLiteStore) FindLocation(ctx context.Context, file string, line, col int) (StoredLocation, error) {
	locs, err := s.queryLocations(ctx,
		`SELECT `+locColumns+` FROM loc_info
		 WHERE file_path = ? AND line_num = ? AND col_num = ?
		 ORDER BY id LIMIT 1`, file, line, col)
	if err != nil {
		return StoredLocation{}, fmt.Errorf("find location %s:%d:%d: %w", file, line, col, err)
	}
	if len(locs) == 0 {
		return StoredLocation{}, ErrNotFound
	}
	return locs[0], nil
}

func (s *SQLiteStore) FindLocationByID(ctx context.Context, id int64) (StoredLocation, error) {
	locs, err := s.queryLocations(ctx,
		`SELECT `+locColumns+` FROM loc_info WHERE id = ?`, id)
	if err != nil {
		return StoredLocation{}, fmt.Errorf("find location %d: %w", id, err)
	}
	if len(locs) == 0 {
		return StoredLocation{}, ErrNotFound
	}
	return locs[0], nil
}

func (s *SQLiteStore) FindLocationsOnLine(ctx context.Context, file string, line int) ([]StoredLocation, error) {
	locs, err := s.queryLocations(ctx,
		`SELECT `+locColumns+` FROM loc_info
		 WHERE file_path = ? AND line_num = ?
		 ORDER BY col_num, id`, file, line)
	if err != nil {
		return nil, fmt.Errorf("find locations on %s:%d: %w", file, line, err)
	}
	return locs, nil
}

func (s *SQLiteStore) EdgesFrom(ctx context.Context, loc StoredLocation) ([]Edge, error) {
	conn, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Close() }()

	edges := []Edge{}
	err = sqlitex.Execute(conn,
		`SELECT id, lhs_id, rhs_id FROM dependencies WHERE lhs_id = ? ORDER BY id`,
		&sqlitex.ExecOptions{
			Args: []any{loc.ID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				edges = append(edges, Edge{
					ID:  stmt.ColumnInt64(0),
					LHS: stmt.ColumnInt64(1),
					RHS: stmt.ColumnInt64(2),
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("edges from %d: %w", loc.ID, err)
	}
	return edges, nil
}

func (s *SQLiteStore) RecordSource(ctx context.Context, src SourceFile) (err error) {
	conn, err := s.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()
	return upsertSource(conn, src)
}

func upsertSource(conn *sqlite.Conn, src SourceFile) error {
	err := sqlitex.Execute(conn,
		`INSERT INTO source_files (file_path, hash, revision) VALUES (?, ?, ?)
		 ON CONFLICT(file_path) DO UPDATE SET hash = excluded.hash, revision = excluded.revision`,
		&sqlitex.ExecOptions{Args: []any{src.Path, src.Hash, src.Revision}})
	if err != nil {
		return fmt.Errorf("record source %s: %w", src.Path, err)
	}
	return nil
}

func (s *SQLiteStore) SourceHash(ctx context.Context, file string) (SourceFile, error) {
	conn, err := s.open(ctx)
	if err != nil {
		return SourceFile{}, err
	}
	defer func() { _ = conn.Close() }()

	var (
		src   SourceFile
		found bool
	)
	err = sqlitex.Execute(conn,
		`SELECT file_path, hash, COALESCE(revision, '') FROM source_files WHERE file_path = ?`,
		&sqlitex.ExecOptions{
			Args: []any{file},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				src = SourceFile{Path: stmt.ColumnText(0), Hash: stmt.ColumnText(1), Revision: stmt.ColumnText(2)}
				found = true
				return nil
			},
		})
	if err != nil {
		return SourceFile{}, fmt.Errorf("source hash %s: %w", file, err)
	}
	if !found {
		return SourceFile{}, ErrNotFound
	}
	return src, nil
}

// Close is a no-op; connections never outlive an operation.
func (s *SQLiteStore) Close() error { return nil }

// WriteGraph persists a built graph in a single immediate transaction using
// prepared statements.
func (s *SQLiteStore) WriteGraph(ctx context.Context, res *BuildResult, sources []SourceFile) (counts GraphCounts, err error) {
	conn, err := s.open(ctx)
	if err != nil {
		return counts, err
	}
	defer func() { _ = conn.Close() }()

	for _, pragma := range []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA cache_size = -64000",
	} {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return counts, err
		}
	}

	endFn, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return counts, fmt.Errorf("begin tx: %w", err)
	}
	defer endFn(&err)

	ids, err := insertLocations(conn, res.Graph.Locations())
	if err != nil {
		return counts, err
	}
	counts.Locations = len(ids)

	counts.Edges, err = insertEdges(conn, res.Graph, ids)
	if err != nil {
		return counts, err
	}

	for _, src := range sources {
		if err = upsertSource(conn, src); err != nil {
			return counts, err
		}
		counts.Sources++
	}
	return counts, nil
}

func insertLocations(conn *sqlite.Conn, locs []Location) (map[LocKey]int64, error) {
	stmt, err := conn.Prepare(`INSERT INTO loc_info (ident, line_num, col_num, file_path) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare loc_info insert: %w", err)
	}
	defer func() { _ = stmt.Finalize() }()

	ids := make(map[LocKey]int64, len(locs))
	for _, loc := range locs {
		stmt.BindText(1, loc.Ident)
		stmt.BindInt64(2, int64(loc.Line))
		stmt.BindInt64(3, int64(loc.Col))
		stmt.BindText(4, loc.File)
		if _, err := stmt.Step(); err != nil {
			return nil, fmt.Errorf("insert location %s: %w", loc, err)
		}
		if err := stmt.Reset(); err != nil {
			return nil, err
		}
		ids[loc.Key()] = conn.LastInsertRowID()
	}
	return ids, nil
}

func insertEdges(conn *sqlite.Conn, g *DepGraph, ids map[LocKey]int64) (int, error) {
	stmt, err := conn.Prepare(`INSERT INTO dependencies (lhs_id, rhs_id) VALUES (?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare dependencies insert: %w", err)
	}
	defer func() { _ = stmt.Finalize() }()

	var count int
	for _, target := range g.Targets() {
		for _, dep := range g.Deps(target) {
			stmt.BindInt64(1, ids[target.Key()])
			stmt.BindInt64(2, ids[dep.Key()])
			if _, err := stmt.Step(); err != nil {
				return count, fmt.Errorf("insert edge %s -> %s: %w", target, dep, err)
			}
			if err := stmt.Reset(); err != nil {
				return count, err
			}
			count++
		}
	}
	return count, nil
}
