package main

import (
	"context"
	"errors"
	"fmt"

	"fortio.org/safecast"
	"github.com/jackc/pgx/v5"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS loc_info (
	id        BIGSERIAL PRIMARY KEY,
	ident     TEXT NOT NULL,
	line_num  INTEGER NOT NULL,
	col_num   INTEGER NOT NULL,
	file_path TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS dependencies (
	id     BIGSERIAL PRIMARY KEY,
	lhs_id BIGINT NOT NULL,
	rhs_id BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS source_files (
	file_path TEXT PRIMARY KEY,
	hash      TEXT NOT NULL,
	revision  TEXT
);
CREATE INDEX IF NOT EXISTS idx_loc_info_pos ON loc_info(file_path, line_num, col_num);
CREATE INDEX IF NOT EXISTS idx_dependencies_lhs ON dependencies(lhs_id);
`

// PGStore is a Store backed by PostgreSQL. Each operation dials its own
// connection.
type PGStore struct {
	dsn string
}

// NewPGStore checks that dsn is reachable and returns a store for it.
func NewPGStore(ctx context.Context, dsn string) (*PGStore, error) {
	s := &PGStore{dsn: dsn}
	conn, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return s, conn.Close(ctx)
}

func (s *PGStore) connect(ctx context.Context) (*pgx.Conn, error) {
	conn, err := pgx.Connect(ctx, s.dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return conn, nil
}

// withTx runs fn inside a transaction on a fresh connection.
func (s *PGStore) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	conn, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close(ctx) }()
	return pgx.BeginFunc(ctx, conn, fn)
}

func (s *PGStore) Init(ctx context.Context) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, pgSchema); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		return nil
	})
}

func (s *PGStore) Reset(ctx context.Context) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, pgSchema); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		_, err := tx.Exec(ctx, `TRUNCATE loc_info, dependencies, source_files RESTART IDENTITY`)
		return err
	})
}

func (s *PGStore) InsertLocation(ctx context.Context, loc Location) (int64, error) {
	line, col, err := narrowPos(loc.Line, loc.Col)
	if err != nil {
		return 0, fmt.Errorf("insert location %s: %w", loc, err)
	}
	var id int64
	err = s.withTx(ctx, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx,
			`INSERT INTO loc_info (ident, line_num, col_num, file_path) VALUES ($1, $2, $3, $4) RETURNING id`,
			loc.Ident, line, col, loc.File).Scan(&id)
	})
	if err != nil {
		return 0, fmt.Errorf("insert location %s: %w", loc, err)
	}
	return id, nil
}

func (s *PGStore) InsertEdge(ctx context.Context, lhsID, rhsID int64) error {
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO dependencies (lhs_id, rhs_id) VALUES ($1, $2)`, lhsID, rhsID)
		return err
	})
	if err != nil {
		return fmt.Errorf("insert edge %d -> %d: %w", lhsID, rhsID, err)
	}
	return nil
}

func (s *PGStore) queryLocations(ctx context.Context, query string, args ...any) ([]StoredLocation, error) {
	conn, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Close(ctx) }()

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (StoredLocation, error) {
		var (
			loc       StoredLocation
			line, col int32
		)
		err := row.Scan(&loc.ID, &loc.Ident, &line, &col, &loc.File)
		loc.Line, loc.Col = int(line), int(col)
		return loc, err
	})
}

func (s *PGStore) FindLocation(ctx context.Context, file string, line, col int) (StoredLocation, error) {
	l, c, err := narrowPos(line, col)
	if err != nil {
		return StoredLocation{}, ErrNotFound
	}
	locs, err := s.queryLocations(ctx,
		`SELECT `+locColumns+` FROM loc_info
		 WHERE file_path = $1 AND line_num = $2 AND col_num = $3
		 ORDER BY id LIMIT 1`, file, l, c)
	if err != nil {
		return StoredLocation{}, fmt.Errorf("find location %s:%d:%d: %w", file, line, col, err)
	}
	if len(locs) == 0 {
		return StoredLocation{}, ErrNotFound
	}
	return locs[0], nil
}

func (s *PGStore) FindLocationByID(ctx context.Context, id int64) (StoredLocation, error) {
	locs, err := s.queryLocations(ctx, `SELECT `+locColumns+` FROM loc_info WHERE id = $1`, id)
	if err != nil {
		return StoredLocation{}, fmt.Errorf("find location %d: %w", id, err)
	}
	if len(locs) == 0 {
		return StoredLocation{}, ErrNotFound
	}
	return locs[0], nil
}

func (s *PGStore) FindLocationsOnLine(ctx context.Context, file string, line int) ([]StoredLocation, error) {
	l, err := safecast.Conv[int32](line)
	if err != nil {
		return nil, nil
	}
	locs, err := s.queryLocations(ctx,
		`SELECT `+locColumns+` FROM loc_info
		 WHERE file_path = $1 AND line_num = $2
		 ORDER BY col_num, id`, file, l)
	if err != nil {
		return nil, fmt.Errorf("find locations on %s:%d: %w", file, line, err)
	}
	return locs, nil
}

func (s *PGStore) EdgesFrom(ctx context.Context, loc StoredLocation) ([]Edge, error) {
	conn, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Close(ctx) }()

	rows, err := conn.Query(ctx, `SELECT id, lhs_id, rhs_id FROM dependencies WHERE lhs_id = $1 ORDER BY id`, loc.ID)
	if err != nil {
		return nil, fmt.Errorf("edges from %d: %w", loc.ID, err)
	}
	edges, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Edge, error) {
		var e Edge
		err := row.Scan(&e.ID, &e.LHS, &e.RHS)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("edges from %d: %w", loc.ID, err)
	}
	if edges == nil {
		edges = []Edge{}
	}
	return edges, nil
}

func (s *PGStore) RecordSource(ctx context.Context, src SourceFile) error {
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO source_files (file_path, hash, revision) VALUES ($1, $2, $3)
			 ON CONFLICT (file_path) DO UPDATE SET hash = EXCLUDED.hash, revision = EXCLUDED.revision`,
			src.Path, src.Hash, src.Revision)
		return err
	})
	if err != nil {
		return fmt.Errorf("record source %s: %w", src.Path, err)
	}
	return nil
}

func (s *PGStore) SourceHash(ctx context.Context, file string) (SourceFile, error) {
	conn, err := s.connect(ctx)
	if err != nil {
		return SourceFile{}, err
	}
	defer func() { _ = conn.Close(ctx) }()

	src := SourceFile{Path: file}
	err = conn.QueryRow(ctx,
		`SELECT hash, COALESCE(revision, '') FROM source_files WHERE file_path = $1`, file).
		Scan(&src.Hash, &src.Revision)
	if errors.Is(err, pgx.ErrNoRows) {
		return SourceFile{}, ErrNotFound
	}
	if err != nil {
		return SourceFile{}, fmt.Errorf("source hash %s: %w", file, err)
	}
	return src, nil
}

// Close is a no-op; connections never outlive an operation.
func (s *PGStore) Close() error { return nil }

// narrowPos converts a line/column pair to the INTEGER columns of loc_info.
func narrowPos(line, col int) (int32, int32, error) {
	l, err := safecast.Conv[int32](line)
	if err != nil {
		return 0, 0, fmt.Errorf("line %d: %w", line, err)
	}
	c, err := safecast.Conv[int32](col)
	if err != nil {
		return 0, 0, fmt.Errorf("col %d: %w", col, err)
	}
	return l, c, nil
}
