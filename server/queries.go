package main

// SQL over the tables written by faultfix build (loc_info, dependencies,
// source_files).

const locationColumns = `id, ident, line_num, col_num, file_path`

const queryLocationByID = `SELECT ` + locationColumns + ` FROM loc_info WHERE id = ?`

const queryLocationsAt = `
SELECT ` + locationColumns + ` FROM loc_info
WHERE file_path = ? AND line_num = ? AND col_num = ?
ORDER BY id
`

const queryLocationsOnLine = `
SELECT ` + locationColumns + ` FROM loc_info
WHERE file_path = ? AND line_num = ?
ORDER BY col_num, id
LIMIT ?
`

const queryEdgesFrom = `SELECT id, lhs_id, rhs_id FROM dependencies WHERE lhs_id = ? ORDER BY id`

// UNION drops repeated (id, depth) rows and the depth bound stops cycles.
const queryDependencySlice = `
WITH RECURSIVE slice(id, depth) AS (
  SELECT ?, 0
  UNION
  SELECT d.rhs_id, s.depth + 1
  FROM slice s JOIN dependencies d ON d.lhs_id = s.id
  WHERE s.depth < ?
)
SELECT l.id, l.ident, l.line_num, l.col_num, l.file_path, MIN(s.depth) AS depth
FROM slice s JOIN loc_info l ON l.id = s.id
GROUP BY l.id
ORDER BY depth, l.id
LIMIT ?
`

const queryStats = `
SELECT
  (SELECT COUNT(*) FROM loc_info),
  (SELECT COUNT(*) FROM dependencies),
  (SELECT COUNT(*) FROM source_files)
`

// Limits for performance: cap slice size and depth per request.
const (
	maxSliceNodes = 500
	maxSliceEdges = 2000
	maxSliceDepth = 20
	maxLineRows   = 200
)
