package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func (a *App) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.db.Stats()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, stats)
}

// handleLocations serves GET /api/locations?file=&line=[&col=]. Without col
// every location on the line is returned.
func (a *App) handleLocations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	file := q.Get("file")
	if file == "" {
		badRequest(w, "missing query parameter file")
		return
	}
	line, ok := queryInt(w, r, "line", 1, true)
	if !ok {
		return
	}
	col, ok := queryInt(w, r, "col", 0, false)
	if !ok {
		return
	}
	locs, err := a.db.LocationsAt(file, line, col)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, locs)
}

func (a *App) handleLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	loc, err := a.db.LocationByID(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, loc)
}

func (a *App) handleEdges(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	edges, err := a.db.EdgesFrom(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, edges)
}

// handleSlice serves GET /api/slice?id=[&depth=]. An unusable depth falls
// back to the maximum.
func (a *App) handleSlice(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("id")
	if raw == "" {
		badRequest(w, "missing query parameter id")
		return
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		badRequest(w, "invalid query parameter id")
		return
	}
	var depth int
	if s := r.URL.Query().Get("depth"); s != "" {
		if depth, err = strconv.Atoi(s); err != nil {
			log.Printf("slice %d: ignoring depth %q", id, s)
		}
	}
	s, err := a.db.Slice(id, depth)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, s)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		badRequest(w, "invalid location id")
		return 0, false
	}
	return id, true
}

// queryInt parses an integer query parameter no smaller than least. A missing
// optional parameter yields 0.
func queryInt(w http.ResponseWriter, r *http.Request, name string, least int, required bool) (int, bool) {
	s := r.URL.Query().Get(name)
	if s == "" && !required {
		return 0, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < least {
		badRequest(w, fmt.Sprintf("invalid query parameter %s", name))
		return 0, false
	}
	return n, true
}

func badRequest(w http.ResponseWriter, msg string) {
	http.Error(w, msg, http.StatusBadRequest)
}

// writeError maps sql.ErrNoRows to 404 and everything else to 500.
func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "location not found", http.StatusNotFound)
		return
	}
	log.Printf("query: %v", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
