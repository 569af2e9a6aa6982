// Package testhelpers builds throwaway climate datasets for tests.
package testhelpers

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kjstillabower/surfsup-climate-api/internal/models"
)

// Schema mirrors the layout of the published hawaii.sqlite dataset.
const Schema = `
CREATE TABLE measurement (
  id      INTEGER PRIMARY KEY,
  station TEXT,
  date    TEXT,
  prcp    FLOAT,
  tobs    FLOAT
);
CREATE TABLE station (
  id        INTEGER PRIMARY KEY,
  station   TEXT,
  name      TEXT,
  latitude  FLOAT,
  longitude FLOAT,
  elevation FLOAT
);
`

// Prcp returns a pointer to v for building Measurement literals.
func Prcp(v float64) *float64 { return &v }

// NewMemoryDB returns an in-memory database with Schema applied and the given rows inserted
// in order. The pool is pinned to one connection so every query sees the same database.
func NewMemoryDB(t *testing.T, stations []models.Station, measurements []models.Measurement) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("close db: %v", err)
		}
	})
	if _, err := db.Exec(Schema); err != nil {
		t.Fatalf("exec schema: %v", err)
	}
	Seed(t, db, stations, measurements)
	return db
}

// NewFileDB writes a dataset to a file under t.TempDir and returns its path.
// Use it to exercise code that opens the database itself.
func NewFileDB(t *testing.T, schema string, stations []models.Station, measurements []models.Measurement) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "climate.sqlite")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			t.Errorf("close db: %v", err)
		}
	}()
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("exec schema: %v", err)
	}
	if schema == Schema {
		Seed(t, db, stations, measurements)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("stat db file: %v", err)
	}
	return path
}

// Seed inserts stations and measurements in slice order.
func Seed(t *testing.T, db *sql.DB, stations []models.Station, measurements []models.Measurement) {
	t.Helper()
	for _, s := range stations {
		_, err := db.Exec(`INSERT INTO station (station, name, latitude, longitude, elevation) VALUES (?, ?, ?, ?, ?)`,
			s.ID, s.Name, s.Latitude, s.Longitude, s.Elevation)
		if err != nil {
			t.Fatalf("insert station %s: %v", s.ID, err)
		}
	}
	for _, m := range measurements {
		var prcp interface{}
		if m.Precipitation != nil {
			prcp = *m.Precipitation
		}
		_, err := db.Exec(`INSERT INTO measurement (station, date, prcp, tobs) VALUES (?, ?, ?, ?)`,
			m.Station, m.Date, prcp, m.Temperature)
		if err != nil {
			t.Fatalf("insert measurement %s/%s: %v", m.Station, m.Date, err)
		}
	}
}
