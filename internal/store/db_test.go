package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kjstillabower/surfsup-climate-api/internal/testhelpers"
)

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{"plain path", "Resources/hawaii.sqlite", "file:Resources/hawaii.sqlite?mode=ro&_busy_timeout=5000"},
		{"file uri", "file:/data/hawaii.sqlite", "file:/data/hawaii.sqlite?mode=ro&_busy_timeout=5000"},
		{"file uri with params", "file:/data/hawaii.sqlite?cache=shared", "file:/data/hawaii.sqlite?cache=shared&mode=ro&_busy_timeout=5000"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := buildDSN(tc.path); got != tc.want {
				t.Errorf("buildDSN(%q) = %q, want %q", tc.path, got, tc.want)
			}
		})
	}
}

func TestOpen_ReadOnly(t *testing.T) {
	path := testhelpers.NewFileDB(t, testhelpers.Schema, sampleStations(), sampleMeasurements())

	db, err := Open(context.Background(), path, Options{MaxOpenConns: 2, ConnMaxLifetime: time.Minute})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() {
		if err := Close(db); err != nil {
			t.Errorf("Close: %v", err)
		}
	}()

	s := NewSQLiteStore(db, nil)
	if d, err := s.MostRecentDate(context.Background()); err != nil || d != "2017-08-23" {
		t.Errorf("MostRecentDate = %q, %v; want 2017-08-23", d, err)
	}
	if _, err := db.Exec(`DELETE FROM measurement`); err == nil {
		t.Error("write through read-only handle succeeded, want error")
	}
}

func TestOpen_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.sqlite")
	db, err := Open(context.Background(), path, Options{})
	if err == nil {
		_ = db.Close()
		t.Fatal("Open on missing file: want error, got nil")
	}
	if !strings.Contains(err.Error(), "db ping") {
		t.Errorf("Open error = %v, want db ping failure", err)
	}
}

func TestOpen_EmptyPath(t *testing.T) {
	if _, err := Open(context.Background(), "  ", Options{}); err == nil {
		t.Fatal("Open with empty path: want error, got nil")
	}
}

func TestClose_Nil(t *testing.T) {
	if err := Close(nil); err != nil {
		t.Errorf("Close(nil) = %v, want nil", err)
	}
}
