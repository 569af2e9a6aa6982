package store

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/kjstillabower/surfsup-climate-api/internal/testhelpers"
)

func TestVerifySchema_OK(t *testing.T) {
	db := testhelpers.NewMemoryDB(t, nil, nil)
	if err := VerifySchema(context.Background(), db); err != nil {
		t.Fatalf("VerifySchema: %v", err)
	}
}

func TestVerifySchema_ReportsMissing(t *testing.T) {
	tests := []struct {
		name   string
		schema string
		want   []string
	}{
		{
			name:   "no tables",
			schema: `CREATE TABLE other (x INTEGER);`,
			want:   []string{"measurement", "station"},
		},
		{
			name: "missing columns",
			schema: `CREATE TABLE measurement (station TEXT, date TEXT);
CREATE TABLE station (id INTEGER, name TEXT);`,
			want: []string{"measurement.prcp", "measurement.tobs", "station.station"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := testhelpers.NewFileDB(t, tc.schema, nil, nil)
			db, err := Open(context.Background(), path, Options{})
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer func() { _ = db.Close() }()

			err = VerifySchema(context.Background(), db)
			var se *SchemaError
			if !errors.As(err, &se) {
				t.Fatalf("VerifySchema error = %v, want *SchemaError", err)
			}
			if !reflect.DeepEqual(se.Missing, tc.want) {
				t.Errorf("Missing = %v, want %v", se.Missing, tc.want)
			}
		})
	}
}
