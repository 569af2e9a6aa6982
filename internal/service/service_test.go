package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kjstillabower/surfsup-climate-api/internal/models"
	"github.com/kjstillabower/surfsup-climate-api/internal/store"
	"github.com/kjstillabower/surfsup-climate-api/internal/testhelpers"
)

type mockStore struct {
	mostRecent    string
	mostRecentErr error
	precip        []models.Precipitation
	stations      []string
	mostActive    string
	temps         []models.TemperatureObservation
	stats         models.TemperatureStats
	err           error

	// recorded arguments
	gotCutoff  string
	gotStation string
	gotStart   string
	gotEnd     string
}

func (m *mockStore) MostRecentDate(ctx context.Context) (string, error) {
	return m.mostRecent, m.mostRecentErr
}

func (m *mockStore) PrecipitationSince(ctx context.Context, cutoff string) ([]models.Precipitation, error) {
	m.gotCutoff = cutoff
	return m.precip, m.err
}

func (m *mockStore) StationIDs(ctx context.Context) ([]string, error) {
	return m.stations, m.err
}

func (m *mockStore) MostActiveStation(ctx context.Context) (string, error) {
	if m.mostActive == "" && m.err == nil {
		return "", store.ErrNoData
	}
	return m.mostActive, m.err
}

func (m *mockStore) TemperaturesSince(ctx context.Context, station, cutoff string) ([]models.TemperatureObservation, error) {
	m.gotStation, m.gotCutoff = station, cutoff
	return m.temps, m.err
}

func (m *mockStore) TemperatureStatsSince(ctx context.Context, start string) (models.TemperatureStats, error) {
	m.gotStart = start
	return m.stats, m.err
}

func (m *mockStore) TemperatureStatsBetween(ctx context.Context, start, end string) (models.TemperatureStats, error) {
	m.gotStart, m.gotEnd = start, end
	return m.stats, m.err
}

func (m *mockStore) Summary(ctx context.Context) (models.DatasetSummary, error) {
	return models.DatasetSummary{}, m.err
}

func (m *mockStore) Ping(ctx context.Context) error { return m.err }

func TestCutoffDate(t *testing.T) {
	tests := []struct {
		latest string
		want   string
	}{
		{"2017-08-23", "2016-08-23"},
		{"2016-12-31", "2016-01-01"}, // 2016 is a leap year: 365 days back lands on Jan 1
		{"2017-03-01", "2016-03-01"},
		{"2016-03-01", "2015-03-02"},
	}
	for _, tc := range tests {
		t.Run(tc.latest, func(t *testing.T) {
			got, err := CutoffDate(tc.latest)
			if err != nil {
				t.Fatalf("CutoffDate(%q) error = %v", tc.latest, err)
			}
			if got != tc.want {
				t.Errorf("CutoffDate(%q) = %q, want %q", tc.latest, got, tc.want)
			}
		})
	}
}

func TestCutoffDate_Malformed(t *testing.T) {
	if _, err := CutoffDate("2017-08-23 00:00:00"); err == nil {
		t.Error("CutoffDate with malformed date: want error, got nil")
	}
}

// TestPrecipitation_LastWriteWins verifies that when several rows share a date the
// value of the last row in query order is kept.
func TestPrecipitation_LastWriteWins(t *testing.T) {
	st := &mockStore{
		mostRecent: "2017-08-23",
		precip: []models.Precipitation{
			{Date: "2016-08-23", Amount: testhelpers.Prcp(0.0)},
			{Date: "2016-08-23", Amount: testhelpers.Prcp(1.79)},
			{Date: "2016-08-24", Amount: nil},
			{Date: "2016-08-24", Amount: testhelpers.Prcp(0.08)},
			{Date: "2017-08-23", Amount: testhelpers.Prcp(0.45)},
			{Date: "2017-08-23", Amount: nil},
		},
	}
	svc := NewClimateService(st)

	got, err := svc.Precipitation(context.Background())
	if err != nil {
		t.Fatalf("Precipitation() error = %v", err)
	}
	if st.gotCutoff != "2016-08-23" {
		t.Errorf("cutoff = %q, want 2016-08-23", st.gotCutoff)
	}
	if len(got) != 3 {
		t.Fatalf("Precipitation() returned %d dates, want 3", len(got))
	}
	if v := got["2016-08-23"]; v == nil || *v != 1.79 {
		t.Errorf("2016-08-23 = %v, want 1.79", v)
	}
	if v := got["2016-08-24"]; v == nil || *v != 0.08 {
		t.Errorf("2016-08-24 = %v, want 0.08", v)
	}
	if v, ok := got["2017-08-23"]; !ok || v != nil {
		t.Errorf("2017-08-23 = %v (present=%v), want present and nil", v, ok)
	}
}

func TestPrecipitation_NoData(t *testing.T) {
	svc := NewClimateService(&mockStore{mostRecentErr: store.ErrNoData})
	_, err := svc.Precipitation(context.Background())
	if !errors.Is(err, store.ErrNoData) {
		t.Errorf("Precipitation() error = %v, want ErrNoData", err)
	}
}

func TestPrecipitation_StoreError(t *testing.T) {
	svc := NewClimateService(&mockStore{mostRecent: "2017-08-23", err: errors.New("disk I/O error")})
	if _, err := svc.Precipitation(context.Background()); err == nil {
		t.Error("Precipitation() error = nil, want store error")
	}
}

func TestStations(t *testing.T) {
	svc := NewClimateService(&mockStore{stations: []string{"USC00519397", "USC00513117"}})
	got, err := svc.Stations(context.Background())
	if err != nil {
		t.Fatalf("Stations() error = %v", err)
	}
	if len(got) != 2 || got[0] != "USC00519397" || got[1] != "USC00513117" {
		t.Errorf("Stations() = %v", got)
	}
}

// TestTemperatureObservations_WindowFromWholeDataset verifies that the cutoff is derived from
// the dataset-wide most recent date and the query is scoped to the most active station.
func TestTemperatureObservations_WindowFromWholeDataset(t *testing.T) {
	st := &mockStore{
		mostRecent: "2017-08-23",
		mostActive: "USC00519281",
		temps:      []models.TemperatureObservation{{Date: "2016-08-23", Temperature: 77}},
	}
	svc := NewClimateService(st)

	got, err := svc.TemperatureObservations(context.Background())
	if err != nil {
		t.Fatalf("TemperatureObservations() error = %v", err)
	}
	if st.gotStation != "USC00519281" {
		t.Errorf("station = %q, want USC00519281", st.gotStation)
	}
	if st.gotCutoff != "2016-08-23" {
		t.Errorf("cutoff = %q, want 2016-08-23", st.gotCutoff)
	}
	if len(got) != 1 || got[0].Temperature != 77 {
		t.Errorf("TemperatureObservations() = %+v", got)
	}
}

func TestTemperatureObservations_NoData(t *testing.T) {
	svc := NewClimateService(&mockStore{})
	_, err := svc.TemperatureObservations(context.Background())
	if !errors.Is(err, store.ErrNoData) {
		t.Errorf("TemperatureObservations() error = %v, want ErrNoData", err)
	}
}

func TestStatsFrom_FormatsDate(t *testing.T) {
	lo, avg, hi := 58.0, 74.5, 87.0
	st := &mockStore{stats: models.TemperatureStats{Min: &lo, Avg: &avg, Max: &hi}}
	svc := NewClimateService(st)

	got, err := svc.StatsFrom(context.Background(), time.Date(2017, 1, 5, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("StatsFrom() error = %v", err)
	}
	if st.gotStart != "2017-01-05" {
		t.Errorf("start = %q, want 2017-01-05", st.gotStart)
	}
	if *got.Min != lo || *got.Avg != avg || *got.Max != hi {
		t.Errorf("StatsFrom() = %v/%v/%v", *got.Min, *got.Avg, *got.Max)
	}
}

func TestStatsBetween_FormatsDates(t *testing.T) {
	st := &mockStore{}
	svc := NewClimateService(st)

	_, err := svc.StatsBetween(context.Background(),
		time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2017, 12, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("StatsBetween() error = %v", err)
	}
	if st.gotStart != "2017-01-01" || st.gotEnd != "2017-12-31" {
		t.Errorf("range = %s..%s, want 2017-01-01..2017-12-31", st.gotStart, st.gotEnd)
	}
}

// TestService_AgainstSQLite runs the service over a real in-memory dataset and checks the
// precipitation window contains exactly the distinct dates on or after the cutoff.
func TestService_AgainstSQLite(t *testing.T) {
	var measurements []models.Measurement
	day := time.Date(2016, 8, 20, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		d := day.AddDate(0, 0, i).Format(models.DateLayout)
		measurements = append(measurements, models.Measurement{Station: "USC00519281", Date: d, Precipitation: testhelpers.Prcp(float64(i)), Temperature: float64(70 + i)})
	}
	measurements = append(measurements,
		models.Measurement{Station: "USC00519397", Date: "2017-08-23", Precipitation: testhelpers.Prcp(0.5), Temperature: 81},
		models.Measurement{Station: "USC00519397", Date: "2017-08-22", Precipitation: nil, Temperature: 80},
	)
	db := testhelpers.NewMemoryDB(t, nil, measurements)
	svc := NewClimateService(store.NewSQLiteStore(db, nil))

	got, err := svc.Precipitation(context.Background())
	if err != nil {
		t.Fatalf("Precipitation() error = %v", err)
	}
	// cutoff is 2016-08-23: days 2016-08-23..2016-08-29 plus the two 2017 dates
	want := map[string]bool{"2017-08-22": true, "2017-08-23": true}
	for i := 3; i < 10; i++ {
		want[day.AddDate(0, 0, i).Format(models.DateLayout)] = true
	}
	if len(got) != len(want) {
		t.Fatalf("Precipitation() has %d dates, want %d: %v", len(got), len(want), keys(got))
	}
	for d := range want {
		if _, ok := got[d]; !ok {
			t.Errorf("Precipitation() missing %s", d)
		}
	}

	obs, err := svc.TemperatureObservations(context.Background())
	if err != nil {
		t.Fatalf("TemperatureObservations() error = %v", err)
	}
	if len(obs) != 7 || obs[0].Date != "2016-08-23" || obs[6].Date != "2016-08-29" {
		t.Errorf("TemperatureObservations() = %+v", obs)
	}
}

func keys(m map[string]*float64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
