package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/surfsup-climate-api/internal/models"
	"github.com/kjstillabower/surfsup-climate-api/internal/observability"
)

//go:embed sql/most-recent-date.sql
var mostRecentDateSQL string

//go:embed sql/precipitation-since.sql
var precipitationSinceSQL string

//go:embed sql/station-ids.sql
var stationIDsSQL string

//go:embed sql/most-active-station.sql
var mostActiveStationSQL string

//go:embed sql/temperatures-since.sql
var temperaturesSinceSQL string

//go:embed sql/temperature-stats-since.sql
var temperatureStatsSinceSQL string

//go:embed sql/temperature-stats-between.sql
var temperatureStatsBetweenSQL string

//go:embed sql/dataset-summary.sql
var datasetSummarySQL string

// ErrNoData is returned when a query needs at least one measurement row and the table is empty.
var ErrNoData = errors.New("no measurement data")

// Store is the read-only view of the climate dataset used by the service layer.
// Dates are YYYY-MM-DD strings and compare lexically.
type Store interface {
	MostRecentDate(ctx context.Context) (string, error)
	PrecipitationSince(ctx context.Context, cutoff string) ([]models.Precipitation, error)
	StationIDs(ctx context.Context) ([]string, error)
	MostActiveStation(ctx context.Context) (string, error)
	TemperaturesSince(ctx context.Context, station, cutoff string) ([]models.TemperatureObservation, error)
	TemperatureStatsSince(ctx context.Context, start string) (models.TemperatureStats, error)
	TemperatureStatsBetween(ctx context.Context, start, end string) (models.TemperatureStats, error)
	Summary(ctx context.Context) (models.DatasetSummary, error)
	Ping(ctx context.Context) error
}

// SQLiteStore implements Store over a shared *sql.DB. It never writes.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore wraps db. logger may be nil.
func NewSQLiteStore(db *sql.DB, logger *zap.Logger) *SQLiteStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLiteStore{db: db, logger: logger}
}

// observe records query latency and outcome. Call via defer with a pointer to the named error.
func observe(query string, start time.Time, errp *error) {
	status := "success"
	if *errp != nil {
		status = "error"
		if errors.Is(*errp, ErrNoData) {
			status = "no_data"
		}
	}
	observability.DataSourceQueriesTotal.WithLabelValues(query, status).Inc()
	observability.DataSourceQueryDuration.WithLabelValues(query).Observe(time.Since(start).Seconds())
}

func (s *SQLiteStore) closeRows(rows *sql.Rows, query string) {
	if err := rows.Close(); err != nil {
		s.logger.Error("close rows", zap.String("query", query), zap.Error(err))
	}
}

// MostRecentDate returns MAX(date) over measurement, or ErrNoData when the table is empty.
func (s *SQLiteStore) MostRecentDate(ctx context.Context) (_ string, err error) {
	defer observe("most_recent_date", time.Now(), &err)
	var d sql.NullString
	if err = s.db.QueryRowContext(ctx, mostRecentDateSQL).Scan(&d); err != nil {
		return "", fmt.Errorf("most recent date: %w", err)
	}
	if !d.Valid {
		err = ErrNoData
		return "", err
	}
	return d.String, nil
}

// PrecipitationSince returns (date, prcp) for every row with date >= cutoff, ascending by date.
// Same-date rows keep their storage order.
func (s *SQLiteStore) PrecipitationSince(ctx context.Context, cutoff string) (_ []models.Precipitation, err error) {
	defer observe("precipitation_since", time.Now(), &err)
	rows, err := s.db.QueryContext(ctx, precipitationSinceSQL, cutoff)
	if err != nil {
		return nil, fmt.Errorf("precipitation since %s: %w", cutoff, err)
	}
	defer s.closeRows(rows, "precipitation_since")

	out := []models.Precipitation{}
	for rows.Next() {
		var p models.Precipitation
		var amount sql.NullFloat64
		if err = rows.Scan(&p.Date, &amount); err != nil {
			return nil, fmt.Errorf("scan precipitation: %w", err)
		}
		if amount.Valid {
			v := amount.Float64
			p.Amount = &v
		}
		out = append(out, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("precipitation rows: %w", err)
	}
	return out, nil
}

// StationIDs returns every station id in table order. No dedup.
func (s *SQLiteStore) StationIDs(ctx context.Context) (_ []string, err error) {
	defer observe("station_ids", time.Now(), &err)
	rows, err := s.db.QueryContext(ctx, stationIDsSQL)
	if err != nil {
		return nil, fmt.Errorf("station ids: %w", err)
	}
	defer s.closeRows(rows, "station_ids")

	out := []string{}
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan station: %w", err)
		}
		out = append(out, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("station rows: %w", err)
	}
	return out, nil
}

// MostActiveStation returns the station with the most measurement rows. Ties go to the
// lexicographically smallest station id. ErrNoData when measurement is empty.
func (s *SQLiteStore) MostActiveStation(ctx context.Context) (_ string, err error) {
	defer observe("most_active_station", time.Now(), &err)
	var (
		station string
		count   int
	)
	err = s.db.QueryRowContext(ctx, mostActiveStationSQL).Scan(&station, &count)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNoData
		return "", err
	}
	if err != nil {
		return "", fmt.Errorf("most active station: %w", err)
	}
	return station, nil
}

// TemperaturesSince returns (date, tobs) for station with date >= cutoff, ascending by date.
func (s *SQLiteStore) TemperaturesSince(ctx context.Context, station, cutoff string) (_ []models.TemperatureObservation, err error) {
	defer observe("temperatures_since", time.Now(), &err)
	rows, err := s.db.QueryContext(ctx, temperaturesSinceSQL, station, cutoff)
	if err != nil {
		return nil, fmt.Errorf("temperatures for %s since %s: %w", station, cutoff, err)
	}
	defer s.closeRows(rows, "temperatures_since")

	out := []models.TemperatureObservation{}
	for rows.Next() {
		var o models.TemperatureObservation
		if err = rows.Scan(&o.Date, &o.Temperature); err != nil {
			return nil, fmt.Errorf("scan temperature: %w", err)
		}
		out = append(out, o)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("temperature rows: %w", err)
	}
	return out, nil
}

// TemperatureStatsSince aggregates tobs over date >= start. Fields are nil when nothing matched.
func (s *SQLiteStore) TemperatureStatsSince(ctx context.Context, start string) (_ models.TemperatureStats, err error) {
	defer observe("temperature_stats_since", time.Now(), &err)
	stats, err := scanStats(s.db.QueryRowContext(ctx, temperatureStatsSinceSQL, start))
	if err != nil {
		return models.TemperatureStats{}, fmt.Errorf("temperature stats since %s: %w", start, err)
	}
	return stats, nil
}

// TemperatureStatsBetween aggregates tobs over start <= date <= end.
func (s *SQLiteStore) TemperatureStatsBetween(ctx context.Context, start, end string) (_ models.TemperatureStats, err error) {
	defer observe("temperature_stats_between", time.Now(), &err)
	stats, err := scanStats(s.db.QueryRowContext(ctx, temperatureStatsBetweenSQL, start, end))
	if err != nil {
		return models.TemperatureStats{}, fmt.Errorf("temperature stats %s..%s: %w", start, end, err)
	}
	return stats, nil
}

func scanStats(row *sql.Row) (models.TemperatureStats, error) {
	var lo, avg, hi sql.NullFloat64
	if err := row.Scan(&lo, &avg, &hi); err != nil {
		return models.TemperatureStats{}, err
	}
	return models.TemperatureStats{
		Min: nullFloat(lo),
		Avg: nullFloat(avg),
		Max: nullFloat(hi),
	}, nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// Summary returns row counts and the date span of the dataset.
func (s *SQLiteStore) Summary(ctx context.Context) (_ models.DatasetSummary, err error) {
	defer observe("dataset_summary", time.Now(), &err)
	var (
		sum         models.DatasetSummary
		first, last sql.NullString
	)
	err = s.db.QueryRowContext(ctx, datasetSummarySQL).Scan(&sum.MeasurementRows, &sum.StationRows, &first, &last)
	if err != nil {
		return models.DatasetSummary{}, fmt.Errorf("dataset summary: %w", err)
	}
	sum.FirstDate = first.String
	sum.LastDate = last.String
	return sum, nil
}

// Ping checks that the data source is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
