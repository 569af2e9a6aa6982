package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/surfsup-climate-api/internal/models"
	"github.com/kjstillabower/surfsup-climate-api/internal/observability"
	"github.com/kjstillabower/surfsup-climate-api/internal/store"
)

// LookbackDays is the length of the "last 12 months" window, counted back from the
// most recent measurement date.
const LookbackDays = 365

// ClimateService answers the canned dataset queries. Overlapping identical calls share
// one read; nothing is retained once that read returns.
type ClimateService struct {
	store     store.Store
	coalescer *queryCoalescer
}

// NewClimateService returns a ClimateService reading from st. Concurrent identical
// requests share one store round trip.
func NewClimateService(st store.Store) *ClimateService {
	return &ClimateService{store: st, coalescer: newQueryCoalescer()}
}

// Precipitation returns date -> prcp for the last LookbackDays of data. When several rows
// share a date, the value of the last row in query order wins. A nil value means the
// reading was NULL. Returns store.ErrNoData (wrapped) when there are no measurements.
func (s *ClimateService) Precipitation(ctx context.Context) (map[string]*float64, error) {
	return coalesce(ctx, s.coalescer, "precipitation", "precipitation", s.precipitation)
}

func (s *ClimateService) precipitation(ctx context.Context) (map[string]*float64, error) {
	start := time.Now()
	cutoff, err := s.cutoff(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.PrecipitationSince(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*float64, len(rows))
	for _, r := range rows {
		out[r.Date] = r.Amount
	}
	observability.LoggerFromContext(ctx).Debug("precipitation served",
		zap.String("cutoff", cutoff),
		zap.Int("rows", len(rows)),
		zap.Int("dates", len(out)),
		zap.Duration("duration", time.Since(start)))
	return out, nil
}

// Stations returns every station id in table order.
func (s *ClimateService) Stations(ctx context.Context) ([]string, error) {
	return coalesce(ctx, s.coalescer, "stations", "stations", s.stations)
}

func (s *ClimateService) stations(ctx context.Context) ([]string, error) {
	ids, err := s.store.StationIDs(ctx)
	if err != nil {
		return nil, err
	}
	observability.LoggerFromContext(ctx).Debug("stations served", zap.Int("count", len(ids)))
	return ids, nil
}

// TemperatureObservations returns the last LookbackDays of tobs for the most active station.
// The window is anchored on the most recent date of the whole dataset, not of that station.
func (s *ClimateService) TemperatureObservations(ctx context.Context) ([]models.TemperatureObservation, error) {
	return coalesce(ctx, s.coalescer, "tobs", "tobs", s.temperatureObservations)
}

func (s *ClimateService) temperatureObservations(ctx context.Context) ([]models.TemperatureObservation, error) {
	start := time.Now()
	station, err := s.store.MostActiveStation(ctx)
	if err != nil {
		return nil, err
	}
	cutoff, err := s.cutoff(ctx)
	if err != nil {
		return nil, err
	}
	obs, err := s.store.TemperaturesSince(ctx, station, cutoff)
	if err != nil {
		return nil, err
	}
	observability.LoggerFromContext(ctx).Debug("temperature observations served",
		zap.String("station", station),
		zap.String("cutoff", cutoff),
		zap.Int("rows", len(obs)),
		zap.Duration("duration", time.Since(start)))
	return obs, nil
}

// StatsFrom returns TMIN/TAVG/TMAX over every measurement on or after start.
func (s *ClimateService) StatsFrom(ctx context.Context, start time.Time) (models.TemperatureStats, error) {
	from := start.Format(models.DateLayout)
	return coalesce(ctx, s.coalescer, "start_stats", "start_stats:"+from,
		func(ctx context.Context) (models.TemperatureStats, error) {
			return s.store.TemperatureStatsSince(ctx, from)
		})
}

// StatsBetween returns TMIN/TAVG/TMAX over measurements from start to end inclusive.
// start after end matches nothing.
func (s *ClimateService) StatsBetween(ctx context.Context, start, end time.Time) (models.TemperatureStats, error) {
	from, to := start.Format(models.DateLayout), end.Format(models.DateLayout)
	return coalesce(ctx, s.coalescer, "range_stats", "range_stats:"+from+":"+to,
		func(ctx context.Context) (models.TemperatureStats, error) {
			return s.store.TemperatureStatsBetween(ctx, from, to)
		})
}

// cutoff returns the most recent measurement date minus LookbackDays, as YYYY-MM-DD.
func (s *ClimateService) cutoff(ctx context.Context) (string, error) {
	latest, err := s.store.MostRecentDate(ctx)
	if err != nil {
		return "", err
	}
	return CutoffDate(latest)
}

// CutoffDate returns latest minus LookbackDays. latest must be YYYY-MM-DD.
func CutoffDate(latest string) (string, error) {
	t, err := time.Parse(models.DateLayout, latest)
	if err != nil {
		return "", fmt.Errorf("parse most recent date %q: %w", latest, err)
	}
	return t.AddDate(0, 0, -LookbackDays).Format(models.DateLayout), nil
}
