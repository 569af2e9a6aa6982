package models

// DateLayout is the only accepted date form for path parameters and the stored date column.
const DateLayout = "2006-01-02"

// Measurement is one row of the measurement table. (Station, Date) is not unique.
type Measurement struct {
	Station       string   `json:"station"`
	Date          string   `json:"date"`
	Precipitation *float64 `json:"prcp"` // NULL in the source when the gauge did not report
	Temperature   float64  `json:"tobs"`
}

// Station is one row of the station table. Only ID is used by the API routes.
type Station struct {
	ID        string  `json:"station"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Elevation float64 `json:"elevation"`
}

// Precipitation is a (date, prcp) pair selected for the precipitation route.
type Precipitation struct {
	Date   string
	Amount *float64
}

// TemperatureObservation is a single entry of the /tobs response.
type TemperatureObservation struct {
	Date        string  `json:"date"`
	Temperature float64 `json:"temperature"`
}

// TemperatureStats holds MIN/AVG/MAX of tobs over a filtered set of rows.
// Fields are nil when no rows matched.
type TemperatureStats struct {
	Min *float64
	Avg *float64
	Max *float64
}

// StartStatsResponse is the body of GET /api/v1.0/{start}.
type StartStatsResponse struct {
	StartDate string   `json:"start_date"`
	TMin      *float64 `json:"TMIN"`
	TAvg      *float64 `json:"TAVG"`
	TMax      *float64 `json:"TMAX"`
}

// RangeStatsResponse is the body of GET /api/v1.0/{start}/{end}.
type RangeStatsResponse struct {
	StartDate string   `json:"start_date"`
	EndDate   string   `json:"end_date"`
	TMin      *float64 `json:"TMIN"`
	TAvg      *float64 `json:"TAVG"`
	TMax      *float64 `json:"TMAX"`
}

// DatasetSummary describes the loaded dataset. Logged and exported as gauges at startup.
type DatasetSummary struct {
	MeasurementRows int
	StationRows     int
	FirstDate       string
	LastDate        string
}
