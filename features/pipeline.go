// features/pipeline.go
package features

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/gewnthar/fareprice/ingest"
	"github.com/gewnthar/fareprice/models"
	"gonum.org/v1/gonum/mat"
)

// NumericColumns are the derived numeric columns, in output order. Indicator
// columns for Airline, Source and Destination follow them.
var NumericColumns = []string{
	"Total_Stops",
	"Journey_day", "Journey_month",
	"Dep_hour", "Dep_min",
	"Arrival_hour", "Arrival_min",
	"Duration_hours", "Duration_mins",
}

// Pipeline is the fitted feature transform. Fit it once on the training set
// and reuse it for every later set so all tables share one column schema.
// Route and Additional_Info are dropped: the route is implied by source,
// destination and stops, and the info column is almost always "No info".
type Pipeline struct {
	Airline     *OneHotEncoder
	Source      *OneHotEncoder
	Destination *OneHotEncoder
}

// PipelineState is the serializable form of a fitted Pipeline.
type PipelineState struct {
	Airline     []string `msgpack:"airline"`
	Source      []string `msgpack:"source"`
	Destination []string `msgpack:"destination"`
	Strict      bool     `msgpack:"strict"`
}

// NewPipeline returns an unfitted pipeline. With strict set, categories unseen
// at fit time fail Transform with ErrUnseenCategory instead of encoding as the
// reference level.
func NewPipeline(strict bool) *Pipeline {
	return &Pipeline{
		Airline:     NewOneHotEncoder("Airline", strict),
		Source:      NewOneHotEncoder("Source", strict),
		Destination: NewOneHotEncoder("Destination", strict),
	}
}

// PipelineFromState rebuilds a fitted pipeline.
func PipelineFromState(s PipelineState) *Pipeline {
	p := NewPipeline(s.Strict)
	p.Airline.Categories = s.Airline
	p.Source.Categories = s.Source
	p.Destination.Categories = s.Destination
	for _, e := range p.encoders() {
		e.buildIndex()
	}
	return p
}

// State returns the fitted categories for persistence.
func (p *Pipeline) State() PipelineState {
	return PipelineState{
		Airline:     p.Airline.Categories,
		Source:      p.Source.Categories,
		Destination: p.Destination.Categories,
		Strict:      p.Airline.Strict,
	}
}

func (p *Pipeline) encoders() []*OneHotEncoder {
	return []*OneHotEncoder{p.Airline, p.Source, p.Destination}
}

// Columns is the full output schema.
func (p *Pipeline) Columns() []string {
	cols := append([]string(nil), NumericColumns...)
	for _, e := range p.encoders() {
		cols = append(cols, e.Columns()...)
	}
	return cols
}

// Fit learns the categories of set and transforms it.
func (p *Pipeline) Fit(set *ingest.FlightSet) (*Table, error) {
	if len(set.Flights) == 0 {
		return nil, errors.New("cannot fit features on an empty record set")
	}
	airlines := make([]string, len(set.Flights))
	sources := make([]string, len(set.Flights))
	destinations := make([]string, len(set.Flights))
	for i, f := range set.Flights {
		airlines[i], sources[i], destinations[i] = f.Airline, f.Source, f.Destination
	}
	p.Airline.Fit(airlines)
	p.Source.Fit(sources)
	p.Destination.Fit(destinations)

	slog.Debug("Feature encoders fitted.",
		"airlines", len(p.Airline.Categories),
		"sources", len(p.Source.Categories),
		"destinations", len(p.Destination.Categories))
	return p.Transform(set)
}

// Transform applies the fitted state. Labeled sets also yield the target.
// Errors name the 1-based data row.
func (p *Pipeline) Transform(set *ingest.FlightSet) (*Table, error) {
	for _, e := range p.encoders() {
		if !e.Fitted() {
			return nil, errors.New("feature pipeline used before Fit")
		}
	}

	cols := p.Columns()
	t := &Table{Columns: cols}
	if len(set.Flights) == 0 {
		return t, nil
	}
	t.X = mat.NewDense(len(set.Flights), len(cols), nil)
	if set.Labeled {
		t.Target = make([]float64, len(set.Flights))
	}

	unseen := make(map[string]int)
	for i, f := range set.Flights {
		row := t.X.RawRowView(i)
		if err := p.encodeNumeric(f, row[:len(NumericColumns)]); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		off := len(NumericColumns)
		for _, pair := range []struct {
			enc   *OneHotEncoder
			value string
		}{
			{p.Airline, f.Airline},
			{p.Source, f.Source},
			{p.Destination, f.Destination},
		} {
			w := pair.enc.Width()
			known, err := pair.enc.Encode(pair.value, row[off:off+w])
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i+1, err)
			}
			if !known {
				unseen[pair.enc.Prefix+"="+strings.TrimSpace(pair.value)]++
			}
			off += w
		}
		if set.Labeled {
			price, err := strconv.ParseFloat(strings.TrimSpace(f.Price), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: invalid price %q: %w", i+1, f.Price, err)
			}
			t.Target[i] = price
		}
	}

	for cat, n := range unseen {
		slog.Warn("Category not seen at fit time, encoded as reference level.", "category", cat, "rows", n)
	}
	return t, nil
}

func (p *Pipeline) encodeNumeric(f models.Flight, dst []float64) error {
	stops, err := ParseStops(f.TotalStops)
	if err != nil {
		return err
	}
	day, month, err := ParseJourneyDate(f.DateOfJourney)
	if err != nil {
		return err
	}
	depHour, depMin, err := ParseClock(f.DepTime)
	if err != nil {
		return fmt.Errorf("departure: %w", err)
	}
	arrHour, arrMin, err := ParseClock(f.ArrivalTime)
	if err != nil {
		return fmt.Errorf("arrival: %w", err)
	}
	durHours, durMins, err := ParseDuration(f.Duration)
	if err != nil {
		return err
	}

	values := [...]int{stops, day, month, depHour, depMin, arrHour, arrMin, durHours, durMins}
	for j, v := range values {
		dst[j] = float64(v)
	}
	return nil
}
