package features

import (
	"bytes"
	"strings"
	"testing"

	"github.com/gewnthar/fareprice/ingest"
	"github.com/gewnthar/fareprice/models"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func fixtureSet() *ingest.FlightSet {
	return &ingest.FlightSet{Labeled: true, Flights: []models.Flight{
		{Airline: "IndiGo", DateOfJourney: "24/03/2019", Source: "Banglore", Destination: "New Delhi",
			Route: "BLR → DEL", DepTime: "22:20", ArrivalTime: "01:10 22 Mar", Duration: "2h 50m",
			TotalStops: "non-stop", AdditionalInfo: "No info", Price: "3897"},
		{Airline: "Air India", DateOfJourney: "1/05/2019", Source: "Kolkata", Destination: "Banglore",
			Route: "CCU → IXR → BBI → BLR", DepTime: "05:50", ArrivalTime: "13:15", Duration: "7h 25m",
			TotalStops: "2 stops", AdditionalInfo: "No info", Price: "7662"},
		{Airline: "Jet Airways", DateOfJourney: "9/06/2019", Source: "Delhi", Destination: "Cochin",
			Route: "DEL → LKO → BOM → COK", DepTime: "09:25", ArrivalTime: "04:25 10 Jun", Duration: "19h",
			TotalStops: "2 stops", AdditionalInfo: "No info", Price: "13882"},
		{Airline: "IndiGo", DateOfJourney: "12/05/2019", Source: "Kolkata", Destination: "Banglore",
			Route: "CCU → NAG → BLR", DepTime: "18:05", ArrivalTime: "23:30", Duration: "5h 25m",
			TotalStops: "1 stop", AdditionalInfo: "No info", Price: "6218"},
		{Airline: "SpiceJet", DateOfJourney: "01/03/2019", Source: "Banglore", Destination: "New Delhi",
			Route: "BLR → DEL", DepTime: "16:50", ArrivalTime: "17:35", Duration: "45m",
			TotalStops: "non-stop", AdditionalInfo: "No info", Price: "3873"},
	}}
}

func rows(m *mat.Dense) [][]float64 {
	r, _ := m.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = append([]float64(nil), m.RawRowView(i)...)
	}
	return out
}

func TestPipelineFitFixture(t *testing.T) {
	p := NewPipeline(false)
	table, err := p.Fit(fixtureSet())
	require.NoError(t, err)

	wantColumns := []string{
		"Total_Stops", "Journey_day", "Journey_month", "Dep_hour", "Dep_min",
		"Arrival_hour", "Arrival_min", "Duration_hours", "Duration_mins",
		"Airline_IndiGo", "Airline_Jet Airways", "Airline_SpiceJet",
		"Source_Delhi", "Source_Kolkata",
		"Destination_Cochin", "Destination_New Delhi",
	}
	wantRows := [][]float64{
		{0, 24, 3, 22, 20, 1, 10, 2, 50, 1, 0, 0, 0, 0, 0, 1},
		{2, 1, 5, 5, 50, 13, 15, 7, 25, 0, 0, 0, 0, 1, 0, 0},
		{2, 9, 6, 9, 25, 4, 25, 19, 0, 0, 1, 0, 1, 0, 1, 0},
		{1, 12, 5, 18, 5, 23, 30, 5, 25, 1, 0, 0, 0, 1, 0, 0},
		{0, 1, 3, 16, 50, 17, 35, 0, 45, 0, 0, 1, 0, 0, 0, 1},
	}

	if diff := cmp.Diff(wantColumns, table.Columns); diff != "" {
		t.Errorf("columns mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantRows, rows(table.X)); diff != "" {
		t.Errorf("feature rows mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []float64{3897, 7662, 13882, 6218, 3873}, table.Target)
	assert.Equal(t, wantColumns, p.Columns())
}

func TestPipelineTransformKeepsFittedSchema(t *testing.T) {
	p := NewPipeline(false)
	train, err := p.Fit(fixtureSet())
	require.NoError(t, err)

	test := &ingest.FlightSet{Flights: []models.Flight{
		{Airline: "Vistara", DateOfJourney: "6/06/2019", Source: "Delhi", Destination: "Cochin",
			Route: "DEL → BOM → COK", DepTime: "17:30", ArrivalTime: "04:25 07 Jun", Duration: "10h 55m",
			TotalStops: "1 stop", AdditionalInfo: "No info"},
	}}
	table, err := p.Transform(test)
	require.NoError(t, err)

	assert.Equal(t, train.Columns, table.Columns)
	assert.Nil(t, table.Target)
	assert.Equal(t, [][]float64{
		{1, 6, 6, 17, 30, 4, 25, 10, 55, 0, 0, 0, 1, 0, 1, 0},
	}, rows(table.X), "unseen airline encodes as the reference level")

	strict := PipelineFromState(PipelineState{
		Airline: p.Airline.Categories, Source: p.Source.Categories,
		Destination: p.Destination.Categories, Strict: true,
	})
	_, err = strict.Transform(test)
	assert.ErrorIs(t, err, ErrUnseenCategory)
}

func TestPipelineStateRoundTrip(t *testing.T) {
	p := NewPipeline(false)
	want, err := p.Fit(fixtureSet())
	require.NoError(t, err)

	restored := PipelineFromState(p.State())
	got, err := restored.Transform(fixtureSet())
	require.NoError(t, err)
	assert.Equal(t, want.Columns, got.Columns)
	assert.True(t, mat.Equal(want.X, got.X))
}

func TestPipelineRowErrors(t *testing.T) {
	for _, tc := range []struct {
		name   string
		mutate func(*models.Flight)
		target error
	}{
		{"duration", func(f *models.Flight) { f.Duration = "long" }, ErrMalformedDuration},
		{"stops", func(f *models.Flight) { f.TotalStops = "many" }, ErrUnknownStops},
		{"date", func(f *models.Flight) { f.DateOfJourney = "March 1" }, nil},
		{"clock", func(f *models.Flight) { f.DepTime = "late" }, nil},
		{"price", func(f *models.Flight) { f.Price = "cheap" }, nil},
	} {
		t.Run(tc.name, func(t *testing.T) {
			set := fixtureSet()
			tc.mutate(&set.Flights[2])
			_, err := NewPipeline(false).Fit(set)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "row 3")
			if tc.target != nil {
				assert.ErrorIs(t, err, tc.target)
			}
		})
	}
}

func TestPipelineMisuse(t *testing.T) {
	_, err := NewPipeline(false).Transform(fixtureSet())
	assert.Error(t, err)

	_, err = NewPipeline(false).Fit(&ingest.FlightSet{})
	assert.Error(t, err)
}

func TestTableExport(t *testing.T) {
	table, err := NewPipeline(false).Fit(fixtureSet())
	require.NoError(t, err)

	stops, err := table.column("Total_Stops")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 2, 2, 1, 0}, stops)
	_, err = table.column("Route")
	assert.Error(t, err)

	df := table.DataFrame()
	require.NoError(t, df.Err)
	nrow, ncol := df.Dims()
	assert.Equal(t, 5, nrow)
	assert.Equal(t, len(table.Columns)+1, ncol)

	var buf bytes.Buffer
	require.NoError(t, table.WriteCSV(&buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 6)
	assert.True(t, strings.HasPrefix(lines[0], "Total_Stops,Journey_day,Journey_month"))
	assert.True(t, strings.HasSuffix(lines[0], ",Price"))
}
