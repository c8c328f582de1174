// models/flight.go
package models

import "strings"

// Flight is one listing row from the fare spreadsheets.
// CSV tags EXACTLY match the sheet headers; every cell is kept as text and
// converted later by the features package.
type Flight struct {
	Airline        string `csv:"Airline"`
	DateOfJourney  string `csv:"Date_of_Journey"`
	Source         string `csv:"Source"`
	Destination    string `csv:"Destination"`
	Route          string `csv:"Route"`
	DepTime        string `csv:"Dep_Time"`
	ArrivalTime    string `csv:"Arrival_Time"`
	Duration       string `csv:"Duration"`
	TotalStops     string `csv:"Total_Stops"`
	AdditionalInfo string `csv:"Additional_Info"`
	Price          string `csv:"Price,omitempty"` // Only present in the training sheet

	Line int `csv:"-"` // 1-based data row in the source sheet, header excluded; set by the parser
}

// FlightHeaders lists the columns a fare sheet is expected to carry, in sheet order.
var FlightHeaders = []string{
	"Airline", "Date_of_Journey", "Source", "Destination", "Route",
	"Dep_Time", "Arrival_Time", "Duration", "Total_Stops", "Additional_Info",
}

// PriceHeader is the target column, present only in labeled sheets.
const PriceHeader = "Price"

// HasMissing reports whether any field of the record is empty.
// Price only counts when the record comes from a labeled sheet.
func (f Flight) HasMissing(labeled bool) bool {
	fields := []string{
		f.Airline, f.DateOfJourney, f.Source, f.Destination, f.Route,
		f.DepTime, f.ArrivalTime, f.Duration, f.TotalStops, f.AdditionalInfo,
	}
	if labeled {
		fields = append(fields, f.Price)
	}
	for _, v := range fields {
		if strings.TrimSpace(v) == "" {
			return true
		}
	}
	return false
}
