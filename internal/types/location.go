// README: Structured location and free-form metadata value objects.
package types

import "fmt"

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Location struct {
	Address     string `json:"address,omitempty"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	ZipCode     string `json:"zip_code,omitempty"`
	Coordinates *Point `json:"coordinates,omitempty"`
}

// Validate requires an address or coordinates, and coordinates within range.
func (l Location) Validate(field string) error {
	if l.Address == "" && l.Coordinates == nil {
		return Validation(fmt.Sprintf("%s must have address or coordinates", field))
	}
	if c := l.Coordinates; c != nil {
		if c.Lat < -90 || c.Lat > 90 {
			return Validation(fmt.Sprintf("%s latitude must be between -90 and 90", field))
		}
		if c.Lng < -180 || c.Lng > 180 {
			return Validation(fmt.Sprintf("%s longitude must be between -180 and 180", field))
		}
	}
	return nil
}

// Equal compares by value, including the coordinates behind the pointer.
func (l Location) Equal(o Location) bool {
	if l.Address != o.Address || l.City != o.City || l.State != o.State || l.ZipCode != o.ZipCode {
		return false
	}
	if l.Coordinates == nil || o.Coordinates == nil {
		return l.Coordinates == nil && o.Coordinates == nil
	}
	return *l.Coordinates == *o.Coordinates
}

// Query renders the location as a routing query: coordinates win over the address.
func (l Location) Query() string {
	if l.Coordinates != nil {
		return fmt.Sprintf("%f,%f", l.Coordinates.Lat, l.Coordinates.Lng)
	}
	q := l.Address
	for _, part := range []string{l.City, l.State, l.ZipCode} {
		if part != "" {
			q += ", " + part
		}
	}
	return q
}

// Metadata is an arbitrary JSON object attached to trips and events.
type Metadata map[string]any
