// Package flight provides the mock flight board shown on the second page.
package flight

import (
	"fmt"
	"math/rand"
	"sync"
)

// Info is one flight as displayed on the panel.
type Info struct {
	Number    string `json:"number"`
	Departure string `json:"departure,omitempty"`
	Arrival   string `json:"arrival,omitempty"`
	Altitude  int    `json:"altitude_ft"`
	Speed     int    `json:"speed_kn,omitempty"`
}

// Mock is the fixed demo table.
var Mock = []Info{
	{Number: "AA123", Departure: "New York", Arrival: "Los Angeles", Altitude: 30000, Speed: 500},
	{Number: "DL456", Departure: "Chicago", Arrival: "San Francisco", Altitude: 32000, Speed: 520},
	{Number: "UA789", Departure: "Houston", Arrival: "Seattle", Altitude: 31000, Speed: 510},
	{Number: "BA101", Departure: "London", Arrival: "New York", Altitude: 33000, Speed: 530},
	{Number: "LH202", Departure: "Berlin", Arrival: "Paris", Altitude: 29000, Speed: 490},
}

// Rotator cycles through a flight list.
type Rotator struct {
	mu      sync.Mutex
	flights []Info
	current int
}

// NewRotator returns a Rotator over flights, or over Mock if flights is empty.
func NewRotator(flights []Info) *Rotator {
	if len(flights) == 0 {
		flights = Mock
	}
	return &Rotator{flights: append([]Info(nil), flights...)}
}

// Current returns the flight being shown.
func (r *Rotator) Current() Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flights[r.current]
}

// Next advances to the following flight, wrapping at the end, and returns it.
func (r *Rotator) Next() Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = (r.current + 1) % len(r.flights)
	return r.flights[r.current]
}

// Random generates 1-4 flights with random codes (FL100-FL999) and
// altitudes between 25000 and 40000 ft.
func Random(rng *rand.Rand) []Info {
	n := 1 + rng.Intn(4)
	out := make([]Info, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Info{
			Number:   fmt.Sprintf("FL%d", 100+rng.Intn(900)),
			Altitude: 25000 + rng.Intn(15001),
		})
	}
	return out
}
