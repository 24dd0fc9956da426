package place

import "time"

// Place is a physical location registered by a client.
type Place struct {
	ID          string  `json:"id" db:"id"`
	Name        string  `json:"name" db:"name"`
	Description *string `json:"description" db:"description"`
	Latitude    float64 `json:"latitude" db:"latitude"`
	Longitude   float64 `json:"longitude" db:"longitude"`

	// Vibe
	IsStudying bool `json:"isStudying" db:"is_studying"`
	IsDimlyLit bool `json:"isDimlyLit" db:"is_dimly_lit"`
	HasOutlets bool `json:"hasOutlets" db:"has_outlets"`
	HasWifi    bool `json:"hasWifi" db:"has_wifi"`

	// Premium
	IsPremium         bool `json:"isPremium" db:"is_premium"`
	HasErgonomicChair bool `json:"hasErgonomicChair" db:"has_ergonomic_chair"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Measurement is a single noise reading, in decibels, submitted for a place.
type Measurement struct {
	ID        string    `json:"id" db:"id"`
	PlaceID   string    `json:"placeId" db:"place_id"`
	Value     float64   `json:"value" db:"value"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// WithMeasurements is a place together with every measurement recorded for it.
type WithMeasurements struct {
	Place
	Measurements []Measurement `json:"measurements"`
}

// Summary is a place as listed to clients: its measurements plus the derived
// average. AverageDecibel is nil when the place has no measurements.
type Summary struct {
	Place
	Measurements   []Measurement `json:"measurements"`
	AverageDecibel *float64      `json:"averageDecibel"`
}
