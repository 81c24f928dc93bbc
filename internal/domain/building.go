package domain

import "time"

// Building is reference data for a managed property.
type Building struct {
	ID        string
	Name      string
	Address   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Apartment is a unit inside a building; issues point at the apartment
// where the problem was reported.
type Apartment struct {
	ID         string
	BuildingID string
	Number     string
	Floor      int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
