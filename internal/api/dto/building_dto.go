package dto

import "time"

// CreateBuildingRequest is the admin payload for a new building.
type CreateBuildingRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// CreateApartmentRequest is the admin payload for a new apartment.
type CreateApartmentRequest struct {
	Number string `json:"number"`
	Floor  int    `json:"floor"`
}

// BuildingResponse projects a building.
type BuildingResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
}

// ApartmentResponse projects an apartment.
type ApartmentResponse struct {
	ID         string    `json:"id"`
	BuildingID string    `json:"building_id"`
	Number     string    `json:"number"`
	Floor      int       `json:"floor"`
	CreatedAt  time.Time `json:"created_at"`
}
