package transport

import (
	"time"

	"github.com/google/uuid"
)

// RegisterProfessionalRequest registers a new professional in the directory.
type RegisterProfessionalRequest struct {
	FullName  string   `json:"fullName" validate:"required,max=200"`
	Phone     string   `json:"phone" validate:"required,max=32"`
	Category  string   `json:"category" validate:"required,max=64"`
	Latitude  *float64 `json:"latitude,omitempty" validate:"omitempty,latitude_range"`
	Longitude *float64 `json:"longitude,omitempty" validate:"omitempty,longitude_range"`
}

// UpdateLocationRequest reports a professional's current coordinates.
type UpdateLocationRequest struct {
	Latitude  float64 `json:"latitude" validate:"latitude_range"`
	Longitude float64 `json:"longitude" validate:"longitude_range"`
}

// SetAvailabilityRequest flips the availability flag.
type SetAvailabilityRequest struct {
	Available bool `json:"available"`
}

// ProfessionalResponse is the directory view of a professional.
type ProfessionalResponse struct {
	ID                uuid.UUID  `json:"id"`
	FullName          string     `json:"fullName"`
	Phone             string     `json:"phone"`
	Category          string     `json:"category"`
	Rating            float64    `json:"rating"`
	IsAvailable       bool       `json:"isAvailable"`
	Latitude          *float64   `json:"latitude,omitempty"`
	Longitude         *float64   `json:"longitude,omitempty"`
	LocationUpdatedAt *time.Time `json:"locationUpdatedAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
}

// ListProfessionalsResponse is the list payload.
type ListProfessionalsResponse struct {
	Items []ProfessionalResponse `json:"items"`
}
