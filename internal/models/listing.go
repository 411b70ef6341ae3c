package models

import (
	"time"

	"github.com/google/uuid"
)

type ListingStatus string

const (
	ListingActive   ListingStatus = "active"
	ListingInactive ListingStatus = "inactive"
	ListingSoldOut  ListingStatus = "sold_out"
)

func (s ListingStatus) IsValid() bool {
	return s == ListingActive || s == ListingInactive || s == ListingSoldOut
}

// HydrogenListing is a producer's offer of hydrogen volume priced in
// Hydcoin credits per kg.
type HydrogenListing struct {
	ID                   uuid.UUID     `json:"id"`
	ProducerID           uuid.UUID     `json:"producer_id"`
	QuantityKg           int64         `json:"quantity_kg"`
	PricePerKg           int64         `json:"price_per_kg"` // credits per kg
	Location             string        `json:"location"`
	EnergySource         string        `json:"energy_source"`
	CertificationDetails *string       `json:"certification_details,omitempty"`
	Status               ListingStatus `json:"status"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

// ListingView joins public producer details for the marketplace page.
type ListingView struct {
	HydrogenListing
	ProducerUsername     string  `json:"producer_username"`
	ProducerOrganization *string `json:"producer_organization,omitempty"`
}
