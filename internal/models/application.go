package models

import (
	"time"

	"github.com/google/uuid"
)

type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationApproved ApplicationStatus = "approved"
	ApplicationRejected ApplicationStatus = "rejected"
)

type ProducerDetails struct {
	CompanyName        string `json:"companyName"`
	RegistrationNumber string `json:"registrationNumber"`
	BusinessAddress    string `json:"businessAddress"`
	ContactPerson      string `json:"contactPerson"`
	Website            string `json:"website,omitempty"`
}

type ApplicationDocument struct {
	Type       string    `json:"type"`
	URL        string    `json:"url"`
	UploadDate time.Time `json:"uploadDate"`
	Status     string    `json:"status"` // pending|verified|rejected
}

// ProducerApplication is a user's request to be granted the producer role.
// Approval promotes the user; at most one pending or approved application
// may exist per user.
type ProducerApplication struct {
	ID          uuid.UUID             `json:"id"`
	UserID      uuid.UUID             `json:"user_id"`
	Status      ApplicationStatus     `json:"status"`
	Details     ProducerDetails       `json:"details"`
	Documents   []ApplicationDocument `json:"documents"`
	ReviewedBy  *uuid.UUID            `json:"reviewed_by,omitempty"`
	ReviewNotes *string               `json:"review_notes,omitempty"`
	ReviewedAt  *time.Time            `json:"reviewed_at,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
}
