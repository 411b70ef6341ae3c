package models

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleProducer  Role = "producer"
	RoleCertifier Role = "certifier"
	RoleBuyer     Role = "buyer"
	RoleRegulator Role = "regulator"
	RoleAuditor   Role = "auditor"
	RoleAdmin     Role = "admin"
)

var validRoles = []Role{RoleProducer, RoleCertifier, RoleBuyer, RoleRegulator, RoleAuditor, RoleAdmin}

func (r Role) IsValid() bool {
	for _, c := range validRoles {
		if c == r {
			return true
		}
	}
	return false
}

type User struct {
	ID        uuid.UUID `json:"id"`
	SubjectID string    `json:"subject_id"`
	Username  string    `json:"username"`
	Fullname  string    `json:"fullname"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`

	// HydcoinBalance is a denormalized read cache. The credit store is the
	// source of truth: the field must equal the count of this user's active
	// credits after every ledger operation.
	HydcoinBalance int64 `json:"hydcoin_balance"`

	StripeCustomerID   *string `json:"stripe_customer_id,omitempty"`
	StripeAccountID    *string `json:"stripe_account_id,omitempty"`
	TransactionPinHash string  `json:"-"`

	Organization *string   `json:"organization,omitempty"`
	Verified     bool      `json:"verified"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u *User) Validate() error {
	if len(strings.TrimSpace(u.Username)) < 3 {
		return errors.New("username too short")
	}
	if !strings.Contains(u.Email, "@") {
		return errors.New("invalid email")
	}
	if strings.TrimSpace(u.SubjectID) == "" {
		return errors.New("subject id required")
	}
	if u.Role == "" {
		u.Role = RoleBuyer
	}
	if !u.Role.IsValid() {
		return errors.New("unknown role")
	}
	return nil
}
