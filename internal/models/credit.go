package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type CreditStatus string

const (
	// Legacy pre-issuance states retained from before the balance migration.
	CreditIssued    CreditStatus = "issued"
	CreditCertified CreditStatus = "certified"

	// Only active credits are spendable or transferable.
	CreditActive            CreditStatus = "active"
	CreditRetired           CreditStatus = "retired"
	CreditPendingWithdrawal CreditStatus = "pending_withdrawal"
	CreditWithdrawn         CreditStatus = "withdrawn"
)

var validCreditStatuses = []CreditStatus{
	CreditIssued, CreditCertified, CreditActive,
	CreditRetired, CreditPendingWithdrawal, CreditWithdrawn,
}

func (s CreditStatus) IsValid() bool {
	for _, c := range validCreditStatuses {
		if c == s {
			return true
		}
	}
	return false
}

// Terminal reports whether the status is an audit-trail end state.
// Terminal credits are never mutated again except by the withdrawal
// failure reversal, which only ever touches pending_withdrawal.
func (s CreditStatus) Terminal() bool {
	return s == CreditRetired || s == CreditWithdrawn
}

type SourceType string

const (
	SourcePurchase   SourceType = "purchase"
	SourceGeneration SourceType = "generation"
)

// PurchaseSource marks a credit minted from a token top-up.
type PurchaseSource struct {
	PurchaseID uuid.UUID `json:"purchaseId"`
}

// GenerationSource marks a credit minted from certified hydrogen production.
type GenerationSource struct {
	ProducerID        uuid.UUID         `json:"producerId"`
	CertifierID       *uuid.UUID        `json:"certifierId,omitempty"`
	CertificationDate *time.Time        `json:"certificationDate,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// CreditSource is the provenance of a credit: exactly one variant is set.
// It is immutable once the credit is minted and describes origin, not custody.
type CreditSource struct {
	Type       SourceType        `json:"type"`
	Purchase   *PurchaseSource   `json:"purchase,omitempty"`
	Generation *GenerationSource `json:"generation,omitempty"`
}

func NewPurchaseSource(purchaseID uuid.UUID) CreditSource {
	return CreditSource{Type: SourcePurchase, Purchase: &PurchaseSource{PurchaseID: purchaseID}}
}

func NewGenerationSource(producerID uuid.UUID, metadata map[string]string) CreditSource {
	return CreditSource{Type: SourceGeneration, Generation: &GenerationSource{ProducerID: producerID, Metadata: metadata}}
}

func (s CreditSource) Validate() error {
	switch s.Type {
	case SourcePurchase:
		if s.Purchase == nil || s.Generation != nil {
			return fmt.Errorf("purchase source requires exactly the purchase variant")
		}
	case SourceGeneration:
		if s.Generation == nil || s.Purchase != nil {
			return fmt.Errorf("generation source requires exactly the generation variant")
		}
	default:
		return fmt.Errorf("unknown credit source type %q", s.Type)
	}
	return nil
}

func (s CreditSource) MarshalJSON() ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	type alias CreditSource
	return json.Marshal(alias(s))
}

// Credit is the atomic unit of value. One row per unit; ownership is
// exclusive and terminal rows are kept forever as the audit trail.
type Credit struct {
	ID             uuid.UUID    `json:"id"`
	OwnerID        uuid.UUID    `json:"owner_id"`
	Status         CreditStatus `json:"status"`
	Source         CreditSource `json:"source"`
	IssueDate      time.Time    `json:"issue_date"`
	RetirementDate *time.Time   `json:"retirement_date,omitempty"`
}
