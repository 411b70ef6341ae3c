package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hydit/hydit-backend/internal/models"
)

// ErrNotFound is returned by every implementation for missing records so
// callers never depend on driver-specific sentinels.
var ErrNotFound = errors.New("record not found")

// Tx is the set of repositories visible inside one atomic unit. Every ledger
// operation does all of its reads and writes through a single Tx.
type Tx interface {
	Users() Users
	Credits() Credits
	Transactions() Transactions
	Withdrawals() Withdrawals
	Purchases() Purchases
	Listings() Listings
	Applications() Applications
	AuditLogs() AuditLogs
}

// Store is the root handle. Repositories accessed directly on the Store run
// auto-committed; WithTx runs fn as one serializable all-or-nothing unit.
type Store interface {
	Tx
	WithTx(ctx context.Context, fn func(Tx) error) error
}

// ProfileUpdate lists the only user fields the profile operation may touch.
// Nil means "leave unchanged"; there is no generic patch path.
type ProfileUpdate struct {
	Fullname     *string
	Username     *string
	Organization *string
}

type Users interface {
	Create(ctx context.Context, u models.User) (models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (models.User, error)
	GetBySubject(ctx context.Context, subjectID string) (models.User, error)
	GetByUsername(ctx context.Context, username string) (models.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, up ProfileUpdate) error
	SetRole(ctx context.Context, id uuid.UUID, role models.Role) error
	SetStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error
	SetStripeAccountID(ctx context.Context, id uuid.UUID, accountID string) error
	SetPinHash(ctx context.Context, id uuid.UUID, hash string) error

	// AdjustBalance moves the denormalized hydcoin balance cache and returns
	// the new value.
	AdjustBalance(ctx context.Context, id uuid.UUID, delta int64) (int64, error)
}

type Credits interface {
	// SelectForUpdate picks up to limit credits owned by owner in the given
	// status, oldest first, locking them against concurrent selection for
	// the remainder of the transaction.
	SelectForUpdate(ctx context.Context, owner uuid.UUID, status models.CreditStatus, limit int64) ([]uuid.UUID, error)

	MintBatch(ctx context.Context, credits []models.Credit) error
	SetStatus(ctx context.Context, ids []uuid.UUID, status models.CreditStatus, retiredAt *time.Time) error
	Reassign(ctx context.Context, ids []uuid.UUID, newOwner uuid.UUID) error

	// SetCertification stamps the certifier onto generation-sourced credits.
	SetCertification(ctx context.Context, ids []uuid.UUID, certifierID uuid.UUID, at time.Time) error

	CountByOwnerAndStatus(ctx context.Context, owner uuid.UUID, status models.CreditStatus) (int64, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Credit, error)
	ListByOwner(ctx context.Context, owner uuid.UUID) ([]models.Credit, error)
}

type Transactions interface {
	Create(ctx context.Context, t models.Transaction) (models.Transaction, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error)
}

// WithdrawalFinalize lists the only fields the one-shot finalize mutation may
// set on a pending request.
type WithdrawalFinalize struct {
	Status           models.WithdrawalStatus
	ProcessedAt      time.Time
	StripeTransferID *string
	ReviewedBy       *uuid.UUID
	ReviewNotes      *string
}

type Withdrawals interface {
	Create(ctx context.Context, w models.WithdrawalRequest) (models.WithdrawalRequest, error)
	GetByID(ctx context.Context, id uuid.UUID) (models.WithdrawalRequest, error)
	Finalize(ctx context.Context, id uuid.UUID, fin WithdrawalFinalize) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.WithdrawalRequest, error)
	ListPending(ctx context.Context) ([]models.WithdrawalRequest, error)
}

type Purchases interface {
	Create(ctx context.Context, p models.Purchase) (models.Purchase, error)
	GetByExternalID(ctx context.Context, externalPaymentID string) (models.Purchase, error)
}

// ListingUpdate lists the mutable listing fields; nil leaves a field as-is.
type ListingUpdate struct {
	QuantityKg           *int64
	PricePerKg           *int64
	Location             *string
	EnergySource         *string
	CertificationDetails *string
	Status               *models.ListingStatus
}

type Listings interface {
	Create(ctx context.Context, l models.HydrogenListing) (models.HydrogenListing, error)
	GetByID(ctx context.Context, id uuid.UUID) (models.HydrogenListing, error)
	Update(ctx context.Context, id uuid.UUID, up ListingUpdate) error

	// AdjustQuantity decrements the available volume and returns what is
	// left; callers flip the listing to sold_out at zero.
	AdjustQuantity(ctx context.Context, id uuid.UUID, delta int64) (int64, error)

	ListActive(ctx context.Context) ([]models.HydrogenListing, error)
	ListByProducer(ctx context.Context, producerID uuid.UUID) ([]models.HydrogenListing, error)
}

type ApplicationReview struct {
	Status      models.ApplicationStatus
	ReviewedBy  uuid.UUID
	ReviewNotes *string
	ReviewedAt  time.Time
}

type Applications interface {
	Create(ctx context.Context, a models.ProducerApplication) (models.ProducerApplication, error)
	GetByID(ctx context.Context, id uuid.UUID) (models.ProducerApplication, error)
	GetByUser(ctx context.Context, userID uuid.UUID) ([]models.ProducerApplication, error)
	HasActiveForUser(ctx context.Context, userID uuid.UUID) (bool, error)
	ListPending(ctx context.Context) ([]models.ProducerApplication, error)
	Review(ctx context.Context, id uuid.UUID, rev ApplicationReview) error
}

type AuditLogs interface {
	Create(ctx context.Context, l models.AuditLog) error
}
