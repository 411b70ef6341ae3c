// Package memory provides an in-memory repository.Store for tests and local
// development. WithTx serializes on one mutex and rolls back by restoring a
// pre-transaction snapshot, which gives the same all-or-nothing and
// no-double-selection guarantees the Postgres store gets from serializable
// transactions and row locks.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hydit/hydit-backend/internal/models"
	"github.com/hydit/hydit-backend/internal/repository"
)

type state struct {
	users        map[uuid.UUID]models.User
	credits      map[uuid.UUID]models.Credit
	transactions []models.Transaction
	withdrawals  map[uuid.UUID]models.WithdrawalRequest
	purchases    map[uuid.UUID]models.Purchase
	listings     map[uuid.UUID]models.HydrogenListing
	applications map[uuid.UUID]models.ProducerApplication
	audits       []models.AuditLog
}

func newState() *state {
	return &state{
		users:        map[uuid.UUID]models.User{},
		credits:      map[uuid.UUID]models.Credit{},
		withdrawals:  map[uuid.UUID]models.WithdrawalRequest{},
		purchases:    map[uuid.UUID]models.Purchase{},
		listings:     map[uuid.UUID]models.HydrogenListing{},
		applications: map[uuid.UUID]models.ProducerApplication{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.credits {
		c.credits[k] = v
	}
	c.transactions = append([]models.Transaction(nil), s.transactions...)
	for k, v := range s.withdrawals {
		v.CreditIDs = append([]uuid.UUID(nil), v.CreditIDs...)
		c.withdrawals[k] = v
	}
	for k, v := range s.purchases {
		c.purchases[k] = v
	}
	for k, v := range s.listings {
		c.listings[k] = v
	}
	for k, v := range s.applications {
		v.Documents = append([]models.ApplicationDocument(nil), v.Documents...)
		c.applications[k] = v
	}
	c.audits = append([]models.AuditLog(nil), s.audits...)
	return c
}

type Store struct {
	mu sync.Mutex
	st *state
}

func New() *Store { return &Store{st: newState()} }

// Direct repo access locks per call; repos handed to a WithTx body carry no
// mutex because the transaction holds the store lock for its whole duration.
func (m *Store) Users() repository.Users               { return &usersRepo{mu: &m.mu, m: m} }
func (m *Store) Credits() repository.Credits           { return &creditsRepo{mu: &m.mu, m: m} }
func (m *Store) Transactions() repository.Transactions { return &transactionsRepo{mu: &m.mu, m: m} }
func (m *Store) Withdrawals() repository.Withdrawals   { return &withdrawalsRepo{mu: &m.mu, m: m} }
func (m *Store) Purchases() repository.Purchases       { return &purchasesRepo{mu: &m.mu, m: m} }
func (m *Store) Listings() repository.Listings         { return &listingsRepo{mu: &m.mu, m: m} }
func (m *Store) Applications() repository.Applications { return &applicationsRepo{mu: &m.mu, m: m} }
func (m *Store) AuditLogs() repository.AuditLogs       { return &auditLogsRepo{mu: &m.mu, m: m} }

type txView struct{ m *Store }

func (t txView) Users() repository.Users               { return &usersRepo{m: t.m} }
func (t txView) Credits() repository.Credits           { return &creditsRepo{m: t.m} }
func (t txView) Transactions() repository.Transactions { return &transactionsRepo{m: t.m} }
func (t txView) Withdrawals() repository.Withdrawals   { return &withdrawalsRepo{m: t.m} }
func (t txView) Purchases() repository.Purchases       { return &purchasesRepo{m: t.m} }
func (t txView) Listings() repository.Listings         { return &listingsRepo{m: t.m} }
func (t txView) Applications() repository.Applications { return &applicationsRepo{m: t.m} }
func (t txView) AuditLogs() repository.AuditLogs       { return &auditLogsRepo{m: t.m} }

func (m *Store) WithTx(_ context.Context, fn func(repository.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.st.clone()
	if err := fn(txView{m: m}); err != nil {
		m.st = snap
		return err
	}
	return nil
}

func lock(mu *sync.Mutex) func() {
	if mu == nil {
		return func() {}
	}
	mu.Lock()
	return mu.Unlock
}

// ---------------- users ----------------

type usersRepo struct {
	mu *sync.Mutex
	m  *Store
}

func (r *usersRepo) Create(_ context.Context, u models.User) (models.User, error) {
	defer lock(r.mu)()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	now := time.Now()
	u.CreatedAt, u.UpdatedAt = now, now
	r.m.st.users[u.ID] = u
	return u, nil
}

func (r *usersRepo) GetByID(_ context.Context, id uuid.UUID) (models.User, error) {
	defer lock(r.mu)()
	u, ok := r.m.st.users[id]
	if !ok {
		return models.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (r *usersRepo) GetBySubject(_ context.Context, subjectID string) (models.User, error) {
	defer lock(r.mu)()
	for _, u := range r.m.st.users {
		if u.SubjectID == subjectID {
			return u, nil
		}
	}
	return models.User{}, repository.ErrNotFound
}

func (r *usersRepo) GetByUsername(_ context.Context, username string) (models.User, error) {
	defer lock(r.mu)()
	for _, u := range r.m.st.users {
		if u.Username == username {
			return u, nil
		}
	}
	return models.User{}, repository.ErrNotFound
}

func (r *usersRepo) UpdateProfile(_ context.Context, id uuid.UUID, up repository.ProfileUpdate) error {
	defer lock(r.mu)()
	u, ok := r.m.st.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	if up.Fullname != nil {
		u.Fullname = *up.Fullname
	}
	if up.Username != nil {
		u.Username = *up.Username
	}
	if up.Organization != nil {
		u.Organization = up.Organization
	}
	u.UpdatedAt = time.Now()
	r.m.st.users[id] = u
	return nil
}

func (r *usersRepo) SetRole(_ context.Context, id uuid.UUID, role models.Role) error {
	defer lock(r.mu)()
	u, ok := r.m.st.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.Role = role
	u.UpdatedAt = time.Now()
	r.m.st.users[id] = u
	return nil
}

func (r *usersRepo) SetStripeCustomerID(_ context.Context, id uuid.UUID, customerID string) error {
	defer lock(r.mu)()
	u, ok := r.m.st.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.StripeCustomerID = &customerID
	r.m.st.users[id] = u
	return nil
}

func (r *usersRepo) SetStripeAccountID(_ context.Context, id uuid.UUID, accountID string) error {
	defer lock(r.mu)()
	u, ok := r.m.st.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.StripeAccountID = &accountID
	r.m.st.users[id] = u
	return nil
}

func (r *usersRepo) SetPinHash(_ context.Context, id uuid.UUID, hash string) error {
	defer lock(r.mu)()
	u, ok := r.m.st.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.TransactionPinHash = hash
	r.m.st.users[id] = u
	return nil
}

func (r *usersRepo) AdjustBalance(_ context.Context, id uuid.UUID, delta int64) (int64, error) {
	defer lock(r.mu)()
	u, ok := r.m.st.users[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	u.HydcoinBalance += delta
	u.UpdatedAt = time.Now()
	r.m.st.users[id] = u
	return u.HydcoinBalance, nil
}

// ---------------- credits ----------------

type creditsRepo struct {
	mu *sync.Mutex
	m  *Store
}

func (r *creditsRepo) SelectForUpdate(_ context.Context, owner uuid.UUID, status models.CreditStatus, limit int64) ([]uuid.UUID, error) {
	defer lock(r.mu)()
	var matched []models.Credit
	for _, c := range r.m.st.credits {
		if c.OwnerID == owner && c.Status == status {
			matched = append(matched, c)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].IssueDate.Equal(matched[j].IssueDate) {
			return matched[i].IssueDate.Before(matched[j].IssueDate)
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})
	if int64(len(matched)) > limit {
		matched = matched[:limit]
	}
	ids := make([]uuid.UUID, len(matched))
	for i, c := range matched {
		ids[i] = c.ID
	}
	return ids, nil
}

func (r *creditsRepo) MintBatch(_ context.Context, credits []models.Credit) error {
	defer lock(r.mu)()
	for _, c := range credits {
		r.m.st.credits[c.ID] = c
	}
	return nil
}

func (r *creditsRepo) SetStatus(_ context.Context, ids []uuid.UUID, status models.CreditStatus, retiredAt *time.Time) error {
	defer lock(r.mu)()
	for _, id := range ids {
		c, ok := r.m.st.credits[id]
		if !ok {
			return repository.ErrNotFound
		}
		c.Status = status
		if retiredAt != nil {
			t := *retiredAt
			c.RetirementDate = &t
		}
		r.m.st.credits[id] = c
	}
	return nil
}

func (r *creditsRepo) Reassign(_ context.Context, ids []uuid.UUID, newOwner uuid.UUID) error {
	defer lock(r.mu)()
	for _, id := range ids {
		c, ok := r.m.st.credits[id]
		if !ok {
			return repository.ErrNotFound
		}
		c.OwnerID = newOwner
		r.m.st.credits[id] = c
	}
	return nil
}

func (r *creditsRepo) SetCertification(_ context.Context, ids []uuid.UUID, certifierID uuid.UUID, at time.Time) error {
	defer lock(r.mu)()
	for _, id := range ids {
		c, ok := r.m.st.credits[id]
		if !ok {
			return repository.ErrNotFound
		}
		if c.Source.Type != models.SourceGeneration || c.Source.Generation == nil {
			continue
		}
		gen := *c.Source.Generation
		cid := certifierID
		t := at
		gen.CertifierID = &cid
		gen.CertificationDate = &t
		c.Source.Generation = &gen
		r.m.st.credits[id] = c
	}
	return nil
}

func (r *creditsRepo) CountByOwnerAndStatus(_ context.Context, owner uuid.UUID, status models.CreditStatus) (int64, error) {
	defer lock(r.mu)()
	var n int64
	for _, c := range r.m.st.credits {
		if c.OwnerID == owner && c.Status == status {
			n++
		}
	}
	return n, nil
}

func (r *creditsRepo) GetByIDs(_ context.Context, ids []uuid.UUID) ([]models.Credit, error) {
	defer lock(r.mu)()
	var out []models.Credit
	for _, id := range ids {
		if c, ok := r.m.st.credits[id]; ok {
			out = append(out, c)
		}
	}
	sortCredits(out)
	return out, nil
}

func (r *creditsRepo) ListByOwner(_ context.Context, owner uuid.UUID) ([]models.Credit, error) {
	defer lock(r.mu)()
	var out []models.Credit
	for _, c := range r.m.st.credits {
		if c.OwnerID == owner {
			out = append(out, c)
		}
	}
	sortCredits(out)
	return out, nil
}

func sortCredits(cs []models.Credit) {
	sort.Slice(cs, func(i, j int) bool {
		if !cs[i].IssueDate.Equal(cs[j].IssueDate) {
			return cs[i].IssueDate.Before(cs[j].IssueDate)
		}
		return cs[i].ID.String() < cs[j].ID.String()
	})
}

// ---------------- transactions ----------------

type transactionsRepo struct {
	mu *sync.Mutex
	m  *Store
}

func (r *transactionsRepo) Create(_ context.Context, t models.Transaction) (models.Transaction, error) {
	defer lock(r.mu)()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.CreatedAt = time.Now()
	t.CreditIDs = append([]uuid.UUID(nil), t.CreditIDs...)
	r.m.st.transactions = append(r.m.st.transactions, t)
	return t, nil
}

func (r *transactionsRepo) ListByUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	defer lock(r.mu)()
	var out []models.Transaction
	for _, t := range r.m.st.transactions {
		if (t.FromUserID != nil && *t.FromUserID == userID) || t.ToUserID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---------------- withdrawals ----------------

type withdrawalsRepo struct {
	mu *sync.Mutex
	m  *Store
}

func (r *withdrawalsRepo) Create(_ context.Context, w models.WithdrawalRequest) (models.WithdrawalRequest, error) {
	defer lock(r.mu)()
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	w.CreatedAt = time.Now()
	w.CreditIDs = append([]uuid.UUID(nil), w.CreditIDs...)
	r.m.st.withdrawals[w.ID] = w
	return w, nil
}

func (r *withdrawalsRepo) GetByID(_ context.Context, id uuid.UUID) (models.WithdrawalRequest, error) {
	defer lock(r.mu)()
	w, ok := r.m.st.withdrawals[id]
	if !ok {
		return models.WithdrawalRequest{}, repository.ErrNotFound
	}
	return w, nil
}

func (r *withdrawalsRepo) Finalize(_ context.Context, id uuid.UUID, fin repository.WithdrawalFinalize) error {
	defer lock(r.mu)()
	w, ok := r.m.st.withdrawals[id]
	if !ok || w.Status != models.WithdrawalPending {
		return repository.ErrNotFound
	}
	w.Status = fin.Status
	t := fin.ProcessedAt
	w.ProcessedAt = &t
	w.StripeTransferID = fin.StripeTransferID
	w.ReviewedBy = fin.ReviewedBy
	w.ReviewNotes = fin.ReviewNotes
	r.m.st.withdrawals[id] = w
	return nil
}

func (r *withdrawalsRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]models.WithdrawalRequest, error) {
	defer lock(r.mu)()
	var out []models.WithdrawalRequest
	for _, w := range r.m.st.withdrawals {
		if w.UserID == userID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *withdrawalsRepo) ListPending(_ context.Context) ([]models.WithdrawalRequest, error) {
	defer lock(r.mu)()
	var out []models.WithdrawalRequest
	for _, w := range r.m.st.withdrawals {
		if w.Status == models.WithdrawalPending {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ---------------- purchases ----------------

type purchasesRepo struct {
	mu *sync.Mutex
	m  *Store
}

func (r *purchasesRepo) Create(_ context.Context, p models.Purchase) (models.Purchase, error) {
	defer lock(r.mu)()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now()
	r.m.st.purchases[p.ID] = p
	return p, nil
}

func (r *purchasesRepo) GetByExternalID(_ context.Context, externalPaymentID string) (models.Purchase, error) {
	defer lock(r.mu)()
	for _, p := range r.m.st.purchases {
		if p.ExternalPaymentID == externalPaymentID {
			return p, nil
		}
	}
	return models.Purchase{}, repository.ErrNotFound
}

// ---------------- listings ----------------

type listingsRepo struct {
	mu *sync.Mutex
	m  *Store
}

func (r *listingsRepo) Create(_ context.Context, l models.HydrogenListing) (models.HydrogenListing, error) {
	defer lock(r.mu)()
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	now := time.Now()
	l.CreatedAt, l.UpdatedAt = now, now
	r.m.st.listings[l.ID] = l
	return l, nil
}

func (r *listingsRepo) GetByID(_ context.Context, id uuid.UUID) (models.HydrogenListing, error) {
	defer lock(r.mu)()
	l, ok := r.m.st.listings[id]
	if !ok {
		return models.HydrogenListing{}, repository.ErrNotFound
	}
	return l, nil
}

func (r *listingsRepo) Update(_ context.Context, id uuid.UUID, up repository.ListingUpdate) error {
	defer lock(r.mu)()
	l, ok := r.m.st.listings[id]
	if !ok {
		return repository.ErrNotFound
	}
	if up.QuantityKg != nil {
		l.QuantityKg = *up.QuantityKg
	}
	if up.PricePerKg != nil {
		l.PricePerKg = *up.PricePerKg
	}
	if up.Location != nil {
		l.Location = *up.Location
	}
	if up.EnergySource != nil {
		l.EnergySource = *up.EnergySource
	}
	if up.CertificationDetails != nil {
		l.CertificationDetails = up.CertificationDetails
	}
	if up.Status != nil {
		l.Status = *up.Status
	}
	l.UpdatedAt = time.Now()
	r.m.st.listings[id] = l
	return nil
}

func (r *listingsRepo) AdjustQuantity(_ context.Context, id uuid.UUID, delta int64) (int64, error) {
	defer lock(r.mu)()
	l, ok := r.m.st.listings[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	l.QuantityKg += delta
	l.UpdatedAt = time.Now()
	r.m.st.listings[id] = l
	return l.QuantityKg, nil
}

func (r *listingsRepo) ListActive(_ context.Context) ([]models.HydrogenListing, error) {
	defer lock(r.mu)()
	var out []models.HydrogenListing
	for _, l := range r.m.st.listings {
		if l.Status == models.ListingActive {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *listingsRepo) ListByProducer(_ context.Context, producerID uuid.UUID) ([]models.HydrogenListing, error) {
	defer lock(r.mu)()
	var out []models.HydrogenListing
	for _, l := range r.m.st.listings {
		if l.ProducerID == producerID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ---------------- applications ----------------

type applicationsRepo struct {
	mu *sync.Mutex
	m  *Store
}

func (r *applicationsRepo) Create(_ context.Context, a models.ProducerApplication) (models.ProducerApplication, error) {
	defer lock(r.mu)()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = time.Now()
	r.m.st.applications[a.ID] = a
	return a, nil
}

func (r *applicationsRepo) GetByID(_ context.Context, id uuid.UUID) (models.ProducerApplication, error) {
	defer lock(r.mu)()
	a, ok := r.m.st.applications[id]
	if !ok {
		return models.ProducerApplication{}, repository.ErrNotFound
	}
	return a, nil
}

func (r *applicationsRepo) GetByUser(_ context.Context, userID uuid.UUID) ([]models.ProducerApplication, error) {
	defer lock(r.mu)()
	var out []models.ProducerApplication
	for _, a := range r.m.st.applications {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *applicationsRepo) HasActiveForUser(_ context.Context, userID uuid.UUID) (bool, error) {
	defer lock(r.mu)()
	for _, a := range r.m.st.applications {
		if a.UserID == userID && (a.Status == models.ApplicationPending || a.Status == models.ApplicationApproved) {
			return true, nil
		}
	}
	return false, nil
}

func (r *applicationsRepo) ListPending(_ context.Context) ([]models.ProducerApplication, error) {
	defer lock(r.mu)()
	var out []models.ProducerApplication
	for _, a := range r.m.st.applications {
		if a.Status == models.ApplicationPending {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *applicationsRepo) Review(_ context.Context, id uuid.UUID, rev repository.ApplicationReview) error {
	defer lock(r.mu)()
	a, ok := r.m.st.applications[id]
	if !ok || a.Status != models.ApplicationPending {
		return repository.ErrNotFound
	}
	a.Status = rev.Status
	rb := rev.ReviewedBy
	a.ReviewedBy = &rb
	a.ReviewNotes = rev.ReviewNotes
	t := rev.ReviewedAt
	a.ReviewedAt = &t
	r.m.st.applications[id] = a
	return nil
}

// ---------------- audit logs ----------------

type auditLogsRepo struct {
	mu *sync.Mutex
	m  *Store
}

func (r *auditLogsRepo) Create(_ context.Context, l models.AuditLog) error {
	defer lock(r.mu)()
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	l.CreatedAt = time.Now()
	r.m.st.audits = append(r.m.st.audits, l)
	return nil
}
