package ledger_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hydit/hydit-backend/internal/auth"
	"github.com/hydit/hydit-backend/internal/authz"
	"github.com/hydit/hydit-backend/internal/ledger"
	"github.com/hydit/hydit-backend/internal/models"
	"github.com/hydit/hydit-backend/internal/repository/memory"
	"github.com/hydit/hydit-backend/internal/settlement"
	"github.com/hydit/hydit-backend/internal/worker"
)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

type fakePay struct {
	mu    sync.Mutex
	calls []settlement.PayoutInput
	ref   string
	err   error
}

func (f *fakePay) CreatePayout(_ context.Context, in settlement.PayoutInput) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, in)
	if f.err != nil {
		return "", f.err
	}
	if f.ref == "" {
		return "tr_test", nil
	}
	return f.ref, nil
}

func (f *fakePay) CreateCustomer(context.Context, settlement.CustomerInput) (string, error) {
	return "cus_test", nil
}

func (f *fakePay) CreateConnectedAccount(context.Context) (string, error) {
	return "acct_test", nil
}

type harness struct {
	store *memory.Store
	svc   *ledger.Service
	pay   *fakePay
	wp    *worker.Pool
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memory.New()
	pay := &fakePay{}
	wp := worker.NewPool(2)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := ledger.New(store, authz.NewGate("subj-admin"), pay, wp, log, ledger.Config{})
	return &harness{store: store, svc: svc, pay: pay, wp: wp}
}

func (h *harness) user(t *testing.T, username string, role models.Role) *models.User {
	t.Helper()
	u, err := h.store.Users().Create(context.Background(), models.User{
		SubjectID: "subj-" + username,
		Username:  username,
		Fullname:  username,
		Email:     username + "@example.com",
		Role:      role,
	})
	require.NoError(t, err)
	return &u
}

// fund mints n active credits for u through the fulfillment path.
func (h *harness) fund(t *testing.T, u *models.User, n int64) {
	t.Helper()
	_, err := h.svc.FulfillPurchase(context.Background(), u.ID, "pi_fund_"+u.Username+"_"+uuid.NewString(), n)
	require.NoError(t, err)
}

// reload fetches the current user row; ops mutate the stored copy.
func (h *harness) reload(t *testing.T, u *models.User) models.User {
	t.Helper()
	got, err := h.store.Users().GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	return got
}

// assertCacheConsistent checks the core invariant: the cached balance equals
// the count of the user's active credits.
func (h *harness) assertCacheConsistent(t *testing.T, u *models.User) {
	t.Helper()
	active, err := h.store.Credits().CountByOwnerAndStatus(context.Background(), u.ID, models.CreditActive)
	require.NoError(t, err)
	assert.Equal(t, active, h.reload(t, u).HydcoinBalance, "balance cache diverged from active credit count for %s", u.Username)
}

func (h *harness) statusCount(t *testing.T, u *models.User, status models.CreditStatus) int64 {
	t.Helper()
	n, err := h.store.Credits().CountByOwnerAndStatus(context.Background(), u.ID, status)
	require.NoError(t, err)
	return n
}

// ---------------------------------------------------------------------------
// fulfillment
// ---------------------------------------------------------------------------

func TestFulfillPurchaseMintsActiveCredits(t *testing.T) {
	h := newHarness(t)
	buyer := h.user(t, "alice", models.RoleBuyer)

	p, err := h.svc.FulfillPurchase(context.Background(), buyer.ID, "pi_123", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), p.Credits)

	assert.Equal(t, int64(5), h.reload(t, buyer).HydcoinBalance)
	assert.Equal(t, int64(5), h.statusCount(t, buyer, models.CreditActive))
	h.assertCacheConsistent(t, buyer)
}

func TestFulfillPurchaseReplayMintsNothing(t *testing.T) {
	h := newHarness(t)
	buyer := h.user(t, "alice", models.RoleBuyer)

	first, err := h.svc.FulfillPurchase(context.Background(), buyer.ID, "pi_123", 5)
	require.NoError(t, err)

	// The processor redelivers the same event.
	second, err := h.svc.FulfillPurchase(context.Background(), buyer.ID, "pi_123", 5)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	assert.Equal(t, int64(5), h.reload(t, buyer).HydcoinBalance)
	assert.Equal(t, int64(5), h.statusCount(t, buyer, models.CreditActive))
}

func TestFulfillPurchaseRejectsBadInput(t *testing.T) {
	h := newHarness(t)
	buyer := h.user(t, "alice", models.RoleBuyer)

	_, err := h.svc.FulfillPurchase(context.Background(), buyer.ID, "", 5)
	assert.ErrorIs(t, err, ledger.ErrInvalidArgument)

	_, err = h.svc.FulfillPurchase(context.Background(), buyer.ID, "pi_x", 0)
	assert.ErrorIs(t, err, ledger.ErrInvalidArgument)

	_, err = h.svc.FulfillPurchase(context.Background(), uuid.New(), "pi_y", 3)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

// ---------------------------------------------------------------------------
// transfer
// ---------------------------------------------------------------------------

func TestTransferMovesOwnership(t *testing.T) {
	h := newHarness(t)
	alice := h.user(t, "alice", models.RoleBuyer)
	bob := h.user(t, "bob", models.RoleBuyer)
	h.fund(t, alice, 10)

	txn, err := h.svc.Transfer(context.Background(), alice, "bob", 4, "")
	require.NoError(t, err)
	assert.Equal(t, models.TxnTransfer, txn.Type)
	assert.Len(t, txn.CreditIDs, 4)

	assert.Equal(t, int64(6), h.reload(t, alice).HydcoinBalance)
	assert.Equal(t, int64(4), h.reload(t, bob).HydcoinBalance)
	h.assertCacheConsistent(t, alice)
	h.assertCacheConsistent(t, bob)

	// Total supply is conserved.
	credits, err := h.store.Credits().GetByIDs(context.Background(), txn.CreditIDs)
	require.NoError(t, err)
	for _, c := range credits {
		assert.Equal(t, bob.ID, c.OwnerID)
		assert.Equal(t, models.CreditActive, c.Status)
	}
}

func TestTransferPicksOldestCreditsFirst(t *testing.T) {
	h := newHarness(t)
	alice := h.user(t, "alice", models.RoleBuyer)
	h.user(t, "bob", models.RoleBuyer)
	h.fund(t, alice, 3)
	oldest, err := h.store.Credits().SelectForUpdate(context.Background(), alice.ID, models.CreditActive, 1)
	require.NoError(t, err)
	h.fund(t, alice, 3)

	txn, err := h.svc.Transfer(context.Background(), alice, "bob", 1, "")
	require.NoError(t, err)
	assert.Equal(t, oldest, txn.CreditIDs)
}

func TestTransferInsufficientBalance(t *testing.T) {
	h := newHarness(t)
	alice := h.user(t, "alice", models.RoleBuyer)
	h.user(t, "bob", models.RoleBuyer)
	h.fund(t, alice, 3)

	_, err := h.svc.Transfer(context.Background(), alice, "bob", 5, "")
	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	// Nothing moved.
	assert.Equal(t, int64(3), h.reload(t, alice).HydcoinBalance)
	h.assertCacheConsistent(t, alice)
}

func TestTransferGuards(t *testing.T) {
	h := newHarness(t)
	alice := h.user(t, "alice", models.RoleBuyer)
	h.fund(t, alice, 3)

	_, err := h.svc.Transfer(context.Background(), alice, "alice", 1, "")
	assert.ErrorIs(t, err, ledger.ErrInvalidArgument)

	_, err = h.svc.Transfer(context.Background(), alice, "nobody", 1, "")
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	_, err = h.svc.Transfer(context.Background(), alice, "bob", 0, "")
	assert.ErrorIs(t, err, ledger.ErrInvalidArgument)

	_, err = h.svc.Transfer(context.Background(), nil, "bob", 1, "")
	assert.ErrorIs(t, err, ledger.ErrNotAuthenticated)
}

func TestTransferRequiresPinWhenSet(t *testing.T) {
	h := newHarness(t)
	alice := h.user(t, "alice", models.RoleBuyer)
	bob := h.user(t, "bob", models.RoleBuyer)
	h.fund(t, alice, 3)

	hash, err := auth.HashPin("1234")
	require.NoError(t, err)
	require.NoError(t, h.store.Users().SetPinHash(context.Background(), alice.ID, hash))
	alice.TransactionPinHash = hash

	_, err = h.svc.Transfer(context.Background(), alice, "bob", 1, "9999")
	assert.ErrorIs(t, err, ledger.ErrNotAuthorized)

	_, err = h.svc.Transfer(context.Background(), alice, "bob", 1, "1234")
	require.NoError(t, err)
	assert.Equal(t, int64(1), h.reload(t, bob).HydcoinBalance)
}

func TestConcurrentTransfersCannotDoubleSpend(t *testing.T) {
	h := newHarness(t)
	alice := h.user(t, "alice", models.RoleBuyer)
	h.user(t, "bob", models.RoleBuyer)
	h.user(t, "carol", models.RoleBuyer)
	h.fund(t, alice, 10)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, to := range []string{"bob", "carol"} {
		wg.Add(1)
		go func(i int, to string) {
			defer wg.Done()
			_, errs[i] = h.svc.Transfer(context.Background(), alice, to, 6, "")
		}(i, to)
	}
	wg.Wait()

	// Exactly one of the two 6-credit spends can win.
	var failed int
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)
			failed++
		}
	}
	assert.Equal(t, 1, failed)
	assert.Equal(t, int64(4), h.reload(t, alice).HydcoinBalance)
	h.assertCacheConsistent(t, alice)
}

// ---------------------------------------------------------------------------
// retire
// ---------------------------------------------------------------------------

func TestRetireIsPermanent(t *testing.T) {
	h := newHarness(t)
	alice := h.user(t, "alice", models.RoleBuyer)
	h.fund(t, alice, 5)

	txn, err := h.svc.Retire(context.Background(), alice, 2, "")
	require.NoError(t, err)
	assert.Equal(t, models.TxnRetirement, txn.Type)
	require.NotNil(t, txn.FromUserID)
	assert.Equal(t, alice.ID, *txn.FromUserID)
	assert.Equal(t, alice.ID, txn.ToUserID)

	assert.Equal(t, int64(3), h.reload(t, alice).HydcoinBalance)
	assert.Equal(t, int64(2), h.statusCount(t, alice, models.CreditRetired))
	h.assertCacheConsistent(t, alice)

	credits, err := h.store.Credits().GetByIDs(context.Background(), txn.CreditIDs)
	require.NoError(t, err)
	for _, c := range credits {
		assert.Equal(t, models.CreditRetired, c.Status)
		assert.NotNil(t, c.RetirementDate)
		// Still owned by the retiring user as the audit trail.
		assert.Equal(t, alice.ID, c.OwnerID)
	}

	// Retired credits never come back: spending the rest plus one fails.
	_, err = h.svc.Retire(context.Background(), alice, 4, "")
	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)
}

// ---------------------------------------------------------------------------
// withdrawals
// ---------------------------------------------------------------------------

func TestRequestWithdrawalEarmarksCredits(t *testing.T) {
	h := newHarness(t)
	alice := h.user(t, "alice", models.RoleBuyer)
	h.user(t, "bob", models.RoleBuyer)
	h.fund(t, alice, 8)

	req, err := h.svc.RequestWithdrawal(context.Background(), alice, 5,
		models.MethodUPI, models.WithdrawalDetails{UpiID: "alice@upi"}, "")
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalPending, req.Status)
	assert.Len(t, req.CreditIDs, 5)

	assert.Equal(t, int64(3), h.reload(t, alice).HydcoinBalance)
	assert.Equal(t, int64(5), h.statusCount(t, alice, models.CreditPendingWithdrawal))
	h.assertCacheConsistent(t, alice)

	// Earmarked credits are not spendable.
	_, err = h.svc.Transfer(context.Background(), alice, "bob", 4, "")
	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)
}

func TestRequestWithdrawalValidation(t *testing.T) {
	h := newHarness(t)
	alice := h.user(t, "alice", models.RoleBuyer)
	h.fund(t, alice, 3)

	_, err := h.svc.RequestWithdrawal(context.Background(), alice, 2,
		models.MethodUPI, models.WithdrawalDetails{}, "")
	assert.ErrorIs(t, err, ledger.ErrInvalidArgument)

	// Stripe needs a linked account.
	_, err = h.svc.RequestWithdrawal(context.Background(), alice, 2,
		models.MethodStripe, models.WithdrawalDetails{}, "")
	assert.ErrorIs(t, err, ledger.ErrInvalidArgument)

	_, err = h.svc.RequestWithdrawal(context.Background(), alice, 5,
		models.MethodUPI, models.WithdrawalDetails{UpiID: "a@upi"}, "")
	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)
	h.assertCacheConsistent(t, alice)
}

func TestFinalizeWithdrawalProcessed(t *testing.T) {
	h := newHarness(t)
	admin := h.user(t, "root", models.RoleAdmin)
	alice := h.user(t, "alice", models.RoleBuyer)
	h.fund(t, alice, 8)

	req, err := h.svc.RequestWithdrawal(context.Background(), alice, 5,
		models.MethodUPI, models.WithdrawalDetails{UpiID: "alice@upi"}, "")
	require.NoError(t, err)

	out, err := h.svc.FinalizeWithdrawal(context.Background(), admin, req.ID, models.WithdrawalProcessed, nil)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalProcessed, out.Status)
	assert.NotNil(t, out.ProcessedAt)

	assert.Equal(t, int64(3), h.reload(t, alice).HydcoinBalance)
	assert.Equal(t, int64(5), h.statusCount(t, alice, models.CreditWithdrawn))
	assert.Equal(t, int64(0), h.statusCount(t, alice, models.CreditPendingWithdrawal))
	h.assertCacheConsistent(t, alice)

	// Cashed-out credits carry the retirement timestamp.
	credits, err := h.store.Credits().GetByIDs(context.Background(), req.CreditIDs)
	require.NoError(t, err)
	for _, c := range credits {
		require.NotNil(t, c.RetirementDate)
	}
}

func TestFinalizeWithdrawalFailedRestoresCredits(t *testing.T) {
	h := newHarness(t)
	admin := h.user(t, "root", models.RoleAdmin)
	alice := h.user(t, "alice", models.RoleBuyer)
	h.fund(t, alice, 8)

	req, err := h.svc.RequestWithdrawal(context.Background(), alice, 5,
		models.MethodUPI, models.WithdrawalDetails{UpiID: "alice@upi"}, "")
	require.NoError(t, err)

	notes := "bank rejected"
	out, err := h.svc.FinalizeWithdrawal(context.Background(), admin, req.ID, models.WithdrawalFailed, &notes)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalFailed, out.Status)

	// Full reversal.
	assert.Equal(t, int64(8), h.reload(t, alice).HydcoinBalance)
	assert.Equal(t, int64(8), h.statusCount(t, alice, models.CreditActive))
	assert.Equal(t, int64(0), h.statusCount(t, alice, models.CreditPendingWithdrawal))
	h.assertCacheConsistent(t, alice)
}

func TestFinalizeWithdrawalExactlyOnce(t *testing.T) {
	h := newHarness(t)
	admin := h.user(t, "root", models.RoleAdmin)
	alice := h.user(t, "alice", models.RoleBuyer)
	h.fund(t, alice, 5)

	req, err := h.svc.RequestWithdrawal(context.Background(), alice, 5,
		models.MethodUPI, models.WithdrawalDetails{UpiID: "alice@upi"}, "")
	require.NoError(t, err)

	_, err = h.svc.FinalizeWithdrawal(context.Background(), admin, req.ID, models.WithdrawalProcessed, nil)
	require.NoError(t, err)

	// The second finalize must not run the failure reversal.
	_, err = h.svc.FinalizeWithdrawal(context.Background(), admin, req.ID, models.WithdrawalFailed, nil)
	assert.ErrorIs(t, err, ledger.ErrInvalidState)

	assert.Equal(t, int64(0), h.reload(t, alice).HydcoinBalance)
	assert.Equal(t, int64(5), h.statusCount(t, alice, models.CreditWithdrawn))
	h.assertCacheConsistent(t, alice)
}

func TestFinalizeWithdrawalAuthorization(t *testing.T) {
	h := newHarness(t)
	alice := h.user(t, "alice", models.RoleBuyer)
	h.fund(t, alice, 5)

	req, err := h.svc.RequestWithdrawal(context.Background(), alice, 2,
		models.MethodUPI, models.WithdrawalDetails{UpiID: "alice@upi"}, "")
	require.NoError(t, err)

	_, err = h.svc.FinalizeWithdrawal(context.Background(), alice, req.ID, models.WithdrawalProcessed, nil)
	assert.ErrorIs(t, err, ledger.ErrNotAuthorized)

	// The requester cannot see the review queue either.
	_, err = h.svc.PendingWithdrawals(context.Background(), alice)
	assert.ErrorIs(t, err, ledger.ErrNotAuthorized)
}

func TestCertifierReviewsWithdrawals(t *testing.T) {
	h := newHarness(t)
	certifier := h.user(t, "carol", models.RoleCertifier)
	alice := h.user(t, "alice", models.RoleBuyer)
	h.fund(t, alice, 5)

	req, err := h.svc.RequestWithdrawal(context.Background(), alice, 2,
		models.MethodUPI, models.WithdrawalDetails{UpiID: "alice@upi"}, "")
	require.NoError(t, err)

	pending, err := h.svc.PendingWithdrawals(context.Background(), certifier)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, req.ID, pending[0].ID)

	_, err = h.svc.Withdrawal(context.Background(), certifier, req.ID)
	require.NoError(t, err)

	out, err := h.svc.FinalizeWithdrawal(context.Background(), certifier, req.ID, models.WithdrawalProcessed, nil)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalProcessed, out.Status)
	require.NotNil(t, out.ReviewedBy)
	assert.Equal(t, certifier.ID, *out.ReviewedBy)
	h.assertCacheConsistent(t, alice)
}

// ---------------------------------------------------------------------------
// payouts
// ---------------------------------------------------------------------------

func stripeUser(t *testing.T, h *harness, username string) *models.User {
	t.Helper()
	u := h.user(t, username, models.RoleBuyer)
	require.NoError(t, h.store.Users().SetStripeAccountID(context.Background(), u.ID, "acct_"+username))
	reloaded := h.reload(t, u)
	return &reloaded
}

func TestProcessPayoutSuccess(t *testing.T) {
	h := newHarness(t)
	alice := stripeUser(t, h, "alice")
	h.fund(t, alice, 8)
	h.pay.ref = "tr_42"

	req, err := h.svc.RequestWithdrawal(context.Background(), alice, 5,
		models.MethodStripe, models.WithdrawalDetails{}, "")
	require.NoError(t, err)
	h.wp.Stop() // drain the payout job

	out, err := h.store.Withdrawals().GetByID(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalProcessed, out.Status)
	require.NotNil(t, out.StripeTransferID)
	assert.Equal(t, "tr_42", *out.StripeTransferID)

	assert.Equal(t, int64(5), h.statusCount(t, alice, models.CreditWithdrawn))
	h.assertCacheConsistent(t, alice)

	require.Len(t, h.pay.calls, 1)
	call := h.pay.calls[0]
	// 5 credits at 83 INR each, in paise.
	assert.Equal(t, int64(5*83*100), call.AmountMinorUnits)
	assert.Equal(t, "inr", call.Currency)
	assert.Equal(t, "acct_alice", call.DestinationAccountID)
	assert.Equal(t, "withdrawal_"+req.ID.String(), call.IdempotencyKey)
}

func TestProcessPayoutFailureReversesEarmark(t *testing.T) {
	h := newHarness(t)
	alice := stripeUser(t, h, "alice")
	h.fund(t, alice, 5)
	h.pay.err = errors.New("card network down")

	req, err := h.svc.RequestWithdrawal(context.Background(), alice, 5,
		models.MethodStripe, models.WithdrawalDetails{}, "")
	require.NoError(t, err)
	h.wp.Stop()

	out, err := h.store.Withdrawals().GetByID(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalFailed, out.Status)
	require.NotNil(t, out.ReviewNotes)
	assert.Contains(t, *out.ReviewNotes, "card network down")

	// The user lost nothing.
	assert.Equal(t, int64(5), h.reload(t, alice).HydcoinBalance)
	assert.Equal(t, int64(5), h.statusCount(t, alice, models.CreditActive))
	h.assertCacheConsistent(t, alice)
}

func TestProcessPayoutSkipsFinalizedRequest(t *testing.T) {
	h := newHarness(t)
	admin := h.user(t, "root", models.RoleAdmin)
	alice := stripeUser(t, h, "alice")
	h.fund(t, alice, 5)

	req, err := h.svc.RequestWithdrawal(context.Background(), alice, 3,
		models.MethodStripe, models.WithdrawalDetails{}, "")
	require.NoError(t, err)
	h.wp.Stop()

	// Already processed by the worker; an admin retry must be rejected and a
	// direct payout retry must be a no-op.
	_, err = h.svc.FinalizeWithdrawal(context.Background(), admin, req.ID, models.WithdrawalProcessed, nil)
	assert.ErrorIs(t, err, ledger.ErrInvalidState)

	calls := len(h.pay.calls)
	require.NoError(t, h.svc.ProcessPayout(context.Background(), req.ID))
	assert.Len(t, h.pay.calls, calls)
}

// ---------------------------------------------------------------------------
// marketplace purchase
// ---------------------------------------------------------------------------

func listing(t *testing.T, h *harness, producer *models.User, qty, price int64) models.HydrogenListing {
	t.Helper()
	l, err := h.store.Listings().Create(context.Background(), models.HydrogenListing{
		ProducerID:   producer.ID,
		QuantityKg:   qty,
		PricePerKg:   price,
		Location:     "Gujarat",
		EnergySource: "solar",
		Status:       models.ListingActive,
	})
	require.NoError(t, err)
	return l
}

func TestPurchaseListingPaysProducerInCredits(t *testing.T) {
	h := newHarness(t)
	producer := h.user(t, "prod", models.RoleProducer)
	buyer := h.user(t, "alice", models.RoleBuyer)
	h.fund(t, buyer, 20)
	l := listing(t, h, producer, 10, 2)

	txn, err := h.svc.PurchaseListing(context.Background(), buyer, l.ID, 4, "")
	require.NoError(t, err)
	assert.Equal(t, models.TxnPurchase, txn.Type)
	assert.Equal(t, int64(8), txn.Amount) // 4 kg at 2 credits/kg

	assert.Equal(t, int64(12), h.reload(t, buyer).HydcoinBalance)
	assert.Equal(t, int64(8), h.reload(t, producer).HydcoinBalance)
	h.assertCacheConsistent(t, buyer)
	h.assertCacheConsistent(t, producer)

	got, err := h.store.Listings().GetByID(context.Background(), l.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(6), got.QuantityKg)
	assert.Equal(t, models.ListingActive, got.Status)
}

func TestPurchaseListingSellsOut(t *testing.T) {
	h := newHarness(t)
	producer := h.user(t, "prod", models.RoleProducer)
	buyer := h.user(t, "alice", models.RoleBuyer)
	h.fund(t, buyer, 20)
	l := listing(t, h, producer, 5, 1)

	_, err := h.svc.PurchaseListing(context.Background(), buyer, l.ID, 5, "")
	require.NoError(t, err)

	got, err := h.store.Listings().GetByID(context.Background(), l.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.QuantityKg)
	assert.Equal(t, models.ListingSoldOut, got.Status)

	// Sold out listings cannot be bought from.
	_, err = h.svc.PurchaseListing(context.Background(), buyer, l.ID, 1, "")
	assert.ErrorIs(t, err, ledger.ErrInvalidState)
}

func TestPurchaseListingGuards(t *testing.T) {
	h := newHarness(t)
	producer := h.user(t, "prod", models.RoleProducer)
	buyer := h.user(t, "alice", models.RoleBuyer)
	h.fund(t, buyer, 2)
	h.fund(t, producer, 5)
	l := listing(t, h, producer, 10, 3)

	// Producers cannot buy their own listing.
	_, err := h.svc.PurchaseListing(context.Background(), producer, l.ID, 1, "")
	assert.ErrorIs(t, err, ledger.ErrInvalidArgument)

	// More volume than the listing has.
	_, err = h.svc.PurchaseListing(context.Background(), buyer, l.ID, 11, "")
	assert.ErrorIs(t, err, ledger.ErrInvalidArgument)

	// Not enough credits for the cost.
	_, err = h.svc.PurchaseListing(context.Background(), buyer, l.ID, 1, "")
	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)
	h.assertCacheConsistent(t, buyer)
}

// ---------------------------------------------------------------------------
// issuance and certification
// ---------------------------------------------------------------------------

func TestIssueAndCertifyLifecycle(t *testing.T) {
	h := newHarness(t)
	producer := h.user(t, "prod", models.RoleProducer)
	certifier := h.user(t, "cert", models.RoleCertifier)

	minted, err := h.svc.IssueGenerationCredits(context.Background(), producer, producer.ID, 3,
		map[string]string{"site": "plant-7"})
	require.NoError(t, err)
	require.Len(t, minted, 3)

	// Issued credits are not spendable and not in the cache.
	assert.Equal(t, int64(0), h.reload(t, producer).HydcoinBalance)
	assert.Equal(t, int64(3), h.statusCount(t, producer, models.CreditIssued))

	ids := make([]uuid.UUID, len(minted))
	for i, c := range minted {
		ids[i] = c.ID
	}
	require.NoError(t, h.svc.CertifyCredits(context.Background(), certifier, ids))

	assert.Equal(t, int64(3), h.reload(t, producer).HydcoinBalance)
	assert.Equal(t, int64(3), h.statusCount(t, producer, models.CreditActive))
	h.assertCacheConsistent(t, producer)

	credits, err := h.store.Credits().GetByIDs(context.Background(), ids)
	require.NoError(t, err)
	for _, c := range credits {
		require.NotNil(t, c.Source.Generation)
		require.NotNil(t, c.Source.Generation.CertifierID)
		assert.Equal(t, certifier.ID, *c.Source.Generation.CertifierID)
		assert.NotNil(t, c.Source.Generation.CertificationDate)
	}

	// Certifying again is an invalid state.
	err = h.svc.CertifyCredits(context.Background(), certifier, ids)
	assert.ErrorIs(t, err, ledger.ErrInvalidState)
}

func TestIssueAuthorization(t *testing.T) {
	h := newHarness(t)
	producer := h.user(t, "prod", models.RoleProducer)
	other := h.user(t, "prod2", models.RoleProducer)
	buyer := h.user(t, "alice", models.RoleBuyer)
	admin := h.user(t, "root", models.RoleAdmin)

	// A producer cannot issue for another producer.
	_, err := h.svc.IssueGenerationCredits(context.Background(), producer, other.ID, 1, nil)
	assert.ErrorIs(t, err, ledger.ErrNotAuthorized)

	// Buyers cannot issue at all.
	_, err = h.svc.IssueGenerationCredits(context.Background(), buyer, buyer.ID, 1, nil)
	assert.ErrorIs(t, err, ledger.ErrNotAuthorized)

	// Admins can issue for any producer, but only for producers.
	_, err = h.svc.IssueGenerationCredits(context.Background(), admin, buyer.ID, 1, nil)
	assert.ErrorIs(t, err, ledger.ErrInvalidArgument)

	minted, err := h.svc.IssueGenerationCredits(context.Background(), admin, producer.ID, 2, nil)
	require.NoError(t, err)
	assert.Len(t, minted, 2)
}

func TestCertifyGuards(t *testing.T) {
	h := newHarness(t)
	producer := h.user(t, "prod", models.RoleProducer)
	certifier := h.user(t, "cert", models.RoleCertifier)
	buyer := h.user(t, "alice", models.RoleBuyer)

	minted, err := h.svc.IssueGenerationCredits(context.Background(), producer, producer.ID, 2, nil)
	require.NoError(t, err)
	ids := []uuid.UUID{minted[0].ID, minted[1].ID}

	// Only certifiers and admins.
	err = h.svc.CertifyCredits(context.Background(), buyer, ids)
	assert.ErrorIs(t, err, ledger.ErrNotAuthorized)

	// Unknown ids.
	err = h.svc.CertifyCredits(context.Background(), certifier, []uuid.UUID{uuid.New()})
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	// Purchase-sourced credits are never certified.
	h.fund(t, buyer, 1)
	bought, err := h.store.Credits().ListByOwner(context.Background(), buyer.ID)
	require.NoError(t, err)
	err = h.svc.CertifyCredits(context.Background(), certifier, []uuid.UUID{bought[0].ID})
	assert.ErrorIs(t, err, ledger.ErrInvalidState)
}

// ---------------------------------------------------------------------------
// reads
// ---------------------------------------------------------------------------

func TestBalanceSummaryAndHistory(t *testing.T) {
	h := newHarness(t)
	alice := h.user(t, "alice", models.RoleBuyer)
	bob := h.user(t, "bob", models.RoleBuyer)
	h.fund(t, alice, 10)

	_, err := h.svc.Transfer(context.Background(), alice, "bob", 4, "")
	require.NoError(t, err)
	_, err = h.svc.RequestWithdrawal(context.Background(), alice, 2,
		models.MethodUPI, models.WithdrawalDetails{UpiID: "alice@upi"}, "")
	require.NoError(t, err)

	b, err := h.svc.Balance(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, int64(4), b.Active)
	assert.Equal(t, int64(2), b.PendingWithdrawal)
	assert.Equal(t, b.Active, b.Cached)

	hist, err := h.svc.History(context.Background(), alice, 10, 0)
	require.NoError(t, err)
	require.Len(t, hist, 2) // mint + transfer

	var sawMint, sawTransfer bool
	for _, v := range hist {
		switch v.Type {
		case models.TxnPurchase:
			sawMint = true
			assert.Equal(t, "system", v.FromUsername)
			assert.False(t, v.CallerIsFrom)
		case models.TxnTransfer:
			sawTransfer = true
			assert.Equal(t, "alice", v.FromUsername)
			assert.Equal(t, "bob", v.ToUsername)
			assert.True(t, v.CallerIsFrom)
		}
	}
	assert.True(t, sawMint)
	assert.True(t, sawTransfer)

	// Bob sees the incoming transfer.
	bobHist, err := h.svc.History(context.Background(), bob, 10, 0)
	require.NoError(t, err)
	require.Len(t, bobHist, 1)
	assert.False(t, bobHist[0].CallerIsFrom)
}

func TestWithdrawalVisibility(t *testing.T) {
	h := newHarness(t)
	admin := h.user(t, "root", models.RoleAdmin)
	alice := h.user(t, "alice", models.RoleBuyer)
	mallory := h.user(t, "mallory", models.RoleBuyer)
	h.fund(t, alice, 5)

	req, err := h.svc.RequestWithdrawal(context.Background(), alice, 2,
		models.MethodUPI, models.WithdrawalDetails{UpiID: "alice@upi"}, "")
	require.NoError(t, err)

	// Owner and admin can read it; a third party gets an opaque denial.
	_, err = h.svc.Withdrawal(context.Background(), alice, req.ID)
	require.NoError(t, err)
	_, err = h.svc.Withdrawal(context.Background(), admin, req.ID)
	require.NoError(t, err)
	_, err = h.svc.Withdrawal(context.Background(), mallory, req.ID)
	assert.ErrorIs(t, err, ledger.ErrNotAuthorized)

	pending, err := h.svc.PendingWithdrawals(context.Background(), admin)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "alice", pending[0].Username)

	_, err = h.svc.PendingWithdrawals(context.Background(), alice)
	assert.ErrorIs(t, err, ledger.ErrNotAuthorized)
}
