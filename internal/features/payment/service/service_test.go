package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "pocketlegal-backend/internal/common/errors"
	"pocketlegal-backend/internal/features/payment/models"
	"pocketlegal-backend/internal/features/payment/repository"
	"pocketlegal-backend/internal/platform/wallet"
)

// ---------------------------------------------------------------------------
// In-memory fakes
// ---------------------------------------------------------------------------

type fakeTransactionRepo struct {
	mu       sync.Mutex
	txs      map[string]*models.Transaction
	hasGrant func(userID string, item models.ItemRef) bool
}

func newFakeTransactionRepo() *fakeTransactionRepo {
	return &fakeTransactionRepo{txs: make(map[string]*models.Transaction)}
}

func (r *fakeTransactionRepo) Create(_ context.Context, tx *models.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *tx
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	r.txs[tx.ID] = &cp
	return nil
}

func (r *fakeTransactionRepo) GetByID(_ context.Context, id string) (*models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.txs[id]
	if !ok {
		return nil, repository.ErrTransactionNotFound
	}
	cp := *tx
	return &cp, nil
}

func (r *fakeTransactionRepo) RecordTxHash(_ context.Context, id, txHash string) error {
	return r.update(id, models.StatusPending, func(tx *models.Transaction) {
		tx.TxHash = txHash
	})
}

func (r *fakeTransactionRepo) MarkCompleted(_ context.Context, id, txHash string) error {
	return r.update(id, models.StatusPending, func(tx *models.Transaction) {
		tx.Status = models.StatusCompleted
		tx.TxHash = txHash
	})
}

func (r *fakeTransactionRepo) MarkFailed(_ context.Context, id, reason string) error {
	return r.update(id, models.StatusPending, func(tx *models.Transaction) {
		tx.Status = models.StatusFailed
		tx.FailureReason = reason
	})
}

func (r *fakeTransactionRepo) update(id string, want models.TransactionStatus, apply func(*models.Transaction)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.txs[id]
	if !ok {
		return repository.ErrTransactionNotFound
	}
	if tx.Status != want {
		return repository.ErrIllegalStatusChange
	}
	apply(tx)
	tx.UpdatedAt = time.Now()
	return nil
}

func (r *fakeTransactionRepo) ListByUser(_ context.Context, userID string) ([]*models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Transaction
	for _, tx := range r.txs {
		if tx.UserID == userID {
			cp := *tx
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeTransactionRepo) SumCompletedByUser(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum int64
	for _, tx := range r.txs {
		if tx.UserID == userID && tx.Status == models.StatusCompleted {
			sum += tx.AmountCents
		}
	}
	return sum, nil
}

func (r *fakeTransactionRepo) ListPendingOlderThan(_ context.Context, age time.Duration) ([]*models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Transaction
	for _, tx := range r.txs {
		if tx.Status == models.StatusPending && time.Since(tx.CreatedAt) >= age {
			cp := *tx
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeTransactionRepo) ListCompletedWithoutGrant(_ context.Context) ([]*models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Transaction
	for _, tx := range r.txs {
		if tx.Status == models.StatusCompleted && r.hasGrant != nil && !r.hasGrant(tx.UserID, tx.Item()) {
			cp := *tx
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeTransactionRepo) get(id string) *models.Transaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.txs[id]
}

type fakeGrantRepo struct {
	mu       sync.Mutex
	grants   map[string]*models.AccessGrant
	failNext int
}

func newFakeGrantRepo() *fakeGrantRepo {
	return &fakeGrantRepo{grants: make(map[string]*models.AccessGrant)}
}

func grantKey(userID string, item models.ItemRef) string {
	return userID + "|" + item.Key()
}

func (r *fakeGrantRepo) Upsert(_ context.Context, grant *models.AccessGrant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNext > 0 {
		r.failNext--
		return errors.New("connection reset by peer")
	}
	key := grantKey(grant.UserID, models.ItemRef{ContentID: grant.ContentID, TemplateID: grant.TemplateID})
	cp := *grant
	r.grants[key] = &cp
	return nil
}

func (r *fakeGrantRepo) has(userID string, item models.ItemRef) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.grants[grantKey(userID, item)]
	return ok
}

func (r *fakeGrantRepo) Exists(_ context.Context, userID string, item models.ItemRef, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	grant, ok := r.grants[grantKey(userID, item)]
	return ok && grant.Active(now), nil
}

func (r *fakeGrantRepo) ListByUser(_ context.Context, userID string) ([]*models.AccessGrant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.AccessGrant
	for _, grant := range r.grants {
		if grant.UserID == userID {
			cp := *grant
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeGrantRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.grants)
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*models.PurchaseSession
	locks    map[string]bool
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{
		sessions: make(map[string]*models.PurchaseSession),
		locks:    make(map[string]bool),
	}
}

func (r *fakeSessionRepo) Get(_ context.Context, userID, itemKey string) (*models.PurchaseSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[userID+"|"+itemKey]
	if !ok {
		return nil, nil
	}
	cp := *session
	return &cp, nil
}

func (r *fakeSessionRepo) Save(_ context.Context, session *models.PurchaseSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *session
	r.sessions[session.UserID+"|"+session.ItemKey] = &cp
	return nil
}

func (r *fakeSessionRepo) AcquireLock(_ context.Context, userID, itemKey string, _ time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := userID + "|" + itemKey
	if r.locks[key] {
		return false, nil
	}
	r.locks[key] = true
	return true, nil
}

func (r *fakeSessionRepo) ReleaseLock(_ context.Context, userID, itemKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.locks, userID+"|"+itemKey)
	return nil
}

// fakeWallet counts submissions so the single-submit invariant is checkable.
type fakeWallet struct {
	mu           sync.Mutex
	balanceCents int64
	balanceErr   error
	submitErr    error
	submitCalls  int
	verify       func(txHash string) (bool, error)
}

func (w *fakeWallet) BalanceCents(_ context.Context, _ string) (int64, error) {
	if w.balanceErr != nil {
		return 0, w.balanceErr
	}
	return w.balanceCents, nil
}

func (w *fakeWallet) SubmitPayment(ctx context.Context, _ wallet.PaymentOrder) (*wallet.Receipt, error) {
	w.mu.Lock()
	w.submitCalls++
	calls := w.submitCalls
	w.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if w.submitErr != nil {
		return nil, w.submitErr
	}
	return &wallet.Receipt{TxHash: fmt.Sprintf("0xabc%d", calls)}, nil
}

func (w *fakeWallet) VerifyPayment(_ context.Context, txHash string, _ int64, _ string) (bool, error) {
	if w.verify != nil {
		return w.verify(txHash)
	}
	return true, nil
}

func (w *fakeWallet) calls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.submitCalls
}

type fakeCatalog struct {
	contentPrices  map[string]int64
	templatePrices map[string]int64
}

func (c *fakeCatalog) ContentPrice(_ context.Context, id string) (int64, error) {
	price, ok := c.contentPrices[id]
	if !ok {
		return 0, errors.New("content not found")
	}
	return price, nil
}

func (c *fakeCatalog) TemplatePrice(_ context.Context, id string) (int64, error) {
	price, ok := c.templatePrices[id]
	if !ok {
		return 0, errors.New("template not found")
	}
	return price, nil
}

type fixture struct {
	svc      PaymentService
	txs      *fakeTransactionRepo
	grants   *fakeGrantRepo
	sessions *fakeSessionRepo
	wallet   *fakeWallet
}

func newFixture(balanceCents int64) *fixture {
	f := &fixture{
		txs:      newFakeTransactionRepo(),
		grants:   newFakeGrantRepo(),
		sessions: newFakeSessionRepo(),
		wallet:   &fakeWallet{balanceCents: balanceCents},
	}
	f.txs.hasGrant = f.grants.has
	catalog := &fakeCatalog{
		contentPrices:  map[string]int64{"tenant-eviction-rights": 50, "free-card": 0},
		templatePrices: map[string]int64{"demand-letter-rent": 100},
	}
	f.svc = NewPaymentService(f.txs, f.grants, f.sessions, f.wallet, catalog, Options{
		RecipientAddress: "0x000000000000000000000000000000000000dEaD",
		SubmitTimeout:    time.Second,
	})
	return f
}

func purchaseReq(item models.ItemRef, amountCents int64) *models.PurchaseRequest {
	return &models.PurchaseRequest{
		UserID:        "user-1",
		WalletAddress: "0x1111111111111111111111111111111111111111",
		AmountCents:   amountCents,
		Item:          item,
	}
}

func errCode(t *testing.T, err error) apperrors.ErrorCode {
	t.Helper()
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	return appErr.Code
}

// ---------------------------------------------------------------------------
// Purchase flow
// ---------------------------------------------------------------------------

func TestPurchase_Success(t *testing.T) {
	f := newFixture(1000)
	item := models.ItemRef{ContentID: "tenant-eviction-rights"}

	result := f.svc.Purchase(context.Background(), purchaseReq(item, 50))

	require.True(t, result.Success)
	assert.NotEmpty(t, result.TransactionID)
	assert.NotEmpty(t, result.TxHash)
	assert.Equal(t, models.StateUnlocked, result.State)
	assert.Equal(t, 1, f.wallet.calls())

	tx := f.txs.get(result.TransactionID)
	require.NotNil(t, tx)
	assert.Equal(t, models.StatusCompleted, tx.Status)
	assert.Equal(t, result.TxHash, tx.TxHash)

	granted, err := f.svc.HasAccess(context.Background(), "user-1", item)
	require.NoError(t, err)
	assert.True(t, granted)

	total, err := f.svc.TotalSpent(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(50), total)
}

func TestPurchase_InsufficientFunds(t *testing.T) {
	f := newFixture(30)
	item := models.ItemRef{ContentID: "tenant-eviction-rights"}

	result := f.svc.Purchase(context.Background(), purchaseReq(item, 50))

	require.False(t, result.Success)
	assert.Equal(t, apperrors.ErrCodeInsufficientFunds, errCode(t, result.Err))
	assert.Equal(t, models.StateError, result.State)

	// The balance check failed before any money moved.
	assert.Equal(t, 0, f.wallet.calls())

	tx := f.txs.get(result.TransactionID)
	require.NotNil(t, tx)
	assert.Equal(t, models.StatusFailed, tx.Status)

	granted, err := f.svc.HasAccess(context.Background(), "user-1", item)
	require.NoError(t, err)
	assert.False(t, granted)

	total, err := f.svc.TotalSpent(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestPurchase_WalletUnavailable(t *testing.T) {
	f := newFixture(0)
	f.wallet.balanceErr = errors.New("rpc connection refused")

	result := f.svc.Purchase(context.Background(), purchaseReq(models.ItemRef{ContentID: "tenant-eviction-rights"}, 50))

	require.False(t, result.Success)
	assert.Equal(t, apperrors.ErrCodeWalletUnavailable, errCode(t, result.Err))
	assert.Equal(t, 0, f.wallet.calls())
	assert.Equal(t, models.StatusFailed, f.txs.get(result.TransactionID).Status)
}

func TestPurchase_Rejected_ThenRetrySucceeds(t *testing.T) {
	f := newFixture(1000)
	f.wallet.submitErr = errors.New("facilitator: transfer reverted")
	item := models.ItemRef{ContentID: "tenant-eviction-rights"}

	result := f.svc.Purchase(context.Background(), purchaseReq(item, 50))
	require.False(t, result.Success)
	assert.Equal(t, apperrors.ErrCodePaymentRejected, errCode(t, result.Err))
	assert.Equal(t, 1, f.wallet.calls())

	tx := f.txs.get(result.TransactionID)
	require.NotNil(t, tx)
	assert.Equal(t, models.StatusFailed, tx.Status)
	assert.NotEmpty(t, tx.FailureReason)

	state, err := f.svc.PurchaseState(context.Background(), "user-1", item)
	require.NoError(t, err)
	assert.Equal(t, models.StateError, state.State)
	assert.True(t, state.Retryable)

	// Retry runs a fresh attempt with a new transaction.
	f.wallet.submitErr = nil
	retried := f.svc.Retry(context.Background(), purchaseReq(item, 50))
	require.True(t, retried.Success)
	assert.NotEqual(t, result.TransactionID, retried.TransactionID)
	assert.Equal(t, 2, f.wallet.calls())

	// The failed attempt stays in history.
	assert.Equal(t, models.StatusFailed, f.txs.get(result.TransactionID).Status)
	assert.Equal(t, models.StatusCompleted, f.txs.get(retried.TransactionID).Status)
}

func TestPurchase_RepurchaseShortCircuits(t *testing.T) {
	f := newFixture(1000)
	item := models.ItemRef{ContentID: "tenant-eviction-rights"}

	first := f.svc.Purchase(context.Background(), purchaseReq(item, 50))
	require.True(t, first.Success)

	second := f.svc.Purchase(context.Background(), purchaseReq(item, 50))
	require.True(t, second.Success)
	assert.True(t, second.AlreadyGranted)
	assert.Empty(t, second.TransactionID)

	// No second charge.
	assert.Equal(t, 1, f.wallet.calls())
	assert.Equal(t, 1, f.grants.count())

	total, err := f.svc.TotalSpent(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(50), total)
}

func TestPurchase_ConcurrentAttemptRejected(t *testing.T) {
	f := newFixture(1000)
	item := models.ItemRef{ContentID: "tenant-eviction-rights"}

	locked, err := f.sessions.AcquireLock(context.Background(), "user-1", item.Key(), time.Minute)
	require.NoError(t, err)
	require.True(t, locked)

	result := f.svc.Purchase(context.Background(), purchaseReq(item, 50))
	require.False(t, result.Success)
	assert.Equal(t, apperrors.ErrCodePurchaseInFlight, errCode(t, result.Err))
	assert.Equal(t, 0, f.wallet.calls())
}

func TestPurchase_SubmitTimeoutLeavesPending(t *testing.T) {
	f := newFixture(1000)
	f.wallet.submitErr = context.DeadlineExceeded
	item := models.ItemRef{ContentID: "tenant-eviction-rights"}

	result := f.svc.Purchase(context.Background(), purchaseReq(item, 50))

	require.False(t, result.Success)
	assert.Equal(t, apperrors.ErrCodeTimedOut, errCode(t, result.Err))

	// Outcome unknown: the transaction is left for the reconciler, not failed.
	tx := f.txs.get(result.TransactionID)
	require.NotNil(t, tx)
	assert.Equal(t, models.StatusPending, tx.Status)

	granted, err := f.svc.HasAccess(context.Background(), "user-1", item)
	require.NoError(t, err)
	assert.False(t, granted)
}

func TestPurchase_ClientDisconnectDuringSubmitLeavesPending(t *testing.T) {
	f := newFixture(1000)
	f.wallet.submitErr = fmt.Errorf("facilitator post: %w", context.Canceled)
	item := models.ItemRef{ContentID: "tenant-eviction-rights"}

	result := f.svc.Purchase(context.Background(), purchaseReq(item, 50))

	require.False(t, result.Success)
	assert.Equal(t, apperrors.ErrCodeTimedOut, errCode(t, result.Err))

	// A cut-off call is not a decline: the transfer may have gone through,
	// so the transaction must stay pending for the reconciler.
	tx := f.txs.get(result.TransactionID)
	require.NotNil(t, tx)
	assert.Equal(t, models.StatusPending, tx.Status)
	assert.Empty(t, tx.FailureReason)
}

func TestPurchase_GrantFailureRepairedWithoutRecharge(t *testing.T) {
	f := newFixture(1000)
	f.grants.failNext = 1
	item := models.ItemRef{ContentID: "tenant-eviction-rights"}

	result := f.svc.Purchase(context.Background(), purchaseReq(item, 50))

	// The payment went through; the bookkeeping miss must not surface as a
	// failed purchase.
	require.True(t, result.Success)
	assert.Equal(t, models.StatusCompleted, f.txs.get(result.TransactionID).Status)
	assert.Equal(t, 1, f.wallet.calls())

	granted, err := f.svc.HasAccess(context.Background(), "user-1", item)
	require.NoError(t, err)
	assert.False(t, granted)

	// The repair pass creates the missing grant without touching the wallet.
	require.NoError(t, f.svc.RepairGrants(context.Background()))

	granted, err = f.svc.HasAccess(context.Background(), "user-1", item)
	require.NoError(t, err)
	assert.True(t, granted)
	assert.Equal(t, 1, f.grants.count())
	assert.Equal(t, 1, f.wallet.calls())

	total, err := f.svc.TotalSpent(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(50), total)
}

func TestPurchase_ValidationErrors(t *testing.T) {
	f := newFixture(1000)

	tests := []struct {
		name string
		req  *models.PurchaseRequest
	}{
		{"no item", purchaseReq(models.ItemRef{}, 50)},
		{"both items", purchaseReq(models.ItemRef{ContentID: "a", TemplateID: "b"}, 50)},
		{"zero amount", purchaseReq(models.ItemRef{ContentID: "tenant-eviction-rights"}, 0)},
		{"negative amount", purchaseReq(models.ItemRef{ContentID: "tenant-eviction-rights"}, -50)},
		{"unknown item", purchaseReq(models.ItemRef{ContentID: "nope"}, 50)},
		{"price mismatch", purchaseReq(models.ItemRef{ContentID: "tenant-eviction-rights"}, 49)},
		{"free item", purchaseReq(models.ItemRef{ContentID: "free-card"}, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := f.svc.Purchase(context.Background(), tt.req)
			require.False(t, result.Success)
			assert.Equal(t, apperrors.ErrCodeInvalidRequest, errCode(t, result.Err))
		})
	}

	// Nothing was charged or persisted for any invalid request.
	assert.Equal(t, 0, f.wallet.calls())
}

func TestPurchase_UnauthenticatedRejected(t *testing.T) {
	f := newFixture(1000)
	req := purchaseReq(models.ItemRef{ContentID: "tenant-eviction-rights"}, 50)
	req.UserID = ""

	result := f.svc.Purchase(context.Background(), req)
	require.False(t, result.Success)
	assert.Equal(t, apperrors.ErrCodeUnauthorized, errCode(t, result.Err))
}

// ---------------------------------------------------------------------------
// Access ledger
// ---------------------------------------------------------------------------

func TestGrantAccess_Idempotent(t *testing.T) {
	f := newFixture(1000)
	item := models.ItemRef{TemplateID: "demand-letter-rent"}

	require.NoError(t, f.svc.GrantAccess(context.Background(), "user-1", "tx-1", item))
	require.NoError(t, f.svc.GrantAccess(context.Background(), "user-1", "tx-1", item))

	assert.Equal(t, 1, f.grants.count())

	granted, err := f.svc.HasAccess(context.Background(), "user-1", item)
	require.NoError(t, err)
	assert.True(t, granted)
}

func TestHasAccess_ScopedToUserAndItem(t *testing.T) {
	f := newFixture(1000)
	item := models.ItemRef{ContentID: "tenant-eviction-rights"}
	require.NoError(t, f.svc.GrantAccess(context.Background(), "user-1", "tx-1", item))

	otherUser, err := f.svc.HasAccess(context.Background(), "user-2", item)
	require.NoError(t, err)
	assert.False(t, otherUser)

	otherItem, err := f.svc.HasAccess(context.Background(), "user-1", models.ItemRef{TemplateID: "demand-letter-rent"})
	require.NoError(t, err)
	assert.False(t, otherItem)
}

func TestTotalSpent_CountsCompletedOnly(t *testing.T) {
	f := newFixture(1000)
	now := time.Now()

	seed := []*models.Transaction{
		{ID: "t1", UserID: "user-1", ContentID: "a", AmountCents: 50, Status: models.StatusCompleted, CreatedAt: now},
		{ID: "t2", UserID: "user-1", ContentID: "b", AmountCents: 100, Status: models.StatusCompleted, CreatedAt: now},
		{ID: "t3", UserID: "user-1", ContentID: "c", AmountCents: 70, Status: models.StatusFailed, CreatedAt: now},
		{ID: "t4", UserID: "user-1", ContentID: "d", AmountCents: 80, Status: models.StatusPending, CreatedAt: now},
		{ID: "t5", UserID: "user-2", ContentID: "e", AmountCents: 500, Status: models.StatusCompleted, CreatedAt: now},
	}
	for _, tx := range seed {
		f.txs.txs[tx.ID] = tx
	}

	total, err := f.svc.TotalSpent(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(150), total)
}

// ---------------------------------------------------------------------------
// State reporting and cancel
// ---------------------------------------------------------------------------

func TestPurchaseState_Defaults(t *testing.T) {
	f := newFixture(1000)
	item := models.ItemRef{ContentID: "tenant-eviction-rights"}

	state, err := f.svc.PurchaseState(context.Background(), "user-1", item)
	require.NoError(t, err)
	assert.Equal(t, models.StateLocked, state.State)

	// A grant makes the reported state unlocked regardless of session memory.
	require.NoError(t, f.svc.GrantAccess(context.Background(), "user-1", "tx-1", item))
	state, err = f.svc.PurchaseState(context.Background(), "user-1", item)
	require.NoError(t, err)
	assert.Equal(t, models.StateUnlocked, state.State)
}

func TestCancel_NonTerminalOnly(t *testing.T) {
	f := newFixture(1000)
	item := models.ItemRef{ContentID: "tenant-eviction-rights"}

	// Nothing to cancel is fine.
	require.NoError(t, f.svc.Cancel(context.Background(), "user-1", item))

	// A failed attempt can be cancelled back to locked.
	f.wallet.submitErr = errors.New("rejected")
	result := f.svc.Purchase(context.Background(), purchaseReq(item, 50))
	require.False(t, result.Success)

	require.NoError(t, f.svc.Cancel(context.Background(), "user-1", item))
	session, err := f.sessions.Get(context.Background(), "user-1", item.Key())
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, models.StateLocked, session.State)

	// An unlocked purchase cannot be cancelled.
	f.wallet.submitErr = nil
	result = f.svc.Purchase(context.Background(), purchaseReq(item, 50))
	require.True(t, result.Success)
	err = f.svc.Cancel(context.Background(), "user-1", item)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInvalidRequest, errCode(t, err))
}

// ---------------------------------------------------------------------------
// Reconciliation
// ---------------------------------------------------------------------------

func TestReconcilePending_SettlesByReceipt(t *testing.T) {
	f := newFixture(1000)
	now := time.Now().Add(-time.Hour)

	f.txs.txs["confirmed"] = &models.Transaction{
		ID: "confirmed", UserID: "user-1", ContentID: "tenant-eviction-rights",
		AmountCents: 50, Status: models.StatusPending, TxHash: "0xgood", CreatedAt: now,
	}
	f.txs.txs["reverted"] = &models.Transaction{
		ID: "reverted", UserID: "user-1", ContentID: "free-card",
		AmountCents: 50, Status: models.StatusPending, TxHash: "0xbad", CreatedAt: now,
	}
	f.txs.txs["unmined"] = &models.Transaction{
		ID: "unmined", UserID: "user-1", TemplateID: "demand-letter-rent",
		AmountCents: 100, Status: models.StatusPending, TxHash: "0xwait", CreatedAt: now,
	}

	f.wallet.verify = func(txHash string) (bool, error) {
		switch txHash {
		case "0xgood":
			return true, nil
		case "0xbad":
			return false, fmt.Errorf("transaction reverted: %w", wallet.ErrPaymentInvalid)
		default:
			return false, nil
		}
	}

	require.NoError(t, f.svc.ReconcilePending(context.Background(), 30*time.Minute))

	assert.Equal(t, models.StatusCompleted, f.txs.get("confirmed").Status)
	assert.Equal(t, models.StatusFailed, f.txs.get("reverted").Status)
	assert.Equal(t, models.StatusPending, f.txs.get("unmined").Status)

	granted, err := f.svc.HasAccess(context.Background(), "user-1", models.ItemRef{ContentID: "tenant-eviction-rights"})
	require.NoError(t, err)
	assert.True(t, granted)
}

func TestReconcilePending_TransientVerifyErrorRetriesLater(t *testing.T) {
	f := newFixture(1000)
	f.txs.txs["flaky"] = &models.Transaction{
		ID: "flaky", UserID: "user-1", ContentID: "tenant-eviction-rights",
		AmountCents: 50, Status: models.StatusPending, TxHash: "0xflaky",
		CreatedAt: time.Now().Add(-time.Hour),
	}
	f.wallet.verify = func(string) (bool, error) {
		return false, errors.New("rpc timeout")
	}

	require.NoError(t, f.svc.ReconcilePending(context.Background(), 30*time.Minute))

	// An RPC hiccup must not fail a transaction that may have settled.
	assert.Equal(t, models.StatusPending, f.txs.get("flaky").Status)
}

func TestReconcilePending_ExpiresAbandoned(t *testing.T) {
	f := newFixture(1000)
	f.txs.txs["old"] = &models.Transaction{
		ID: "old", UserID: "user-1", ContentID: "tenant-eviction-rights",
		AmountCents: 50, Status: models.StatusPending,
		CreatedAt: time.Now().Add(-time.Hour),
	}
	f.txs.txs["fresh"] = &models.Transaction{
		ID: "fresh", UserID: "user-1", TemplateID: "demand-letter-rent",
		AmountCents: 100, Status: models.StatusPending,
		CreatedAt: time.Now().Add(-time.Minute),
	}

	require.NoError(t, f.svc.ReconcilePending(context.Background(), 30*time.Minute))

	assert.Equal(t, models.StatusFailed, f.txs.get("old").Status)
	assert.Equal(t, "abandoned", f.txs.get("old").FailureReason)
	assert.Equal(t, models.StatusPending, f.txs.get("fresh").Status)
}
