package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	apperrors "pocketlegal-backend/internal/common/errors"
	"pocketlegal-backend/internal/common/logger"
	"pocketlegal-backend/internal/features/payment/models"
	"pocketlegal-backend/internal/features/payment/repository"
	"pocketlegal-backend/internal/platform/wallet"
)

// Catalog resolves item prices for purchase validation.
type Catalog interface {
	ContentPrice(ctx context.Context, id string) (int64, error)
	TemplatePrice(ctx context.Context, id string) (int64, error)
}

// PaymentService drives purchase attempts and answers access questions.
type PaymentService interface {
	// Purchase runs one attempt end to end. All failures come back inside
	// the result; the method never panics past this boundary.
	Purchase(ctx context.Context, req *models.PurchaseRequest) *models.PurchaseResult

	// Retry re-runs a failed attempt, starting from a fresh balance check.
	Retry(ctx context.Context, req *models.PurchaseRequest) *models.PurchaseResult

	// Cancel abandons the flow; a payment already submitted is not stopped.
	Cancel(ctx context.Context, userID string, item models.ItemRef) error

	// PurchaseState reports the session state, reconciled against the
	// persisted transaction and grant rather than session memory alone.
	PurchaseState(ctx context.Context, userID string, item models.ItemRef) (*models.StateResponse, error)

	// Access ledger.
	HasAccess(ctx context.Context, userID string, item models.ItemRef) (bool, error)
	GrantAccess(ctx context.Context, userID, transactionID string, item models.ItemRef) error
	TotalSpent(ctx context.Context, userID string) (int64, error)
	Transactions(ctx context.Context, userID string) ([]*models.Transaction, error)
	Grants(ctx context.Context, userID string) ([]*models.AccessGrant, error)

	// Reconciliation, run periodically by the worker.
	ReconcilePending(ctx context.Context, abandonAfter time.Duration) error
	RepairGrants(ctx context.Context) error
}

type Options struct {
	RecipientAddress string
	SubmitTimeout    time.Duration
	Currency         string
}

type paymentService struct {
	transactions repository.TransactionRepository
	grants       repository.AccessGrantRepository
	sessions     repository.SessionRepository
	wallet       wallet.Client
	catalog      Catalog
	opts         Options
}

func NewPaymentService(
	transactions repository.TransactionRepository,
	grants repository.AccessGrantRepository,
	sessions repository.SessionRepository,
	walletClient wallet.Client,
	catalog Catalog,
	opts Options,
) PaymentService {
	if opts.SubmitTimeout <= 0 {
		opts.SubmitTimeout = 45 * time.Second
	}
	if opts.Currency == "" {
		opts.Currency = "USDC"
	}
	return &paymentService{
		transactions: transactions,
		grants:       grants,
		sessions:     sessions,
		wallet:       walletClient,
		catalog:      catalog,
		opts:         opts,
	}
}

func (s *paymentService) Purchase(ctx context.Context, req *models.PurchaseRequest) *models.PurchaseResult {
	return s.run(ctx, req, false)
}

func (s *paymentService) Retry(ctx context.Context, req *models.PurchaseRequest) *models.PurchaseResult {
	return s.run(ctx, req, true)
}

// run is the orchestrator. One attempt: validate, record a pending
// transaction, check the balance, submit the payment once, complete and
// grant. Every step that talks to the outside world can fail without
// leaving the transaction in limbo, except a timed-out submission, which
// stays pending for reconciliation.
func (s *paymentService) run(ctx context.Context, req *models.PurchaseRequest, retry bool) *models.PurchaseResult {
	if err := s.validate(ctx, req); err != nil {
		return failure(models.StateLocked, err)
	}

	// Idempotent repurchase: an existing grant short-circuits to unlocked
	// without a new transaction.
	granted, err := s.grants.Exists(ctx, req.UserID, req.Item, time.Now())
	if err != nil {
		return failure(models.StateLocked, apperrors.NewPersistenceError("check access", err))
	}
	if granted {
		return &models.PurchaseResult{Success: true, AlreadyGranted: true, State: models.StateUnlocked}
	}

	// One attempt per (user, item) at a time.
	lockTTL := s.opts.SubmitTimeout + 30*time.Second
	locked, err := s.sessions.AcquireLock(ctx, req.UserID, req.Item.Key(), lockTTL)
	if err != nil {
		return failure(models.StateLocked, apperrors.NewPersistenceError("acquire purchase lock", err))
	}
	if !locked {
		return failure(models.StateLocked,
			apperrors.New(apperrors.ErrCodePurchaseInFlight, "A purchase for this item is already in progress"))
	}
	defer func() {
		if err := s.sessions.ReleaseLock(context.WithoutCancel(ctx), req.UserID, req.Item.Key()); err != nil {
			logger.Warn().Err(err).Str("user_id", req.UserID).Str("item", req.Item.Key()).
				Msg("failed to release purchase lock")
		}
	}()

	session, err := s.loadSession(ctx, req.UserID, req.Item, retry)
	if err != nil {
		return failure(models.StateLocked, err)
	}

	// The caller holds an authenticated wallet identity, so the machine
	// enters at balance_checking.
	if session.State == models.StateLocked {
		if err := session.Begin(req.WalletAddress != ""); err != nil {
			return failure(session.State, apperrors.NewInvalidRequestError(err.Error()))
		}
	}
	if session.State == models.StateWalletConnecting {
		if err := session.TransitionTo(models.StateBalanceChecking); err != nil {
			return failure(session.State, apperrors.NewInvalidRequestError(err.Error()))
		}
	}
	s.saveSession(ctx, session)

	// Durable record precedes any external call: a crash mid-payment leaves
	// a pending row for reconciliation.
	tx := &models.Transaction{
		ID:          uuid.New().String(),
		UserID:      req.UserID,
		ContentID:   req.Item.ContentID,
		TemplateID:  req.Item.TemplateID,
		AmountCents: req.AmountCents,
		Currency:    s.opts.Currency,
		Status:      models.StatusPending,
	}
	if err := s.transactions.Create(ctx, tx); err != nil {
		return s.fail(ctx, session, nil, apperrors.NewPersistenceError("create transaction", err))
	}
	session.TransactionID = tx.ID
	s.saveSession(ctx, session)

	// Balance check. Surfaced, not retried internally.
	balance, err := s.wallet.BalanceCents(ctx, req.WalletAddress)
	if err != nil {
		return s.fail(ctx, session, tx, apperrors.NewWalletUnavailableError(err))
	}
	if balance < req.AmountCents {
		return s.fail(ctx, session, tx, apperrors.NewInsufficientFundsError(balance, req.AmountCents))
	}

	if err := session.TransitionTo(models.StatePaying); err != nil {
		return s.fail(ctx, session, tx, apperrors.NewInvalidRequestError(err.Error()))
	}
	s.saveSession(ctx, session)

	// The only call that moves value. Never retried here: a retry on an
	// unknown outcome risks a double spend.
	submitCtx, cancel := context.WithTimeout(ctx, s.opts.SubmitTimeout)
	receipt, err := s.wallet.SubmitPayment(submitCtx, wallet.PaymentOrder{
		AmountCents: req.AmountCents,
		Recipient:   s.opts.RecipientAddress,
		Metadata: map[string]string{
			"transaction_id": tx.ID,
			"item":           req.Item.Key(),
		},
	})
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || submitCtx.Err() != nil {
			// Outcome unknown: the call was cut off, not declined, and the
			// payment may still land. The transaction stays pending and the
			// reconciler settles it. A client disconnect lands here too.
			appErr := apperrors.NewTimedOutError("payment submission")
			s.failSession(context.WithoutCancel(ctx), session, appErr)
			result := failure(session.State, appErr)
			result.TransactionID = tx.ID
			return result
		}
		return s.fail(ctx, session, tx, apperrors.NewPaymentRejectedError(err.Error()))
	}

	if err := session.TransitionTo(models.StateVerifying); err != nil {
		logger.Warn().Err(err).Str("transaction_id", tx.ID).Msg("session transition after submit failed")
	}
	s.saveSession(ctx, session)

	// Record the reference before flipping status, so a crash between the
	// two leaves a pending row the reconciler can verify on chain.
	if err := s.transactions.RecordTxHash(ctx, tx.ID, receipt.TxHash); err != nil {
		logger.Error().Err(err).Str("transaction_id", tx.ID).Str("tx_hash", receipt.TxHash).
			Msg("payment submitted but reference not recorded")
		appErr := apperrors.NewPersistenceError("record transaction reference", err)
		s.failSession(ctx, session, appErr)
		result := failure(session.State, appErr)
		result.TransactionID = tx.ID
		return result
	}

	if err := s.transactions.MarkCompleted(ctx, tx.ID, receipt.TxHash); err != nil {
		// Money moved and the hash is recorded; reconciliation finishes the
		// completion without re-charging.
		logger.Error().Err(err).Str("transaction_id", tx.ID).Msg("failed to mark transaction completed")
		appErr := apperrors.NewPersistenceError("complete transaction", err)
		s.failSession(ctx, session, appErr)
		result := failure(session.State, appErr)
		result.TransactionID = tx.ID
		return result
	}

	if err := s.GrantAccess(ctx, req.UserID, tx.ID, req.Item); err != nil {
		// The transaction remains completed. The grant upsert is idempotent
		// and the reconciler retries it; the user is not charged again.
		logger.Error().Err(err).Str("transaction_id", tx.ID).Msg("grant creation failed after completed payment")
	}

	if err := session.TransitionTo(models.StateUnlocked); err != nil {
		logger.Warn().Err(err).Str("transaction_id", tx.ID).Msg("session transition to unlocked failed")
	}
	s.saveSession(ctx, session)

	logger.Info().
		Str("user_id", req.UserID).
		Str("item", req.Item.Key()).
		Str("transaction_id", tx.ID).
		Str("tx_hash", receipt.TxHash).
		Int64("amount_cents", req.AmountCents).
		Msg("purchase completed")

	return &models.PurchaseResult{
		Success:       true,
		TransactionID: tx.ID,
		TxHash:        receipt.TxHash,
		State:         session.State,
	}
}

func (s *paymentService) validate(ctx context.Context, req *models.PurchaseRequest) error {
	if req.UserID == "" {
		return apperrors.NewUnauthorizedError("purchase requires an authenticated user")
	}
	if req.WalletAddress == "" {
		return apperrors.NewInvalidRequestError("no wallet identity")
	}
	if req.AmountCents <= 0 {
		return apperrors.NewInvalidRequestError("amount_cents must be positive")
	}
	if err := req.Item.Validate(); err != nil {
		return apperrors.NewInvalidRequestError(err.Error())
	}

	price, err := s.itemPrice(ctx, req.Item)
	if err != nil {
		return apperrors.NewInvalidRequestError("unknown item: " + req.Item.Key())
	}
	if price <= 0 {
		return apperrors.NewInvalidRequestError("item is free and cannot be purchased")
	}
	if price != req.AmountCents {
		return apperrors.NewInvalidRequestError("amount does not match item price").
			WithDetail("price_cents", price)
	}

	return nil
}

func (s *paymentService) itemPrice(ctx context.Context, item models.ItemRef) (int64, error) {
	if item.ContentID != "" {
		return s.catalog.ContentPrice(ctx, item.ContentID)
	}
	return s.catalog.TemplatePrice(ctx, item.TemplateID)
}

// fail marks the transaction failed, moves the session to error and wraps
// the typed outcome. The transaction id is preserved for audit.
func (s *paymentService) fail(ctx context.Context, session *models.PurchaseSession, tx *models.Transaction, appErr *apperrors.AppError) *models.PurchaseResult {
	if tx != nil {
		if err := s.transactions.MarkFailed(ctx, tx.ID, string(appErr.Code)); err != nil {
			logger.Error().Err(err).Str("transaction_id", tx.ID).Msg("failed to mark transaction failed")
		}
	}
	s.failSession(ctx, session, appErr)

	result := failure(session.State, appErr)
	if tx != nil {
		result.TransactionID = tx.ID
	}
	return result
}

func (s *paymentService) failSession(ctx context.Context, session *models.PurchaseSession, appErr *apperrors.AppError) {
	if err := session.Fail(string(appErr.Code)); err != nil {
		logger.Warn().Err(err).Str("user_id", session.UserID).Msg("session error transition failed")
	}
	s.saveSession(ctx, session)
}

func (s *paymentService) loadSession(ctx context.Context, userID string, item models.ItemRef, retry bool) (*models.PurchaseSession, error) {
	session, err := s.sessions.Get(ctx, userID, item.Key())
	if err != nil {
		return nil, apperrors.NewPersistenceError("load purchase session", err)
	}
	if session == nil {
		return models.NewPurchaseSession(userID, item), nil
	}

	if retry {
		if err := session.Retry(); err != nil {
			return nil, apperrors.NewInvalidRequestError(err.Error())
		}
		return session, nil
	}

	// A fresh attempt over a stale error or cancelled session starts over.
	if session.State == models.StateError || session.State == models.StateUnlocked {
		return models.NewPurchaseSession(userID, item), nil
	}
	return session, nil
}

// saveSession is best effort: the durable truth lives in transactions and
// grants.
func (s *paymentService) saveSession(ctx context.Context, session *models.PurchaseSession) {
	if err := s.sessions.Save(ctx, session); err != nil {
		logger.Warn().Err(err).
			Str("user_id", session.UserID).
			Str("item", session.ItemKey).
			Msg("failed to save purchase session")
	}
}

func failure(state models.State, err error) *models.PurchaseResult {
	return &models.PurchaseResult{Success: false, State: state, Err: err}
}

func (s *paymentService) Cancel(ctx context.Context, userID string, item models.ItemRef) error {
	session, err := s.sessions.Get(ctx, userID, item.Key())
	if err != nil {
		return apperrors.NewPersistenceError("load purchase session", err)
	}
	if session == nil {
		return nil
	}
	if err := session.Cancel(); err != nil {
		return apperrors.NewInvalidRequestError(err.Error())
	}
	s.saveSession(ctx, session)
	return nil
}

func (s *paymentService) PurchaseState(ctx context.Context, userID string, item models.ItemRef) (*models.StateResponse, error) {
	if err := item.Validate(); err != nil {
		return nil, apperrors.NewInvalidRequestError(err.Error())
	}

	granted, err := s.grants.Exists(ctx, userID, item, time.Now())
	if err != nil {
		return nil, apperrors.NewPersistenceError("check access", err)
	}

	session, err := s.sessions.Get(ctx, userID, item.Key())
	if err != nil {
		return nil, apperrors.NewPersistenceError("load purchase session", err)
	}

	// Durable state wins over session memory.
	if granted {
		return &models.StateResponse{ItemKey: item.Key(), State: models.StateUnlocked, UpdatedAt: time.Now()}, nil
	}
	if session == nil {
		return &models.StateResponse{ItemKey: item.Key(), State: models.StateLocked, UpdatedAt: time.Now()}, nil
	}

	// An in-flight session can be stale after a crash: consult the
	// transaction it points at.
	if session.InFlight() && session.TransactionID != "" {
		tx, err := s.transactions.GetByID(ctx, session.TransactionID)
		if err == nil && tx.Status == models.StatusFailed {
			session.State = models.StateError
			session.ErrorCode = tx.FailureReason
		}
	}

	return &models.StateResponse{
		ItemKey:       session.ItemKey,
		State:         session.State,
		TransactionID: session.TransactionID,
		ErrorCode:     session.ErrorCode,
		Retryable:     session.State == models.StateError,
		UpdatedAt:     session.UpdatedAt,
	}, nil
}

func (s *paymentService) HasAccess(ctx context.Context, userID string, item models.ItemRef) (bool, error) {
	if err := item.Validate(); err != nil {
		return false, apperrors.NewInvalidRequestError(err.Error())
	}
	return s.grants.Exists(ctx, userID, item, time.Now())
}

func (s *paymentService) GrantAccess(ctx context.Context, userID, transactionID string, item models.ItemRef) error {
	if err := item.Validate(); err != nil {
		return apperrors.NewInvalidRequestError(err.Error())
	}

	grant := &models.AccessGrant{
		ID:            uuid.New().String(),
		UserID:        userID,
		ContentID:     item.ContentID,
		TemplateID:    item.TemplateID,
		TransactionID: transactionID,
		GrantedAt:     time.Now(),
	}
	if err := s.grants.Upsert(ctx, grant); err != nil {
		return apperrors.NewPersistenceError("upsert access grant", err)
	}
	return nil
}

func (s *paymentService) TotalSpent(ctx context.Context, userID string) (int64, error) {
	total, err := s.transactions.SumCompletedByUser(ctx, userID)
	if err != nil {
		return 0, apperrors.NewPersistenceError("sum completed transactions", err)
	}
	return total, nil
}

func (s *paymentService) Transactions(ctx context.Context, userID string) ([]*models.Transaction, error) {
	txs, err := s.transactions.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.NewPersistenceError("list transactions", err)
	}
	return txs, nil
}

func (s *paymentService) Grants(ctx context.Context, userID string) ([]*models.AccessGrant, error) {
	grants, err := s.grants.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.NewPersistenceError("list access grants", err)
	}
	return grants, nil
}
