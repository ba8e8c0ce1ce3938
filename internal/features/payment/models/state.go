package models

import (
	"fmt"
	"time"
)

// State is one step of the per-item purchase flow surfaced to the client.
type State string

const (
	StateLocked           State = "locked"
	StateWalletConnecting State = "wallet_connecting"
	StateBalanceChecking  State = "balance_checking"
	StatePaying           State = "paying"
	StateVerifying        State = "verifying"
	StateUnlocked         State = "unlocked"
	StateError            State = "error"
)

// transitions is the full legal transition set. Retry goes from error back
// to balance_checking, never to wallet_connecting: the wallet identity
// survives a failed attempt.
var transitions = map[State][]State{
	StateLocked:           {StateWalletConnecting, StateBalanceChecking, StateUnlocked},
	StateWalletConnecting: {StateBalanceChecking, StateError},
	StateBalanceChecking:  {StatePaying, StateError},
	StatePaying:           {StateVerifying, StateError},
	StateVerifying:        {StateUnlocked},
	StateError:            {StateBalanceChecking},
	StateUnlocked:         {},
}

// Terminal reports whether the flow is finished for this session.
func (s State) Terminal() bool {
	return s == StateUnlocked
}

// CanTransition reports whether s may move to next.
func (s State) CanTransition(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PurchaseSession is the durable record of one (user, item) purchase flow.
// It lives in Redis so a reload reconciles against transaction and grant
// state instead of trusting client memory.
type PurchaseSession struct {
	UserID        string    `json:"user_id"`
	ItemKey       string    `json:"item_key"`
	State         State     `json:"state"`
	TransactionID string    `json:"transaction_id,omitempty"`
	ErrorCode     string    `json:"error_code,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func NewPurchaseSession(userID string, item ItemRef) *PurchaseSession {
	return &PurchaseSession{
		UserID:    userID,
		ItemKey:   item.Key(),
		State:     StateLocked,
		UpdatedAt: time.Now(),
	}
}

// Begin moves the session out of locked. A connected wallet skips straight
// to balance_checking.
func (s *PurchaseSession) Begin(walletConnected bool) error {
	if walletConnected {
		return s.TransitionTo(StateBalanceChecking)
	}
	return s.TransitionTo(StateWalletConnecting)
}

// TransitionTo applies one legal transition.
func (s *PurchaseSession) TransitionTo(next State) error {
	if !s.State.CanTransition(next) {
		return fmt.Errorf("illegal purchase state transition %s -> %s", s.State, next)
	}
	s.State = next
	if next != StateError {
		s.ErrorCode = ""
	}
	s.UpdatedAt = time.Now()
	return nil
}

// Fail moves the session into error with the failure class attached.
func (s *PurchaseSession) Fail(code string) error {
	if err := s.TransitionTo(StateError); err != nil {
		return err
	}
	s.ErrorCode = code
	return nil
}

// Retry is the explicit user-triggered transition from error back into the
// flow. The caller re-checks the balance next, so an InsufficientFunds retry
// never reuses a stale balance.
func (s *PurchaseSession) Retry() error {
	if s.State != StateError {
		return fmt.Errorf("retry only allowed from error state, not %s", s.State)
	}
	return s.TransitionTo(StateBalanceChecking)
}

// Cancel abandons the flow from any non-terminal state. Cancelling after
// payment submission does not stop the payment; reconciliation settles the
// transaction later.
func (s *PurchaseSession) Cancel() error {
	if s.State.Terminal() {
		return fmt.Errorf("cannot cancel an unlocked purchase")
	}
	s.State = StateLocked
	s.ErrorCode = ""
	s.UpdatedAt = time.Now()
	return nil
}

// InFlight reports whether a purchase attempt is currently running, used to
// reject a second attempt for the same (user, item) pair.
func (s *PurchaseSession) InFlight() bool {
	switch s.State {
	case StateWalletConnecting, StateBalanceChecking, StatePaying, StateVerifying:
		return true
	}
	return false
}

// StateResponse is the session projection returned to the client.
type StateResponse struct {
	ItemKey       string    `json:"item_key"`
	State         State     `json:"state"`
	TransactionID string    `json:"transaction_id,omitempty"`
	ErrorCode     string    `json:"error_code,omitempty"`
	Retryable     bool      `json:"retryable"`
	UpdatedAt     time.Time `json:"updated_at"`
}
