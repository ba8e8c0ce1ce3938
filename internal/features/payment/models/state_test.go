package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_TransitionTable(t *testing.T) {
	all := []State{
		StateLocked, StateWalletConnecting, StateBalanceChecking,
		StatePaying, StateVerifying, StateUnlocked, StateError,
	}

	allowed := map[State][]State{
		StateLocked:           {StateWalletConnecting, StateBalanceChecking, StateUnlocked},
		StateWalletConnecting: {StateBalanceChecking, StateError},
		StateBalanceChecking:  {StatePaying, StateError},
		StatePaying:           {StateVerifying, StateError},
		StateVerifying:        {StateUnlocked},
		StateError:            {StateBalanceChecking},
		StateUnlocked:         {},
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, next := range allowed[from] {
				if next == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransition(to), "%s -> %s", from, to)
		}
	}
}

func TestState_UnlockedIsTerminal(t *testing.T) {
	for _, s := range []State{StateLocked, StateWalletConnecting, StateBalanceChecking, StatePaying, StateVerifying, StateError} {
		assert.False(t, s.Terminal(), "%s", s)
	}
	assert.True(t, StateUnlocked.Terminal())
}

func TestSession_HappyPath(t *testing.T) {
	s := NewPurchaseSession("user-1", ItemRef{ContentID: "card-1"})
	assert.Equal(t, StateLocked, s.State)
	assert.Equal(t, "content:card-1", s.ItemKey)

	require.NoError(t, s.Begin(true))
	assert.Equal(t, StateBalanceChecking, s.State)

	require.NoError(t, s.TransitionTo(StatePaying))
	require.NoError(t, s.TransitionTo(StateVerifying))
	require.NoError(t, s.TransitionTo(StateUnlocked))

	// No way out of unlocked.
	assert.Error(t, s.TransitionTo(StateBalanceChecking))
	assert.Error(t, s.Retry())
	assert.Error(t, s.Cancel())
}

func TestSession_BeginWithoutWallet(t *testing.T) {
	s := NewPurchaseSession("user-1", ItemRef{ContentID: "card-1"})
	require.NoError(t, s.Begin(false))
	assert.Equal(t, StateWalletConnecting, s.State)
	require.NoError(t, s.TransitionTo(StateBalanceChecking))
}

func TestSession_FailAndRetry(t *testing.T) {
	s := NewPurchaseSession("user-1", ItemRef{ContentID: "card-1"})
	require.NoError(t, s.Begin(true))
	require.NoError(t, s.Fail("INSUFFICIENT_FUNDS"))

	assert.Equal(t, StateError, s.State)
	assert.Equal(t, "INSUFFICIENT_FUNDS", s.ErrorCode)

	// Retry always re-enters at balance_checking so a stale balance is never
	// trusted, and it clears the recorded failure.
	require.NoError(t, s.Retry())
	assert.Equal(t, StateBalanceChecking, s.State)
	assert.Empty(t, s.ErrorCode)
}

func TestSession_RetryOnlyFromError(t *testing.T) {
	s := NewPurchaseSession("user-1", ItemRef{ContentID: "card-1"})
	assert.Error(t, s.Retry())

	require.NoError(t, s.Begin(true))
	assert.Error(t, s.Retry())
}

func TestSession_CancelFromAnyNonTerminal(t *testing.T) {
	setups := map[string]func(*PurchaseSession){
		"locked":            func(*PurchaseSession) {},
		"wallet_connecting": func(s *PurchaseSession) { _ = s.Begin(false) },
		"balance_checking":  func(s *PurchaseSession) { _ = s.Begin(true) },
		"paying": func(s *PurchaseSession) {
			_ = s.Begin(true)
			_ = s.TransitionTo(StatePaying)
		},
		"error": func(s *PurchaseSession) {
			_ = s.Begin(true)
			_ = s.Fail("PAYMENT_REJECTED")
		},
	}

	for name, setup := range setups {
		t.Run(name, func(t *testing.T) {
			s := NewPurchaseSession("user-1", ItemRef{ContentID: "card-1"})
			setup(s)
			require.NoError(t, s.Cancel())
			assert.Equal(t, StateLocked, s.State)
			assert.Empty(t, s.ErrorCode)
		})
	}
}

func TestSession_InFlight(t *testing.T) {
	s := NewPurchaseSession("user-1", ItemRef{ContentID: "card-1"})
	assert.False(t, s.InFlight())

	require.NoError(t, s.Begin(true))
	assert.True(t, s.InFlight())

	require.NoError(t, s.Fail("X"))
	assert.False(t, s.InFlight())
}

func TestItemRef_Validate(t *testing.T) {
	assert.NoError(t, ItemRef{ContentID: "a"}.Validate())
	assert.NoError(t, ItemRef{TemplateID: "b"}.Validate())
	assert.ErrorIs(t, ItemRef{}.Validate(), ErrInvalidItemRef)
	assert.ErrorIs(t, ItemRef{ContentID: "a", TemplateID: "b"}.Validate(), ErrInvalidItemRef)
}

func TestItemRef_Key(t *testing.T) {
	assert.Equal(t, "content:a", ItemRef{ContentID: "a"}.Key())
	assert.Equal(t, "template:b", ItemRef{TemplateID: "b"}.Key())
}
