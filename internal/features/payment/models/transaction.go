package models

import (
	"errors"
	"time"
)

type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
	StatusRefunded  TransactionStatus = "refunded"
)

// ItemRef points at exactly one purchasable item: a content card or a
// document template.
type ItemRef struct {
	ContentID  string `json:"content_id,omitempty"`
	TemplateID string `json:"template_id,omitempty"`
}

var ErrInvalidItemRef = errors.New("exactly one of content_id and template_id must be set")

func (r ItemRef) Validate() error {
	if (r.ContentID == "") == (r.TemplateID == "") {
		return ErrInvalidItemRef
	}
	return nil
}

// Key is the stable identifier used for sessions and purchase locks.
func (r ItemRef) Key() string {
	if r.ContentID != "" {
		return "content:" + r.ContentID
	}
	return "template:" + r.TemplateID
}

// Transaction is one payment attempt. Rows are append-only history and are
// never deleted.
type Transaction struct {
	ID            string            `json:"id"`
	UserID        string            `json:"user_id"`
	ContentID     string            `json:"content_id,omitempty"`
	TemplateID    string            `json:"template_id,omitempty"`
	AmountCents   int64             `json:"amount_cents"`
	Currency      string            `json:"currency"`
	Status        TransactionStatus `json:"status"`
	TxHash        string            `json:"tx_hash,omitempty"`
	FailureReason string            `json:"failure_reason,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Item returns the transaction's item reference.
func (t *Transaction) Item() ItemRef {
	return ItemRef{ContentID: t.ContentID, TemplateID: t.TemplateID}
}

// AccessGrant links a user to a paid item. Its presence is the sole
// authority for access; it never exists without a completed transaction.
type AccessGrant struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	ContentID     string     `json:"content_id,omitempty"`
	TemplateID    string     `json:"template_id,omitempty"`
	TransactionID string     `json:"transaction_id"`
	GrantedAt     time.Time  `json:"granted_at"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// Active reports whether the grant is usable at now.
func (g *AccessGrant) Active(now time.Time) bool {
	return g.ExpiresAt == nil || g.ExpiresAt.After(now)
}

// PurchaseRequest is the orchestrator input.
type PurchaseRequest struct {
	UserID        string  `json:"-"`
	WalletAddress string  `json:"-"`
	AmountCents   int64   `json:"amount_cents" binding:"required"`
	Item          ItemRef `json:"item"`
}

// PurchaseResult is the orchestrator outcome. Err carries the typed failure;
// the orchestrator never panics past its boundary.
type PurchaseResult struct {
	Success        bool   `json:"success"`
	TransactionID  string `json:"transaction_id,omitempty"`
	TxHash         string `json:"tx_hash,omitempty"`
	AlreadyGranted bool   `json:"already_granted,omitempty"`
	State          State  `json:"state"`
	Err            error  `json:"-"`
}

// TotalSpentResponse is display-only, never used for authorization.
type TotalSpentResponse struct {
	UserID          string `json:"user_id"`
	TotalSpentCents int64  `json:"total_spent_cents"`
}
