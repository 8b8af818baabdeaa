package domain

import (
	"time"
)

// CallbackKind identifies which provider flow produced a callback.
type CallbackKind string

const (
	CallbackKindSTK CallbackKind = "stk"
	CallbackKindC2B CallbackKind = "c2b"
)

// Valid reports whether k is a known callback kind.
func (k CallbackKind) Valid() bool {
	return k == CallbackKindSTK || k == CallbackKindC2B
}

// RawPayload is a provider JSON object kept byte-for-byte.
type RawPayload []byte

// MarshalJSON emits the payload verbatim.
func (p RawPayload) MarshalJSON() ([]byte, error) {
	if len(p) == 0 {
		return []byte("null"), nil
	}
	return p, nil
}

// UnmarshalJSON stores a copy of the encoded value.
func (p *RawPayload) UnmarshalJSON(b []byte) error {
	*p = append((*p)[:0], b...)
	return nil
}

// CallbackRecord is one entry of the append-only callback log.
// Records are created once by the store and never mutated.
type CallbackRecord struct {
	ID              int64        `json:"id"`
	SubscriptionKey string       `json:"subscription_key,omitempty"` // empty = unresolved
	Kind            CallbackKind `json:"kind"`
	Payload         RawPayload   `json:"payload"`
	ReceivedAt      time.Time    `json:"received_at"`
}

// Resolved returns true if the record carries a merchant/shop key.
func (r *CallbackRecord) Resolved() bool {
	return r.SubscriptionKey != ""
}

// EnvelopeTypeTransaction is the only envelope type pushed to sessions today.
const EnvelopeTypeTransaction = "transaction"

// Envelope is the body of a "notification" push.
type Envelope struct {
	Type string     `json:"type"`
	Data RawPayload `json:"data"`
}

// NewTransactionEnvelope wraps a callback payload for delivery.
func NewTransactionEnvelope(payload RawPayload) *Envelope {
	return &Envelope{Type: EnvelopeTypeTransaction, Data: payload}
}

// Dispatch is one unit of work for the notification worker pool.
type Dispatch struct {
	RecordID  int64
	Key       string // ignored when Broadcast is set
	Broadcast bool
	Envelope  *Envelope
}

// ShardKey is the value used to pin a dispatch to a worker.
// All broadcasts share one shard so they keep their relative order.
func (d Dispatch) ShardKey() string {
	if d.Broadcast {
		return ""
	}
	return d.Key
}

// Transaction status strings used by the /api/transactions projection.
const (
	TransactionStatusSuccess = "success"
	TransactionStatusFailed  = "failed"
	TransactionStatusUnknown = "unknown"
)

// Row limits for the /api/transactions projection.
const (
	DefaultTransactionLimit = 100
	MaxTransactionLimit     = 1000
)

// TransactionFields are the values a desktop client shows for one callback.
type TransactionFields struct {
	Amount        Value
	Phone         Value
	TransactionID string
	Status        string
}

// TransactionView is a CallbackRecord projected for the transactions table.
type TransactionView struct {
	Time          string `json:"time"`
	Amount        Value  `json:"amount"`
	Phone         Value  `json:"phone"`
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id"`
}

// NewTransactionView builds the projection of a record from its decoded fields.
func NewTransactionView(r *CallbackRecord, f TransactionFields) TransactionView {
	return TransactionView{
		Time:          r.ReceivedAt.UTC().Format(time.RFC3339),
		Amount:        f.Amount,
		Phone:         f.Phone,
		Status:        f.Status,
		TransactionID: f.TransactionID,
	}
}
