package ports

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

import (
	"context"
	"time"

	"mpesa-callback-relay/internal/core/domain"
)

// --- Session Ports ---

// SessionConn is one live push connection as the registry sees it.
type SessionConn interface {
	SessionID() string
	// Send queues an envelope without blocking. It returns
	// domain.ErrSendBufferFull or domain.ErrSessionClosed when the
	// envelope could not be queued.
	Send(env *domain.Envelope) error
	Close()
}

// SessionRegistry tracks live sessions and their room memberships.
type SessionRegistry interface {
	Connect(conn SessionConn)
	// Join adds the session to each key's room. Joining a room twice is a no-op.
	Join(sessionID string, keys []string) ([]string, error)
	Leave(sessionID string, keys []string) ([]string, error)
	Disconnect(sessionID string)
	// Members returns the sessions currently in key's room.
	Members(key string) []SessionConn
	All() []SessionConn
	Session(sessionID string) (*domain.Session, bool)
	Count() int
}

// --- Notification Ports ---

// Dispatcher hands deliveries to the worker pool. Submit never blocks.
type Dispatcher interface {
	Submit(d domain.Dispatch) error
}

// NotificationRouter decides who receives a stored callback.
type NotificationRouter interface {
	// Publish queues delivery of rec to the sessions subscribed to its key,
	// or applies the unresolved policy when it has none.
	Publish(rec *domain.CallbackRecord) error
}

// --- Service Ports (Business Logic) ---

// IngestService validates, stores and publishes provider callbacks.
type IngestService interface {
	Ingest(ctx context.Context, kind domain.CallbackKind, body []byte) (*domain.CallbackRecord, error)
}

// ReportingService serves the transactions table.
type ReportingService interface {
	RecentTransactions(ctx context.Context, limit int) ([]domain.TransactionView, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(merchantID string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	MerchantID string
}

// AuthService issues session tokens to desktop clients.
type AuthService interface {
	Login(ctx context.Context, username, password string) (*LoginResult, error)
}

// LoginResult is what a successful login hands back.
type LoginResult struct {
	Token      string
	MerchantID string
	ExpiresAt  time.Time
}

// --- Payment Provider Ports ---

// STKPushService initiates Lipa Na M-Pesa Online payments.
type STKPushService interface {
	Initiate(ctx context.Context, req STKPushRequest) (*STKPushResult, error)
}

// STKPushRequest holds validated input for an STK push.
type STKPushRequest struct {
	MerchantID       string
	Phone            string
	Amount           int64
	AccountReference string
	Description      string
}

// STKPushResult is the provider's synchronous acknowledgement.
type STKPushResult struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// MpesaGateway is the outbound Daraja API.
type MpesaGateway interface {
	STKPush(ctx context.Context, payload *STKPushPayload) (*STKPushResult, error)
}

// STKPushPayload is the processrequest body.
type STKPushPayload struct {
	BusinessShortCode string            `json:"BusinessShortCode"`
	Password          string            `json:"Password"`
	Timestamp         string            `json:"Timestamp"`
	TransactionType   string            `json:"TransactionType"`
	Amount            int64             `json:"Amount"`
	PartyA            string            `json:"PartyA"`
	PartyB            string            `json:"PartyB"`
	PhoneNumber       string            `json:"PhoneNumber"`
	CallBackURL       string            `json:"CallBackURL"`
	AccountReference  string            `json:"AccountReference"`
	TransactionDesc   string            `json:"TransactionDesc"`
	Metadata          map[string]string `json:"Metadata,omitempty"`
}
