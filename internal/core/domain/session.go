package domain

import (
	"errors"
	"sort"
	"strings"
	"time"
)

var (
	ErrSessionClosed  = errors.New("session closed")
	ErrSendBufferFull = errors.New("session send buffer full")
	ErrQueueFull      = errors.New("dispatch queue full")
	ErrPoolClosed     = errors.New("dispatch pool closed")
)

// SessionState is where a session is in its lifecycle.
type SessionState string

const (
	SessionConnected    SessionState = "CONNECTED"
	SessionJoined       SessionState = "CONNECTED+JOINED"
	SessionDisconnected SessionState = "DISCONNECTED"
)

// Session is one live push connection and the rooms it has joined.
type Session struct {
	ID          string    `json:"session_id"`
	JoinedKeys  []string  `json:"joined_keys"`
	ConnectedAt time.Time `json:"connected_at"`
}

// State derives the lifecycle state from membership.
func (s *Session) State() SessionState {
	if len(s.JoinedKeys) == 0 {
		return SessionConnected
	}
	return SessionJoined
}

// JoinRequest is the payload of a "join" (or "leave") event. The desktop
// client sends its merchant id and either one shop code or a CSV list.
type JoinRequest struct {
	MerchantID Value `json:"merchant_id"`
	ShopCode   Value `json:"shop_code"`
	ShopCodes  Value `json:"shop_codes"`
}

// Keys returns the distinct, trimmed subscription keys named by the request.
func (r JoinRequest) Keys() []string {
	raw := []string{r.MerchantID.String(), r.ShopCode.String()}
	raw = append(raw, strings.Split(r.ShopCodes.String(), ",")...)
	return NormalizeKeys(raw...)
}

// NormalizeKeys trims keys, drops empties and duplicates, and sorts the rest.
func NormalizeKeys(keys ...string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
