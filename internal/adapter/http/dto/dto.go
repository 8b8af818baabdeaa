package dto

import "strings"

// LoginRequest is the request body for POST /api/login. Username is checked
// by the auth service so a missing one maps to AUTH_001, not a binding error.
type LoginRequest struct {
	Username string `json:"username" binding:"max=64"`
	Password string `json:"password" binding:"max=128"`
}

// LoginResponse is returned flat, without the success envelope, because the
// desktop client reads token and merchant_id at the top level.
type LoginResponse struct {
	Token      string `json:"token"`
	MerchantID string `json:"merchant_id"`
	Expiry     int64  `json:"expiry"` // Unix timestamp
}

// STKPushRequest is the request body for POST /api/stk-push.
type STKPushRequest struct {
	PhoneNumber      string `json:"phone_number" binding:"required,msisdn"`
	Amount           int64  `json:"amount" binding:"required,gt=0,lte=250000"`
	AccountReference string `json:"account_reference" binding:"omitempty,max=12,safe_id"`
	TransactionDesc  string `json:"transaction_desc" binding:"omitempty,max=13"`
}

// MSISDN returns the phone number in the 2547XXXXXXXX form the provider
// expects.
func (r STKPushRequest) MSISDN() string {
	p := strings.TrimPrefix(strings.TrimSpace(r.PhoneNumber), "+")
	if strings.HasPrefix(p, "0") {
		return "254" + p[1:]
	}
	return p
}
