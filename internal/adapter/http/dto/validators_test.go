package dto

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newValidator(t *testing.T) *validator.Validate {
	t.Helper()
	v := validator.New()
	v.SetTagName("binding")
	require.NoError(t, v.RegisterValidation("safe_id", validateSafeID))
	require.NoError(t, v.RegisterValidation("msisdn", validateMSISDN))
	return v
}

func TestSanitizeStruct(t *testing.T) {
	req := STKPushRequest{
		PhoneNumber:      "  254712345678 ",
		Amount:           10,
		AccountReference: " INV-1 ",
		TransactionDesc:  "<b>rent</b>",
	}
	SanitizeStruct(&req)

	assert.Equal(t, "254712345678", req.PhoneNumber)
	assert.Equal(t, "INV-1", req.AccountReference)
	assert.Equal(t, "&lt;b&gt;rent&lt;/b&gt;", req.TransactionDesc)
	assert.Equal(t, int64(10), req.Amount)
}

func TestSanitizeStruct_IgnoresNonPointers(t *testing.T) {
	req := LoginRequest{Username: " alice "}
	assert.NotPanics(t, func() {
		SanitizeStruct(req)
		SanitizeStruct(nil)
		s := "x"
		SanitizeStruct(&s)
	})
	assert.Equal(t, " alice ", req.Username)
}

func TestSTKPushRequest_Validation(t *testing.T) {
	v := newValidator(t)

	tests := []struct {
		name  string
		req   STKPushRequest
		valid bool
	}{
		{"international", STKPushRequest{PhoneNumber: "254712345678", Amount: 1}, true},
		{"local", STKPushRequest{PhoneNumber: "0712345678", Amount: 1}, true},
		{"plus prefix", STKPushRequest{PhoneNumber: "+254112345678", Amount: 1}, true},
		{"with reference", STKPushRequest{PhoneNumber: "254712345678", Amount: 1, AccountReference: "INV_1.a"}, true},
		{"missing phone", STKPushRequest{Amount: 1}, false},
		{"landline", STKPushRequest{PhoneNumber: "254202345678", Amount: 1}, false},
		{"short", STKPushRequest{PhoneNumber: "2547123", Amount: 1}, false},
		{"zero amount", STKPushRequest{PhoneNumber: "254712345678"}, false},
		{"negative amount", STKPushRequest{PhoneNumber: "254712345678", Amount: -5}, false},
		{"amount too large", STKPushRequest{PhoneNumber: "254712345678", Amount: 250001}, false},
		{"unsafe reference", STKPushRequest{PhoneNumber: "254712345678", Amount: 1, AccountReference: "a b"}, false},
		{"reference too long", STKPushRequest{PhoneNumber: "254712345678", Amount: 1, AccountReference: "ABCDEFGHIJKLM"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.req)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestSTKPushRequest_MSISDN(t *testing.T) {
	assert.Equal(t, "254712345678", STKPushRequest{PhoneNumber: "0712345678"}.MSISDN())
	assert.Equal(t, "254712345678", STKPushRequest{PhoneNumber: "+254712345678"}.MSISDN())
	assert.Equal(t, "254712345678", STKPushRequest{PhoneNumber: " 254712345678 "}.MSISDN())
}
