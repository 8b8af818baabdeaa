package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"mpesa-callback-relay/config"
	"mpesa-callback-relay/internal/core/ports"
	"mpesa-callback-relay/internal/metrics"
	"mpesa-callback-relay/pkg/apperror"

	"github.com/rs/zerolog"
)

const (
	stkTransactionType  = "CustomerPayBillOnline"
	stkTimestampLayout  = "20060102150405"
	defaultAccountRef   = "Payment"
	defaultTransactDesc = "Payment"
)

// nairobi is the provider's clock; the password timestamp must match it.
var nairobi = time.FixedZone("EAT", 3*60*60)

// STKPushServiceImpl implements ports.STKPushService.
type STKPushServiceImpl struct {
	gateway ports.MpesaGateway
	cfg     config.MpesaConfig
	now     func() time.Time
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewSTKPushService creates an STK push service. gateway may be nil when
// the provider is not configured; Initiate then fails with MPESA_002.
func NewSTKPushService(gateway ports.MpesaGateway, cfg config.MpesaConfig, m *metrics.Metrics, log zerolog.Logger) *STKPushServiceImpl {
	return &STKPushServiceImpl{
		gateway: gateway,
		cfg:     cfg,
		now:     time.Now,
		metrics: m,
		log:     log,
	}
}

// Initiate asks the provider to prompt the customer's phone. The merchant id
// travels in Metadata so the result callback can be routed back to it.
func (s *STKPushServiceImpl) Initiate(ctx context.Context, req ports.STKPushRequest) (*ports.STKPushResult, error) {
	if s.gateway == nil || !s.cfg.Enabled() {
		return nil, apperror.ErrProviderDisabled()
	}

	payload := s.buildPayload(req)

	res, err := s.gateway.STKPush(ctx, payload)
	if err != nil {
		s.metrics.STKPush("error")
		s.log.Error().Err(err).Str("merchant_id", req.MerchantID).Msg("stk push failed")
		return nil, apperror.ErrProviderUnavailable(fmt.Errorf("stk push: %w", err))
	}

	s.metrics.STKPush("ok")
	s.log.Info().
		Str("merchant_id", req.MerchantID).
		Str("checkout_request_id", res.CheckoutRequestID).
		Int64("amount", req.Amount).
		Msg("stk push initiated")

	return res, nil
}

func (s *STKPushServiceImpl) buildPayload(req ports.STKPushRequest) *ports.STKPushPayload {
	timestamp := s.now().In(nairobi).Format(stkTimestampLayout)

	ref := req.AccountReference
	if ref == "" {
		ref = defaultAccountRef
	}
	desc := req.Description
	if desc == "" {
		desc = defaultTransactDesc
	}

	p := &ports.STKPushPayload{
		BusinessShortCode: s.cfg.Shortcode,
		Password:          STKPassword(s.cfg.Shortcode, s.cfg.Passkey, timestamp),
		Timestamp:         timestamp,
		TransactionType:   stkTransactionType,
		Amount:            req.Amount,
		PartyA:            req.Phone,
		PartyB:            s.cfg.Shortcode,
		PhoneNumber:       req.Phone,
		CallBackURL:       s.cfg.CallbackURL,
		AccountReference:  ref,
		TransactionDesc:   desc,
	}
	if req.MerchantID != "" {
		p.Metadata = map[string]string{"merchant_id": req.MerchantID}
	}
	return p
}

// STKPassword is base64(shortcode + passkey + timestamp).
func STKPassword(shortcode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortcode + passkey + timestamp))
}
