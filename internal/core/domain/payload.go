package domain

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	json "github.com/goccy/go-json"
)

var (
	ErrMalformedPayload = errors.New("callback body is not a JSON object")
	errUnstorable       = errors.New("body holds invalid UTF-8 or a \\u0000 escape")
	ErrUnknownKind      = errors.New("unknown callback kind")
)

// Value is a provider JSON scalar kept verbatim, so a number stays a number
// and a string stays a string when it is re-encoded.
type Value []byte

// MarshalJSON emits the value verbatim, or null when absent.
func (v Value) MarshalJSON() ([]byte, error) {
	if len(v) == 0 {
		return []byte("null"), nil
	}
	return v, nil
}

// UnmarshalJSON stores a copy of the encoded value.
func (v *Value) UnmarshalJSON(b []byte) error {
	*v = append((*v)[:0], b...)
	return nil
}

// IsNull reports whether the value is absent or JSON null.
func (v Value) IsNull() bool {
	t := bytes.TrimSpace(v)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

// String renders a scalar as text: strings are unquoted, numbers and
// booleans keep their literal form. Objects, arrays and null give "".
func (v Value) String() string {
	if v.IsNull() {
		return ""
	}
	t := bytes.TrimSpace(v)
	switch t[0] {
	case '"':
		var s string
		if err := json.Unmarshal(t, &s); err != nil {
			return ""
		}
		return s
	case '{', '[':
		return ""
	default:
		return string(t)
	}
}

// Payload is a decoded provider callback. Each kind knows where its
// subscription key and transaction fields live.
type Payload interface {
	Kind() CallbackKind
	// SubscriptionKey returns the merchant/shop identifier and whether one
	// could be found.
	SubscriptionKey() (string, bool)
	Transaction() TransactionFields
	// Raw is the compacted JSON object as received.
	Raw() RawPayload
}

// DecodePayload parses a callback body for the given kind. A body that is
// not a JSON object, or that jsonb could not store, is an error; nested
// fields of the wrong shape are treated as absent.
func DecodePayload(kind CallbackKind, body []byte) (Payload, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	top, err := decodeObject(body)
	if err != nil {
		return nil, err
	}
	if !storable(body) {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, errUnstorable)
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	raw := RawPayload(buf.Bytes())

	if kind == CallbackKindSTK {
		return decodeSTK(top, raw), nil
	}
	return decodeC2B(top, raw), nil
}

// STKPayload is an STK push (Lipa Na M-Pesa Online) result callback.
type STKPayload struct {
	raw RawPayload

	MerchantID        string // echoed from the request Metadata, if any
	BusinessShortCode string // top-level BusinessShortCode or ShortCode
	Result            STKResult
}

// STKResult is the Body.stkCallback object.
type STKResult struct {
	MerchantRequestID  string
	CheckoutRequestID  string
	ResultCode         string
	ResultDesc         string
	BusinessShortCode  string
	MpesaReceiptNumber string
	Items              map[string]Value // CallbackMetadata.Item by Name
}

func decodeSTK(top object, raw RawPayload) *STKPayload {
	cb := top.child("Body").child("stkCallback")
	return &STKPayload{
		raw:               raw,
		MerchantID:        explicitMerchant(top),
		BusinessShortCode: firstString(top.value("BusinessShortCode"), top.value("ShortCode")),
		Result: STKResult{
			MerchantRequestID:  cb.value("MerchantRequestID").String(),
			CheckoutRequestID:  cb.value("CheckoutRequestID").String(),
			ResultCode:         strings.TrimSpace(cb.value("ResultCode").String()),
			ResultDesc:         cb.value("ResultDesc").String(),
			BusinessShortCode:  firstString(cb.value("BusinessShortCode")),
			MpesaReceiptNumber: cb.value("MpesaReceiptNumber").String(),
			Items:              metadataItems(cb.child("CallbackMetadata")),
		},
	}
}

func (p *STKPayload) Kind() CallbackKind { return CallbackKindSTK }
func (p *STKPayload) Raw() RawPayload    { return p.raw }

// SubscriptionKey prefers the application-chosen merchant id, then the
// shortcode inside stkCallback, then a top-level shortcode.
func (p *STKPayload) SubscriptionKey() (string, bool) {
	key := firstNonEmpty(p.MerchantID, p.Result.BusinessShortCode, p.BusinessShortCode)
	return key, key != ""
}

// Succeeded reports whether the provider returned ResultCode 0.
func (p *STKPayload) Succeeded() bool {
	return p.Result.ResultCode == "0"
}

func (p *STKPayload) Transaction() TransactionFields {
	f := TransactionFields{
		Amount: p.Result.Items["Amount"],
		Phone:  p.Result.Items["PhoneNumber"],
		TransactionID: firstNonEmpty(
			p.Result.Items["MpesaReceiptNumber"].String(),
			p.Result.MpesaReceiptNumber,
			p.Result.CheckoutRequestID,
		),
	}
	switch {
	case p.Result.ResultCode == "":
		f.Status = TransactionStatusUnknown
	case p.Succeeded():
		f.Status = TransactionStatusSuccess
	default:
		f.Status = firstNonEmpty(p.Result.ResultDesc, TransactionStatusFailed)
	}
	return f
}

// C2BPayload is a customer-to-business (till/paybill) confirmation.
type C2BPayload struct {
	raw RawPayload

	MerchantID        string
	BusinessShortCode string
	TransactionType   string
	TransID           string
	TransTime         string
	TransAmount       Value
	MSISDN            Value
	BillRefNumber     string
	FirstName         string
	LastName          string
}

func decodeC2B(top object, raw RawPayload) *C2BPayload {
	return &C2BPayload{
		raw:               raw,
		MerchantID:        explicitMerchant(top),
		BusinessShortCode: firstString(top.value("BusinessShortCode"), top.value("ShortCode")),
		TransactionType:   top.value("TransactionType").String(),
		TransID:           top.value("TransID").String(),
		TransTime:         top.value("TransTime").String(),
		TransAmount:       top.value("TransAmount"),
		MSISDN:            top.value("MSISDN"),
		BillRefNumber:     top.value("BillRefNumber").String(),
		FirstName:         top.value("FirstName").String(),
		LastName:          top.value("LastName").String(),
	}
}

func (p *C2BPayload) Kind() CallbackKind { return CallbackKindC2B }
func (p *C2BPayload) Raw() RawPayload    { return p.raw }

// SubscriptionKey prefers the application-chosen merchant id, then the
// top-level shortcode.
func (p *C2BPayload) SubscriptionKey() (string, bool) {
	key := firstNonEmpty(p.MerchantID, p.BusinessShortCode)
	return key, key != ""
}

// Transaction maps the flat C2B fields. A C2B confirmation is only sent for
// completed payments, so its status is always success.
func (p *C2BPayload) Transaction() TransactionFields {
	return TransactionFields{
		Amount:        p.TransAmount,
		Phone:         p.MSISDN,
		TransactionID: p.TransID,
		Status:        TransactionStatusSuccess,
	}
}

// storable reports whether a valid JSON document is also valid jsonb: UTF-8
// throughout and free of the NUL escape. Outside strings a valid document
// has no backslashes, so every one seen here starts an escape.
func storable(body []byte) bool {
	if !utf8.Valid(body) {
		return false
	}
	for i := 0; i < len(body); i++ {
		if body[i] != '\\' {
			continue
		}
		if i+5 < len(body) && body[i+1] == 'u' && string(body[i+2:i+6]) == "0000" {
			return false
		}
		i++
	}
	return true
}

// object is a JSON object whose members are decoded on demand.
type object map[string]json.RawMessage

func decodeObject(b []byte) (object, error) {
	var o object
	if err := json.Unmarshal(b, &o); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if o == nil {
		return nil, ErrMalformedPayload
	}
	return o, nil
}

func (o object) value(name string) Value {
	raw, ok := o[name]
	if !ok {
		return nil
	}
	return Value(raw)
}

// child returns the named member as an object, or nil if it is missing or
// not an object.
func (o object) child(name string) object {
	raw, ok := o[name]
	if !ok {
		return nil
	}
	c, err := decodeObject(raw)
	if err != nil {
		return nil
	}
	return c
}

// metadataItems flattens CallbackMetadata.Item into a Name -> Value map.
// Entries that are not {Name, Value} objects are skipped.
func metadataItems(meta object) map[string]Value {
	items := make(map[string]Value)
	raw, ok := meta["Item"]
	if !ok {
		return items
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		return items
	}
	for _, entry := range list {
		item, err := decodeObject(entry)
		if err != nil {
			continue
		}
		name := item.value("Name").String()
		if name == "" {
			continue
		}
		items[name] = item.value("Value")
	}
	return items
}

// explicitMerchant returns the identity the application embedded in the
// outbound request: Metadata.merchant_id, else a top-level merchant_id.
func explicitMerchant(top object) string {
	return firstString(top.child("Metadata").value("merchant_id"), top.value("merchant_id"))
}

func firstString(vals ...Value) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v.String()); s != "" {
			return s
		}
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, s := range vals {
		if s != "" {
			return s
		}
	}
	return ""
}
