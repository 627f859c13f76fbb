package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	pkgerrors "github.com/angelmondragon/stockyard-backend/pkg/errors"
)

// Gateway webhook events the service reacts to.
const (
	WebhookPaymentCaptured = "payment.captured"
	WebhookPaymentFailed   = "payment.failed"
	WebhookOrderPaid       = "order.paid"
)

// ComputeSignature returns the hex HMAC-SHA256 of "orderID|paymentID" keyed by secret.
func ComputeSignature(orderID, paymentID, secret string) string {
	return hmacHex([]byte(orderID+"|"+paymentID), secret)
}

// VerifySignature reports whether signature authenticates the (orderID, paymentID) pair.
// The comparison is constant time.
func VerifySignature(orderID, paymentID, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected := ComputeSignature(orderID, paymentID, secret)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature))))
}

func hmacHex(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifiedWebhook is a gateway webhook whose body signature has been checked.
// Values only come out of VerifyWebhook, so holding one proves verification ran.
type VerifiedWebhook struct {
	event         string
	orderID       string
	paymentID     string
	paymentStatus string
	failureReason string
}

func (w *VerifiedWebhook) Event() string         { return w.event }
func (w *VerifiedWebhook) OrderID() string       { return w.orderID }
func (w *VerifiedWebhook) PaymentID() string     { return w.paymentID }
func (w *VerifiedWebhook) PaymentStatus() string { return w.paymentStatus }

// FailureReason is the gateway's reason for a failed payment, empty otherwise.
func (w *VerifiedWebhook) FailureReason() string { return w.failureReason }

type webhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment *struct {
			Entity webhookPayment `json:"entity"`
		} `json:"payment"`
		Order *struct {
			Entity struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"entity"`
		} `json:"order"`
	} `json:"payload"`
}

type webhookPayment struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id"`
	Status           string `json:"status"`
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
	ErrorReason      string `json:"error_reason"`
}

// VerifyWebhook checks the X-Razorpay-Signature of a raw webhook body and decodes it.
func VerifyWebhook(body []byte, signature, secret string) (*VerifiedWebhook, error) {
	if secret == "" {
		return nil, pkgerrors.New(pkgerrors.CodeSignatureInvalid, "webhook secret not configured")
	}
	expected := hmacHex(body, secret)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature)))) {
		return nil, pkgerrors.New(pkgerrors.CodeSignatureInvalid, "webhook signature mismatch")
	}

	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode webhook body")
	}
	if env.Event == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "webhook event missing")
	}

	hook := &VerifiedWebhook{event: env.Event}
	if env.Payload.Payment != nil {
		p := env.Payload.Payment.Entity
		hook.paymentID = p.ID
		hook.orderID = p.OrderID
		hook.paymentStatus = p.Status
		hook.failureReason = firstNonEmpty(p.ErrorReason, p.ErrorDescription, p.ErrorCode)
	}
	if hook.orderID == "" && env.Payload.Order != nil {
		hook.orderID = env.Payload.Order.Entity.ID
	}
	return hook, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
