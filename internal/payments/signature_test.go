package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/stockyard-backend/pkg/errors"
)

const testSecret = "rzp_test_secret"

func TestVerifySignatureAcceptsGatewaySignature(t *testing.T) {
	sig := ComputeSignature("order_9A33XWu170gUtm", "pay_29QQoUBi66xm2f", testSecret)

	assert.True(t, VerifySignature("order_9A33XWu170gUtm", "pay_29QQoUBi66xm2f", sig, testSecret))
	assert.True(t, VerifySignature("order_9A33XWu170gUtm", "pay_29QQoUBi66xm2f", strings.ToUpper(sig), testSecret))
}

func TestVerifySignatureRejectsTampering(t *testing.T) {
	sig := ComputeSignature("order_1", "pay_1", testSecret)

	cases := map[string]struct {
		orderID, paymentID, signature, secret string
	}{
		"other payment":   {"order_1", "pay_2", sig, testSecret},
		"other order":     {"order_2", "pay_1", sig, testSecret},
		"tampered":        {"order_1", "pay_1", "tampered", testSecret},
		"empty signature": {"order_1", "pay_1", "", testSecret},
		"empty secret":    {"order_1", "pay_1", sig, ""},
		"wrong secret":    {"order_1", "pay_1", sig, "other"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if VerifySignature(tc.orderID, tc.paymentID, tc.signature, tc.secret) {
				t.Fatalf("expected signature to be rejected")
			}
		})
	}
}

func signBody(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhookDecodesCapturedPayment(t *testing.T) {
	body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1","order_id":"order_1","status":"captured"}}}}`)

	hook, err := VerifyWebhook(body, signBody(body, testSecret), testSecret)
	require.NoError(t, err)
	assert.Equal(t, WebhookPaymentCaptured, hook.Event())
	assert.Equal(t, "order_1", hook.OrderID())
	assert.Equal(t, "pay_1", hook.PaymentID())
	assert.Equal(t, "captured", hook.PaymentStatus())
}

func TestVerifyWebhookFailedPaymentCarriesReason(t *testing.T) {
	body := []byte(`{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_2","order_id":"order_2","status":"failed","error_description":"card declined"}}}}`)

	hook, err := VerifyWebhook(body, signBody(body, testSecret), testSecret)
	require.NoError(t, err)
	assert.Equal(t, WebhookPaymentFailed, hook.Event())
	assert.Equal(t, "order_2", hook.OrderID())
	assert.NotEmpty(t, hook.FailureReason())
}

func TestVerifyWebhookRejectsBadSignature(t *testing.T) {
	body := []byte(`{"event":"payment.captured","payload":{}}`)

	_, err := VerifyWebhook(body, signBody(body, "other"), testSecret)
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeSignatureInvalid))

	_, err = VerifyWebhook(body, signBody(body, testSecret), "")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeSignatureInvalid))
}

func TestVerifyWebhookRejectsMalformedBody(t *testing.T) {
	body := []byte(`{"payload":{}}`)

	_, err := VerifyWebhook(body, signBody(body, testSecret), testSecret)
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}
