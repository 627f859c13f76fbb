package webhooks

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/angelmondragon/stockyard-backend/api/responses"
	"github.com/angelmondragon/stockyard-backend/internal/payments"
	pkgerrors "github.com/angelmondragon/stockyard-backend/pkg/errors"
	"github.com/angelmondragon/stockyard-backend/pkg/logger"
	"github.com/angelmondragon/stockyard-backend/pkg/metrics"
)

const (
	razorpaySignatureHeader = "X-Razorpay-Signature"
	razorpayEventIDHeader   = "X-Razorpay-Event-Id"
	maxWebhookBody          = 1 << 20
)

type RazorpayWebhookService interface {
	HandleEvent(ctx context.Context, hook *payments.VerifiedWebhook) error
}

// deliveryGuard drops redelivered gateway events before they reach the
// service. Forget re-arms an event whose handling failed.
type deliveryGuard interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

type signatureFailures interface {
	IncSignatureFailure(path string)
}

type razorpayHandler struct {
	svc     RazorpayWebhookService
	secret  string
	guard   deliveryGuard
	metrics signatureFailures
	logg    *logger.Logger
}

// RazorpayWebhook verifies and applies gateway payment events. guard,
// metrics and logg are optional.
func RazorpayWebhook(svc RazorpayWebhookService, secret string, guard deliveryGuard, m signatureFailures, logg *logger.Logger) http.HandlerFunc {
	h := &razorpayHandler{svc: svc, secret: secret, guard: guard, metrics: m, logg: logg}
	return h.serve
}

func (h *razorpayHandler) serve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.svc == nil {
		responses.WriteError(ctx, h.logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
		return
	}

	hook, err := h.verify(r)
	if err != nil {
		responses.WriteError(ctx, h.logg, w, err)
		return
	}

	eventID := strings.TrimSpace(r.Header.Get(razorpayEventIDHeader))
	if h.duplicate(ctx, eventID) {
		responses.WriteSuccess(w, nil)
		return
	}

	if err := h.svc.HandleEvent(ctx, hook); err != nil {
		if h.guard != nil && eventID != "" {
			if ferr := h.guard.Forget(ctx, eventID); ferr != nil {
				h.warn(ctx, "webhook guard release failed", map[string]any{"event_id": eventID, "error": ferr.Error()})
			}
		}
		responses.WriteError(ctx, h.logg, w, err)
		return
	}

	if h.logg != nil {
		h.logg.Info(h.logg.WithFields(ctx, map[string]any{
			"event":    hook.Event(),
			"event_id": eventID,
			"order_id": hook.OrderID(),
		}), "razorpay event processed")
	}
	responses.WriteSuccess(w, nil)
}

// verify reads the raw body and checks its HMAC before anything is parsed.
func (h *razorpayHandler) verify(r *http.Request) (*payments.VerifiedWebhook, error) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body")
	}

	signature := strings.TrimSpace(r.Header.Get(razorpaySignatureHeader))
	if signature == "" {
		h.signatureRejected(r.Context(), "razorpay signature missing")
		return nil, pkgerrors.New(pkgerrors.CodeSignatureInvalid, "razorpay signature missing")
	}

	hook, err := payments.VerifyWebhook(payload, signature, h.secret)
	if pkgerrors.Is(err, pkgerrors.CodeSignatureInvalid) {
		h.signatureRejected(r.Context(), "razorpay webhook signature rejected")
	}
	return hook, err
}

// duplicate consults the guard. A guard outage is not fatal: the ledger
// still rejects double applications.
func (h *razorpayHandler) duplicate(ctx context.Context, eventID string) bool {
	if h.guard == nil || eventID == "" {
		return false
	}
	seen, err := h.guard.Seen(ctx, eventID)
	if err != nil {
		h.warn(ctx, "webhook guard unavailable", map[string]any{"event_id": eventID, "error": err.Error()})
		return false
	}
	return seen
}

func (h *razorpayHandler) signatureRejected(ctx context.Context, msg string) {
	if h.metrics != nil {
		h.metrics.IncSignatureFailure(metrics.PathWebhook)
	}
	h.warn(ctx, msg, nil)
}

func (h *razorpayHandler) warn(ctx context.Context, msg string, fields map[string]any) {
	if h.logg == nil {
		return
	}
	if len(fields) > 0 {
		ctx = h.logg.WithFields(ctx, fields)
	}
	h.logg.Warn(ctx, msg)
}
