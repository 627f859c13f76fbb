package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	pkgerrors "github.com/angelmondragon/stockyard-backend/pkg/errors"
	"github.com/angelmondragon/stockyard-backend/pkg/logger"
)

// Success wraps every 2xx body.
type Success struct {
	Data any `json:"data"`
}

// Failure wraps every error body.
type Failure struct {
	Error Problem `json:"error"`
}

// Problem is the client-facing view of a pkgerrors.Error.
type Problem struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Success{Data: data})
}

// WriteError renders err with the status of its code. Untyped errors become
// CodeInternal and never leak their text. 4xx outcomes are logged at info,
// everything else at error.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}

	m := pkgerrors.MetadataFor(typed.Code())
	problem := Problem{Code: string(typed.Code()), Message: m.PublicMessage}
	if m.ExposeMessage && typed.Message() != "" {
		problem.Message = typed.Message()
	}
	if m.DetailsAllowed {
		problem.Details = typed.Details()
	}

	if logg != nil {
		fields := pkgerrors.Describe(err).Fields()
		fields["status"] = m.HTTPStatus
		if details, ok := typed.Details().(map[string]any); ok {
			if step, ok := details["step"]; ok {
				fields["step"] = step
			}
		}
		ctx = logg.WithFields(ctx, fields)
		if m.HTTPStatus >= http.StatusInternalServerError {
			logg.Error(ctx, "request failed", err)
		} else {
			logg.Info(ctx, "request rejected")
		}
	}

	writeJSON(w, m.HTTPStatus, Failure{Error: problem})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":{"code":"INTERNAL_ERROR","message":"internal server error"}}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}
