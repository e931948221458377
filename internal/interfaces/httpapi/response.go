package httpapi

import (
	"context"
	"net/http"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"

	"github.com/riskibarqy/matchpulse/internal/realtime"
	"github.com/riskibarqy/matchpulse/internal/usecase"
)

const (
	apiVersion  = "2.0"
	errorDomain = "matchpulse"

	internalMessage = "internal server error"
)

var errPanic = crerr.New("handler panicked")

type envelope struct {
	APIVersion string     `json:"apiVersion"`
	Data       any        `json:"data,omitempty"`
	Error      *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Status  string      `json:"status"`
	Errors  []errorItem `json:"errors,omitempty"`
}

type errorItem struct {
	Domain  string `json:"domain"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

type mappedError struct {
	HTTPStatus int
	Reason     string
	Status     string
}

// errorRules is matched in order; the first rule with a matching sentinel wins.
var errorRules = []struct {
	sentinels []error
	mapped    mappedError
}{
	{
		sentinels: []error{usecase.ErrInvalidInput, realtime.ErrInvalidChannel},
		mapped:    mappedError{HTTPStatus: http.StatusBadRequest, Reason: "invalidInput", Status: "INVALID_ARGUMENT"},
	},
	{
		sentinels: []error{usecase.ErrNotFound},
		mapped:    mappedError{HTTPStatus: http.StatusNotFound, Reason: "notFound", Status: "NOT_FOUND"},
	},
	{
		sentinels: []error{usecase.ErrConfiguration},
		mapped:    mappedError{HTTPStatus: http.StatusServiceUnavailable, Reason: "feedMisconfigured", Status: "FAILED_PRECONDITION"},
	},
	{
		sentinels: []error{usecase.ErrDependencyUnavailable, realtime.ErrHubClosed},
		mapped:    mappedError{HTTPStatus: http.StatusServiceUnavailable, Reason: "dependencyUnavailable", Status: "UNAVAILABLE"},
	},
	{
		sentinels: []error{usecase.ErrUpstream, usecase.ErrDecode},
		mapped:    mappedError{HTTPStatus: http.StatusBadGateway, Reason: "upstreamError", Status: "UNAVAILABLE"},
	},
}

var internalError = mappedError{HTTPStatus: http.StatusInternalServerError, Reason: "internalError", Status: "INTERNAL"}

func mapError(err error) mappedError {
	for _, rule := range errorRules {
		for _, sentinel := range rule.sentinels {
			if crerr.Is(err, sentinel) {
				return rule.mapped
			}
		}
	}
	return internalError
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := sonic.ConfigDefault.NewEncoder(w).Encode(payload); err != nil {
		recordError(ctx, crerr.Wrap(err, "encode response"))
	}
}

func writeSuccess(ctx context.Context, w http.ResponseWriter, status int, data any) {
	writeJSON(ctx, w, status, envelope{APIVersion: apiVersion, Data: data})
}

// writeError renders err in the error envelope. Unmapped errors are reported
// as a generic internal error so their text never reaches the client.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	mapped := mapError(err)
	message := internalMessage
	if mapped != internalError {
		message = err.Error()
	} else {
		recordError(ctx, err)
	}

	writeJSON(ctx, w, mapped.HTTPStatus, envelope{
		APIVersion: apiVersion,
		Error: &errorBody{
			Code:    mapped.HTTPStatus,
			Message: message,
			Status:  mapped.Status,
			Errors:  []errorItem{{Domain: errorDomain, Reason: mapped.Reason, Message: message}},
		},
	})
}
