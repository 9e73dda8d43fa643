package controller

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sharetube/party/internal/service/party"
	"github.com/sharetube/party/pkg/rest"
)

const (
	codeUnauthenticated = "UNAUTHENTICATED"
	codeNotFound        = "PARTY_NOT_FOUND"
	codeForbidden       = "FORBIDDEN"
	codeValidation      = "VALIDATION"
	codeBadRequest      = "BAD_REQUEST"
	codeRateLimited     = "RATE_LIMITED"
	codeInternal        = "INTERNAL"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c controller) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	body := errorBody{Message: err.Error()}

	switch {
	case errors.Is(err, party.ErrUnauthenticated):
		status, body.Code = http.StatusUnauthorized, codeUnauthenticated
	case errors.Is(err, party.ErrPartyNotFound):
		status, body.Code = http.StatusNotFound, codeNotFound
	case errors.Is(err, party.ErrForbidden):
		status, body.Code = http.StatusForbidden, codeForbidden
	case errors.Is(err, party.ErrValidation):
		status, body.Code = http.StatusBadRequest, codeValidation
	default:
		c.logger.ErrorContext(r.Context(), "request failed", "error", err)
		status, body = http.StatusInternalServerError, errorBody{Code: codeInternal, Message: "internal error"}
	}

	if err := rest.WriteJSON(w, status, rest.Envelope{"error": body}); err != nil {
		c.logger.WarnContext(r.Context(), "failed to write error", "error", err)
	}
}

func (c controller) writeData(w http.ResponseWriter, r *http.Request, status int, data any) {
	if err := rest.WriteJSON(w, status, rest.Envelope{"data": data}); err != nil {
		c.logger.WarnContext(r.Context(), "failed to write response", "error", err)
	}
}

// readBody decodes and validates the request body. It writes the error
// response itself and reports whether the handler may continue. An empty
// body is accepted when optional is set.
func (c controller) readBody(w http.ResponseWriter, r *http.Request, dst any, optional bool) bool {
	if err := rest.ReadJSON(r, dst); err != nil {
		if !(optional && errors.Is(err, rest.ErrEmptyBody)) {
			c.logger.DebugContext(r.Context(), "failed to read json", "error", err)
			rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": errorBody{
				Code:    codeBadRequest,
				Message: err.Error(),
			}})
			return false
		}
	}

	if validationErrors, ok := c.validate.Validate(dst); !ok {
		c.logger.DebugContext(r.Context(), "validation failed", "errors", validationErrors)
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return false
	}

	return true
}

// getSince parses the optional chat watermark.
func (c controller) getSince(r *http.Request) (*time.Time, error) {
	raw := r.URL.Query().Get("since")
	if raw == "" {
		return nil, nil
	}

	since, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: since must be an RFC 3339 timestamp", party.ErrValidation)
	}

	return &since, nil
}
