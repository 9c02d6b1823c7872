package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/utafrali/reviewrank/pkg/errors"
)

// maxErrorBody caps how much of a failed response is read.
const maxErrorBody = 64 << 10

// errorEnvelope is the platform's JSON error body.
type errorEnvelope struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ParseResponseError consumes and closes a non-2xx response and converts it
// into an error. Bodies in the platform error envelope keep their code and
// message as an AppError; anything else becomes a plain error carrying the
// status and body text.
func ParseResponseError(resp *http.Response, service string) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", service, resp.StatusCode, err)
	}

	var env errorEnvelope
	if json.Unmarshal(body, &env) != nil || env.Error == nil {
		return fmt.Errorf("%s returned status %d: %s", service, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return downstreamError(resp.StatusCode, env.Error.Code, env.Error.Message, service)
}

func downstreamError(status int, code, message, service string) error {
	msg := service + ": " + message

	switch status {
	case http.StatusNotFound:
		return apperrors.NotFound(service, message)
	case http.StatusBadRequest:
		return apperrors.InvalidInput(msg)
	case http.StatusConflict:
		return apperrors.Conflict(msg)
	case http.StatusUnprocessableEntity:
		return apperrors.Unprocessable(msg)
	case http.StatusServiceUnavailable:
		return &apperrors.AppError{Code: code, Message: msg, Status: status, Err: apperrors.ErrServiceUnavail}
	}
	if status >= 500 {
		return fmt.Errorf("%s server error (%d/%s): %s", service, status, code, message)
	}
	return &apperrors.AppError{Code: code, Message: msg, Status: status}
}
