// Package httpx holds the JSON response helpers shared by the HTTP handlers.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/unkn0wn-root/quizgate"
)

// ErrorBody is the error document every gateway-generated failure uses.
type ErrorBody struct {
	Error   string `json:"error"`
	Service string `json:"service,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to encode response")
		return
	}
	WriteRaw(w, status, "application/json; charset=utf-8", b)
}

// WriteRaw writes body verbatim. An empty contentType is left unset.
func WriteRaw(w http.ResponseWriter, status int, contentType string, body []byte) {
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, ErrorBody{Error: msg})
}

// StatusError carries a fixed status and client-facing message; Err stays in logs.
type StatusError struct {
	Status  int
	Message string
	Err     error
}

func (e *StatusError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *StatusError) Unwrap() error { return e.Err }

// StatusOf maps the error taxonomy to an HTTP status.
func StatusOf(err error) int {
	var (
		nf  *quizgate.NotFoundError
		ve  *quizgate.ValidationError
		te  *quizgate.TimeoutError
		ue  *quizgate.UnavailableError
		app *quizgate.UpstreamError
		se  *StatusError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &se):
		return se.Status
	case errors.As(err, &nf), errors.Is(err, quizgate.ErrNoRoute):
		return http.StatusNotFound
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.As(err, &te):
		return http.StatusGatewayTimeout
	case errors.As(err, &ue):
		return http.StatusBadGateway
	case errors.As(err, &app):
		return app.Status
	default:
		return http.StatusInternalServerError
	}
}

// Fail writes err as a response. Upstream application errors keep their
// original status and body; everything else gets an ErrorBody.
func Fail(w http.ResponseWriter, err error) {
	var (
		nf  *quizgate.NotFoundError
		te  *quizgate.TimeoutError
		ue  *quizgate.UnavailableError
		app *quizgate.UpstreamError
		se  *StatusError
	)
	switch {
	case errors.As(err, &se):
		WriteError(w, se.Status, se.Message)
	case errors.As(err, &nf):
		WriteError(w, http.StatusNotFound, nf.Error())
	case errors.As(err, &app) && json.Valid(app.Body):
		WriteRaw(w, app.Status, "application/json; charset=utf-8", app.Body)
	case errors.As(err, &te):
		WriteJSON(w, http.StatusGatewayTimeout, ErrorBody{Error: te.Error(), Service: te.Service})
	case errors.As(err, &ue):
		WriteJSON(w, http.StatusBadGateway, ErrorBody{
			Error:   fmt.Sprintf("Service %s unavailable", ue.Service),
			Service: ue.Service,
		})
	default:
		status := StatusOf(err)
		msg := err.Error()
		if status == http.StatusInternalServerError {
			msg = "Internal server error"
		}
		WriteError(w, status, msg)
	}
}
