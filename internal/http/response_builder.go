// Package http serves the console: full pages, HTMX partials, forms and
// toast notifications in front of the Entity Store.
package http

import (
	"encoding/json"
	"net/http"

	"finconsole/internal/api"
)

// Client-side events raised through HX-Trigger. web/static/app.js listens
// for each of them.
const (
	EventNotify      = "show-notification"
	EventListRefresh = "list:refresh"
	EventModalClose  = "modal:close"
)

// Toast durations in milliseconds.
const (
	successToastMs = 3000
	errorToastMs   = 5000
)

// ToastLevel selects the style of a toast.
type ToastLevel string

const (
	ToastSuccess    ToastLevel = "success"
	ToastErrorLevel ToastLevel = "error"
	ToastWarning    ToastLevel = "warning"
)

// Toast is the payload of the show-notification event.
type Toast struct {
	Type     ToastLevel `json:"type"`
	Message  string     `json:"message"`
	Duration int        `json:"duration"`
}

type listRefresh struct {
	Resource string `json:"resource"`
}

// HTMXResponseBuilder assembles a console response: status, HX-* headers,
// client events and an optional HTML body.
type HTMXResponseBuilder struct {
	status  int
	events  map[string]any
	headers http.Header
	body    []byte
}

// NewHTMXResponse starts a 200 response with no events.
func NewHTMXResponse() *HTMXResponseBuilder {
	return &HTMXResponseBuilder{
		status:  http.StatusOK,
		events:  make(map[string]any),
		headers: make(http.Header),
	}
}

func (b *HTMXResponseBuilder) Status(code int) *HTMXResponseBuilder {
	b.status = code
	return b
}

// Trigger raises a client event. A later call with the same name wins.
func (b *HTMXResponseBuilder) Trigger(name string, detail any) *HTMXResponseBuilder {
	b.events[name] = detail
	return b
}

// TriggerListRefresh asks the list of res to reload itself.
func (b *HTMXResponseBuilder) TriggerListRefresh(res string) *HTMXResponseBuilder {
	return b.Trigger(EventListRefresh, listRefresh{Resource: res})
}

// TriggerModalClose closes the open form dialog.
func (b *HTMXResponseBuilder) TriggerModalClose() *HTMXResponseBuilder {
	return b.Trigger(EventModalClose, struct{}{})
}

// Notify shows a toast.
func (b *HTMXResponseBuilder) Notify(level ToastLevel, message string, durationMs int) *HTMXResponseBuilder {
	return b.Trigger(EventNotify, Toast{Type: level, Message: message, Duration: durationMs})
}

func (b *HTMXResponseBuilder) TriggerSuccessNotification(message string) *HTMXResponseBuilder {
	return b.Notify(ToastSuccess, message, successToastMs)
}

func (b *HTMXResponseBuilder) TriggerErrorNotification(message string) *HTMXResponseBuilder {
	return b.Notify(ToastErrorLevel, message, errorToastMs)
}

// TriggerWarningNotification reports a partial failure.
func (b *HTMXResponseBuilder) TriggerWarningNotification(message string) *HTMXResponseBuilder {
	return b.Notify(ToastWarning, message, errorToastMs)
}

// NoSwap tells HTMX to leave the target untouched.
func (b *HTMXResponseBuilder) NoSwap() *HTMXResponseBuilder {
	return b.Header("HX-Reswap", "none")
}

// Redirect makes HTMX perform a full page navigation to url.
func (b *HTMXResponseBuilder) Redirect(url string) *HTMXResponseBuilder {
	return b.Header("HX-Redirect", url)
}

func (b *HTMXResponseBuilder) Header(name, value string) *HTMXResponseBuilder {
	b.headers.Set(name, value)
	return b
}

// BodyHTML sets an HTML fragment as the body.
func (b *HTMXResponseBuilder) BodyHTML(html string) *HTMXResponseBuilder {
	b.headers.Set("Content-Type", "text/html; charset=utf-8")
	b.body = []byte(html)
	return b
}

// Write sends the response. Events that cannot be encoded are dropped
// rather than failing the response.
func (b *HTMXResponseBuilder) Write(w http.ResponseWriter) {
	for name, values := range b.headers {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	if len(b.events) > 0 {
		if raw, err := json.Marshal(b.events); err == nil {
			w.Header().Set("HX-Trigger", string(raw))
		}
	}
	w.WriteHeader(b.status)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// ToastError answers with an error toast and no body, so the page and any
// form the user filled in stay as they are.
func ToastError(statusCode int, message string) *HTMXResponseBuilder {
	return NewHTMXResponse().
		Status(statusCode).
		NoSwap().
		TriggerErrorNotification(message)
}

// ToastForError is ToastError with the status chosen by the error kind.
func ToastForError(kind api.ErrorKind, message string) *HTMXResponseBuilder {
	return ToastError(statusFor(kind), message)
}

// statusFor maps an error kind to the status of the toast response.
func statusFor(kind api.ErrorKind) int {
	switch kind {
	case api.KindValidation:
		return http.StatusUnprocessableEntity
	case api.KindNetwork:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

// MutationSuccess confirms a create, update or delete and refreshes the
// affected list. Form submissions also close the dialog.
func MutationSuccess(res, message string, closeForm bool) *HTMXResponseBuilder {
	b := NewHTMXResponse().
		TriggerSuccessNotification(message).
		TriggerListRefresh(res)
	if closeForm {
		b.TriggerModalClose()
	}
	return b
}

// StaleResponse drops a list response overtaken by a newer request.
func StaleResponse() *HTMXResponseBuilder {
	return NewHTMXResponse().Status(http.StatusNoContent).NoSwap()
}
