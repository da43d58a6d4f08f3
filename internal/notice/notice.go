// Package notice turns errors and outcomes into toasts and hands them to htmx
// through the HX-Trigger header.
package notice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/debemdeboas/backoffice/internal/config"
	"github.com/debemdeboas/backoffice/internal/model"
)

// Event is the htmx event name the layout listens to.
const Event = "notify"

func Success(title, message string) model.Notice {
	return model.Notice{Level: model.NoticeSuccess, Title: title, Message: message}
}

func Info(title, message string) model.Notice {
	return model.Notice{Level: model.NoticeInfo, Title: title, Message: message}
}

// FromError describes err for the user. Unknown errors get a generic message.
func FromError(err error) model.Notice {
	var (
		verr *model.ValidationError
		ferr *model.FetchError
		uerr *model.UploadError
		serr *model.SubmitError
	)
	switch {
	case err == nil:
		return Success("Done", "")
	case errors.As(err, &verr):
		n := model.Notice{Level: model.NoticeWarning, Title: "Please fix the highlighted fields", Fields: verr.Fields()}
		if len(verr.Errors) == 1 {
			n.Message = verr.Errors[0].Field + " " + verr.Errors[0].Message
		}
		return n
	case errors.As(err, &uerr):
		return model.Notice{Level: model.NoticeError, Title: "Image upload failed", Message: uerr.Error()}
	case errors.As(err, &serr):
		msg := serr.Message
		if msg == "" {
			msg = serr.Error()
		}
		return model.Notice{Level: model.NoticeError, Title: "Could not save changes", Message: msg}
	case errors.Is(err, model.ErrNotFound):
		return model.Notice{Level: model.NoticeWarning, Title: "Not found", Message: err.Error()}
	case errors.As(err, &ferr):
		return model.Notice{Level: model.NoticeError, Title: "Could not load " + ferr.Resource, Message: ferr.Err.Error()}
	case errors.Is(err, model.ErrDiscarded):
		return model.Notice{Level: model.NoticeInfo, Title: "Draft closed", Message: "This draft was discarded. Open the form again to continue."}
	case errors.Is(err, model.ErrOutOfRange):
		return model.Notice{Level: model.NoticeWarning, Title: "The list changed", Message: "Reload the form and try again."}
	case errors.Is(err, context.DeadlineExceeded):
		return model.Notice{Level: model.NoticeError, Title: "The backend took too long", Message: "Try again in a moment."}
	default:
		return model.Notice{Level: model.NoticeError, Title: "Something went wrong", Message: err.Error()}
	}
}

// Status picks the HTTP status a handler answers with alongside the notice.
// Backend failures are reported with 200 so htmx still swaps the previous good
// state back in.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, model.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrOutOfRange):
		return http.StatusConflict
	case errors.Is(err, model.ErrDiscarded):
		return http.StatusGone
	default:
		return http.StatusOK
	}
}

// Trigger adds n to the HX-Trigger header, merging with events already set.
func Trigger(w http.ResponseWriter, n model.Notice) {
	events := map[string]any{}
	if prev := w.Header().Get(config.HHxTrigger); prev != "" {
		if err := json.Unmarshal([]byte(prev), &events); err != nil {
			events = map[string]any{prev: nil}
		}
	}
	events[Event] = n
	raw, err := json.Marshal(events)
	if err != nil {
		return
	}
	w.Header().Set(config.HHxTrigger, string(raw))
}

// TriggerError is Trigger(w, FromError(err)).
func TriggerError(w http.ResponseWriter, err error) {
	Trigger(w, FromError(err))
}
