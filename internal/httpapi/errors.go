package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"
)

// Rejection reasons shared with clients of the original service.
const (
	ReasonNotFound           = "NOT_FOUND"
	ReasonMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	ReasonUnhandled          = "UNHANDLED_REJECTION"
	ReasonSpeedNotProvided   = "Speed not provided!"
	ReasonModeNotProvided    = "Mode not provided!"
	ReasonNoStateYet         = "No state received yet"
	internalErrorReasonIntro = "There was some internal error! "
)

// ErrorBody is the JSON body of every rejected request.
type ErrorBody struct {
	Reason string `json:"reason"`
}

// rejection is a handler failure carrying its HTTP status.
type rejection struct {
	status int
	reason string
}

func (r *rejection) Error() string { return r.reason }

func badRequest(reason string) *rejection {
	return &rejection{status: http.StatusBadRequest, reason: reason}
}

func internalError(err error) *rejection {
	return badRequest(internalErrorReasonIntro + err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *logrus.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithError(err).Debug("Failed to write response body")
	}
}

func writeRejection(w http.ResponseWriter, r *rejection, logger *logrus.Logger) {
	writeJSON(w, r.status, ErrorBody{Reason: r.reason}, logger)
}
