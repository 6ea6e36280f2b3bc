package services

import "net/http"

// ServerError is a caller-correctable failure that carries the HTTP status
// it should be reported with.
type ServerError struct {
	Message string `json:"message"`
	Code    int    `json:"status"`
}

func (e *ServerError) Error() string {
	return e.Message
}

func badRequest(msg string) *ServerError {
	return &ServerError{Message: msg, Code: http.StatusBadRequest}
}

var (
	ErrTableOrClientMissing = badRequest("table or client doesn't exist")
	ErrTableReserved        = badRequest("table is reserved for the time specified")
	ErrInvalidTimeRange     = badRequest("start time must be before end time")
)
