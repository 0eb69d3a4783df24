// Package errors provides structured errors for the chronicle presentation API.
package errors

import (
	stderrors "errors"
	"net/http"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unclassified failure.
	CodeUnknown Code = "UNKNOWN"

	// CodeSimulationUnavailable marks a failed or unreachable simulation service call.
	CodeSimulationUnavailable Code = "SIMULATION_UNAVAILABLE"
	// CodeAdvanceInFlight rejects an advance while another one runs.
	CodeAdvanceInFlight Code = "ADVANCE_IN_FLIGHT"
	// CodeTimelineNotLive rejects an advance while browsing history.
	CodeTimelineNotLive Code = "TIMELINE_NOT_LIVE"

	// CodeNotificationNotFound marks an unknown notification or toast id.
	CodeNotificationNotFound Code = "NOTIFICATION_NOT_FOUND"
	// CodeInvalidFilter marks a malformed filter mode or archive expression.
	CodeInvalidFilter Code = "INVALID_FILTER"
	// CodeInvalidArgument marks any other malformed request input.
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
)

// HTTPStatus returns the response status for the code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeSimulationUnavailable:
		return http.StatusBadGateway
	case CodeAdvanceInFlight, CodeTimelineNotLive:
		return http.StatusConflict
	case CodeNotificationNotFound:
		return http.StatusNotFound
	case CodeInvalidFilter, CodeInvalidArgument:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// GetCode extracts the code from an error chain, or CodeUnknown.
func GetCode(err error) Code {
	var domainErr *Error
	if stderrors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeUnknown
}
