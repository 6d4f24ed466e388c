package handler

import (
	stderrors "errors"
	"net/http"

	"github.com/jwalitptl/booking-api/pkg/errors"
)

type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Hint    string      `json:"hint,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// StatusFromError maps an error kind to the HTTP status and response
// body handlers return. Unclassified errors collapse to a plain 500 so
// internals never leak to the client.
func StatusFromError(err error) (int, *Response) {
	var ae *errors.AppError
	if !stderrors.As(err, &ae) {
		return http.StatusInternalServerError, NewErrorResponse("internal server error")
	}

	resp := NewErrorResponse(ae.Message)
	resp.Hint = ae.Hint

	switch ae.Kind {
	case errors.KindValidation, errors.KindPastSlot:
		return http.StatusBadRequest, resp
	case errors.KindPermission:
		return http.StatusForbidden, resp
	case errors.KindNotFound:
		return http.StatusNotFound, resp
	case errors.KindSlotOccupied, errors.KindDuplicate, errors.KindInvalidTransition:
		return http.StatusConflict, resp
	case errors.KindForeignKey:
		return http.StatusUnprocessableEntity, resp
	case errors.KindSchemaMissing:
		return http.StatusServiceUnavailable, resp
	}
	return http.StatusInternalServerError, NewErrorResponse("internal server error")
}
