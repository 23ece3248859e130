package server

import (
	"errors"
	"net/http"

	"github.com/sjawhar/interview-agent/internal/candidates"
	"github.com/sjawhar/interview-agent/internal/protocol"
	"github.com/sjawhar/interview-agent/internal/session"
	"github.com/sjawhar/interview-agent/internal/storage"
)

// classify maps a domain error to its wire code and HTTP status.
func classify(err error) (protocol.ErrorCode, int) {
	var upstream *session.UpstreamError
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, storage.ErrNotFound), candidates.IsNotFound(err):
		return protocol.CodeNotFound, http.StatusNotFound
	case errors.Is(err, session.ErrInvalidState):
		return protocol.CodeInvalidState, http.StatusConflict
	case errors.Is(err, session.ErrBusy):
		return protocol.CodeBusy, http.StatusTooManyRequests
	case errors.Is(err, session.ErrOwnedElsewhere):
		return protocol.CodeOwnedElsewhere, http.StatusConflict
	case errors.Is(err, protocol.ErrBadMessage):
		return protocol.CodeBadRequest, http.StatusBadRequest
	case errors.As(err, &upstream):
		return protocol.CodeUpstreamFailure, http.StatusBadGateway
	default:
		return protocol.CodeInternal, http.StatusInternalServerError
	}
}

func errorMessage(err error) protocol.Error {
	code, _ := classify(err)
	return protocol.Error{Code: code, Message: err.Error()}
}
