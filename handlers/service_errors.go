package handlers

import (
	"errors"
	"net/http"

	"github.com/ryanvade/infra-demo-lnl/repositories"
	"github.com/ryanvade/infra-demo-lnl/services"
	"github.com/ryanvade/infra-demo-lnl/utils"
	"go.uber.org/zap"
)

// HandleServiceError maps domain errors to HTTP responses
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	var domainErr *services.DomainError
	switch {
	case services.IsNotFoundError(err), errors.Is(err, repositories.ErrNotFound):
		if err := utils.WriteNotFound(w, "Todo not found"); err != nil {
			logger.Error("failed to write not found response", zap.Error(err))
		}

	case services.IsValidationError(err):
		message := "Invalid request"
		if errors.As(err, &domainErr) {
			message = domainErr.Message
		}
		if err := utils.WriteBadRequest(w, message, services.GetErrorDetails(err)); err != nil {
			logger.Error("failed to write bad request response", zap.Error(err))
		}

	case services.IsInternalError(err):
		// the cause stays in the log
		logger.Error("internal server error", zap.Error(err))
		if err := utils.WriteInternalServerError(w, "An internal error occurred"); err != nil {
			logger.Error("failed to write internal error response", zap.Error(err))
		}

	default:
		logger.Error("unhandled error type",
			zap.Error(err),
			zap.String("error_type", string(services.GetErrorType(err))))
		if err := utils.WriteInternalServerError(w, "An unexpected error occurred"); err != nil {
			logger.Error("failed to write internal error response", zap.Error(err))
		}
	}
}

// HandleDecodeError reports a request body that could not be decoded.
// The client sees a fixed reason per failure class; the decoder error is only logged.
func HandleDecodeError(w http.ResponseWriter, err error, logger *zap.Logger) {
	logger.Debug("failed to decode request body", zap.Error(err))
	details := map[string]interface{}{"body": decodeFailureReason(err)}
	if err := utils.WriteBadRequest(w, "Invalid request body", details); err != nil {
		logger.Error("failed to write bad request response", zap.Error(err))
	}
}

func decodeFailureReason(err error) string {
	switch {
	case errors.Is(err, utils.ErrEmptyBody):
		return "must not be empty"
	case errors.Is(err, utils.ErrBodyTooLarge):
		return "is too large"
	case errors.Is(err, utils.ErrMultipleDocuments):
		return "must contain a single JSON document"
	default:
		return "must be valid JSON"
	}
}
