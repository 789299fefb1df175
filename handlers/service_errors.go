package handlers

import (
	"errors"

	"net/http"

	"go.uber.org/zap"

	"github.com/llm-dev-ops/governance-gateway/services"
	"github.com/llm-dev-ops/governance-gateway/utils"
)

// HandleServiceError maps domain errors to HTTP responses
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	details := services.GetErrorDetails(err)

	var validationErr *utils.ValidationError
	switch {
	case errors.As(err, &validationErr):
		_ = utils.WriteBadRequest(w, validationErr.Message, validationErr.Details())

	case services.IsValidationError(err):
		_ = utils.WriteBadRequest(w, err.Error(), details)

	case services.IsNotFoundError(err):
		_ = utils.WriteNotFound(w, err.Error())

	case services.IsBreakerRejectedError(err):
		_ = utils.WriteServiceUnavailable(w, err.Error())

	case services.IsProviderError(err):
		_ = utils.WriteBadGateway(w, err.Error())

	case services.IsInternalError(err):
		logger.Error("internal server error", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "An internal error occurred")

	default:
		logger.Error("unhandled error type",
			zap.Error(err),
			zap.String("error_type", string(services.GetErrorType(err))))
		_ = utils.WriteInternalServerError(w, "An unexpected error occurred")
	}
}
