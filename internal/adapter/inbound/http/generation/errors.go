package generationhttp

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/seedai/server/internal/model"
	"github.com/seedai/server/internal/shared/response"
)

const (
	codeValidation       = "VALIDATION_ERROR"
	codeTransportFailure = "TRANSPORT_FAILURE"
	codeProviderRejected = "PROVIDER_REJECTED"
	codeMalformed        = "MALFORMED_RESPONSE"
)

var errorMappings = []response.ErrorMapping{
	{Err: model.ErrValidation, Status: http.StatusBadRequest, Code: codeValidation, Message: "invalid input", Details: validationDetails},
	{Err: model.ErrTransportFailure, Status: http.StatusInternalServerError, Code: codeTransportFailure, Message: "generation service unavailable"},
	{Err: model.ErrProviderRejected, Status: http.StatusInternalServerError, Code: codeProviderRejected, Message: "generation service rejected the request", Details: providerDetails},
	{Err: model.ErrMalformedResponse, Status: http.StatusInternalServerError, Code: codeMalformed, Message: "generation service returned an unexpected response"},
}

func handleError(c *gin.Context, err error) {
	response.HandleErrorWithDefault(c, err, errorMappings)
}

func validationDetails(err error) any {
	var many model.ValidationErrors
	if errors.As(err, &many) {
		return many
	}
	var one *model.ValidationError
	if errors.As(err, &one) && one.Field != "" {
		return []*model.ValidationError{one}
	}
	return nil
}

func providerDetails(err error) any {
	var pe *model.ProviderError
	if !errors.As(err, &pe) {
		return nil
	}
	return gin.H{
		"provider_code":    pe.Code,
		"provider_message": pe.Message,
	}
}
