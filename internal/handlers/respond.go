package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/chachabrian/mooveit-booking/internal/apperrors"
)

// respondError writes err as {"error", "code"} with the status its kind maps
// to. Store failures are not echoed to the client.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	status := apperrors.HTTPStatus(err)

	body := gin.H{"error": err.Error(), "code": apperrors.CodeOf(err)}
	if e, ok := apperrors.As(err); ok {
		body["error"] = e.Message
		if e.Field != "" {
			body["field"] = e.Field
		}
		if e.Kind == apperrors.KindStore {
			body["error"] = "Failed to process request"
			body["retryable"] = e.Retryable
		}
	} else {
		body["error"] = "Failed to process request"
	}

	c.JSON(status, body)
}

func badRequest(c *gin.Context, msg string) {
	respondError(c, apperrors.New(apperrors.CodeInvalidInput, msg))
}

// bindJSON decodes the body into dst and answers 400 when it cannot.
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return false
	}
	return true
}
