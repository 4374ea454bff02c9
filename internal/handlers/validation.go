package handlers

import (
	"github.com/gin-gonic/gin"

	appErrors "github.com/mysterymsg/mystery/pkg/errors"
	"github.com/mysterymsg/mystery/pkg/response"
	appValidator "github.com/mysterymsg/mystery/pkg/validator"
)

// bindJSON decodes the request body into dest. Field rules are left to the services,
// which trim input before validating it.
func bindJSON[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid JSON payload"))
		return false
	}
	return true
}

// bindAndValidate binds the JSON payload into dest and runs struct validation rules.
// When validation fails, an error response is automatically written and false is returned.
func bindAndValidate[T any](c *gin.Context, dest *T) bool {
	if !bindJSON(c, dest) {
		return false
	}

	if err := appValidator.ValidateStruct(dest); err != nil {
		response.Error(c, appErrors.NewValidation(appValidator.Describe(err)))
		return false
	}

	return true
}
