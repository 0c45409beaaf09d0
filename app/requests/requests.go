// Package requests binds and validates request bodies
package requests

import (
	"github.com/gin-gonic/gin"
	"github.com/thedevsaddam/govalidator"

	"riciti/pkg/response"
)

// ValidatorFunc validates a bound request and returns per-field errors
type ValidatorFunc func(interface{}, *gin.Context) map[string][]string

// Validate binds the JSON body into obj and runs handler. It answers the
// error itself and returns false when the request must stop.
func Validate(c *gin.Context, obj interface{}, handler ValidatorFunc) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		response.BadRequest(c, err, "Request body must be valid JSON")
		return false
	}

	if errs := handler(obj, c); len(errs) > 0 {
		response.ValidationError(c, errs)
		return false
	}
	return true
}

// validate runs govalidator over a struct pointer keyed by json tags
func validate(data interface{}, rules govalidator.MapData, messages govalidator.MapData) map[string][]string {
	opts := govalidator.Options{
		Data:          data,
		Rules:         rules,
		TagIdentifier: "json",
		Messages:      messages,
	}
	return govalidator.New(opts).ValidateStruct()
}

// addError appends msg under field, creating the map when needed
func addError(errs map[string][]string, field, msg string) map[string][]string {
	if errs == nil {
		errs = map[string][]string{}
	}
	errs[field] = append(errs[field], msg)
	return errs
}
