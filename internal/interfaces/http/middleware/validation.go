package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/taxcrm/backend/internal/interfaces/http/dto"
)

var (
	einPattern = regexp.MustCompile(`^\d{2}-?\d{7}$`)
	ssnPattern = regexp.MustCompile(`^\d{3}-?\d{2}-?\d{4}$`)
)

// SetupValidator configures the validator with JSON field names and the
// ein/ssn tags used by client identity fields
func SetupValidator() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("ein", matchPattern(einPattern))
		_ = v.RegisterValidation("ssn", matchPattern(ssnPattern))

		// Use JSON tag names for field names in errors
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
			}
			return name
		})
	}
}

func matchPattern(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}
}

// HandleValidationError writes a 400 listing every failed field. Errors
// that are not field validation failures, such as malformed JSON, produce
// an empty detail list.
func HandleValidationError(c *gin.Context, err error) {
	requestID := c.GetString("request_id")
	if requestID == "" {
		requestID = c.GetHeader(RequestIDHeader)
	}
	c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse("Request validation failed", requestID, validationDetails(err)))
}

func validationDetails(err error) []dto.ValidationDetail {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil
	}
	details := make([]dto.ValidationDetail, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		details = append(details, dto.ValidationDetail{Field: fe.Field(), Message: fieldMessage(fe)})
	}
	return details
}

// fieldMessages maps validator tags to client-facing text; %s is the tag param
var fieldMessages = map[string]string{
	"required":         "This field is required",
	"email":            "Invalid email format",
	"len":              "Must be exactly %s characters",
	"uuid":             "Invalid UUID format",
	"oneof":            "Must be one of: %s",
	"gte":              "Must be greater than or equal to %s",
	"lte":              "Must be less than or equal to %s",
	"gt":               "Must be greater than %s",
	"lt":               "Must be less than %s",
	"datetime":         "Must be a date in format %s",
	"e164":             "Invalid phone number",
	"ein":              "Must be an EIN in format 12-3456789",
	"ssn":              "Must be an SSN in format 123-45-6789",
	"required_without": "Required when %s is empty",
	"excluded_with":    "Cannot be combined with %s",
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min", "max":
		bound := "at least"
		if fe.Tag() == "max" {
			bound = "at most"
		}
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("Must be %s %s characters", bound, fe.Param())
		}
		return fmt.Sprintf("Must be %s %s", bound, fe.Param())
	}
	msg, ok := fieldMessages[fe.Tag()]
	if !ok {
		return "Invalid value"
	}
	if strings.Contains(msg, "%s") {
		return fmt.Sprintf(msg, fe.Param())
	}
	return msg
}
