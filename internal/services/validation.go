package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/peerpay/backend/internal/models"
	"github.com/shopspring/decimal"
)

const maxBodyBytes = 1_048_576 // 1 MB

var expiryPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])/[0-9]{2}$`)

// ErrorResponse represents error response structure
type ErrorResponse struct {
	Error   string            `json:"error"`             // Error message
	Kind    ErrorKind         `json:"kind,omitempty"`    // Error class
	Code    string            `json:"code,omitempty"`    // Specific error code
	Details map[string]string `json:"details,omitempty"` // Validation details
}

// ValidationHelper provides shared validation functionality
type ValidationHelper struct {
	validator *validator.Validate
	now       func() time.Time
}

// NewValidationHelper creates a new validation helper
func NewValidationHelper() *ValidationHelper {
	v := validator.New()
	// Registration only fails for an empty tag or nil func.
	_ = v.RegisterValidation("expiry", func(fl validator.FieldLevel) bool {
		return expiryPattern.MatchString(fl.Field().String())
	})
	return &ValidationHelper{
		validator: v,
		now:       time.Now,
	}
}

// ValidateStruct validates a struct and returns validation errors
func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}

// ValidateAmount enforces a positive amount with at most two decimal places.
func (vh *ValidationHelper) ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() || !amount.Equal(amount.Truncate(2)) {
		return ErrAmountInvalid
	}
	return nil
}

// ValidateInstrument checks card format. Test-mode accounts only need the
// syntax to be right; live-mode cards must also pass the Luhn check and not
// be expired.
func (vh *ValidationHelper) ValidateInstrument(inst *models.FundingInstrument, mode models.AccountMode) error {
	if inst.IsEmpty() {
		return ErrInvalidInstrument.WithMessage("Card details are required")
	}
	if err := vh.validator.Struct(inst); err != nil {
		return ErrInvalidInstrument.Wrap(err)
	}
	if mode != models.AccountModeLive {
		return nil
	}
	if err := vh.validator.Var(inst.CardNumber, "credit_card"); err != nil {
		return ErrInvalidInstrument.WithMessage("Card number failed checksum validation").Wrap(err)
	}
	expiresAt, err := inst.ExpiresAt()
	if err != nil {
		return ErrInvalidInstrument.Wrap(err)
	}
	if !vh.now().Before(expiresAt) {
		return ErrInvalidInstrument.WithMessage("Card has expired")
	}
	return nil
}

// DecodeJSONBody reads exactly one JSON object from the request body.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return ErrInvalidRequest.WithMessage("Invalid request body").Wrap(err)
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return ErrInvalidRequest.WithMessage("Request body must only contain a single JSON object")
	}
	return nil
}

// SendErrorResponse sends a JSON error response
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	errorResp := ErrorResponse{Error: message}
	errorResp.Details = validationDetails(validationErr)
	WriteJSON(w, statusCode, errorResp)
}

// SendAppError maps any error onto the error taxonomy and writes it.
// Internal errors are logged with their cause and reported generically.
func SendAppError(w http.ResponseWriter, err error) {
	appErr := AsAppError(err)
	if appErr.Kind == KindInternal {
		log.Printf("[HTTP] Internal error: %v", err)
	}
	WriteJSON(w, appErr.StatusCode(), ErrorResponse{
		Error:   appErr.Message,
		Kind:    appErr.Kind,
		Code:    appErr.Code,
		Details: validationDetails(appErr.Err),
	})
}

// WriteJSON writes v with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[HTTP] Failed to encode response: %v", err)
	}
}

func validationDetails(err error) map[string]string {
	var validationErrs validator.ValidationErrors
	if err == nil || !errors.As(err, &validationErrs) {
		return nil
	}
	details := make(map[string]string, len(validationErrs))
	for _, fe := range validationErrs {
		details[fe.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", fe.Tag())
	}
	return details
}
