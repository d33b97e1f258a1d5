package utils

import (
	"encoding/json"
	"net/http"

	"kpiengine/apperrors"
	"kpiengine/models"

	"github.com/go-playground/validator/v10"
)

var Validate *validator.Validate

func init() {
	Validate = validator.New()
}

// DecodeAndValidate decodes the request body into a structure and validates it
func DecodeAndValidate(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		HandleMessageResponse(w, err.Error(), http.StatusBadRequest)
		return err
	}
	if err := Validate.Struct(v); err != nil {
		validationErrors := err.(validator.ValidationErrors)
		errorMessages := make(map[string]string)

		for _, e := range validationErrors {
			errorMessages[e.Field()] = e.Tag()
		}
		HandleValidationResponse(w, http.StatusBadRequest, errorMessages)
		return err
	}
	return nil
}

// HandleError maps the engine's error taxonomy onto HTTP status codes.
// Concurrency conflicts are flagged retryable so callers can re-issue the
// same operation.
func HandleError(w http.ResponseWriter, err error) {
	kind, ok := apperrors.KindOf(err)
	if !ok {
		HandleMessageResponse(w, err.Error(), http.StatusInternalServerError)
		return
	}
	switch kind {
	case apperrors.KindValidation:
		HandleMessageResponse(w, err.Error(), http.StatusUnprocessableEntity)
	case apperrors.KindStateConflict:
		HandleMessageResponse(w, err.Error(), http.StatusConflict)
	case apperrors.KindConcurrencyConflict:
		writeJSON(w, http.StatusConflict, models.NewRetryableResponse(http.StatusConflict, err.Error()))
	case apperrors.KindNotFound:
		HandleMessageResponse(w, err.Error(), http.StatusNotFound)
	default:
		HandleMessageResponse(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleMessageResponse handles both success and error responses
func HandleMessageResponse(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, models.NewMessageResponse(statusCode, message))
}

// HandleValidationResponse handles validation errors response for struct validation
func HandleValidationResponse(w http.ResponseWriter, statusCode int, validationErrors interface{}) {
	writeJSON(w, statusCode, models.NewValidationResponse(statusCode, validationErrors))
}

// HandleDataResponse handles success responses with data
func HandleDataResponse(w http.ResponseWriter, message string, data interface{}, statusCode int) {
	writeJSON(w, statusCode, models.NewDataResponse(statusCode, message, data))
}

func writeJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}
