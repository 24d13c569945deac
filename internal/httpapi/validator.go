package httpapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// validateRequest runs struct-tag validation and writes a 400 on failure.
// Returns false when the request was rejected.
func validateRequest(w http.ResponseWriter, req any) bool {
	if err := validate.Struct(req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation failed: "+err.Error())
		return false
	}
	return true
}
