package shared

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// Shared validator instance. Validator caches struct metadata, so all
// handlers reuse a single one.
var validate = validator.New()

// DecodeJSON decodes the request body into v. Handlers translate a
// failure here into a 400 with a validation error code rather than
// exposing the decoder's message.
func DecodeJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// ValidateRequest checks a decoded request body against its `validate`
// struct tags. A type can opt out of tag-based validation by
// implementing Validate() error, which then runs instead.
func ValidateRequest(v interface{}) error {
	if custom, ok := v.(interface{ Validate() error }); ok {
		return custom.Validate()
	}
	return validate.Struct(v)
}
