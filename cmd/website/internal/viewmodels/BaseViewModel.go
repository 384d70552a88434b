package viewmodels

import (
	"errors"
	"net/http"

	"github.com/adampresley/adamgokit/rendering"
	"github.com/adampresley/fotofacil/pkg/access"
	"github.com/adampresley/fotofacil/pkg/models"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type BaseViewModel struct {
	Message            string
	IsError            bool
	IsWarning          bool
	IsSuccess          bool
	IsHtmx             bool
	JavascriptIncludes []rendering.JavascriptInclude
	Identity           *models.Identity
	FieldErrors        map[string]string
}

/*
GetIdentityFromContext returns the identity the access middleware resolved
for this request. Anonymous requests get an empty identity.
*/
func GetIdentityFromContext(r *http.Request) *models.Identity {
	if result := access.IdentityFromContext(r.Context()); result != nil {
		return result
	}

	return &models.Identity{}
}

// SetFieldErrors copies validation failures onto the view model, keyed by field name.
func (m *BaseViewModel) SetFieldErrors(err error) bool {
	var validationErrors validation.Errors

	if !errors.As(err, &validationErrors) {
		return false
	}

	m.FieldErrors = map[string]string{}

	for field, fieldErr := range validationErrors {
		m.FieldErrors[field] = fieldErr.Error()
	}

	m.IsWarning = true
	m.Message = "Corrija os campos destacados."
	return true
}
