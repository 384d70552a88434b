package photographer

import (
	"errors"
	"strconv"
	"strings"
	"time"

	internalmodels "github.com/adampresley/fotofacil/cmd/website/internal/models"
	"github.com/adampresley/fotofacil/pkg/services"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

/*
albumInputFromForm converts the raw form strings. Fields that cannot be
parsed are reported the same way as validation failures so the form shows
them next to the field.
*/
func albumInputFromForm(form internalmodels.AlbumFormValues) (services.AlbumInput, error) {
	result := services.AlbumInput{
		Name:           form.Name,
		ClientEmail:    form.ClientEmail,
		AccessPassword: strings.TrimSpace(form.AccessPassword),
		ExtraPhotoCost: form.ExtraPhotoCost,
	}

	parseErrors := validation.Errors{}

	if n, ok := parseCount(form.SelectionLimit); ok {
		result.SelectionLimit = n
	} else {
		parseErrors["SelectionLimit"] = errors.New("informe um número inteiro")
	}

	if n, ok := parseCount(form.CourtesyPhotoCount); ok {
		result.CourtesyPhotoCount = n
	} else {
		parseErrors["CourtesyPhotoCount"] = errors.New("informe um número inteiro")
	}

	if value := strings.TrimSpace(form.ExpiresAt); value != "" {
		expiresAt, err := time.ParseInLocation(internalmodels.FormDateFormat, value, time.Local)
		if err != nil {
			parseErrors["ExpiresAt"] = errors.New("data inválida")
		} else {
			result.ExpiresAt = &expiresAt
		}
	}

	if len(parseErrors) > 0 {
		return result, parseErrors
	}

	return result, nil
}

// parseCount reads an optional whole number. Blank reads as zero.
func parseCount(value string) (int, bool) {
	value = strings.TrimSpace(value)

	if value == "" {
		return 0, true
	}

	n, err := strconv.Atoi(value)
	return n, err == nil
}
