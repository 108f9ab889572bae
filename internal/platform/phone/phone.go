package phone

import (
	"errors"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

var ErrInvalidPhone = errors.New("invalid phone number")

// Normalize parsea raw (con o sin +código de país) y devuelve E.164.
// defaultRegion aplica cuando raw no trae prefijo internacional (ej: "BR").
// raw vacío devuelve "" sin error: el teléfono es opcional en todos los modelos.
func Normalize(raw, defaultRegion string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}

	region := strings.ToUpper(strings.TrimSpace(defaultRegion))
	if region == "" {
		region = "BR"
	}

	num, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return "", ErrInvalidPhone
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", ErrInvalidPhone
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}
