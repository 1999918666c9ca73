package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// v is the package-level singleton validator. It is initialised once at
// package load time. Custom tags are registered in init() before the first call to Struct.
var v = validator.New()

// ibanPattern accepts the IBAN shape only (country, check digits, 11-30 alphanumerics).
// The mod-97 checksum is not verified.
var ibanPattern = regexp.MustCompile(`^[A-Z]{2}[0-9]{2}[A-Z0-9]{11,30}$`)

func init() {
	// Empty values pass so the tag can sit behind required_if.
	_ = v.RegisterValidation("iban_shape", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if s == "" {
			return true
		}
		return IBANShaped(s)
	})
}

// IBANShaped reports whether s looks like an IBAN once spaces are removed.
func IBANShaped(s string) bool {
	return ibanPattern.MatchString(strings.ToUpper(strings.ReplaceAll(s, " ", "")))
}

// Struct validates the given struct using its validate tags.
// Returns a human-readable error string or nil.
func Struct(s interface{}) error {
	if err := v.Struct(s); err != nil {
		ve, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		var msgs []string
		for _, fe := range ve {
			msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
	return nil
}
