package mpesa

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	phoneNoise   = regexp.MustCompile(`[\s\-()]`)
	phonePattern = regexp.MustCompile(`^254[017]\d{8}$`)
)

// NormalizePhoneNumber converts +254..., 254..., 07..., 01..., 7... and
// 1... forms to 254XXXXXXXXX.
func NormalizePhoneNumber(phone string) (string, error) {
	cleaned := phoneNoise.ReplaceAllString(phone, "")
	cleaned = strings.TrimPrefix(cleaned, "+")

	if strings.HasPrefix(cleaned, "0") && len(cleaned) == 10 {
		cleaned = "254" + cleaned[1:]
	}

	if (strings.HasPrefix(cleaned, "7") || strings.HasPrefix(cleaned, "1")) && len(cleaned) == 9 {
		cleaned = "254" + cleaned
	}

	if !phonePattern.MatchString(cleaned) {
		return "", fmt.Errorf("%w: expected 254XXXXXXXXX", ErrInvalidPhoneFormat)
	}
	return cleaned, nil
}

// MaskPhone keeps the country code and last three digits for logs
func MaskPhone(phone string) string {
	if len(phone) < 6 {
		return "***"
	}
	return phone[:3] + strings.Repeat("*", len(phone)-6) + phone[len(phone)-3:]
}
