package validation

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateURL validates URLs handed to the browser auto-open helper,
// which passes them to an external command.
func ValidateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: %s (only http/https allowed)", parsed.Scheme)
	}

	if parsed.Host == "" {
		return fmt.Errorf("URL must have a valid hostname")
	}

	if strings.ContainsAny(rawURL, ";&|`$()<>\"'\\\n\r ") {
		return fmt.Errorf("URL contains dangerous character")
	}

	return nil
}
