package validation

import (
	"net/url"
	"strings"

	apperrors "go-wsi-cohort/internal/errors"
)

// URLValidator checks slide server base URLs and slide locations
type URLValidator struct {
	allowedSchemes []string
	allowedHosts   []string
}

// NewURLValidator creates a new URL validator with default settings
func NewURLValidator() *URLValidator {
	return &URLValidator{
		allowedSchemes: []string{"http", "https"},
		allowedHosts:   []string{}, // empty means all hosts allowed
	}
}

// NewURLValidatorWithOptions creates a URL validator with custom options
func NewURLValidatorWithOptions(schemes []string, hosts []string) *URLValidator {
	return &URLValidator{
		allowedSchemes: schemes,
		allowedHosts:   hosts,
	}
}

// ValidateServerURL validates a slide server base URL
func (v *URLValidator) ValidateServerURL(serverURL string) error {
	if strings.TrimSpace(serverURL) == "" {
		return apperrors.NewValidationError("URL cannot be empty", nil)
	}

	parsedURL, err := url.Parse(serverURL)
	if err != nil {
		return apperrors.NewValidationError("Invalid URL format", err)
	}

	if !v.isSchemeAllowed(parsedURL.Scheme) {
		return apperrors.NewValidationError("URL scheme not allowed", nil)
	}

	if parsedURL.Host == "" {
		return apperrors.NewValidationError("URL must have a valid host", nil)
	}

	if !v.isHostAllowed(parsedURL.Host) && !v.isHostAllowed(parsedURL.Hostname()) {
		return apperrors.NewValidationError("URL host not allowed", nil)
	}

	return nil
}

// isSchemeAllowed checks if the URL scheme is in the allowed list
func (v *URLValidator) isSchemeAllowed(scheme string) bool {
	for _, allowed := range v.allowedSchemes {
		if scheme == allowed {
			return true
		}
	}
	return false
}

// isHostAllowed checks if the URL host is in the allowed list.
// Entries may name a bare host or host:port. Returns true if no host
// restrictions are set (empty allowedHosts)
func (v *URLValidator) isHostAllowed(host string) bool {
	if len(v.allowedHosts) == 0 {
		return true
	}
	for _, allowed := range v.allowedHosts {
		if strings.EqualFold(host, allowed) {
			return true
		}
	}
	return false
}

// ValidateSlideLocation accepts plain paths, file URIs, az://container/blob
// locations and http(s) URLs passing ValidateServerURL
func (v *URLValidator) ValidateSlideLocation(location string) error {
	if strings.TrimSpace(location) == "" {
		return apperrors.NewValidationError("slide location cannot be empty", nil)
	}

	parsedURL, err := url.Parse(location)
	if err != nil {
		return apperrors.NewValidationError("Invalid slide location", err)
	}

	switch strings.ToLower(parsedURL.Scheme) {
	case "":
		return nil
	case "file":
		if parsedURL.Path == "" {
			return apperrors.NewValidationError("file location must have a path", nil)
		}
		return nil
	case "az", "azure":
		if parsedURL.Host == "" || strings.Trim(parsedURL.Path, "/") == "" {
			return apperrors.NewValidationError("blob location must name a container and a blob", nil)
		}
		return nil
	}
	return v.ValidateServerURL(location)
}
