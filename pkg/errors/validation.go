package errors

import (
	"net/url"
	"strings"
	"unicode"
)

// ValidateURL validates a style or TileJSON URL.
// Only http and https are accepted; local styles are passed as paths instead.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidURL, "URL cannot be empty")
	}

	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidURL, "URL must use http or https scheme")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return Wrap(ErrCodeInvalidURL, err, "malformed URL")
	}
	if u.Host == "" {
		return New(ErrCodeInvalidURL, "URL has no host")
	}

	return nil
}

// ValidateTileURL validates a tile template or archive reference.
// In addition to http(s), tile sources may point at a local MBTiles
// archive with the mbtiles:// scheme.
func ValidateTileURL(rawURL string) error {
	if strings.HasPrefix(rawURL, "mbtiles://") {
		if strings.TrimPrefix(rawURL, "mbtiles://") == "" {
			return New(ErrCodeInvalidURL, "mbtiles URL has no path")
		}
		return nil
	}
	// Templates contain braces which url.Parse accepts in paths but not hosts.
	return ValidateURL(rawURL)
}

// ValidateFilename validates the basename of a delivered artifact.
// It ensures the name cannot escape the download directory.
//
// Validation rules:
//   - Name cannot be empty
//   - Maximum length of 255 characters
//   - No control characters
//   - No path separators
//   - Not "." or ".." and not hidden
func ValidateFilename(name string) error {
	if name == "" {
		return New(ErrCodeInvalidPath, "filename cannot be empty")
	}

	const maxFilenameLength = 255
	if len(name) > maxFilenameLength {
		return New(ErrCodeInvalidPath, "filename too long (max %d characters)", maxFilenameLength)
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "filename contains invalid characters")
		}
	}

	if strings.ContainsAny(name, "/\\") {
		return New(ErrCodeInvalidPath, "filename cannot contain path separators")
	}

	if strings.HasPrefix(name, ".") {
		return New(ErrCodeInvalidPath, "filename cannot be hidden or relative")
	}

	return nil
}

// ValidateToken validates an access token before it is appended to
// outgoing tile requests.
func ValidateToken(token string) error {
	if token == "" {
		return nil
	}
	for _, r := range token {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return New(ErrCodeInvalidInput, "access token contains whitespace or control characters")
		}
	}
	return nil
}
