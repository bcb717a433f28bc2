package errors

import (
	"testing"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"https", "https://example.com/style.json", false},
		{"http", "http://localhost:8080/style.json", false},

		{"empty", "", true},
		{"ftp", "ftp://example.com", true},
		{"file", "file:///etc/passwd", true},
		{"javascript", "javascript:alert(1)", true},
		{"no scheme", "example.com", true},
		{"no host", "https:///style.json", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidURL) {
				t.Errorf("ValidateURL(%q) returned wrong error code: %v", tt.input, err)
			}
		})
	}
}

func TestValidateTileURL(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"xyz template", "https://tile.example.com/{z}/{x}/{y}.png", false},
		{"mbtiles", "mbtiles:///data/world.mbtiles", false},

		{"mbtiles without path", "mbtiles://", true},
		{"file", "file:///tiles/{z}/{x}/{y}.png", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTileURL(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTileURL(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateFilename(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"png", "map.png", false},
		{"custom", "berlin-a3.pdf", false},

		{"empty", "", true},
		{"too long", string(make([]byte, 300)), true},
		{"slash", "out/map.png", true},
		{"backslash", "out\\map.png", true},
		{"parent", "..", true},
		{"hidden", ".map.png", true},
		{"newline", "map\n.png", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFilename(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFilename(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidPath) {
				t.Errorf("ValidateFilename(%q) returned wrong error code: %v", tt.input, err)
			}
		})
	}
}

func TestValidateToken(t *testing.T) {
	if err := ValidateToken(""); err != nil {
		t.Errorf("empty token should be allowed, got %v", err)
	}
	if err := ValidateToken("pk.abc123"); err != nil {
		t.Errorf("ValidateToken() = %v", err)
	}
	if err := ValidateToken("pk abc"); err == nil {
		t.Error("token with space should be rejected")
	}
}

func TestErrorCodesAreUnique(t *testing.T) {
	codes := []Code{
		ErrCodeInvalidInput,
		ErrCodeInvalidFormat,
		ErrCodeInvalidDPI,
		ErrCodeInvalidPageSize,
		ErrCodeInvalidStyle,
		ErrCodeInvalidURL,
		ErrCodeInvalidPath,
		ErrCodeNotFound,
		ErrCodeNetwork,
		ErrCodeRateLimited,
		ErrCodeTimeout,
		ErrCodeCanceled,
		ErrCodeBusy,
		ErrCodeRenderFailed,
		ErrCodeEncodeFailed,
		ErrCodeDeliveryFailed,
		ErrCodeInternal,
		ErrCodeUnsupported,
	}

	seen := make(map[Code]bool)
	for _, code := range codes {
		if seen[code] {
			t.Errorf("Duplicate error code: %s", code)
		}
		seen[code] = true
	}
}
