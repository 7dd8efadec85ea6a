package errors

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		contains []string
	}{
		{
			name:     "open failure with cause",
			err:      NewOpenFailure("slide-1.svs", "cannot open image", fmt.Errorf("no such file")),
			contains: []string{"open_failure", "cannot open image", "no such file"},
		},
		{
			name:     "field error names the field",
			err:      NewFieldError("pixel_width_um", "calibration unavailable", nil),
			contains: []string{"field_extraction[pixel_width_um]", "calibration unavailable"},
		},
		{
			name:     "export error",
			err:      NewExportError("write failed", nil),
			contains: []string{"export: write failed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, want := range tt.contains {
				if !strings.Contains(msg, want) {
					t.Errorf("Expected %q to contain %q", msg, want)
				}
			}
		})
	}
}

func TestIsType_Wrapped(t *testing.T) {
	err := fmt.Errorf("export step: %w", NewExportError("disk full", nil))

	if !IsType(err, ErrorTypeExport) {
		t.Error("Expected wrapped export error to be detected")
	}
	if IsType(err, ErrorTypeConfiguration) {
		t.Error("Did not expect configuration type")
	}
	if IsType(context.Canceled, ErrorTypeExport) {
		t.Error("Plain errors carry no type")
	}
}

func TestGetStatusCode(t *testing.T) {
	if code := GetStatusCode(NewValidationError("bad", nil)); code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", code)
	}
	if code := GetStatusCode(NewTimeoutError("slow", nil)); code != http.StatusGatewayTimeout {
		t.Errorf("Expected 504, got %d", code)
	}
	if code := GetStatusCode(fmt.Errorf("plain")); code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", code)
	}
}

func TestUnwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := NewConfigurationError("output directory not writable", cause)
	if err.Unwrap() != cause {
		t.Error("Expected Unwrap to return the cause")
	}
}
