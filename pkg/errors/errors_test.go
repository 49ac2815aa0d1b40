package errors

import (
	"errors"
	"testing"
)

func TestWrap(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		msg      string
		expected string
	}{
		{
			name:     "wrap nil error",
			err:      nil,
			msg:      "additional context",
			expected: "",
		},
		{
			name:     "wrap standard error",
			err:      errors.New("original error"),
			msg:      "additional context",
			expected: "additional context: original error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Wrap(tt.err, tt.msg)
			if tt.err == nil {
				if result != nil {
					t.Errorf("Expected nil, got %v", result)
				}
				return
			}
			if result.Error() != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, result.Error())
			}
			if !errors.Is(result, tt.err) {
				t.Errorf("Expected wrapped error to contain original error")
			}
		})
	}
}

func TestWrapf(t *testing.T) {
	base := errors.New("original error")
	result := Wrapf(base, "failed to process %s", "file.csv")
	expected := "failed to process file.csv: original error"
	if result.Error() != expected {
		t.Errorf("Expected %q, got %q", expected, result.Error())
	}
	if !errors.Is(result, base) {
		t.Errorf("Expected wrapped error to contain original error")
	}
	if Wrapf(nil, "context %d", 1) != nil {
		t.Errorf("Expected nil for nil error")
	}
}

func TestIngestSentinelsMatchParse(t *testing.T) {
	if !errors.Is(ErrNoDelimiter, ErrParse) {
		t.Errorf("ErrNoDelimiter should match ErrParse")
	}
	if !errors.Is(ErrNoDatetimeColumn, ErrParse) {
		t.Errorf("ErrNoDatetimeColumn should match ErrParse")
	}
}
