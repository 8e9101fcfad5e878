package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestSecureHandlerMasksSensitiveKeys(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		key      string
		value    string
		wantMask bool
	}{
		{"cookie", "cookie", "a=b", true},
		{"cookie uppercase", "Cookie", "a=b", true},
		{"archive user cookie", "logged-in-user", "someone@example.com", true},
		{"archive sig cookie", "logged-in-sig", "abc", true},
		{"archive env var", "IA_LOGGED_IN_SIG", "abc", true},
		{"keyword in key", "archive_auth_header", "zzz-value", true},
		{"password", "password", "hunter2", true},
		{"url is kept", "url", "http://www.example.com/", false},
		{"timestamp is kept", "timestamp", "19990101000000", false},
		{"primary key is kept", "primary_key", "42", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := NewSecureLogger(&buf, false)
			logger.Info("test", tt.key, tt.value)

			out := buf.String()
			if tt.wantMask {
				if !strings.Contains(out, MaskValue) || strings.Contains(out, tt.value) {
					t.Errorf("expected %s to be masked, got %q", tt.key, out)
				}
				return
			}
			if strings.Contains(out, MaskValue) {
				t.Errorf("expected %s to be kept, got %q", tt.key, out)
			}
		})
	}
}

func TestSecureHandlerMasksSensitiveValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		value    string
		wantMask bool
	}{
		{"bearer token", "Bearer abc.def", true},
		{"basic auth", "Basic dXNlcjpwYXNz", true},
		{"cookie header", "logged-in-user=me; logged-in-sig=xyz", true},
		{"jwt", "eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiIxIn0.sig", true},
		{"opaque token", "AbCdEfGhIjKlMnOpQrStUvWxYz0123456789", true},
		{"sha256 digest", strings.Repeat("ab", 32), false},
		{"plain text", "asset capture failed", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := isSensitiveValue(tt.value); got != tt.wantMask {
				t.Errorf("isSensitiveValue(%q) = %v, want %v", tt.value, got, tt.wantMask)
			}
		})
	}
}

func TestSecureLoggerLevels(t *testing.T) {
	t.Parallel()

	t.Run("info by default", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := NewSecureLogger(&buf, false)
		logger.Debug("hidden")
		logger.Info("shown")

		if strings.Contains(buf.String(), "hidden") {
			t.Error("expected debug to be suppressed")
		}
		if !strings.Contains(buf.String(), "shown") {
			t.Error("expected info to be logged")
		}
	})

	t.Run("debug when verbose", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		NewSecureLogger(&buf, true).Debug("visible")
		if !strings.Contains(buf.String(), "visible") {
			t.Error("expected debug to be logged")
		}
	})
}

func TestSecureHandlerWithAttrsAndGroups(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewSecureJSONLogger(&buf, false).
		With("cookie", "logged-in-sig=abc").
		WithGroup("request")
	logger.Info("fetch", slog.Group("headers", slog.String("authorization", "Basic abc")), "url", "http://www.example.com/")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if record["cookie"] != MaskValue {
		t.Errorf("expected cookie masked, got %v", record["cookie"])
	}

	request, ok := record["request"].(map[string]any)
	if !ok {
		t.Fatalf("expected request group, got %v", record)
	}
	headers, ok := request["headers"].(map[string]any)
	if !ok {
		t.Fatalf("expected headers group, got %v", request)
	}
	if headers["authorization"] != MaskValue {
		t.Errorf("expected authorization masked, got %v", headers["authorization"])
	}
	if request["url"] != "http://www.example.com/" {
		t.Errorf("expected url kept, got %v", request["url"])
	}
}

func TestNewSecureHandlerNilHandler(t *testing.T) {
	t.Parallel()

	if h := NewSecureHandler(nil); h.handler == nil {
		t.Error("expected fallback handler")
	}
}
