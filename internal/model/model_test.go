package model

import (
	"errors"
	"testing"
)

func TestNewQueueEntry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		url       string
		timestamp string
		domain    string
		wantErr   error
	}{
		{"valid entry", "http://www.example.com/", "19990101000000", "example.com", nil},
		{"empty url", "", "19990101000000", "example.com", ErrEmptyURL},
		{"short timestamp", "http://www.example.com/", "1999", "example.com", ErrInvalidTimestamp},
		{"non-digit timestamp", "http://www.example.com/", "1999010100000x", "example.com", ErrInvalidTimestamp},
		{"empty domain", "http://www.example.com/", "19990101000000", "", ErrEmptyDomain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			entry, err := NewQueueEntry(tt.url, tt.timestamp, tt.domain)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
			if tt.wantErr != nil {
				return
			}
			if entry.Status != StatusPending {
				t.Errorf("expected pending status, got %s", entry.Status)
			}
			if entry.Key() != (EntryKey{URL: tt.url, Timestamp: tt.timestamp}) {
				t.Errorf("unexpected key %+v", entry.Key())
			}
		})
	}
}

func TestParseStatus(t *testing.T) {
	t.Parallel()

	for _, s := range AllStatuses {
		got, err := ParseStatus(s.String())
		if err != nil {
			t.Fatalf("ParseStatus(%q) returned error: %v", s, err)
		}
		if got != s {
			t.Errorf("expected %s, got %s", s, got)
		}
	}

	if _, err := ParseStatus("running"); err == nil {
		t.Error("expected error for unknown status")
	}

	if StatusPending.IsTerminal() {
		t.Error("pending must not be terminal")
	}
	if !StatusCompleted.IsTerminal() || !StatusFailed.IsTerminal() {
		t.Error("completed and failed must be terminal")
	}
}

func TestAssetKindModifier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind AssetKind
		want string
	}{
		{KindPage, "id_"},
		{KindImage, "im_"},
		{KindStylesheet, "cs_"},
		{KindScript, "js_"},
		{KindOther, ""},
	}

	for _, tt := range tests {
		if got := tt.kind.Modifier(); got != tt.want {
			t.Errorf("%s.Modifier() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestNewAsset(t *testing.T) {
	t.Parallel()

	t.Run("starts with download count of one", func(t *testing.T) {
		t.Parallel()

		a, err := NewAsset("https://web.archive.org/web/19990101000000im_/http://example.com/a.png",
			"http://example.com/a.png", "abc123", "/tmp/a.png", 10)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if a.DownloadCount != 1 {
			t.Errorf("expected download count 1, got %d", a.DownloadCount)
		}
		a.Touch()
		if a.DownloadCount != 2 {
			t.Errorf("expected download count 2 after Touch, got %d", a.DownloadCount)
		}
		if err := a.Validate(); err != nil {
			t.Errorf("unexpected validation error: %v", err)
		}
	})

	t.Run("rejects empty hash", func(t *testing.T) {
		t.Parallel()

		_, err := NewAsset("w", "o", "", "/tmp/a.png", 10)
		if !errors.Is(err, ErrEmptyHash) {
			t.Errorf("expected ErrEmptyHash, got %v", err)
		}
	})

	t.Run("rejects empty local path", func(t *testing.T) {
		t.Parallel()

		_, err := NewAsset("w", "o", "abc", "", 10)
		if !errors.Is(err, ErrEmptyLocalPath) {
			t.Errorf("expected ErrEmptyLocalPath, got %v", err)
		}
	})

	t.Run("validate rejects zero download count", func(t *testing.T) {
		t.Parallel()

		a := &Asset{WaybackURL: "w", ContentHash: "h", LocalPath: "p"}
		if !errors.Is(a.Validate(), ErrInvalidDownloadCount) {
			t.Errorf("expected ErrInvalidDownloadCount, got %v", a.Validate())
		}
	})
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	ts, err := ParseTimestamp("20010911083000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts.Year() != 2001 || ts.Month() != 9 || ts.Day() != 11 || ts.Hour() != 8 || ts.Minute() != 30 {
		t.Errorf("unexpected parsed time %v", ts)
	}

	if _, err := ParseTimestamp("2001"); !errors.Is(err, ErrInvalidTimestamp) {
		t.Errorf("expected ErrInvalidTimestamp, got %v", err)
	}
}
