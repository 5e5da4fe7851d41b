package notify

import (
	"errors"
	"strings"
	"testing"

	"github.com/rescale/webup/internal/alerts"
	"github.com/rescale/webup/internal/config"
)

type sent struct {
	kind, title, message string
}

func captureNotifier(enabled bool, alertErr error) (*Notifier, *[]sent) {
	var got []sent
	n := NewNotifier(&Config{Enabled: enabled}, nil)
	n.notify = func(title, message, icon string) error {
		got = append(got, sent{"notify", title, message})
		return nil
	}
	n.alert = func(title, message, icon string) error {
		got = append(got, sent{"alert", title, message})
		return alertErr
	}
	return n, &got
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Enabled {
		t.Error("Expected notifications to be opt-in")
	}
	if !cfg.ShowUploadsFinished {
		t.Error("Expected ShowUploadsFinished to be true by default")
	}
	if !cfg.ShowDownloadComplete {
		t.Error("Expected ShowDownloadComplete to be true by default")
	}
}

func TestFromConfig(t *testing.T) {
	appCfg := config.NewConfig()
	appCfg.NotificationsEnabled = true

	if !FromConfig(appCfg).Enabled {
		t.Error("FromConfig should carry notifications.enabled")
	}
	if FromConfig(nil).Enabled {
		t.Error("FromConfig(nil) should use defaults")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"short", 10, "short"},
		{"exactly10c", 10, "exactly10c"},
		{"this is a long string", 10, "this is..."},
		{"", 10, ""},
		{"abc", 3, "abc"},
		{"abcd", 3, "..."},
		{"héllo wörld", 5, "h..."},
		{"日本語テキスト", 7, "日..."},
	}

	for _, tt := range tests {
		result := truncate(tt.input, tt.maxLen)
		if result != tt.expected {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, result, tt.expected)
		}
	}
}

func TestShortenPath(t *testing.T) {
	tests := []struct {
		input string
		short bool // expect it to be shortened
	}{
		{"/short/path", false},
		{"/a/very/long/path/that/exceeds/the/maximum/length/for/notification/display/file.txt", true},
	}

	for _, tt := range tests {
		result := shortenPath(tt.input)
		if tt.short && len(result) >= len(tt.input) {
			t.Errorf("shortenPath(%q) was not shortened: %q", tt.input, result)
		}
		if !tt.short && result != tt.input {
			t.Errorf("shortenPath(%q) = %q, want unchanged", tt.input, result)
		}
	}
}

func TestSetEnabled(t *testing.T) {
	n := NewNotifier(nil, nil)

	if n.IsEnabled() {
		t.Error("Expected initially disabled")
	}
	n.SetEnabled(true)
	if !n.IsEnabled() {
		t.Error("Expected enabled after SetEnabled(true)")
	}
}

func TestNotify_Severity(t *testing.T) {
	tests := []struct {
		name     string
		severity alerts.Severity
		alertErr error
		want     []string
	}{
		{"danger uses alert", alerts.SeverityDanger, nil, []string{"alert"}},
		{"danger falls back to notify", alerts.SeverityDanger, errors.New("unsupported"), []string{"alert", "notify"}},
		{"info uses notify", alerts.SeverityInfo, nil, []string{"notify"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, got := captureNotifier(true, tt.alertErr)
			if err := n.Notify(alerts.Alert{Severity: tt.severity, Title: "t", Description: "d"}); err != nil {
				t.Errorf("Notify() error = %v", err)
			}
			if len(*got) != len(tt.want) {
				t.Fatalf("sent %+v, want kinds %v", *got, tt.want)
			}
			for i, kind := range tt.want {
				if (*got)[i].kind != kind {
					t.Errorf("sent[%d] = %q, want %q", i, (*got)[i].kind, kind)
				}
			}
		})
	}
}

func TestNotify_TruncatesLongText(t *testing.T) {
	n, got := captureNotifier(true, nil)
	_ = n.Notify(alerts.Alert{Severity: alerts.SeverityInfo, Title: strings.Repeat("t", 200), Description: strings.Repeat("d", 500)})

	if len((*got)[0].title) != 80 || len((*got)[0].message) != 200 {
		t.Errorf("title/message lengths = %d/%d", len((*got)[0].title), len((*got)[0].message))
	}
}

func TestUploadsFinished(t *testing.T) {
	n, got := captureNotifier(true, nil)

	n.UploadsFinished(0, 0)
	if len(*got) != 0 {
		t.Error("empty batch should not notify")
	}

	n.UploadsFinished(3, 1)
	if len(*got) != 1 || (*got)[0].message != "3 file(s) uploaded, 1 failed." {
		t.Errorf("sent = %+v", *got)
	}
}

func TestNotifierDisabled_NoSend(t *testing.T) {
	n, got := captureNotifier(false, nil)

	_ = n.Notify(alerts.Alert{Severity: alerts.SeverityDanger, Title: "x"})
	n.UploadsFinished(1, 0)
	n.DownloadComplete("/docs/a.txt", "/tmp/a.txt")

	if len(*got) != 0 {
		t.Errorf("disabled notifier sent %+v", *got)
	}
}
