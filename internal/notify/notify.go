// Package notify mirrors alerts and finished transfers to desktop notifications.
// It uses github.com/gen2brain/beeep for cross-platform notification support.
package notify

import (
	"fmt"
	"path/filepath"
	"sync"
	"unicode/utf8"

	"github.com/gen2brain/beeep"

	"github.com/rescale/webup/internal/alerts"
	"github.com/rescale/webup/internal/config"
	"github.com/rescale/webup/internal/constants"
	"github.com/rescale/webup/internal/logging"
)

// Notifier handles desktop notifications.
type Notifier struct {
	logger  *logging.Logger
	enabled bool
	mu      sync.RWMutex

	// replaced in tests
	notify func(title, message, icon string) error
	alert  func(title, message, icon string) error
}

// Config holds notification configuration.
type Config struct {
	// Enabled determines if notifications are sent.
	Enabled bool

	// ShowUploadsFinished notifies when the upload queue drains.
	ShowUploadsFinished bool

	// ShowDownloadComplete notifies when `get` finishes.
	ShowDownloadComplete bool
}

// DefaultConfig returns the default notification configuration.
// Notifications are opt-in: a terminal tool should not pop windows unasked.
func DefaultConfig() *Config {
	return &Config{
		Enabled:              false,
		ShowUploadsFinished:  true,
		ShowDownloadComplete: true,
	}
}

// FromConfig reads the [notifications] settings of the application config.
func FromConfig(cfg *config.Config) *Config {
	c := DefaultConfig()
	if cfg != nil {
		c.Enabled = cfg.NotificationsEnabled
	}
	return c
}

// NewNotifier creates a new notifier with the given configuration.
func NewNotifier(cfg *Config, logger *logging.Logger) *Notifier {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logging.Nop()
	}

	return &Notifier{
		logger:  logger,
		enabled: cfg.Enabled,
		notify:  beeep.Notify,
		alert:   beeep.Alert,
	}
}

// SetEnabled enables or disables notifications.
func (n *Notifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// IsEnabled returns whether notifications are enabled.
func (n *Notifier) IsEnabled() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.enabled
}

// Notify mirrors a raised alert. Danger alerts use the more prominent
// beeep.Alert, falling back to a plain notification.
func (n *Notifier) Notify(a alerts.Alert) error {
	if !n.IsEnabled() {
		return nil
	}

	title := truncate(a.Title, 80)
	message := truncate(a.Description, 200)

	if a.Severity == alerts.SeverityDanger {
		if err := n.alert(title, message, ""); err == nil {
			return nil
		}
	}
	return n.notify(title, message, "")
}

// UploadsFinished sends a summary when the upload queue drains.
func (n *Notifier) UploadsFinished(completed, failed int) {
	if !n.IsEnabled() || completed+failed == 0 {
		return
	}

	title := constants.AppName
	message := fmt.Sprintf("%d file(s) uploaded.", completed)
	if failed > 0 {
		message = fmt.Sprintf("%d file(s) uploaded, %d failed.", completed, failed)
	}

	if err := n.notify(title, message, ""); err != nil {
		n.logger.Warn().Err(err).Msg("Failed to send uploads finished notification")
	}
}

// DownloadComplete sends a notification for a successful download.
func (n *Notifier) DownloadComplete(remotePath, localPath string) {
	if !n.IsEnabled() {
		return
	}

	title := "Download Complete"
	message := fmt.Sprintf("%q downloaded to:\n%s", truncate(remotePath, 40), shortenPath(localPath))

	if err := n.notify(title, message, ""); err != nil {
		n.logger.Warn().Err(err).Str("path", remotePath).Msg("Failed to send download complete notification")
	}
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// shortenPath abbreviates a long path for display in notifications.
func shortenPath(path string) string {
	const maxLen = 60

	if len(path) <= maxLen {
		return path
	}

	// Try to show drive/root + ... + last 2 path components
	_, file := filepath.Split(path)
	parentDir := filepath.Base(filepath.Dir(path))

	short := filepath.Join("...", parentDir, file)

	vol := filepath.VolumeName(path)
	if vol != "" && len(vol)+len(short)+1 <= maxLen {
		short = vol + string(filepath.Separator) + short
	}

	// If still too long, just truncate
	if len(short) > maxLen {
		return "..." + path[len(path)-(maxLen-3):]
	}

	return short
}
