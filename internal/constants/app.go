package constants

import (
	"time"
)

// Application identity
const (
	// AppName is the binary and config directory name
	AppName = "webup"

	// DefaultServerURL is used when neither config nor flags name a server.
	// The uploader usually runs on a device on the local network.
	DefaultServerURL = "http://localhost:8080/"

	// RootLabel is shown as the first breadcrumb (the device itself)
	RootLabel = "Device"
)

// Retry configuration (idempotent requests only: list, download)
const (
	// MaxRetries - maximum number of retries for transient errors
	MaxRetries = 4

	// RetryInitialDelay - initial delay before first retry (200ms)
	RetryInitialDelay = 200 * time.Millisecond

	// RetryMaxDelay - maximum delay between retries (5s)
	RetryMaxDelay = 5 * time.Second
)

// Event System
const (
	// EventBusDefaultBuffer - default buffer size for event channels (1000)
	// 1000 events is generous for listing and queue traffic
	EventBusDefaultBuffer = 1000

	// EventBusMaxBuffer - maximum buffer size for high-throughput scenarios (5000)
	EventBusMaxBuffer = 5000
)

// UI Updates
const (
	// ProgressUpdateInterval - minimum interval between task progress events (250ms)
	// Balances responsiveness with event bus pressure on fast local networks
	ProgressUpdateInterval = 250 * time.Millisecond

	// ProgressBarRefreshRate - mpb refresh rate for the upload queue display
	ProgressBarRefreshRate = 300 * time.Millisecond

	// SpeedSmoothingAlpha - EMA weight for new samples when computing upload speed
	SpeedSmoothingAlpha = 0.25
)

// Drop folder
const (
	// WatchDebounce - quiet period after the last write before a dropped file is enqueued.
	// Editors and copy tools emit several write events per file.
	WatchDebounce = 750 * time.Millisecond

	// AbortGracePeriod - how long a cancelled command waits for aborted uploads to unwind
	AbortGracePeriod = 5 * time.Second
)

// Downloads
const (
	// DiskSpaceSafetyMargin - free space required before a download, as a multiple of its size
	DiskSpaceSafetyMargin = 1.05
)

// HTTP Client Timeouts
const (
	// HTTPIdleConnTimeout - how long to keep idle connections open (90 seconds)
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout - timeout for TLS handshake (30 seconds)
	HTTPTLSHandshakeTimeout = 30 * time.Second

	// HTTPExpectContinueTimeout - timeout for 100-continue response (1 second)
	HTTPExpectContinueTimeout = 1 * time.Second

	// HTTPDialTimeout - timeout for establishing connection (15 seconds)
	HTTPDialTimeout = 15 * time.Second

	// HTTPDialKeepAlive - keep-alive period for dialer (30 seconds)
	HTTPDialKeepAlive = 30 * time.Second

	// HTTPResponseHeaderTimeout - time to wait for response headers on control requests.
	// Uploads are bounded by their task context instead.
	HTTPResponseHeaderTimeout = 60 * time.Second

	// ControlRequestTimeout - per-request deadline for list/move/delete/create
	ControlRequestTimeout = 60 * time.Second
)

// Logging
const (
	// LogFileMaxSizeMB - rotate the log file after this many megabytes
	LogFileMaxSizeMB = 10

	// LogFileMaxBackups - number of rotated log files kept
	LogFileMaxBackups = 5

	// LogFileMaxAgeDays - rotated files older than this are removed
	LogFileMaxAgeDays = 30
)
