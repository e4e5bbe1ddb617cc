// Package monitor is an optional Sentry integration for the segment core:
// when initialized, fatal parse/decode errors are reported to Sentry in
// addition to being returned to the caller. It is off (a no-op) unless
// InitErrorMonitor is called, so embedding the core never has a network
// side effect by default.
package monitor

import (
	"time"

	sentry "github.com/getsentry/sentry-go"

	"github.com/wirybeaver/datafusion-pinot/internal/errors"
)

var enabled bool

// InitErrorMonitor configures Sentry reporting. dsn is the caller's Sentry
// project DSN; release identifies the build (e.g. a version string).
func InitErrorMonitor(dsn, release string) error {
	if dsn == "" {
		return errors.Errorf("monitor: dsn must not be empty")
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		AttachStacktrace: true,
		Release:          release,
	}); err != nil {
		return errors.Wrap(err, "sentry.Init")
	}
	enabled = true
	return nil
}

// IsOn reports whether error monitoring is active.
func IsOn() bool {
	return enabled
}

// CaptureError reports a coded segment error to Sentry, tagged with its
// error code so fatal-parse-error rates can be broken out by kind.
func CaptureError(code errors.Code, err error) {
	if !enabled || err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("segment.error_code", string(code))
		sentry.CaptureException(err)
	})
	sentry.Flush(2 * time.Second)
}
