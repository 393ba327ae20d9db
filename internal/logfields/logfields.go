package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyStateKey   = "state_key"
	KeyChannel    = "channel"
	KeyPath       = "path"
	KeyVersion    = "version"
	KeyStatus     = "status"
	KeyAttempt    = "attempt"
	KeyDelayMS    = "delay_ms"
	KeyDurationMS = "duration_ms"
	KeyCloseCode  = "close_code"
	KeyNotifyID   = "notification_id"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func StateKey(k string) slog.Attr     { return slog.String(KeyStateKey, k) }
func Channel(c string) slog.Attr      { return slog.String(KeyChannel, c) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Version(v uint64) slog.Attr      { return slog.Uint64(KeyVersion, v) }
func Status(s string) slog.Attr       { return slog.String(KeyStatus, s) }
func Attempt(n int) slog.Attr         { return slog.Int(KeyAttempt, n) }
func DelayMS(ms int64) slog.Attr      { return slog.Int64(KeyDelayMS, ms) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func CloseCode(c int) slog.Attr       { return slog.Int(KeyCloseCode, c) }
func NotificationID(id string) slog.Attr {
	return slog.String(KeyNotifyID, id)
}
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
