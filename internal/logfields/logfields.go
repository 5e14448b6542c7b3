// Package logfields defines canonical log field name constants and slog.Attr
// helpers to avoid key drift across packages.
package logfields

import "log/slog"

const (
	KeyOwner      = "owner"
	KeyProject    = "project"
	KeyBuildID    = "build_id"
	KeyBuildSeq   = "build_seq"
	KeyStage      = "stage"
	KeyStatus     = "status"
	KeyWorker     = "worker"
	KeyPath       = "path"
	KeyKey        = "key"
	KeyHost       = "host"
	KeyGenerator  = "generator"
	KeyDurationMS = "duration_ms"
	KeyCount      = "count"
	KeyURL        = "url"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Owner(o string) slog.Attr        { return slog.String(KeyOwner, o) }
func Project(p string) slog.Attr      { return slog.String(KeyProject, p) }
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func BuildSeq(n int64) slog.Attr      { return slog.Int64(KeyBuildSeq, n) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func Status(s string) slog.Attr       { return slog.String(KeyStatus, s) }
func Worker(w string) slog.Attr       { return slog.String(KeyWorker, w) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Key(k string) slog.Attr          { return slog.String(KeyKey, k) }
func Host(h string) slog.Attr         { return slog.String(KeyHost, h) }
func Generator(g string) slog.Attr    { return slog.String(KeyGenerator, g) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
