package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyDocument   = "document"
	KeyKind       = "kind"
	KeyTool       = "tool"
	KeyCommand    = "command"
	KeyIteration  = "iteration"
	KeyExitCode   = "exit_code"
	KeyFile       = "file"
	KeyPath       = "path"
	KeyCode       = "code"
	KeyDurationMS = "duration_ms"
	KeyWorker     = "worker"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func Document(d string) slog.Attr     { return slog.String(KeyDocument, d) }
func Kind(k string) slog.Attr         { return slog.String(KeyKind, k) }
func Tool(t string) slog.Attr         { return slog.String(KeyTool, t) }
func Command(c string) slog.Attr      { return slog.String(KeyCommand, c) }
func Iteration(i int) slog.Attr       { return slog.Int(KeyIteration, i) }
func ExitCode(c int) slog.Attr        { return slog.Int(KeyExitCode, c) }
func File(f string) slog.Attr         { return slog.String(KeyFile, f) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Code(c string) slog.Attr         { return slog.String(KeyCode, c) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Worker(w string) slog.Attr       { return slog.String(KeyWorker, w) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
