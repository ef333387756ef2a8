package handle

import (
	"os"

	"github.com/rs/zerolog"
)

// newHandleLogger builds a zerolog.Logger scoped to one Reader/Writer's
// lifecycle (open/close/refresh events), distinct from the engine's
// logrus-based reconfigure logging and the cycle thread's zap hot-path
// logging — three loggers for three very different log volumes and
// audiences, matching the teacher repository's per-subsystem logger
// convention.
func newHandleLogger(kind, iface string, id uint64) zerolog.Logger {
	return zerolog.New(os.Stderr).
		With().
		Timestamp().
		Str("component", "handle").
		Str("kind", kind).
		Str("interface", iface).
		Uint64("registration_id", id).
		Logger()
}
