// Package logging provides structured logging with per-module log levels.
//
// Loggers are plain *slog.Logger values tagged with a "module" attribute.
// Output goes to stdout (text or JSON) and, when journald is reachable, to the
// systemd journal as well.
//
// Initialize once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"acquisition": "debug",
//			"api":         "warn",
//		},
//	})
//
// Then fetch a logger per module:
//
//	logger := logging.GetLogger("acquisition").With("camera_id", id)
//	logger.Info("Sequence started", "capacity", 12)
//
// Loggers obtained before Initialize keep working and pick up the configured
// level. Levels can also be changed at runtime with SetLevel.
//
// Journal entries use the identifier "framenotify":
//
//	journalctl -t framenotify MODULE=acquisition
package logging
