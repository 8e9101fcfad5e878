// Package log builds the application's slog loggers.
//
// Every logger is wrapped in a SecureHandler that masks sensitive attribute
// values before they reach the output. The archive login cookies
// (logged-in-user, logged-in-sig) and their IA_LOGGED_IN_* environment
// variables are masked by key, and cookie headers carrying them are masked by
// value. Content digests are left readable.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Info("fetching", "url", replayURL, "cookie", header) // cookie is masked
package log
