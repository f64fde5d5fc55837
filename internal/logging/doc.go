// Package logging assembles the slog loggers used across siren.
//
// New and NewFromConfig build a console or JSON handler for the terminal and,
// when a log directory is configured, a rotating JSON file sink backed by
// lumberjack. Records logged through the *Context methods pick up the request
// id, stage and song id carried in the context (see services.WithRequestID and
// friends), so workflow code does not have to thread those attributes by hand.
//
// NewNop is for tests and for wiring code that has no logger to offer.
package logging
