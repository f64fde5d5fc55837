// Package metacache persists song metadata, download paths and content
// digests between runs.
//
// The cache document is kept in memory and written back with Flush. Two
// backends are available: a JSON file guarded by an advisory lock (the
// default, compatible with the metadata.json layout of earlier tools) and a
// SQLite database.
package metacache
