// Package workflow turns song cids into verified local files.
//
// Manager.Run handles explicit requests ("1234" or "play:1234"): it reads
// metadata from the cache or the catalog, downloads or reuses the audio file,
// hashes it with BLAKE3 and records the digest. A file whose digest no longer
// matches the recorded one is invalidated in the cache before it is fetched
// again, so an interrupted re-download never leaves a stale hash behind.
//
// Manager.SyncAll mirrors the whole catalog in fixed-size batches. Both entry
// points flush the metadata cache once they finish, even when some songs
// failed, and report transfer progress through a Reporter.
package workflow
