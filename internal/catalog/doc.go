// Package catalog models Monster Siren albums and songs as lazily
// materialized references.
//
// List endpoints return AlbumRef and SongRef values that answer their
// summary fields immediately and fetch the detail record on first use of a
// member only the detail carries. Once fetched, the detail answers every
// member it defines.
package catalog
