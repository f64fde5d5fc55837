// Package download fetches song audio into the download directory.
//
// Files are written next to their destination with a .part suffix and
// renamed into place once complete, so an interrupted download never leaves
// a truncated file under the final name.
package download
