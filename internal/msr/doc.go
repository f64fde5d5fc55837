// Package msr is a client for the Monster Siren music API.
//
// The client fetches the album list, album details, the song list and song
// details. Every response is checked for a 200 status, a zero envelope code,
// and a payload whose required fields are present with the expected shapes;
// a mismatch surfaces as ErrStatus, ErrAPICode or ErrSchema. Network errors
// and 5xx responses are retried with a doubling delay.
//
// The endpoint is part of Config rather than package state, so tests and
// mirrors can point a client anywhere.
package msr
