// Package preflight provides readiness checks for the filesystem paths and
// services siren depends on.
//
// These checks run in two contexts:
//   - The workflow manager calls Guard before downloading anything. A
//     download directory that is missing, read-only or nearly full fails
//     the run before any request is made.
//   - The CLI "siren doctor" command uses RunAll to display the state of
//     every check, including API reachability and optional binaries.
package preflight
