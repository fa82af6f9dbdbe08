// Package preflight provides readiness checks for the filesystem paths and
// external tools mediaflow depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup and logs failures as warnings.
//   - The CLI "mediaflow status" command prints every result.
package preflight
