// Package textutil provides small text helpers shared by the stage handlers
// and the CLI: filename sanitization, path tokens, and display casing.
package textutil
