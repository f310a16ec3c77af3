// Package repository holds the MySQL persistence used by the server.
// Sentinel errors let handlers pick a status code without inspecting
// driver errors.
package repository

import "errors"

// ErrConflict is returned when a write would move a row into a state it
// cannot reach from its current one.  Handlers translate it to 409.
var ErrConflict = errors.New("conflict")
