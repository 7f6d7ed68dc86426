package store

import "errors"

// ErrNotFound reports that the addressed document, section, or element does
// not exist. Callers are expected to branch on it with errors.Is; absence
// is an explicit result, never the generic failure path.
var ErrNotFound = errors.New("not found")
