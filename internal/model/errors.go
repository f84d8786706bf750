package model

import "errors"

// ErrSessionNotFound is returned when a session is not found.
var ErrSessionNotFound = errors.New("session not found")
