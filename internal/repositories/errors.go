package repositories

import "errors"

// ErrNotFound is wrapped by every repository when a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is wrapped when a Create collides with a unique key.
var ErrDuplicate = errors.New("record already exists")
