package models

import "errors"

// Ошибки хранилища, не зависящие от драйвера.
var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
)
