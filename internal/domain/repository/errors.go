package repository

import (
	"errors"
	"fmt"
)

// Errores de los adapters. Los adapters envuelven con contexto
// (ej. "external login github/123: not found"); comparar siempre con errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidInput = errors.New("invalid input")
)

// NotFoundf envuelve ErrNotFound con el recurso buscado.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
}

// Conflictf envuelve ErrConflict con el recurso en conflicto.
func Conflictf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrConflict)...)
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }
