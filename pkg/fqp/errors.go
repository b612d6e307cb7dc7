package fqp

import "errors"

var (
	ErrInvalidMagic       = errors.New("invalid FQP magic")
	ErrUnsupportedVersion = errors.New("unsupported FQP version")
	ErrCorruptFile        = errors.New("corrupt FQP file")
)
