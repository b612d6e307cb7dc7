package calib

import "errors"

var (
	ErrMissingStats   = errors.New("calib: tensor has neither scale nor range")
	ErrEmptyDocument  = errors.New("calib: empty calibration document")
	ErrDuplicateLayer = errors.New("calib: duplicate layer name")
)
