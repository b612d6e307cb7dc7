package qparams

import "errors"

var (
	ErrInvalidScale = errors.New("qparams: scale must be positive")
	ErrInvalidRange = errors.New("qparams: invalid calibration range")
	ErrInvalidBits  = errors.New("qparams: unsupported code width")
)
