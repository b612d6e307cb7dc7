package conv

import "errors"

var ErrBadShape = errors.New("conv: shape mismatch")
