package requant

import "errors"

var (
	ErrOverflowRisk         = errors.New("requant: accumulator cannot fit register")
	ErrBiasScale            = errors.New("requant: bias scale precondition violated")
	ErrDegenerateMultiplier = errors.New("requant: multiplier mantissa rounds to zero")
)
