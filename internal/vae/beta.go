package vae

import (
	"fmt"
	"math"
)

type betaKind int

const (
	betaUnset betaKind = iota
	betaConstant
	betaSchedule
	betaAnneal
)

// Beta is the weight of the KL term, either constant over training or
// given per epoch. The zero value means "use the default".
//
// Beta is resolved once per training call into one value per epoch.
type Beta struct {
	kind     betaKind
	value    float64
	from, to float64
	schedule []float64
}

// Constant returns a beta that is the same for every epoch.
func Constant(v float64) Beta {
	return Beta{kind: betaConstant, value: v}
}

// Schedule returns a beta with one explicit value per epoch. Its length
// must equal the number of training epochs.
func Schedule(values []float64) Beta {
	return Beta{kind: betaSchedule, schedule: append([]float64(nil), values...)}
}

// LinearAnneal returns a beta ramping linearly from the first epoch's
// value to the last epoch's value.
func LinearAnneal(from, to float64) Beta {
	return Beta{kind: betaAnneal, from: from, to: to}
}

// IsZero reports whether b is the unset zero value.
func (b Beta) IsZero() bool {
	return b.kind == betaUnset
}

// Resolve expands b into exactly epochs values.
//
// A Schedule whose length differs from epochs is rejected with
// ErrBetaSchedule rather than truncated or padded. Non-finite values are
// rejected as well.
func (b Beta) Resolve(epochs int) ([]float64, error) {
	if epochs <= 0 {
		return nil, fmt.Errorf("%w: epochs must be positive, got %d", ErrBetaSchedule, epochs)
	}

	out := make([]float64, epochs)
	switch b.kind {
	case betaUnset, betaConstant:
		for i := range out {
			out[i] = b.value
		}
	case betaSchedule:
		if len(b.schedule) != epochs {
			return nil, fmt.Errorf("%w: schedule has %d values for %d epochs", ErrBetaSchedule, len(b.schedule), epochs)
		}
		copy(out, b.schedule)
	case betaAnneal:
		out[0] = b.from
		for i := 1; i < epochs; i++ {
			out[i] = b.from + (b.to-b.from)*float64(i)/float64(epochs-1)
		}
	default:
		return nil, fmt.Errorf("%w: unknown kind %d", ErrBetaSchedule, b.kind)
	}

	for i, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: epoch %d has non-finite beta %v", ErrBetaSchedule, i, v)
		}
	}
	return out, nil
}

// String describes the beta for logs.
func (b Beta) String() string {
	switch b.kind {
	case betaUnset:
		return "default"
	case betaConstant:
		return fmt.Sprintf("constant(%g)", b.value)
	case betaSchedule:
		return fmt.Sprintf("schedule(%d epochs)", len(b.schedule))
	case betaAnneal:
		return fmt.Sprintf("anneal(%g -> %g)", b.from, b.to)
	default:
		return "invalid"
	}
}
