// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package flash

import "errors"

// Every abort of a flash sequence is one of these. Context is added by
// wrapping, so callers match with errors.Is.
var (
	ErrInvalidPathSpec     = errors.New("invalid path spec")
	ErrUnauthorizedCaller  = errors.New("unauthorized caller")
	ErrSwapFailed          = errors.New("swap failed")
	ErrInsufficientOutput  = errors.New("insufficient output")
	ErrRepaymentFailed     = errors.New("repayment failed")
	ErrReentrantInvocation = errors.New("reentrant invocation")
)

// Sub-kinds, always reported wrapped in one of the errors above.
var (
	// ErrUnknownRoute is a routing code outside the closed set.
	ErrUnknownRoute = errors.New("unknown route")
	// ErrPrincipalMismatch means the custody account did not actually
	// receive the principal the lender reported.
	ErrPrincipalMismatch = errors.New("principal mismatch")
)

// Kind classifies an abort.
type Kind uint8

const (
	KindNone Kind = iota
	KindInvalidPathSpec
	KindUnauthorizedCaller
	KindSwapFailed
	KindInsufficientOutput
	KindRepaymentFailed
	KindReentrantInvocation
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindInvalidPathSpec:
		return "invalid_path_spec"
	case KindUnauthorizedCaller:
		return "unauthorized_caller"
	case KindSwapFailed:
		return "swap_failed"
	case KindInsufficientOutput:
		return "insufficient_output"
	case KindRepaymentFailed:
		return "repayment_failed"
	case KindReentrantInvocation:
		return "reentrant_invocation"
	default:
		return "other"
	}
}

// Expected reports whether the abort is the normal outcome of an opportunity
// that did not pay off, as opposed to a malfunction or an attack.
func (k Kind) Expected() bool {
	return k == KindInsufficientOutput
}

// KindOf returns the kind of err. Reentrancy is checked first since a
// rejected nested call surfaces inside whatever the outer step reports.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrReentrantInvocation):
		return KindReentrantInvocation
	case errors.Is(err, ErrInvalidPathSpec):
		return KindInvalidPathSpec
	case errors.Is(err, ErrUnauthorizedCaller):
		return KindUnauthorizedCaller
	case errors.Is(err, ErrSwapFailed):
		return KindSwapFailed
	case errors.Is(err, ErrInsufficientOutput):
		return KindInsufficientOutput
	case errors.Is(err, ErrRepaymentFailed):
		return KindRepaymentFailed
	default:
		return KindOther
	}
}
