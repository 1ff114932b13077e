package process

import "fmt"

// SuccessPolicy decides from an exit code whether a tool run failed.
// The zero value is NonZero.
type SuccessPolicy int

const (
	// NonZero fails iff the exit code is not 0.
	NonZero SuccessPolicy = iota
	// Never treats every exit code as success.
	Never
	// ExactlyOne fails iff the exit code is 1 (lint tools signal findings this way).
	ExactlyOne
	// NotZeroOrOne fails iff the exit code is neither 0 nor 1 (diff tools use 1 for "differs").
	NotZeroOrOne
)

// HasFailed reports whether code indicates failure under p.
func (p SuccessPolicy) HasFailed(code int) bool {
	switch p {
	case Never:
		return false
	case ExactlyOne:
		return code == 1
	case NotZeroOrOne:
		return code != 0 && code != 1
	default:
		return code != 0
	}
}

func (p SuccessPolicy) String() string {
	switch p {
	case NonZero:
		return "nonzero"
	case Never:
		return "never"
	case ExactlyOne:
		return "exactly-one"
	case NotZeroOrOne:
		return "not-zero-or-one"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy maps a configuration string to a policy.
func ParsePolicy(s string) (SuccessPolicy, error) {
	switch s {
	case "", "nonzero":
		return NonZero, nil
	case "never":
		return Never, nil
	case "exactly-one":
		return ExactlyOne, nil
	case "not-zero-or-one":
		return NotZeroOrOne, nil
	}
	return NonZero, fmt.Errorf("unknown success policy %q", s)
}
