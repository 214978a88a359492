package gate

import (
	"errors"
	"fmt"

	"github.com/jonwraymond/toolgate/policy"
)

// Denial is the terminal failure of an authorization attempt. The reason
// is the only detail exposed outward; the cause is preserved for logs
// and traces but never leaks provider-internal detail to callers.
type Denial struct {
	Reason policy.Reason
	Cause  error
}

func (d *Denial) Error() string {
	return fmt.Sprintf("gate: request denied: %s", d.Reason)
}

func (d *Denial) Unwrap() error { return d.Cause }

// Deny builds a Denial. cause may be nil.
func Deny(reason policy.Reason, cause error) *Denial {
	return &Denial{Reason: reason, Cause: cause}
}

// DenialReason extracts the denial reason from an error, if the error is
// (or wraps) a Denial.
func DenialReason(err error) (policy.Reason, bool) {
	var d *Denial
	if errors.As(err, &d) {
		return d.Reason, true
	}
	return "", false
}
