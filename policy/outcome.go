package policy

import "github.com/jonwraymond/toolgate/token"

// Reason enumerates why a request was denied. The set is closed: callers
// see only these values, never provider-internal detail.
type Reason string

const (
	ReasonMalformed        Reason = "malformed"
	ReasonExpired          Reason = "expired"
	ReasonWrongAudience    Reason = "wrong_audience"
	ReasonWrongIssuer      Reason = "wrong_issuer"
	ReasonMissingScope     Reason = "missing_scope"
	ReasonSignatureInvalid Reason = "signature_invalid"
	ReasonKeyFetchFailed   Reason = "key_fetch_failed"
	ReasonExchangeFailed   Reason = "exchange_failed"
	ReasonTimeout          Reason = "timeout"
)

// Outcome is the result of evaluating a credential against a policy.
// Exactly one of the accepted/rejected shapes is populated.
type Outcome struct {
	// Accepted is true when the credential passed every check.
	Accepted bool

	// Claims is the validated claim set (only when Accepted).
	Claims *token.ClaimSet

	// Reason is the first failure encountered (only when rejected).
	// Evaluation short-circuits; reasons are never accumulated.
	Reason Reason

	// Cause preserves the underlying error for observability. It is
	// never exposed to callers beyond the reason code.
	Cause error
}

// Accept builds an accepted outcome carrying the validated claims.
func Accept(cs *token.ClaimSet) Outcome {
	return Outcome{Accepted: true, Claims: cs}
}

// Reject builds a rejected outcome with the given reason. cause may be nil.
func Reject(reason Reason, cause error) Outcome {
	return Outcome{Reason: reason, Cause: cause}
}
