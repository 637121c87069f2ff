package core

import "attendance.client/internal/core/model"

// GateReason identifies the single blocking condition reported by the gate.
type GateReason string

const (
	ReasonNotInitialized      GateReason = "NOT_INITIALIZED"
	ReasonInactive            GateReason = "INACTIVE"
	ReasonCredentialExpired   GateReason = "CREDENTIAL_EXPIRED"
	ReasonCredentialPending   GateReason = "CREDENTIAL_PENDING"
	ReasonAttestationRequired GateReason = "ATTESTATION_REQUIRED"
)

// GateResult is the outcome of evaluating the compliance gate. When Blocked
// is false the worker may clock in/out; otherwise Reason carries exactly one
// blocking condition.
type GateResult struct {
	Blocked bool
	Reason  GateReason
}

// Ready is the unblocked gate result.
var Ready = GateResult{}

func blocked(r GateReason) GateResult {
	return GateResult{Blocked: true, Reason: r}
}

// EvaluateGate maps an employee record (or its absence) to a gate decision.
// Checks run in a fixed order and the first failing check wins; reasons are
// never combined. Pure, no I/O.
func EvaluateGate(e *model.Employee) GateResult {
	if e == nil {
		return blocked(ReasonNotInitialized)
	}
	if !e.IsActive() {
		return blocked(ReasonInactive)
	}
	if e.OSHAExpired {
		return blocked(ReasonCredentialExpired)
	}
	if !e.OSHAApproved {
		return blocked(ReasonCredentialPending)
	}
	if !e.AttestedToday {
		return blocked(ReasonAttestationRequired)
	}
	return Ready
}
