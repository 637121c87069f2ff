package core

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"attendance.client/internal/core/model"
)

func compliantEmployee() *model.Employee {
	return &model.Employee{
		EmployeeID:    "emp_1",
		Code:          "E100",
		Name:          "Maria Lopez",
		Status:        "ACTIVE",
		OSHAExpiryISO: "2027-01-01",
		OSHAExpired:   false,
		OSHAApproved:  true,
		AttestedToday: true,
	}
}

func TestEvaluateGate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*model.Employee) *model.Employee
		want   GateResult
	}{
		{
			name:   "nil employee",
			mutate: func(e *model.Employee) *model.Employee { return nil },
			want:   GateResult{Blocked: true, Reason: ReasonNotInitialized},
		},
		{
			name:   "inactive status",
			mutate: func(e *model.Employee) *model.Employee { e.Status = "SUSPENDED"; return e },
			want:   GateResult{Blocked: true, Reason: ReasonInactive},
		},
		{
			name:   "expired credential",
			mutate: func(e *model.Employee) *model.Employee { e.OSHAExpired = true; return e },
			want:   GateResult{Blocked: true, Reason: ReasonCredentialExpired},
		},
		{
			name:   "pending approval",
			mutate: func(e *model.Employee) *model.Employee { e.OSHAApproved = false; return e },
			want:   GateResult{Blocked: true, Reason: ReasonCredentialPending},
		},
		{
			name:   "missing attestation",
			mutate: func(e *model.Employee) *model.Employee { e.AttestedToday = false; return e },
			want:   GateResult{Blocked: true, Reason: ReasonAttestationRequired},
		},
		{
			name:   "fully compliant",
			mutate: func(e *model.Employee) *model.Employee { return e },
			want:   Ready,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := EvaluateGate(c.mutate(compliantEmployee()))
			assert.Equal(t, c.want, got)
		})
	}
}

func TestEvaluateGateFirstFailureWins(t *testing.T) {
	// Inactive and expired at the same time: only the earlier check is
	// reported, reasons are never combined.
	e := compliantEmployee()
	e.Status = "TERMINATED"
	e.OSHAExpired = true
	e.AttestedToday = false

	got := EvaluateGate(e)
	assert.True(t, got.Blocked)
	assert.Equal(t, ReasonInactive, got.Reason)
}

func TestEvaluateGateEmptyStatusIsActive(t *testing.T) {
	e := compliantEmployee()
	e.Status = ""
	assert.Equal(t, Ready, EvaluateGate(e))

	e.Status = "active"
	assert.Equal(t, Ready, EvaluateGate(e))
}

func TestEvaluateGateExpiredBeatsPendingAndAttestation(t *testing.T) {
	e := compliantEmployee()
	e.OSHAExpired = true
	e.OSHAApproved = false
	e.AttestedToday = false

	assert.Equal(t, ReasonCredentialExpired, EvaluateGate(e).Reason)
}
