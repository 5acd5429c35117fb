package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVerificationResult_TestPassRate(t *testing.T) {
	v := VerificationResult{TestsPassed: 3, TestsTotal: 4}
	require.InDelta(t, 0.75, v.TestPassRate(), 1e-9)

	zero := VerificationResult{}
	require.InDelta(t, 0, zero.TestPassRate(), 1e-9)
}

func TestVerificationResult_ValidationScore(t *testing.T) {
	trueVal := true
	v := VerificationResult{SyntaxValid: true, ImportValid: &trueVal}
	require.InDelta(t, 1.0, v.ValidationScore(), 1e-9)

	falseVal := false
	v2 := VerificationResult{SyntaxValid: true, ImportValid: &falseVal, TypeValid: &falseVal}
	require.InDelta(t, 1.0/3.0, v2.ValidationScore(), 1e-9)
}

func TestEntitlement_IsAvailable(t *testing.T) {
	require.True(t, Entitlement{Access: AccessIncluded}.IsAvailable())
	require.True(t, Entitlement{Access: AccessAddon, AddonEnabled: true}.IsAvailable())
	require.False(t, Entitlement{Access: AccessAddon, AddonEnabled: false}.IsAvailable())
	require.False(t, Entitlement{Access: AccessUnavailable}.IsAvailable())
}

func TestEntitlement_RemainingRuns(t *testing.T) {
	require.Equal(t, -1, Entitlement{MonthlyRunsLimit: -1}.RemainingRuns())
	require.Equal(t, 5, Entitlement{MonthlyRunsLimit: 10, MonthlyRunsUsed: 5}.RemainingRuns())
	require.Equal(t, 0, Entitlement{MonthlyRunsLimit: 10, MonthlyRunsUsed: 15}.RemainingRuns())
}
