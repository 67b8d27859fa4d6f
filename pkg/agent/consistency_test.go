package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConsistencyAuditOutput_Validate_RejectsUnknownAssessment(t *testing.T) {
	out := &ConsistencyAuditOutput{OverallAssessment: "FINE", declaredCriteria: map[string]float64{"c1": 5}}
	assert.ErrorContains(t, out.Validate(), "CONSISTENT")
}

func TestConsistencyAuditOutput_Validate_RequiresEveryDeclaredCriterion(t *testing.T) {
	out := &ConsistencyAuditOutput{
		OverallAssessment: "CONSISTENT",
		FinalScores:       map[string]float64{},
		declaredCriteria:  map[string]float64{"c1": 5},
	}
	assert.ErrorContains(t, out.Validate(), "missing criterion")
}

func TestConsistencyAuditOutput_Validate_RejectsOutOfBoundsFinalScore(t *testing.T) {
	out := &ConsistencyAuditOutput{
		OverallAssessment: "CONSISTENT",
		FinalScores:       map[string]float64{"c1": 9},
		declaredCriteria:  map[string]float64{"c1": 5},
	}
	assert.ErrorContains(t, out.Validate(), "out of [0,")
}

func TestConsistencyAuditOutput_Reconcile_OverwritesTotalWithSumOfFinalScores(t *testing.T) {
	out := &ConsistencyAuditOutput{
		TotalScore:  999, // drifted / untrustworthy model-reported total
		FinalScores: map[string]float64{"c1": 2.5, "c2": 1.0},
	}
	out.Reconcile()
	assert.Equal(t, 3.5, out.TotalScore)
}
