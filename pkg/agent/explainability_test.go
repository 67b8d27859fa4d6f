package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAgentAgreement_PerfectAgreementIsOne(t *testing.T) {
	initial := map[string]float64{"c1": 2.0, "c2": 3.0}
	final := map[string]float64{"c1": 2.0, "c2": 3.0}
	assert.Equal(t, 1.0, AgentAgreement(initial, final))
}

func TestAgentAgreement_LargeDeviationLowersScore(t *testing.T) {
	initial := map[string]float64{"c1": 1.0}
	final := map[string]float64{"c1": 4.0}
	agreement := AgentAgreement(initial, final)
	assert.Less(t, agreement, 0.5)
}

func TestDecideReviewRecommendation_SignificantIssuesAlwaysMustReview(t *testing.T) {
	rec, triggered := decideReviewRecommendation("SIGNIFICANT_ISSUES", false, 0.95, 0.99)
	assert.Equal(t, ReviewMustReview, rec)
	assert.Contains(t, triggered, "consistency_significant_issues")
}

func TestDecideReviewRecommendation_AmbiguousCriterionForcesMustReview(t *testing.T) {
	rec, _ := decideReviewRecommendation("CONSISTENT", true, 0.95, 0.99)
	assert.Equal(t, ReviewMustReview, rec)
}

func TestDecideReviewRecommendation_LowAgreementForcesMustReview(t *testing.T) {
	rec, _ := decideReviewRecommendation("CONSISTENT", false, 0.95, 0.5)
	assert.Equal(t, ReviewMustReview, rec)
}

func TestDecideReviewRecommendation_MinorIssuesNeedsReview(t *testing.T) {
	rec, triggered := decideReviewRecommendation("MINOR_ISSUES", false, 0.95, 0.99)
	assert.Equal(t, ReviewNeedsReview, rec)
	assert.Contains(t, triggered, "consistency_minor_issues")
}

func TestDecideReviewRecommendation_LowConfidenceNeedsReview(t *testing.T) {
	rec, _ := decideReviewRecommendation("CONSISTENT", false, 0.5, 0.99)
	assert.Equal(t, ReviewNeedsReview, rec)
}

func TestDecideReviewRecommendation_ModerateAgreementNeedsReview(t *testing.T) {
	rec, _ := decideReviewRecommendation("CONSISTENT", false, 0.95, 0.7)
	assert.Equal(t, ReviewNeedsReview, rec)
}

func TestDecideReviewRecommendation_CleanCaseAutoApproved(t *testing.T) {
	rec, triggered := decideReviewRecommendation("CONSISTENT", false, 0.95, 0.99)
	assert.Equal(t, ReviewAutoApproved, rec)
	assert.Empty(t, triggered)
}
