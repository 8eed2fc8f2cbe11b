package domain_test

import (
	"testing"

	"github.com/felixgeelhaar/coachpay/internal/payments/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckoutSession_Refs(t *testing.T) {
	clientID, trainerID, planID := uuid.New(), uuid.New(), uuid.New()

	t.Run("all ids present", func(t *testing.T) {
		s := domain.CheckoutSession{ID: "cs_1", SubscriptionID: "sub_1", Metadata: map[string]string{
			"client_id":  clientID.String(),
			"trainer_id": trainerID.String(),
			"plan_id":    planID.String(),
		}}
		refs, err := s.Refs()
		require.NoError(t, err)
		assert.Equal(t, domain.CheckoutRefs{ClientID: clientID, TrainerID: trainerID, PlanID: planID}, refs)
	})

	t.Run("missing metadata", func(t *testing.T) {
		_, err := domain.CheckoutSession{ID: "cs_1", SubscriptionID: "sub_1"}.Refs()
		assert.ErrorIs(t, err, domain.ErrPolicyViolation)
	})

	t.Run("malformed plan id", func(t *testing.T) {
		_, err := domain.CheckoutSession{ID: "cs_1", Metadata: map[string]string{
			"client_id":  clientID.String(),
			"trainer_id": trainerID.String(),
			"plan_id":    "plan_basic",
		}}.Refs()
		assert.ErrorIs(t, err, domain.ErrPolicyViolation)
	})
}

func TestAccountSnapshot(t *testing.T) {
	acct := &domain.AccountSnapshot{
		ID:               "acct_1",
		DetailsSubmitted: true,
		ChargesEnabled:   true,
		CurrentlyDue:     []string{"external_account"},
		PastDue:          []string{"individual.id_number"},
	}

	assert.False(t, acct.Onboarded())
	assert.Equal(t, domain.VerificationVerified, acct.Verification())
	assert.True(t, acct.RequirementsDue())

	update := domain.AccountUpdateFrom(acct)
	assert.Equal(t, 1, update.PastDueRequirements)
}

func TestSummarizeDisputes(t *testing.T) {
	summary := domain.SummarizeDisputes([]domain.DisputeSnapshot{
		{ID: "dp_1", Status: "needs_response"},
		{ID: "dp_2", Status: "under_review"},
		{ID: "dp_3", Status: "won"},
		{ID: "dp_4", Status: "lost"},
	})
	assert.Equal(t, domain.DisputeSummary{Active: 2, Total: 4}, summary)
	assert.True(t, domain.DisputeSnapshot{Status: "won"}.Won())
	assert.False(t, domain.DisputeSnapshot{Status: "lost"}.Won())
}
