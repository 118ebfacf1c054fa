package recommend

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadencehq/cadence/internal/model"
)

func acctEvent(account, contact string, typ model.InteractionType, at time.Time) model.InteractionEvent {
	return model.InteractionEvent{
		ID:              uuid.New(),
		TemplateID:      uuid.New(),
		AccountID:       &account,
		ContactID:       contact,
		InteractionType: typ,
		OccurredAt:      at,
	}
}

func TestPredictiveHealthyAccount(t *testing.T) {
	now := time.Now().UTC()
	var events []model.InteractionEvent
	// Recent, responsive, broad engagement: every factor stays quiet
	// except possibly the decline check, which recent volume defeats.
	for i := 0; i < 4; i++ {
		c := "c" + string(rune('1'+i))
		events = append(events,
			acctEvent("acme", c, model.InteractionDelivered, now.Add(-2*24*time.Hour)),
			acctEvent("acme", c, model.InteractionResponded, now.Add(-1*24*time.Hour)),
		)
	}

	out := predictive(events, now)
	require.Len(t, out.Accounts, 1)
	a := out.Accounts[0]
	assert.Equal(t, "acme", a.AccountID)
	assert.False(t, a.AtRisk)
	assert.Zero(t, a.RiskScore)
	assert.Nil(t, a.NextBestAction, "recent activity needs no action")
}

func TestPredictiveStaleAccountFlagsRisk(t *testing.T) {
	now := time.Now().UTC()
	old := now.Add(-60 * 24 * time.Hour)
	events := []model.InteractionEvent{
		acctEvent("dormant", "c1", model.InteractionDelivered, old),
		acctEvent("dormant", "c1", model.InteractionDelivered, old.Add(time.Hour)),
	}

	out := predictive(events, now)
	require.Len(t, out.Accounts, 1)
	a := out.Accounts[0]

	// No engagement in 30d (+0.3), recent below 10% of lifetime (+0.2),
	// response rate 0% (+0.2), <3 engaged contacts (+0.3) = capped 1.0.
	assert.InDelta(t, 1.0, a.RiskScore, 0.0001)
	assert.True(t, a.AtRisk)
	assert.Equal(t, 1, out.AtRiskCount)
	require.NotNil(t, a.NextBestAction)
	assert.Contains(t, *a.NextBestAction, "re-engagement")
}

func TestPredictiveRiskScoreCapped(t *testing.T) {
	now := time.Now().UTC()
	events := []model.InteractionEvent{
		acctEvent("x", "c1", model.InteractionSent, now.Add(-90*24*time.Hour)),
	}
	out := predictive(events, now)
	require.Len(t, out.Accounts, 1)
	assert.LessOrEqual(t, out.Accounts[0].RiskScore, 1.0)
}

func TestPredictiveConfidenceTiers(t *testing.T) {
	now := time.Now().UTC()
	var events []model.InteractionEvent
	for i := 0; i < 60; i++ {
		events = append(events, acctEvent("busy", "c1", model.InteractionDelivered, now.Add(-time.Duration(i)*time.Hour)))
	}
	events = append(events, acctEvent("quiet", "c1", model.InteractionDelivered, now.Add(-time.Hour)))

	out := predictive(events, now)
	require.Len(t, out.Accounts, 2)
	byID := map[string]model.ChurnRisk{}
	for _, a := range out.Accounts {
		byID[a.AccountID] = a
	}
	assert.Equal(t, 85.0, byID["busy"].Confidence)
	assert.Equal(t, 65.0, byID["quiet"].Confidence)
}

func TestPredictiveIgnoresAccountlessEvents(t *testing.T) {
	now := time.Now().UTC()
	events := []model.InteractionEvent{
		{ID: uuid.New(), ContactID: "c1", InteractionType: model.InteractionSent, OccurredAt: now},
	}
	out := predictive(events, now)
	assert.Empty(t, out.Accounts)
}

func TestNextBestAction(t *testing.T) {
	now := time.Now().UTC()

	a := nextBestAction(0, time.Time{}, now)
	require.NotNil(t, a)
	assert.Contains(t, *a, "initial outreach")

	a = nextBestAction(5, now.Add(-20*24*time.Hour), now)
	require.NotNil(t, a)
	assert.Contains(t, *a, "re-engagement")

	assert.Nil(t, nextBestAction(5, now.Add(-2*24*time.Hour), now))
}
