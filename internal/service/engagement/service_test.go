package engagement

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadencehq/cadence/internal/model"
)

func channelEvents(ch model.Channel, typ model.InteractionType, n int) []model.InteractionEvent {
	out := make([]model.InteractionEvent, n)
	for i := range out {
		out[i] = model.InteractionEvent{
			ID:              uuid.New(),
			Channel:         ch,
			InteractionType: typ,
			ContactID:       "c",
		}
	}
	return out
}

func TestChannelFunnel(t *testing.T) {
	var events []model.InteractionEvent
	events = append(events, channelEvents(model.ChannelEmail, model.InteractionSent, 1000)...)
	events = append(events, channelEvents(model.ChannelEmail, model.InteractionDelivered, 950)...)
	events = append(events, channelEvents(model.ChannelEmail, model.InteractionOpened, 300)...)
	events = append(events, channelEvents(model.ChannelEmail, model.InteractionClicked, 100)...)
	events = append(events, channelEvents(model.ChannelEmail, model.InteractionResponded, 50)...)

	funnel := ChannelFunnel(events)
	require.Len(t, funnel, 4, "all four channels are always reported")

	var email model.ChannelPerformance
	for _, cp := range funnel {
		if cp.Channel == model.ChannelEmail {
			email = cp
		}
	}
	assert.Equal(t, 95.0, email.DeliveryRate)
	assert.InDelta(t, 31.58, email.OpenRate, 0.01)
	assert.InDelta(t, 33.33, email.ClickRate, 0.01)
	assert.InDelta(t, 5.26, email.ResponseRate, 0.01)
}

func TestChannelFunnelZeroDenominators(t *testing.T) {
	funnel := ChannelFunnel(nil)
	require.Len(t, funnel, 4)
	for _, cp := range funnel {
		assert.Zero(t, cp.DeliveryRate)
		assert.Zero(t, cp.OpenRate)
		assert.Zero(t, cp.ClickRate)
		assert.Zero(t, cp.ResponseRate)
	}
}

func TestChannelFunnelIgnoresUnknownChannel(t *testing.T) {
	events := []model.InteractionEvent{
		{Channel: "carrier_pigeon", InteractionType: model.InteractionSent},
	}
	funnel := ChannelFunnel(events)
	for _, cp := range funnel {
		assert.Zero(t, cp.Sent)
	}
}

func TestTopChannel(t *testing.T) {
	counts := map[model.Channel]int{
		model.ChannelEmail: 3,
		model.ChannelSMS:   7,
		model.ChannelCall:  1,
	}
	assert.Equal(t, model.ChannelSMS, topChannel(counts))
	assert.Equal(t, model.Channel(""), topChannel(nil))
}

func TestTopTemplatesOrderedAndCapped(t *testing.T) {
	aggs := make(map[uuid.UUID]*templateAgg)
	for i := 0; i < 8; i++ {
		aggs[uuid.New()] = &templateAgg{total: 10, engaged: i, responded: i}
	}
	top := topTemplates(aggs, nil, 5)
	require.Len(t, top, 5)
	for i := 1; i < len(top); i++ {
		assert.GreaterOrEqual(t, top[i-1].EngagedCount, top[i].EngagedCount)
	}
	assert.Equal(t, 7, top[0].EngagedCount)
	assert.Equal(t, 70.0, top[0].ResponseRate)
}
