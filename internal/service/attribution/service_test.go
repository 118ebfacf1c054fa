package attribution

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/cadencehq/cadence/internal/model"
)

func touch(templateID uuid.UUID, at time.Time) model.InteractionEvent {
	return model.InteractionEvent{
		ID:              uuid.New(),
		TemplateID:      templateID,
		InteractionType: model.InteractionSent,
		OccurredAt:      at,
	}
}

func TestComputeSplitSoleAutomation(t *testing.T) {
	auto := uuid.New()
	base := time.Now().UTC()

	// An automation that owns every touch receives full credit under
	// all three policies.
	touches := []model.InteractionEvent{
		touch(auto, base),
		touch(auto, base.Add(24*time.Hour)),
	}
	got := computeSplit(touches, 100000, auto)
	assert.Equal(t, 100000.0, got.firstTouch)
	assert.Equal(t, 100000.0, got.lastTouch)
	assert.Equal(t, 100000.0, got.multiTouch)
}

func TestComputeSplitSharedPath(t *testing.T) {
	auto, other := uuid.New(), uuid.New()
	base := time.Now().UTC()

	touches := []model.InteractionEvent{
		touch(other, base),
		touch(auto, base.Add(time.Hour)),
		touch(auto, base.Add(2*time.Hour)),
		touch(other, base.Add(3*time.Hour)),
	}
	got := computeSplit(touches, 1000, auto)
	assert.Equal(t, 0.0, got.firstTouch, "earliest touch belongs to the other automation")
	assert.Equal(t, 0.0, got.lastTouch, "latest touch belongs to the other automation")
	assert.Equal(t, 500.0, got.multiTouch, "participation share is 2 of 4 touches")
}

func TestComputeSplitEmptyPath(t *testing.T) {
	got := computeSplit(nil, 1000, uuid.New())
	assert.Zero(t, got.firstTouch)
	assert.Zero(t, got.lastTouch)
	assert.Zero(t, got.multiTouch)
}

func TestTouchTypeByPosition(t *testing.T) {
	assert.Equal(t, model.TouchFirst, touchTypeFor(0, 1), "a lone touch is the first touch")

	assert.Equal(t, model.TouchFirst, touchTypeFor(0, 2))
	assert.Equal(t, model.TouchLast, touchTypeFor(1, 2))

	assert.Equal(t, model.TouchFirst, touchTypeFor(0, 4))
	assert.Equal(t, model.TouchMulti, touchTypeFor(1, 4))
	assert.Equal(t, model.TouchMulti, touchTypeFor(2, 4))
	assert.Equal(t, model.TouchLast, touchTypeFor(3, 4))
}

func TestMultiTouchSharesSumToAmount(t *testing.T) {
	// Summing every automation's participation share must reproduce
	// the opportunity amount. Same property underlies the equal-split
	// per-touchpoint view.
	autos := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	base := time.Now().UTC()

	var touches []model.InteractionEvent
	for i := 0; i < 7; i++ {
		touches = append(touches, touch(autos[i%3], base.Add(time.Duration(i)*time.Hour)))
	}

	const amount = 100000.0
	var total float64
	for _, a := range autos {
		total += computeSplit(touches, amount, a).multiTouch
	}
	assert.InDelta(t, amount, total, 0.0001)
}
