package engagement

import (
	"fmt"
	"strings"
	"time"

	"github.com/cadencehq/cadence/internal/model"
)

// Classify maps a free-text job title to a stakeholder type via
// case-insensitive keyword containment. Keyword groups are checked in
// priority order; the first match wins.
func Classify(title string) model.StakeholderType {
	t := strings.ToLower(title)
	switch {
	case containsAny(t, "doctor", "physician", "surgeon"):
		return model.StakeholderDoctor
	case containsAny(t, "nurse", "rn"):
		return model.StakeholderNurse
	case containsAny(t, "admin", "manager", "director"):
		return model.StakeholderAdministrator
	case containsAny(t, "tech", "technician"):
		return model.StakeholderTechnician
	default:
		return model.StakeholderOther
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// slotFor buckets an hour of the day into a time slot.
func slotFor(hour int) model.TimeSlot {
	switch {
	case hour >= 6 && hour < 12:
		return model.SlotMorning
	case hour >= 12 && hour < 17:
		return model.SlotAfternoon
	case hour >= 17 && hour < 21:
		return model.SlotEvening
	default:
		return model.SlotNight
	}
}

// slotKey combines the weekday name and time slot into the composite
// key used for preferred-slot frequency counts, e.g. Tuesday_Morning.
func slotKey(t time.Time) string {
	return fmt.Sprintf("%s_%s", t.Weekday(), slotFor(t.Hour()))
}
