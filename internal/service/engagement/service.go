// Package engagement aggregates interaction events into stakeholder-,
// channel-, content-, and time-bucketed metrics. All aggregations are
// stateless single passes over the event log; store failures degrade
// to empty results rather than failing the caller.
package engagement

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/cadencehq/cadence/internal/model"
	"github.com/cadencehq/cadence/internal/storage"
)

// Granularity selects the bucket size for engagement trends.
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
)

// Service encapsulates engagement aggregation logic.
type Service struct {
	db     *storage.DB
	logger *slog.Logger
}

// New creates a new engagement Service.
func New(db *storage.DB, logger *slog.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// loadEvents fetches windowed events plus the contact records behind
// them. Store failures are logged and surface as empty slices.
func (s *Service) loadEvents(ctx context.Context, window model.TimeRange) ([]model.InteractionEvent, map[string]model.Contact) {
	events, err := s.db.GetEvents(ctx, model.EventFilters{TimeRange: &window}, 0)
	if err != nil {
		s.logger.Error("engagement: event scan failed, degrading to empty", "error", err)
		return nil, nil
	}

	idSet := make(map[string]bool)
	for _, ev := range events {
		idSet[ev.ContactID] = true
	}
	ids := make([]string, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}

	contacts, err := s.db.GetContactsByIDs(ctx, ids)
	if err != nil {
		s.logger.Error("engagement: contact lookup failed, stakeholder axes default to Other", "error", err)
		contacts = map[string]model.Contact{}
	}
	return events, contacts
}

// stakeholderOf resolves an event's stakeholder type through the
// contact registry, classifying unknown contacts as Other.
func stakeholderOf(ev model.InteractionEvent, contacts map[string]model.Contact) model.StakeholderType {
	if c, ok := contacts[ev.ContactID]; ok {
		if c.Type != "" {
			return c.Type
		}
		return Classify(c.Title)
	}
	return model.StakeholderOther
}

// StakeholderEngagement partitions events by stakeholder type and
// aggregates engagement behavior per partition. When typeFilter is
// non-nil only that partition is returned.
func (s *Service) StakeholderEngagement(ctx context.Context, typeFilter *model.StakeholderType, window model.TimeRange) []model.StakeholderEngagement {
	events, contacts := s.loadEvents(ctx, window)

	type agg struct {
		contacts      map[string]bool
		engaged       map[string]bool
		totalEvents   int
		engagedEvents int
		responseSum   float64
		responseCount int
		channelCounts map[model.Channel]int
		slotCounts    map[string]int
		templates     map[uuid.UUID]*templateAgg
	}
	aggs := make(map[model.StakeholderType]*agg)

	get := func(st model.StakeholderType) *agg {
		a := aggs[st]
		if a == nil {
			a = &agg{
				contacts:      make(map[string]bool),
				engaged:       make(map[string]bool),
				channelCounts: make(map[model.Channel]int),
				slotCounts:    make(map[string]int),
				templates:     make(map[uuid.UUID]*templateAgg),
			}
			aggs[st] = a
		}
		return a
	}

	for _, ev := range events {
		st := stakeholderOf(ev, contacts)
		if typeFilter != nil && st != *typeFilter {
			continue
		}
		a := get(st)
		a.contacts[ev.ContactID] = true
		a.totalEvents++

		ta := a.templates[ev.TemplateID]
		if ta == nil {
			ta = &templateAgg{}
			a.templates[ev.TemplateID] = ta
		}
		ta.total++
		if ev.InteractionType == model.InteractionResponded {
			ta.responded++
		}

		if ev.ResponseTimeHours != nil {
			a.responseSum += *ev.ResponseTimeHours
			a.responseCount++
		}
		if ev.Engaged || model.EngagedType(ev.InteractionType) {
			a.engagedEvents++
			a.engaged[ev.ContactID] = true
			if ev.Channel != "" {
				a.channelCounts[ev.Channel]++
			}
			a.slotCounts[slotKey(ev.OccurredAt)]++
			ta.engaged++
		}
	}

	names := s.templateNames(ctx)

	out := make([]model.StakeholderEngagement, 0, len(aggs))
	for st, a := range aggs {
		se := model.StakeholderEngagement{
			StakeholderType: st,
			TotalContacts:   len(a.contacts),
			EngagedContacts: len(a.engaged),
			TotalEvents:     a.totalEvents,
			EngagedEvents:   a.engagedEvents,
		}
		if len(a.contacts) > 0 {
			se.EngagementRate = float64(len(a.engaged)) / float64(len(a.contacts)) * 100
		}
		if a.responseCount > 0 {
			se.AvgResponseHours = a.responseSum / float64(a.responseCount)
		}
		se.PreferredChannel = topChannel(a.channelCounts)
		se.BestTimeSlot = topSlot(a.slotCounts)
		se.TopTemplates = topTemplates(a.templates, names, 5)
		out = append(out, se)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].EngagementRate > out[j].EngagementRate
	})
	return out
}

type templateAgg struct {
	total     int
	engaged   int
	responded int
}

func (s *Service) templateNames(ctx context.Context) map[uuid.UUID]string {
	templates, err := s.db.ListTemplates(ctx)
	if err != nil {
		s.logger.Error("engagement: template list failed, names omitted", "error", err)
		return nil
	}
	names := make(map[uuid.UUID]string, len(templates))
	for _, t := range templates {
		names[t.ID] = t.Name
	}
	return names
}

func topChannel(counts map[model.Channel]int) model.Channel {
	var best model.Channel
	bestN := 0
	for _, ch := range model.Channels {
		if counts[ch] > bestN {
			best, bestN = ch, counts[ch]
		}
	}
	return best
}

func topSlot(counts map[string]int) string {
	var best string
	bestN := 0
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if counts[k] > bestN {
			best, bestN = k, counts[k]
		}
	}
	return best
}

func topTemplates(aggs map[uuid.UUID]*templateAgg, names map[uuid.UUID]string, n int) []model.TemplateEngagement {
	out := make([]model.TemplateEngagement, 0, len(aggs))
	for id, a := range aggs {
		te := model.TemplateEngagement{
			TemplateID:   id.String(),
			TemplateName: names[id],
			EngagedCount: a.engaged,
		}
		if a.total > 0 {
			te.ResponseRate = float64(a.responded) / float64(a.total) * 100
		}
		out = append(out, te)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EngagedCount != out[j].EngagedCount {
			return out[i].EngagedCount > out[j].EngagedCount
		}
		return out[i].TemplateID < out[j].TemplateID
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// Heatmap aggregates engagement into (stakeholder type, day-of-week,
// hour-of-day) buckets in a single pass. Only populated buckets are
// returned.
func (s *Service) Heatmap(ctx context.Context, typeFilter *model.StakeholderType, window model.TimeRange) []model.HeatmapCell {
	events, contacts := s.loadEvents(ctx, window)

	type key struct {
		st   model.StakeholderType
		day  int
		hour int
	}
	type cell struct {
		interactions  int
		engaged       int
		responses     int
		responseSum   float64
		responseCount int
	}
	cells := make(map[key]*cell)

	for _, ev := range events {
		st := stakeholderOf(ev, contacts)
		if typeFilter != nil && st != *typeFilter {
			continue
		}
		k := key{st, int(ev.OccurredAt.Weekday()), ev.OccurredAt.Hour()}
		c := cells[k]
		if c == nil {
			c = &cell{}
			cells[k] = c
		}
		c.interactions++
		if ev.Engaged || model.EngagedType(ev.InteractionType) {
			c.engaged++
		}
		if ev.InteractionType == model.InteractionResponded {
			c.responses++
		}
		if ev.ResponseTimeHours != nil {
			c.responseSum += *ev.ResponseTimeHours
			c.responseCount++
		}
	}

	out := make([]model.HeatmapCell, 0, len(cells))
	for k, c := range cells {
		hc := model.HeatmapCell{
			StakeholderType: k.st,
			Day:             k.day,
			Hour:            k.hour,
			Interactions:    c.interactions,
			EngagedCount:    c.engaged,
			ResponseCount:   c.responses,
		}
		if c.interactions > 0 {
			hc.EngagementScore = float64(c.engaged) / float64(c.interactions) * 100
			hc.ResponseRate = float64(c.responses) / float64(c.interactions) * 100
		}
		if c.responseCount > 0 {
			hc.AvgResponseHours = c.responseSum / float64(c.responseCount)
		}
		out = append(out, hc)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.StakeholderType != b.StakeholderType {
			return a.StakeholderType < b.StakeholderType
		}
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		return a.Hour < b.Hour
	})
	return out
}

// ChannelPerformance computes the delivery funnel for each of the four
// fixed channels. Stages rate against the preceding stage, except
// response rate which rates against delivered.
func (s *Service) ChannelPerformance(ctx context.Context, window model.TimeRange) []model.ChannelPerformance {
	events, err := s.db.GetEvents(ctx, model.EventFilters{TimeRange: &window}, 0)
	if err != nil {
		s.logger.Error("engagement: event scan failed, degrading to empty", "error", err)
		events = nil
	}

	return ChannelFunnel(events)
}

// ChannelFunnel is the pure funnel fold, exposed for the channel
// heuristics in recommendation synthesis.
func ChannelFunnel(events []model.InteractionEvent) []model.ChannelPerformance {
	byChannel := make(map[model.Channel]*model.ChannelPerformance, len(model.Channels))
	for _, ch := range model.Channels {
		byChannel[ch] = &model.ChannelPerformance{Channel: ch}
	}

	for _, ev := range events {
		cp := byChannel[ev.Channel]
		if cp == nil {
			continue
		}
		switch ev.InteractionType {
		case model.InteractionSent:
			cp.Sent++
		case model.InteractionDelivered:
			cp.Delivered++
		case model.InteractionOpened:
			cp.Opened++
		case model.InteractionClicked:
			cp.Clicked++
		case model.InteractionResponded:
			cp.Responded++
		}
	}

	out := make([]model.ChannelPerformance, 0, len(model.Channels))
	for _, ch := range model.Channels {
		cp := byChannel[ch]
		if cp.Sent > 0 {
			cp.DeliveryRate = float64(cp.Delivered) / float64(cp.Sent) * 100
		}
		if cp.Delivered > 0 {
			cp.OpenRate = float64(cp.Opened) / float64(cp.Delivered) * 100
			cp.ResponseRate = float64(cp.Responded) / float64(cp.Delivered) * 100
		}
		if cp.Opened > 0 {
			cp.ClickRate = float64(cp.Clicked) / float64(cp.Opened) * 100
		}
		out = append(out, *cp)
	}
	return out
}

// ContentPerformance groups events by their content signature
// (template, content type, subject, preview) and computes engagement
// and sentiment per group.
func (s *Service) ContentPerformance(ctx context.Context, window model.TimeRange) []model.ContentPerformance {
	events, err := s.db.GetEvents(ctx, model.EventFilters{TimeRange: &window}, 0)
	if err != nil {
		s.logger.Error("engagement: event scan failed, degrading to empty", "error", err)
		return nil
	}
	names := s.templateNames(ctx)

	type key struct {
		template uuid.UUID
		typ      string
		subject  string
		preview  string
	}
	type agg struct {
		total        int
		engaged      int
		converted    int
		sentimentSum float64
		sentimentN   int
	}
	groups := make(map[key]*agg)

	for _, ev := range events {
		k := key{ev.TemplateID, ev.ContentType, ev.SubjectLine, ev.PreviewText}
		a := groups[k]
		if a == nil {
			a = &agg{}
			groups[k] = a
		}
		a.total++
		if ev.Engaged || model.EngagedType(ev.InteractionType) {
			a.engaged++
		}
		if ev.InteractionType == model.InteractionConverted {
			a.converted++
		}
		if ev.SentimentScore != nil {
			a.sentimentSum += *ev.SentimentScore
			a.sentimentN++
		}
	}

	out := make([]model.ContentPerformance, 0, len(groups))
	for k, a := range groups {
		cp := model.ContentPerformance{
			ContentType:    k.typ,
			SubjectLine:    k.subject,
			TemplateName:   names[k.template],
			TotalEvents:    a.total,
			EngagedEvents:  a.engaged,
			SentimentCount: a.sentimentN,
		}
		if a.total > 0 {
			cp.EngagementRate = float64(a.engaged) / float64(a.total) * 100
			cp.ConversionRate = float64(a.converted) / float64(a.total) * 100
		}
		if a.sentimentN > 0 {
			cp.AvgSentiment = a.sentimentSum / float64(a.sentimentN)
		}
		out = append(out, cp)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].EngagementRate > out[j].EngagementRate
	})
	return out
}

// Trends buckets engagement by calendar period.
func (s *Service) Trends(ctx context.Context, granularity Granularity, window model.TimeRange) []model.TrendPoint {
	events, err := s.db.GetEvents(ctx, model.EventFilters{TimeRange: &window}, 0)
	if err != nil {
		s.logger.Error("engagement: event scan failed, degrading to empty", "error", err)
		return nil
	}

	type agg struct {
		total    int
		engaged  int
		contacts map[string]bool
	}
	buckets := make(map[string]*agg)

	for _, ev := range events {
		var period string
		switch granularity {
		case GranularityWeek:
			year, week := ev.OccurredAt.ISOWeek()
			period = fmt.Sprintf("%d-W%02d", year, week)
		case GranularityMonth:
			period = ev.OccurredAt.Format("2006-01")
		default:
			period = ev.OccurredAt.Format("2006-01-02")
		}
		a := buckets[period]
		if a == nil {
			a = &agg{contacts: make(map[string]bool)}
			buckets[period] = a
		}
		a.total++
		a.contacts[ev.ContactID] = true
		if ev.Engaged || model.EngagedType(ev.InteractionType) {
			a.engaged++
		}
	}

	out := make([]model.TrendPoint, 0, len(buckets))
	for period, a := range buckets {
		tp := model.TrendPoint{
			Period:         period,
			TotalEvents:    a.total,
			EngagedEvents:  a.engaged,
			UniqueContacts: len(a.contacts),
		}
		if a.total > 0 {
			tp.EngagementRate = float64(a.engaged) / float64(a.total) * 100
		}
		out = append(out, tp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out
}
