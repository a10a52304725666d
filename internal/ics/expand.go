package ics

import (
	"context"
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	appLog "calgrid/internal/log"
	"calgrid/internal/model"
)

const defaultMaxOccurrencesPerEvent = 5000

// ExpandConfig controls recurrence expansion.
type ExpandConfig struct {
	// DisplayLocation is the timezone occurrences are converted into.
	// Defaults to time.Local.
	DisplayLocation *time.Location

	// Range is the half-open visible interval occurrences must intersect.
	Range model.DateInterval

	// MaxOccurrencesPerEvent caps runaway recurrences. Zero means the
	// package default.
	MaxOccurrencesPerEvent int
}

// Expand turns raw events into canonical events inside cfg.Range,
// handling RRULE recurrence, EXDATE removal, RECURRENCE-ID overrides, and
// all-day day windows. Each occurrence's ID is the UID plus its instance
// start, so recurring instances stay distinct in the store.
func Expand(events []rawEvent, cfg ExpandConfig) ([]model.Event, error) {
	if cfg.Range.End.Before(cfg.Range.Start) {
		return nil, errors.New("ics: expand range end before start")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	baseByUID := make(map[string][]rawEvent)
	overridesByUID := make(map[string][]rawEvent)
	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
		} else {
			baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
		}
	}

	out := make([]model.Event, 0)
	for uid, bases := range baseByUID {
		overrides := overridesByUID[uid]
		for _, ev := range bases {
			occ, hitCap := expandOne(ev, overrides, cfg)
			out = append(out, occ...)
			if hitCap {
				appLog.Error("ics: occurrence cap hit", errors.New("max occurrences reached"),
					"uid", uid, "cap", cfg.MaxOccurrencesPerEvent)
			}
		}
	}
	return out, nil
}

func expandOne(ev rawEvent, overrides []rawEvent, cfg ExpandConfig) ([]model.Event, bool) {
	if ev.RawRRule == "" {
		return expandSingle(ev, overrides, cfg), false
	}
	return expandRecurring(ev, overrides, cfg)
}

func expandSingle(ev rawEvent, overrides []rawEvent, cfg ExpandConfig) []model.Event {
	if !rangesTouch(ev.Start, ev.End, cfg.Range.Start, cfg.Range.End) {
		return nil
	}

	start, end := ev.Start, ev.End
	if o, ok := overrideFor(overrides, start); ok {
		start, end, ev = o.Start, o.End, o
	}
	return []model.Event{makeEvent(ev, start, end, cfg.DisplayLocation)}
}

func expandRecurring(ev rawEvent, overrides []rawEvent, cfg ExpandConfig) ([]model.Event, bool) {
	out := make([]model.Event, 0)

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("ics: bad RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return out, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	rangeStart := cfg.Range.Start.In(ev.Start.Location())
	rangeEnd := cfg.Range.End.In(ev.Start.Location())
	occTimes := set.Between(rangeStart, rangeEnd, true)

	hitCap := false
	if len(occTimes) > cfg.MaxOccurrencesPerEvent {
		occTimes = occTimes[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	for _, occStart := range occTimes {
		var occEnd time.Time
		if ev.AllDay {
			day := time.Date(occStart.Year(), occStart.Month(), occStart.Day(), 0, 0, 0, 0, occStart.Location())
			occStart = day
			occEnd = day.AddDate(0, 0, 1)
		} else {
			occEnd = occStart.Add(ev.End.Sub(ev.Start))
		}

		instEv, start, end := ev, occStart, occEnd
		if o, ok := overrideFor(overrides, occStart); ok {
			instEv, start, end = o, o.Start, o.End
		}
		out = append(out, makeEvent(instEv, start, end, cfg.DisplayLocation))
	}
	return out, hitCap
}

// overrideFor finds the override whose RECURRENCE-ID equals the instance
// start, compared in the instance's own location.
func overrideFor(overrides []rawEvent, instanceStart time.Time) (rawEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence == nil {
			continue
		}
		if ov.Recurrence.In(instanceStart.Location()).Equal(instanceStart) {
			return ov, true
		}
	}
	return rawEvent{}, false
}

func makeEvent(ev rawEvent, start, end time.Time, loc *time.Location) model.Event {
	startLocal := start.In(loc)
	return model.Event{
		ID:     ev.UID + "/" + startLocal.Format(time.RFC3339),
		Title:  ev.Summary,
		Start:  startLocal,
		End:    end.In(loc),
		Source: ev.Source.ID,
	}
}

func rangesTouch(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aEnd.Before(bStart) && !bEnd.Before(aStart)
}

// Load is the full pipeline for one set of sources: fetch every feed,
// parse, and expand into cfg.Range. Per-source failures are logged and
// skipped; the remaining feeds still produce events.
func Load(ctx context.Context, fetcher *Fetcher, sources []Source, cfg ExpandConfig) ([]model.Event, error) {
	// Per-source fetch errors are already logged by FetchAll.
	results, _ := fetcher.FetchAll(ctx, sources)

	parsed := make([]rawEvent, 0)
	for _, res := range results {
		events, err := Parse(res.Source, res.Body)
		if err != nil {
			continue
		}
		parsed = append(parsed, events...)
	}
	return Expand(parsed, cfg)
}
