package model

import (
	"bytes"
	"encoding/json"
	"slices"

	"github.com/m-mizutani/goerr/v2"
)

// EventKind names an event type in JSON payloads
type EventKind string

const (
	EventWorkout             EventKind = "workout"
	EventDailySummary        EventKind = "daily_summary"
	EventMeal                EventKind = "meal"
	EventSleep               EventKind = "sleep"
	EventStress              EventKind = "stress"
	EventBloodTest           EventKind = "blood_test"
	EventBodyScan            EventKind = "body_scan"
	EventCGM                 EventKind = "cgm"
	EventInterventionPlan    EventKind = "intervention_plan"
	EventInterventionOutcome EventKind = "intervention_outcome"
)

func (k EventKind) String() string { return string(k) }

var eventDecoders = map[EventKind]func([]byte) (Event, error){
	EventWorkout:             decodeAs[WorkoutEvent],
	EventDailySummary:        decodeAs[DailySummaryEvent],
	EventMeal:                decodeAs[MealEvent],
	EventSleep:               decodeAs[SleepEvent],
	EventStress:              decodeAs[StressEvent],
	EventBloodTest:           decodeAs[BloodTestEvent],
	EventBodyScan:            decodeAs[BodyScanEvent],
	EventCGM:                 decodeAs[CGMEvent],
	EventInterventionPlan:    decodeAs[InterventionPlanEvent],
	EventInterventionOutcome: decodeAs[InterventionOutcomeEvent],
}

// EventKinds returns every decodable kind, sorted
func EventKinds() []EventKind {
	kinds := make([]EventKind, 0, len(eventDecoders))
	for k := range eventDecoders {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// DecodeEvent parses a JSON payload of the given kind. Unknown kinds and
// unknown fields are rejected.
func DecodeEvent(kind EventKind, raw []byte) (Event, error) {
	decode, ok := eventDecoders[kind]
	if !ok {
		return nil, goerr.Wrap(ErrInvalidEvent, "unknown event kind",
			goerr.V(EventKindKey, kind),
			goerr.V("supported", EventKinds()),
		)
	}
	ev, err := decode(raw)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to decode event", goerr.V(EventKindKey, kind))
	}
	return ev, nil
}

func decodeAs[T Event](raw []byte) (Event, error) {
	var ev T
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&ev); err != nil {
		return nil, goerr.Wrap(ErrInvalidEvent, err.Error())
	}
	return ev, nil
}
