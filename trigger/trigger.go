// File: trigger/trigger.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Trigger specifications: ordered stages of channel match conditions.

// Package trigger defines the trigger specification a session verifies
// before starting acquisition. The core does not evaluate triggers; it
// only checks that a spec is well-formed and hands it to the drivers.
package trigger

import (
	"fmt"
	"log/slog"

	"github.com/momentics/sigcore/api"
	"github.com/momentics/sigcore/device"
)

// MatchType is a trigger match condition code. The zero value is invalid;
// a match must carry one of the defined conditions.
type MatchType int

const (
	// MatchZero fires on a low level.
	MatchZero MatchType = iota + 1
	// MatchOne fires on a high level.
	MatchOne
	// MatchRising fires on a rising edge.
	MatchRising
	// MatchFalling fires on a falling edge.
	MatchFalling
	// MatchEdge fires on any edge.
	MatchEdge
	// MatchOver fires when an analog value exceeds the reference.
	MatchOver
	// MatchUnder fires when an analog value drops below the reference.
	MatchUnder
)

// Match binds a channel to a match condition.
type Match struct {
	// Channel is the channel the condition applies to.
	Channel *device.Channel

	// Match is the condition code; must be non-zero.
	Match MatchType

	// Value is the reference for analog conditions.
	Value float64
}

// Stage is one step of a trigger sequence.
type Stage struct {
	// Number is the stage position, starting at 0.
	Number int

	// Matches are the conditions of this stage; at least one required.
	Matches []*Match
}

// AddMatch appends a match condition to the stage.
func (s *Stage) AddMatch(ch *device.Channel, m MatchType, value float64) *Match {
	match := &Match{Channel: ch, Match: m, Value: value}
	s.Matches = append(s.Matches, match)
	return match
}

// Trigger is a named sequence of stages.
type Trigger struct {
	Name   string
	Stages []*Stage
}

// New creates an empty trigger spec.
func New(name string) *Trigger {
	return &Trigger{Name: name}
}

// AddStage appends an empty stage and returns it.
func (t *Trigger) AddStage() *Stage {
	stage := &Stage{Number: len(t.Stages)}
	t.Stages = append(t.Stages, stage)
	return stage
}

// Verify checks that the trigger is well-formed: at least one stage, every
// stage has at least one match, and every match names a channel and a
// non-zero condition.
func Verify(t *Trigger) error {
	if len(t.Stages) == 0 {
		slog.Error("trigger: no stages defined", "trigger", t.Name)
		return api.NewError(api.CodeErr, fmt.Sprintf("trigger %q: no stages defined", t.Name))
	}
	for _, stage := range t.Stages {
		if len(stage.Matches) == 0 {
			slog.Error("trigger: stage has no matches", "trigger", t.Name, "stage", stage.Number)
			return api.NewError(api.CodeErr, "stage has no matches defined").
				WithContext("trigger", t.Name).WithContext("stage", stage.Number)
		}
		for _, match := range stage.Matches {
			if match.Channel == nil {
				slog.Error("trigger: match has no channel", "trigger", t.Name, "stage", stage.Number)
				return api.NewError(api.CodeErr, "stage match has no channel").
					WithContext("trigger", t.Name).WithContext("stage", stage.Number)
			}
			if match.Match == 0 {
				slog.Error("trigger: match condition not set",
					"trigger", t.Name, "stage", stage.Number, "channel", match.Channel.Name)
				return api.NewError(api.CodeErr, "stage match condition not set").
					WithContext("trigger", t.Name).WithContext("stage", stage.Number)
			}
			slog.Debug("trigger: stage match",
				"trigger", t.Name, "stage", stage.Number,
				"channel", match.Channel.Name, "match", int(match.Match))
		}
	}
	return nil
}
