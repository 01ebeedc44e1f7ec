package models

import "fmt"

// RolloutAction is the decision taken for a single simulated rollout step.
type RolloutAction uint8

const (
	ActionProceed RolloutAction = iota
	ActionPause
	ActionAccelerate
	ActionRollback
)

// RolloutActions lists every action in declaration order.
var RolloutActions = []RolloutAction{ActionProceed, ActionPause, ActionAccelerate, ActionRollback}

func (a RolloutAction) String() string {
	switch a {
	case ActionProceed:
		return "proceed"
	case ActionPause:
		return "pause"
	case ActionAccelerate:
		return "accelerate"
	case ActionRollback:
		return "rollback"
	}
	panic(fmt.Sprintf("models: unknown rollout action %d", uint8(a)))
}

func (a RolloutAction) MarshalText() ([]byte, error) {
	if a > ActionRollback {
		return nil, fmt.Errorf("unknown rollout action %d", uint8(a))
	}
	return []byte(a.String()), nil
}

func (a *RolloutAction) UnmarshalText(text []byte) error {
	for _, candidate := range RolloutActions {
		if candidate.String() == string(text) {
			*a = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown rollout action %q", string(text))
}

// LiveAction is the recommendation issued against live traffic.
type LiveAction uint8

const (
	LiveContinue LiveAction = iota
	LivePause
	LiveAccelerate
	LiveRollback
)

var LiveActions = []LiveAction{LiveContinue, LivePause, LiveAccelerate, LiveRollback}

func (a LiveAction) String() string {
	switch a {
	case LiveContinue:
		return "continue"
	case LivePause:
		return "pause"
	case LiveAccelerate:
		return "accelerate"
	case LiveRollback:
		return "rollback"
	}
	panic(fmt.Sprintf("models: unknown live action %d", uint8(a)))
}

func (a LiveAction) MarshalText() ([]byte, error) {
	if a > LiveRollback {
		return nil, fmt.Errorf("unknown live action %d", uint8(a))
	}
	return []byte(a.String()), nil
}

func (a *LiveAction) UnmarshalText(text []byte) error {
	for _, candidate := range LiveActions {
		if candidate.String() == string(text) {
			*a = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown live action %q", string(text))
}
