package domain

import "fmt"

// InterceptState is the explicit form of the blocking_now flag.
type InterceptState int

const (
	Idle InterceptState = iota
	Intercepting
)

func (s InterceptState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Intercepting:
		return "intercepting"
	default:
		return "unknown"
	}
}

// InterceptStateOf converts the persisted flag.
func InterceptStateOf(blockingNow bool) InterceptState {
	if blockingNow {
		return Intercepting
	}
	return Idle
}

// Flag converts back to the persisted flag.
func (s InterceptState) Flag() bool {
	return s == Intercepting
}

// InterceptEvent drives the interception state machine.
type InterceptEvent string

const (
	InterceptBegin    InterceptEvent = "begin"
	InterceptGoBack   InterceptEvent = "go_back"
	InterceptEndFocus InterceptEvent = "end_focus"
	InterceptTeardown InterceptEvent = "teardown"
	// InterceptFocusOff resets the guard when focus mode is switched off.
	InterceptFocusOff InterceptEvent = "focus_off"
)

type interceptEdge struct {
	from InterceptState
	ev   InterceptEvent
}

// Release events are accepted from Idle so every exit path can reset
// unconditionally. Only Intercepting -> Intercepting is absent.
var interceptTransitions = map[interceptEdge]InterceptState{
	{Idle, InterceptBegin}:            Intercepting,
	{Intercepting, InterceptGoBack}:   Idle,
	{Intercepting, InterceptEndFocus}: Idle,
	{Intercepting, InterceptTeardown}: Idle,
	{Intercepting, InterceptFocusOff}: Idle,
	{Idle, InterceptGoBack}:           Idle,
	{Idle, InterceptEndFocus}:         Idle,
	{Idle, InterceptTeardown}:         Idle,
	{Idle, InterceptFocusOff}:         Idle,
}

// Next returns the state reached from s on ev.
func (s InterceptState) Next(ev InterceptEvent) (InterceptState, error) {
	next, ok := interceptTransitions[interceptEdge{s, ev}]
	if !ok {
		if s == Intercepting && ev == InterceptBegin {
			return s, ErrAlreadyIntercepting
		}
		return s, fmt.Errorf("%w: %s on %s", ErrIllegalTransition, s, ev)
	}
	return next, nil
}

// InterceptEventFor maps a surface outcome to its release event.
func InterceptEventFor(o Outcome) InterceptEvent {
	switch o {
	case OutcomeGoBack:
		return InterceptGoBack
	case OutcomeEndFocus:
		return InterceptEndFocus
	default:
		return InterceptTeardown
	}
}

// PresenceState is whether the presence process is alive.
type PresenceState int

const (
	PresenceStopped PresenceState = iota
	PresenceRunning
)

func (s PresenceState) String() string {
	if s == PresenceRunning {
		return "running"
	}
	return "stopped"
}

// PresenceCommand is one of the two external presence commands.
type PresenceCommand string

const (
	PresenceStart PresenceCommand = "start"
	PresenceStop  PresenceCommand = "stop"
)

// PresenceEffect is the side effect a presence transition requires.
type PresenceEffect int

const (
	EffectNone PresenceEffect = iota
	EffectSpawn
	EffectTerminate
)

type presenceEdge struct {
	from PresenceState
	cmd  PresenceCommand
}

type presenceStep struct {
	to     PresenceState
	effect PresenceEffect
}

// Start on a running process and stop on a stopped one are no-ops.
var presenceTransitions = map[presenceEdge]presenceStep{
	{PresenceStopped, PresenceStart}: {PresenceRunning, EffectSpawn},
	{PresenceRunning, PresenceStart}: {PresenceRunning, EffectNone},
	{PresenceRunning, PresenceStop}:  {PresenceStopped, EffectTerminate},
	{PresenceStopped, PresenceStop}:  {PresenceStopped, EffectNone},
}

// Next returns the state reached from s on cmd and the effect to perform.
func (s PresenceState) Next(cmd PresenceCommand) (PresenceState, PresenceEffect, error) {
	step, ok := presenceTransitions[presenceEdge{s, cmd}]
	if !ok {
		return s, EffectNone, fmt.Errorf("%w: %s on %s", ErrIllegalTransition, s, cmd)
	}
	return step.to, step.effect, nil
}
