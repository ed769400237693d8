package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yourname/babysleep/internal"
)

type FlowState int

const (
	StateIdle FlowState = iota
	StateCollisionDetected
	StateConfirmingWakeUp
)

func (s FlowState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCollisionDetected:
		return "collision-detected"
	case StateConfirmingWakeUp:
		return "confirming-wake-up"
	default:
		return fmt.Sprintf("FlowState(%d)", int(s))
	}
}

var ErrInvalidTransition = errors.New("invalid resolution transition")

// ResolutionFlow drives one caregiver's write through collision resolution
// and wake-up confirmation. It is not safe for concurrent use.
//
//	idle --Submit--> idle | collision-detected
//	collision-detected --Replace--> idle
//	collision-detected --Cancel--> idle
//	idle --BeginWakeUp--> confirming-wake-up
//	confirming-wake-up --ConfirmWakeUp--> idle (stays on block or collision)
//	confirming-wake-up --Cancel--> idle
type ResolutionFlow struct {
	svc       *SleepService
	state     FlowState
	pending   *EntryRequest
	colliding *internal.SleepEntry
	waking    *internal.SleepEntry
}

func (s *SleepService) NewFlow() *ResolutionFlow {
	return &ResolutionFlow{svc: s}
}

func (f *ResolutionFlow) State() FlowState { return f.state }

// Pending is the entry waiting on a collision decision.
func (f *ResolutionFlow) Pending() *EntryRequest { return f.pending }

func (f *ResolutionFlow) Colliding() *internal.SleepEntry { return f.colliding }

// WakingEntry is the sleep whose end is being confirmed.
func (f *ResolutionFlow) WakingEntry() *internal.SleepEntry { return f.waking }

func (f *ResolutionFlow) require(state FlowState, op string) error {
	if f.state != state {
		return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, op, f.state)
	}
	return nil
}

func (f *ResolutionFlow) reset() {
	f.state = StateIdle
	f.pending = nil
	f.colliding = nil
	f.waking = nil
}

func (f *ResolutionFlow) Submit(ctx context.Context, req EntryRequest) (SubmitResult, error) {
	if err := f.require(StateIdle, "submit"); err != nil {
		return SubmitResult{}, err
	}
	res, err := f.svc.Submit(ctx, req)
	if err != nil {
		return res, err
	}
	if res.Outcome == OutcomeCollision {
		pending := req
		f.state = StateCollisionDetected
		f.pending = &pending
		f.colliding = res.Colliding
	}
	return res, nil
}

// Replace deletes the colliding entry and saves the pending one.
func (f *ResolutionFlow) Replace(ctx context.Context) (SubmitResult, error) {
	if err := f.require(StateCollisionDetected, "replace"); err != nil {
		return SubmitResult{}, err
	}
	res, err := f.svc.Replace(ctx, *f.pending, f.colliding.ID)
	if err != nil {
		return res, err
	}
	switch res.Outcome {
	case OutcomeCollision:
		f.colliding = res.Colliding
	default:
		f.reset()
	}
	return res, nil
}

func (f *ResolutionFlow) Cancel() {
	f.reset()
}

func (f *ResolutionFlow) BeginWakeUp(entry internal.SleepEntry) error {
	if err := f.require(StateIdle, "begin wake-up"); err != nil {
		return err
	}
	if !entry.IsActive() {
		return fmt.Errorf("%w: entry %s is not in progress", ErrInvalidTransition, entry.ID)
	}
	waking := entry.Clone()
	f.state = StateConfirmingWakeUp
	f.waking = &waking
	return nil
}

func (f *ResolutionFlow) ConfirmWakeUp(ctx context.Context, at time.Time) (SubmitResult, error) {
	if err := f.require(StateConfirmingWakeUp, "confirm wake-up"); err != nil {
		return SubmitResult{}, err
	}
	res, err := f.svc.EndSleep(ctx, f.waking.ID, at)
	if err != nil {
		return res, err
	}
	if res.Outcome == OutcomeSaved {
		f.reset()
	}
	return res, nil
}
