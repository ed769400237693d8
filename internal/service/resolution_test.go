package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourname/babysleep/internal"
)

func TestResolutionFlow_SubmitWithoutCollisionStaysIdle(t *testing.T) {
	f := newFixture(t, "2024-01-10T12:00")
	flow := f.svc.NewFlow()

	res, err := flow.Submit(context.Background(), request(internal.SleepTypeNap, "2024-01-10T10:00", "2024-01-10T10:30"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSaved, res.Outcome)
	assert.Equal(t, StateIdle, flow.State())
	assert.Nil(t, flow.Pending())
}

func TestResolutionFlow_CollisionThenReplace(t *testing.T) {
	f := newFixture(t, "2024-01-10T12:00")
	ctx := context.Background()
	a, err := f.svc.Submit(ctx, request(internal.SleepTypeNap, "2024-01-10T10:00", "2024-01-10T10:30"))
	require.NoError(t, err)

	flow := f.svc.NewFlow()
	req := request(internal.SleepTypeNap, "2024-01-10T10:15", "2024-01-10T10:45")
	res, err := flow.Submit(ctx, req)
	require.NoError(t, err)
	require.Equal(t, OutcomeCollision, res.Outcome)
	assert.Equal(t, StateCollisionDetected, flow.State())
	assert.Equal(t, a.Entry.ID, flow.Colliding().ID)
	assert.Equal(t, req, *flow.Pending())

	_, err = flow.Submit(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	res, err = flow.Replace(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSaved, res.Outcome)
	assert.Equal(t, StateIdle, flow.State())
	assert.Nil(t, flow.Colliding())

	entries, err := f.svc.Entries(ctx, "baby-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, res.Entry.ID, entries[0].ID)
}

func TestResolutionFlow_ReplaceMovesToNextCollision(t *testing.T) {
	f := newFixture(t, "2024-01-10T12:00")
	ctx := context.Background()
	a, err := f.svc.Submit(ctx, request(internal.SleepTypeNap, "2024-01-10T10:00", "2024-01-10T10:30"))
	require.NoError(t, err)
	b, err := f.svc.Submit(ctx, request(internal.SleepTypeNap, "2024-01-10T10:40", "2024-01-10T11:00"))
	require.NoError(t, err)

	flow := f.svc.NewFlow()
	_, err = flow.Submit(ctx, request(internal.SleepTypeNap, "2024-01-10T10:15", "2024-01-10T10:50"))
	require.NoError(t, err)
	require.Equal(t, a.Entry.ID, flow.Colliding().ID)

	res, err := flow.Replace(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCollision, res.Outcome)
	assert.Equal(t, StateCollisionDetected, flow.State())
	assert.Equal(t, b.Entry.ID, flow.Colliding().ID)

	entries, err := f.svc.Entries(ctx, "baby-1")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestResolutionFlow_CancelDiscardsPending(t *testing.T) {
	f := newFixture(t, "2024-01-10T12:00")
	ctx := context.Background()
	_, err := f.svc.Submit(ctx, request(internal.SleepTypeNap, "2024-01-10T10:00", "2024-01-10T10:30"))
	require.NoError(t, err)

	flow := f.svc.NewFlow()
	_, err = flow.Submit(ctx, request(internal.SleepTypeNap, "2024-01-10T10:15", "2024-01-10T10:45"))
	require.NoError(t, err)
	flow.Cancel()

	assert.Equal(t, StateIdle, flow.State())
	assert.Nil(t, flow.Pending())
	_, err = flow.Replace(ctx)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	entries, err := f.svc.Entries(ctx, "baby-1")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestResolutionFlow_WakeUp(t *testing.T) {
	f := newFixture(t, "2024-01-11T07:10")
	ctx := context.Background()
	res, err := f.svc.Submit(ctx, request(internal.SleepTypeNight, "2024-01-10T20:00", ""))
	require.NoError(t, err)
	sleeping := *res.Entry

	flow := f.svc.NewFlow()
	_, err = flow.ConfirmWakeUp(ctx, at("2024-01-11T07:00"))
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, flow.BeginWakeUp(sleeping))
	assert.Equal(t, StateConfirmingWakeUp, flow.State())
	assert.Equal(t, sleeping.ID, flow.WakingEntry().ID)
	assert.ErrorIs(t, flow.BeginWakeUp(sleeping), ErrInvalidTransition)

	// A wake-up at bedtime is blocked and leaves the flow waiting.
	res, err = flow.ConfirmWakeUp(ctx, at("2024-01-10T20:00"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeBlocked, res.Outcome)
	assert.Equal(t, StateConfirmingWakeUp, flow.State())

	res, err = flow.ConfirmWakeUp(ctx, at("2024-01-11T07:00"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSaved, res.Outcome)
	assert.Equal(t, StateIdle, flow.State())

	state, err := f.svc.State(ctx, "baby-1")
	require.NoError(t, err)
	assert.False(t, state.Asleep())
	require.NotNil(t, state.AwakeMinutes)
	assert.Equal(t, 10, *state.AwakeMinutes)
}

func TestResolutionFlow_BeginWakeUpRequiresActiveSleep(t *testing.T) {
	flow := (&SleepService{}).NewFlow()
	err := flow.BeginWakeUp(nap("n1", "2024-01-10T10:00", "2024-01-10T10:30"))
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StateIdle, flow.State())
}

func TestFlowState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "collision-detected", StateCollisionDetected.String())
	assert.Equal(t, "confirming-wake-up", StateConfirmingWakeUp.String())
	assert.Equal(t, "FlowState(9)", FlowState(9).String())
}
