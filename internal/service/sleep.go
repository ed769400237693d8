package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/yourname/babysleep/internal"
	"github.com/yourname/babysleep/internal/storage"
)

var validate = validator.New()

var (
	// ErrSaveFailed wraps every store failure on the write path. Nothing was
	// committed and the call can be retried.
	ErrSaveFailed = errors.New("sleep entry did not save")
	ErrWrongBaby  = errors.New("entry belongs to another baby")
)

type EntryRequest struct {
	BabyID    string             `json:"babyId" validate:"required"`
	Type      internal.SleepType `json:"type" validate:"required,oneof=nap night"`
	StartTime time.Time          `json:"startTime" validate:"required"`
	EndTime   *time.Time         `json:"endTime,omitempty" validate:"omitempty"`
}

func ValidateEntryRequest(req *EntryRequest) error {
	return validate.Struct(req)
}

func (r EntryRequest) entry() internal.SleepEntry {
	e := internal.SleepEntry{
		BabyID:    r.BabyID,
		Type:      r.Type,
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
	}
	return e.Clone()
}

type Outcome string

const (
	OutcomeSaved     Outcome = "saved"
	OutcomeBlocked   Outcome = "blocked"
	OutcomeCollision Outcome = "collision"
)

// SubmitResult is the answer to every write. A blocked or colliding
// candidate is a result, not an error.
type SubmitResult struct {
	Outcome    Outcome              `json:"outcome"`
	Entry      *internal.SleepEntry `json:"entry,omitempty"`
	Validation ValidationResult     `json:"validation"`
	Colliding  *internal.SleepEntry `json:"colliding,omitempty"`
}

// SleepService gates writes through validation and collision detection and
// serves the derived views. It keeps no state between calls: every
// operation reads a fresh snapshot from the store.
type SleepService struct {
	store   storage.EntryStore
	logger  internal.Logger
	now     internal.Clock
	timeout time.Duration
}

func NewSleepService(store storage.EntryStore, logger internal.Logger, clock internal.Clock, timeout time.Duration) *SleepService {
	if clock == nil {
		clock = time.Now
	}
	return &SleepService{store: store, logger: logger, now: clock, timeout: timeout}
}

func (s *SleepService) Now() time.Time { return s.now() }

func (s *SleepService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func saveFailed(err error) error {
	return fmt.Errorf("%w: %w", ErrSaveFailed, err)
}

func (s *SleepService) get(ctx context.Context, id string) (internal.SleepEntry, error) {
	e, err := s.store.Get(ctx, id)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return internal.SleepEntry{}, fmt.Errorf("service: get entry %s: %w", id, err)
	}
	return e, err
}

// Submit validates and creates a new entry.
func (s *SleepService) Submit(ctx context.Context, req EntryRequest) (SubmitResult, error) {
	if err := ValidateEntryRequest(&req); err != nil {
		return SubmitResult{}, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	req.EndTime = NormalizeEnd(req.StartTime, req.EndTime)
	check := ValidateInterval(req.Type, req.StartTime, req.EndTime)
	if check.Blocked() {
		return SubmitResult{Outcome: OutcomeBlocked, Validation: check}, nil
	}

	entries, err := s.store.ListForBaby(ctx, req.BabyID)
	if err != nil {
		return SubmitResult{}, saveFailed(err)
	}
	if hit := FindCollision(req.StartTime, req.EndTime, entries, "", s.now()); hit != nil {
		return SubmitResult{Outcome: OutcomeCollision, Validation: check, Colliding: hit}, nil
	}

	created, err := s.store.Create(ctx, req.entry())
	if err != nil {
		return s.resolveWriteError(ctx, req.BabyID, req.StartTime, req.EndTime, "", check, err)
	}
	s.logger.Infof("sleep: created %s entry %s for baby %s", created.Type, created.ID, created.BabyID)
	return SubmitResult{Outcome: OutcomeSaved, Entry: &created, Validation: check}, nil
}

// Edit applies patch to an existing entry. The entry never collides with
// itself.
func (s *SleepService) Edit(ctx context.Context, id string, patch internal.EntryPatch) (SubmitResult, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	current, err := s.get(ctx, id)
	if err != nil {
		return SubmitResult{}, err
	}
	return s.edit(ctx, current, patch)
}

func (s *SleepService) edit(ctx context.Context, current internal.SleepEntry, patch internal.EntryPatch) (SubmitResult, error) {
	merged := current.Clone()
	merged.Apply(patch)
	// The stored end must follow the stored start, so a wrapped end is
	// written back even when the patch only moved the start.
	if end := NormalizeEnd(merged.StartTime, merged.EndTime); end != merged.EndTime {
		merged.EndTime = end
		patch.EndTime = end
	}

	check := ValidateInterval(merged.Type, merged.StartTime, merged.EndTime)
	if check.Blocked() {
		return SubmitResult{Outcome: OutcomeBlocked, Validation: check}, nil
	}

	entries, err := s.store.ListForBaby(ctx, merged.BabyID)
	if err != nil {
		return SubmitResult{}, saveFailed(err)
	}
	if hit := FindCollision(merged.StartTime, merged.EndTime, entries, merged.ID, s.now()); hit != nil {
		return SubmitResult{Outcome: OutcomeCollision, Validation: check, Colliding: hit}, nil
	}

	updated, err := s.store.Update(ctx, merged.ID, patch)
	if err != nil {
		return s.resolveWriteError(ctx, merged.BabyID, merged.StartTime, merged.EndTime, merged.ID, check, err)
	}
	if !updated {
		return SubmitResult{}, storage.ErrNotFound
	}
	s.logger.Infof("sleep: updated entry %s for baby %s", merged.ID, merged.BabyID)
	return SubmitResult{Outcome: OutcomeSaved, Entry: &merged, Validation: check}, nil
}

// EndSleep sets the end of an entry. Ending an entry again at the same
// instant returns it unchanged without writing.
func (s *SleepService) EndSleep(ctx context.Context, id string, at time.Time) (SubmitResult, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	current, err := s.get(ctx, id)
	if err != nil {
		return SubmitResult{}, err
	}
	at = *NormalizeEnd(current.StartTime, &at)
	if current.EndTime != nil && current.EndTime.Equal(at) {
		check := ValidateInterval(current.Type, current.StartTime, current.EndTime)
		return SubmitResult{Outcome: OutcomeSaved, Entry: &current, Validation: check}, nil
	}
	return s.edit(ctx, current, internal.EntryPatch{EndTime: &at})
}

// Replace deletes the colliding entry and creates req in its place. If the
// create fails the deleted entry is written back.
func (s *SleepService) Replace(ctx context.Context, req EntryRequest, collidingID string) (SubmitResult, error) {
	if err := ValidateEntryRequest(&req); err != nil {
		return SubmitResult{}, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	req.EndTime = NormalizeEnd(req.StartTime, req.EndTime)
	check := ValidateInterval(req.Type, req.StartTime, req.EndTime)
	if check.Blocked() {
		return SubmitResult{Outcome: OutcomeBlocked, Validation: check}, nil
	}

	colliding, err := s.get(ctx, collidingID)
	if err != nil {
		return SubmitResult{}, err
	}
	if colliding.BabyID != req.BabyID {
		return SubmitResult{}, ErrWrongBaby
	}

	entries, err := s.store.ListForBaby(ctx, req.BabyID)
	if err != nil {
		return SubmitResult{}, saveFailed(err)
	}
	// Only one collision is resolved at a time.
	if hit := FindCollision(req.StartTime, req.EndTime, entries, collidingID, s.now()); hit != nil {
		return SubmitResult{Outcome: OutcomeCollision, Validation: check, Colliding: hit}, nil
	}

	if err := s.store.Delete(ctx, collidingID); err != nil {
		return SubmitResult{}, saveFailed(err)
	}
	created, err := s.store.Create(ctx, req.entry())
	if err != nil {
		s.restore(ctx, colliding)
		return SubmitResult{}, saveFailed(err)
	}
	s.logger.Infof("sleep: replaced entry %s with %s for baby %s", collidingID, created.ID, created.BabyID)
	return SubmitResult{Outcome: OutcomeSaved, Entry: &created, Validation: check}, nil
}

func (s *SleepService) restore(ctx context.Context, entry internal.SleepEntry) {
	ctx, cancel := s.withTimeout(context.WithoutCancel(ctx))
	defer cancel()
	if _, err := s.store.Create(ctx, entry); err != nil {
		s.logger.Errorf("sleep: failed to restore replaced entry %s: %v", entry.ID, err)
	}
}

// resolveWriteError turns a backend overlap rejection into a collision
// outcome. The snapshot check is advisory, so another caregiver may have
// written in between.
func (s *SleepService) resolveWriteError(ctx context.Context, babyID string, start time.Time, end *time.Time, excludeID string, check ValidationResult, err error) (SubmitResult, error) {
	if !errors.Is(err, storage.ErrOverlap) && !errors.Is(err, storage.ErrActiveSleepExists) {
		return SubmitResult{}, saveFailed(err)
	}
	entries, listErr := s.store.ListForBaby(ctx, babyID)
	if listErr != nil {
		return SubmitResult{}, saveFailed(err)
	}
	now := s.now()
	hit := FindCollision(start, end, entries, excludeID, now)
	if hit == nil && errors.Is(err, storage.ErrActiveSleepExists) {
		hit = DeriveAwakeState(entries, now).ActiveSleep
	}
	if hit == nil {
		return SubmitResult{}, saveFailed(err)
	}
	s.logger.Warnf("sleep: store rejected a write for baby %s after the snapshot check passed: %v", babyID, err)
	return SubmitResult{Outcome: OutcomeCollision, Validation: check, Colliding: hit}, nil
}

func (s *SleepService) Delete(ctx context.Context, id string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.store.Delete(ctx, id); err != nil {
		return saveFailed(err)
	}
	s.logger.Infof("sleep: deleted entry %s", id)
	return nil
}

func (s *SleepService) Get(ctx context.Context, id string) (internal.SleepEntry, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.get(ctx, id)
}

func (s *SleepService) Entries(ctx context.Context, babyID string) ([]internal.SleepEntry, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	entries, err := s.store.ListForBaby(ctx, babyID)
	if err != nil {
		return nil, fmt.Errorf("service: list entries: %w", err)
	}
	return entries, nil
}

func (s *SleepService) EntriesForDate(ctx context.Context, babyID string, day time.Time) ([]internal.SleepEntry, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	entries, err := s.store.ListForDate(ctx, babyID, day.Format(internal.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("service: list entries for date: %w", err)
	}
	return entries, nil
}

// State derives the awake state. More than one open entry is logged; the
// latest one is reported as active.
func (s *SleepService) State(ctx context.Context, babyID string) (AwakeState, error) {
	entries, err := s.Entries(ctx, babyID)
	if err != nil {
		return AwakeState{}, err
	}
	state := DeriveAwakeState(entries, s.now())
	if state.Inconsistent() {
		s.logger.Warnf("sleep: baby %s has %d sleeps in progress, using %s", babyID, state.OpenEntries, state.ActiveSleep.ID)
	}
	return state, nil
}

func (s *SleepService) Timeline(ctx context.Context, babyID string, day time.Time) ([]TimelineItem, error) {
	dayEntries, err := s.EntriesForDate(ctx, babyID, day)
	if err != nil {
		return nil, err
	}
	all, err := s.Entries(ctx, babyID)
	if err != nil {
		return nil, err
	}
	return BuildTimeline(dayEntries, all, day), nil
}

func (s *SleepService) BedtimePrompt(ctx context.Context, babyID string) (bool, error) {
	entries, err := s.Entries(ctx, babyID)
	if err != nil {
		return false, err
	}
	now := s.now()
	state := DeriveAwakeState(entries, now)
	return ShouldPromptMissingBedtime(entries, state.ActiveSleep, now), nil
}
