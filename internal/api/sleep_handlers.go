package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yourname/babysleep/internal"
	"github.com/yourname/babysleep/internal/service"
)

type entryBody struct {
	Type      internal.SleepType `json:"type"`
	StartTime time.Time          `json:"startTime"`
	EndTime   *time.Time         `json:"endTime"`
}

func (b entryBody) request(babyID string, loc *time.Location) service.EntryRequest {
	req := service.EntryRequest{
		BabyID:    babyID,
		Type:      b.Type,
		StartTime: b.StartTime.In(loc),
	}
	if b.EndTime != nil {
		end := b.EndTime.In(loc)
		req.EndTime = &end
	}
	return req
}

type replaceBody struct {
	entryBody
	CollidingID string `json:"collidingId"`
}

type patchBody struct {
	Type      *internal.SleepType `json:"type"`
	StartTime *time.Time          `json:"startTime"`
	EndTime   *time.Time          `json:"endTime"`
}

type endBody struct {
	EndTime *time.Time `json:"endTime"`
}

// dayParam reads ?date=YYYY-MM-DD as midnight in loc, defaulting to today.
func dayParam(c *gin.Context, now time.Time, loc *time.Location) (time.Time, error) {
	if q := c.Query("date"); q != "" {
		return time.ParseInLocation(internal.DateLayout, q, loc)
	}
	now = now.In(loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc), nil
}

func PostSleep(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body entryBody
		if err := c.ShouldBindJSON(&body); err != nil {
			HandleError(c, app.Logger(), err, 400, "Invalid JSON")
			return
		}

		req := body.request(c.Param("babyID"), app.Location())
		if err := service.ValidateEntryRequest(&req); err != nil {
			HandleError(c, app.Logger(), err, 400, "Validation failed")
			return
		}

		res, err := app.Sleep().NewFlow().Submit(c.Request.Context(), req)
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to save entry")
			return
		}
		HandleResult(c, app.Logger(), res, http.StatusCreated)
	}
}

// ReplaceSleep saves an entry in place of the entry it collides with. The
// caller names the colliding entry it agreed to replace, which must belong
// to the same baby; if a different entry collides the request is answered
// with that collision instead.
func ReplaceSleep(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body replaceBody
		if err := c.ShouldBindJSON(&body); err != nil {
			HandleError(c, app.Logger(), err, 400, "Invalid JSON")
			return
		}
		if body.CollidingID == "" {
			HandleError(c, app.Logger(), errors.New("collidingId is required"), 400, "Validation failed")
			return
		}

		req := body.request(c.Param("babyID"), app.Location())
		if err := service.ValidateEntryRequest(&req); err != nil {
			HandleError(c, app.Logger(), err, 400, "Validation failed")
			return
		}

		colliding, err := app.Sleep().Get(c.Request.Context(), body.CollidingID)
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to load colliding entry")
			return
		}
		if colliding.BabyID != req.BabyID {
			HandleServiceError(c, app.Logger(), service.ErrWrongBaby, "Validation failed")
			return
		}

		flow := app.Sleep().NewFlow()
		res, err := flow.Submit(c.Request.Context(), req)
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to save entry")
			return
		}
		if flow.State() != service.StateCollisionDetected || flow.Colliding().ID != body.CollidingID {
			flow.Cancel()
			HandleResult(c, app.Logger(), res, http.StatusCreated)
			return
		}

		res, err = flow.Replace(c.Request.Context())
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to replace entry")
			return
		}
		HandleResult(c, app.Logger(), res, http.StatusCreated)
	}
}

func GetSleep(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		babyID := c.Param("babyID")

		var (
			entries []internal.SleepEntry
			err     error
		)
		if q := c.Query("date"); q != "" {
			day, perr := time.ParseInLocation(internal.DateLayout, q, app.Location())
			if perr != nil {
				HandleError(c, app.Logger(), perr, 400, "Invalid date")
				return
			}
			entries, err = app.Sleep().EntriesForDate(c.Request.Context(), babyID, day)
		} else {
			entries, err = app.Sleep().Entries(c.Request.Context(), babyID)
		}
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to fetch entries")
			return
		}
		HandleSuccess(c, app.Logger(), http.StatusOK, entries, nil)
	}
}

func GetState(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		state, err := app.Sleep().State(c.Request.Context(), c.Param("babyID"))
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to derive state")
			return
		}
		HandleSuccess(c, app.Logger(), http.StatusOK, state, map[string]any{"asleep": state.Asleep()})
	}
}

func GetTimeline(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		day, err := dayParam(c, app.Sleep().Now(), app.Location())
		if err != nil {
			HandleError(c, app.Logger(), err, 400, "Invalid date")
			return
		}
		items, err := app.Sleep().Timeline(c.Request.Context(), c.Param("babyID"), day)
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to build timeline")
			return
		}
		HandleSuccess(c, app.Logger(), http.StatusOK, items, map[string]any{"date": day.Format(internal.DateLayout)})
	}
}

func GetBedtimePrompt(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		prompt, err := app.Sleep().BedtimePrompt(c.Request.Context(), c.Param("babyID"))
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to evaluate bedtime prompt")
			return
		}
		HandleSuccess(c, app.Logger(), http.StatusOK, gin.H{"prompt": prompt}, nil)
	}
}

func PatchSleep(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body patchBody
		if err := c.ShouldBindJSON(&body); err != nil {
			HandleError(c, app.Logger(), err, 400, "Invalid JSON")
			return
		}
		if body.Type != nil && !body.Type.Valid() {
			HandleError(c, app.Logger(), errors.New("type must be nap or night"), 400, "Validation failed")
			return
		}

		loc := app.Location()
		patch := internal.EntryPatch{Type: body.Type}
		if body.StartTime != nil {
			start := body.StartTime.In(loc)
			patch.StartTime = &start
		}
		if body.EndTime != nil {
			end := body.EndTime.In(loc)
			patch.EndTime = &end
		}

		res, err := app.Sleep().Edit(c.Request.Context(), c.Param("id"), patch)
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to update entry")
			return
		}
		HandleResult(c, app.Logger(), res, http.StatusOK)
	}
}

// EndSleep records a wake-up. Without a body the entry ends now.
func EndSleep(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body endBody
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&body); err != nil {
				HandleError(c, app.Logger(), err, 400, "Invalid JSON")
				return
			}
		}
		at := app.Sleep().Now()
		if body.EndTime != nil {
			at = *body.EndTime
		}
		at = at.In(app.Location())

		entry, err := app.Sleep().Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to load entry")
			return
		}

		var res service.SubmitResult
		if entry.IsActive() {
			flow := app.Sleep().NewFlow()
			if err := flow.BeginWakeUp(entry); err != nil {
				HandleServiceError(c, app.Logger(), err, "Failed to start wake-up")
				return
			}
			res, err = flow.ConfirmWakeUp(c.Request.Context(), at)
		} else {
			res, err = app.Sleep().EndSleep(c.Request.Context(), entry.ID, at)
		}
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to end sleep")
			return
		}
		HandleResult(c, app.Logger(), res, http.StatusOK)
	}
}

func DeleteSleep(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if err := app.Sleep().Delete(c.Request.Context(), id); err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to delete entry")
			return
		}
		HandleSuccess(c, app.Logger(), http.StatusOK, gin.H{"id": id}, nil)
	}
}
