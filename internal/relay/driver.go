package relay

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/applyflow/agent-relay/internal/config"
	"github.com/applyflow/agent-relay/internal/domain"
)

// Action kinds the driver picks from uniformly at random on each tick.
const (
	actionNavigation        = "navigation"
	actionQuestionDetection = "question_detection"
	actionFillTextField     = "fill_text_field"
	actionFillSelectField   = "fill_select_field"
	actionFillFileUpload    = "fill_file_upload"
	actionScreenshot        = "screenshot"
	actionPageTransition    = "page_transition"
)

var actionKinds = []string{
	actionNavigation,
	actionQuestionDetection,
	actionFillTextField,
	actionFillSelectField,
	actionFillFileUpload,
	actionScreenshot,
	actionPageTransition,
}

// Field types each fill variant may act on.
var (
	textFieldTypes   = map[string]bool{"text": true, "textarea": true, "email": true, "tel": true, "url": true}
	selectFieldTypes = map[string]bool{"select": true, "radio": true, "checkbox": true}
	fileFieldTypes   = map[string]bool{"file": true}
)

// outEvent is one event produced by a tick, emitted after the store lock is
// released. Events from a single driver are emitted in tick order.
type outEvent struct {
	event string
	data  any
}

// driver manufactures a stream of autofill actions for one running session.
// Each tick mutates the session and snapshots its state atomically under the
// store lock, then broadcasts; the driver exits when the session leaves the
// running status or the action ceiling is reached.
type driver struct {
	sess     *domain.Session
	store    *Store
	hub      *Hub
	cfg      config.DriverConfig
	onFinish func(sess *domain.Session)
}

// run ticks on a jittered interval until cancelled via stop, stopped
// externally through the store, or completed at the action ceiling.
func (d *driver) run(ctx context.Context, stop <-chan struct{}) {
	slog.Info("Activity driver started", "session_id", d.sess.SessionID, "job_url", d.sess.TargetURL)
	for {
		timer := time.NewTimer(d.nextDelay())
		select {
		case <-stop:
			timer.Stop()
			slog.Debug("Activity driver cancelled", "session_id", d.sess.SessionID)
			return
		case <-timer.C:
		}

		events, completed, running := d.tick()
		for _, e := range events {
			d.hub.Broadcast(ctx, e.event, e.data)
		}
		if completed {
			slog.Info("Activity driver completed run", "session_id", d.sess.SessionID, "actions", len(d.sess.Actions))
			if d.onFinish != nil {
				d.onFinish(d.sess)
			}
			return
		}
		if !running {
			slog.Debug("Activity driver observed stopped session", "session_id", d.sess.SessionID)
			return
		}
	}
}

func (d *driver) nextDelay() time.Duration {
	if d.cfg.TickMax <= d.cfg.TickMin {
		return d.cfg.TickMin
	}
	return d.cfg.TickMin + rand.N(d.cfg.TickMax-d.cfg.TickMin)
}

// tick performs one driver step. It reports the events to emit, whether the
// session completed on this tick, and whether it is still running.
func (d *driver) tick() (events []outEvent, completed, running bool) {
	running = d.store.MutateRunning(d.sess, func() {
		kind := actionKinds[rand.IntN(len(actionKinds))]
		events = d.apply(kind)

		if len(d.sess.Actions) >= d.cfg.MaxActions {
			d.sess.Status = domain.StatusCompleted
			completed = true
			events = append(events, outEvent{domain.EventAgentCompleted, domain.CompletedPayload{
				Status:           domain.StatusCompleted,
				TotalActions:     len(d.sess.Actions),
				QuestionsFound:   len(d.sess.Questions),
				ScreenshotsTaken: len(d.sess.Screenshots),
			}})
		}
	})
	return events, completed, running && !completed
}

// apply mutates the session for one action kind and returns the events that
// describe it. Fill kinds with no matching unfilled question degrade to a
// navigation action so every tick still records exactly one action.
func (d *driver) apply(kind string) []outEvent {
	switch kind {
	case actionQuestionDetection:
		if len(d.sess.Questions) == 0 {
			d.sess.Questions = detectQuestions(d.sess.TargetURL)
		}
		action := d.record(actionQuestionDetection, nil)
		return []outEvent{
			{domain.EventAgentAction, action},
			{domain.EventQuestionsDetected, d.sess.QuestionList()},
		}

	case actionFillTextField, actionFillSelectField, actionFillFileUpload:
		types := textFieldTypes
		switch kind {
		case actionFillSelectField:
			types = selectFieldTypes
		case actionFillFileUpload:
			types = fileFieldTypes
		}
		q := d.pickUnfilled(types)
		if q == nil {
			action := d.record(actionNavigation, nil)
			return []outEvent{{domain.EventAgentAction, action}}
		}
		q.Filled = true
		q.Response, q.ResponseType = responseFor(q)
		action := d.record(kind, func(a *domain.Action) {
			a.QuestionID = q.QuestionID
			a.Value = q.Response
		})
		return []outEvent{
			{domain.EventAgentAction, action},
			{domain.EventQuestionsDetected, d.sess.QuestionList()},
		}

	case actionScreenshot:
		filename := screenshotName(d.sess.TargetURL, len(d.sess.Screenshots))
		d.sess.Screenshots = append(d.sess.Screenshots, filename)
		action := d.record(actionScreenshot, func(a *domain.Action) {
			a.Filename = filename
		})
		return []outEvent{
			{domain.EventAgentAction, action},
			{domain.EventScreenshotTaken, domain.ScreenshotPayload{
				Filename:  filename,
				SessionID: d.sess.SessionID,
				JobURL:    d.sess.TargetURL,
			}},
		}

	case actionPageTransition:
		d.sess.CurrentPage++
		action := d.record(actionPageTransition, nil)
		return []outEvent{
			{domain.EventAgentAction, action},
			{domain.EventPageTransition, d.sess.CurrentPage},
		}

	default: // navigation
		action := d.record(actionNavigation, nil)
		return []outEvent{{domain.EventAgentAction, action}}
	}
}

// record appends one action to the session and returns a copy for emission.
func (d *driver) record(actionType string, mut func(a *domain.Action)) domain.Action {
	action := domain.Action{
		Timestamp:  time.Now().UnixMilli(),
		ActionType: actionType,
		Page:       d.sess.CurrentPage,
	}
	if mut != nil {
		mut(&action)
	}
	d.sess.Actions = append(d.sess.Actions, action)
	return action
}

// pickUnfilled returns a random unfilled question whose field type is in the
// given set, or nil if none remain (or none were detected yet).
func (d *driver) pickUnfilled(types map[string]bool) *domain.Question {
	var candidates []*domain.Question
	for _, q := range d.sess.Questions {
		if !q.Filled && types[q.FieldType] {
			candidates = append(candidates, q)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	return candidates[rand.IntN(len(candidates))]
}
