// Package session owns the assignment workflow of one activity view: the
// selected annotation, its pending association edits, the step controller
// and the save/delete cleanup. All UI actions go through a Session.
package session

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/evalgrid/postit/internal/assignment"
	"github.com/evalgrid/postit/internal/errors"
	"github.com/evalgrid/postit/internal/lifecycle"
	"github.com/evalgrid/postit/internal/logger"
	"github.com/evalgrid/postit/internal/pending"
	"github.com/evalgrid/postit/internal/store"
	"github.com/evalgrid/postit/internal/workflow"
)

var (
	// ErrNoSelection is returned by actions that need a selected annotation.
	ErrNoSelection = errors.NewStd("no annotation selected")
	// ErrWrongActivity is returned when selecting an annotation of another activity.
	ErrWrongActivity = errors.NewStd("annotation belongs to another activity")
	// ErrClosed is returned after Close.
	ErrClosed = errors.NewStd("session closed")
)

// Recorder receives session metrics.
type Recorder interface {
	lifecycle.Recorder
	RecordToggle(kind, outcome string)
	RecordStepChange(event, source string)
	RecordAutoAdvanceCancelled(reason string)
}

type nopRecorder struct{}

func (nopRecorder) RecordAssociation(string, string)        {}
func (nopRecorder) RecordLifecycle(string, string, float64) {}
func (nopRecorder) RecordToggle(string, string)             {}
func (nopRecorder) RecordStepChange(string, string)         {}
func (nopRecorder) RecordAutoAdvanceCancelled(string)       {}

// Config tunes a session.
type Config struct {
	Workflow              workflow.Config
	ClearPracticeOnSwitch bool
}

// DefaultConfig returns the default session settings.
func DefaultConfig() Config {
	return Config{Workflow: workflow.DefaultConfig()}
}

// Option configures a Session.
type Option func(*options)

type options struct {
	log       logger.Logger
	rec       Recorder
	clock     workflow.Clock
	scheduler workflow.Scheduler
	onChange  workflow.Listener
}

// WithLogger sets the base logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(o *options) { o.rec = r }
}

// WithClock replaces the controller's clock.
func WithClock(c workflow.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithScheduler replaces the controller's timer scheduler.
func WithScheduler(s workflow.Scheduler) Option {
	return func(o *options) { o.scheduler = s }
}

// WithStepListener observes every step change after the session has logged it.
// The listener runs without the session lock, so it may read session state
// (Selected, InPlay, Dirty). It must not navigate, toggle or select: those
// wait for the action that emitted the change.
func WithStepListener(l workflow.Listener) Option {
	return func(o *options) { o.onChange = l }
}

// Session is the single writer for one activity's annotation workflow.
// Its mutex is released around store calls; results of a save or delete
// that finishes after another annotation was selected are not applied to
// the new selection.
type Session struct {
	// opMu orders actions that drive the controller. It is held while the
	// controller emits; mu is not.
	opMu       sync.Mutex
	mu         sync.Mutex
	id         string
	activityID uint
	store      store.Store
	mutator    assignment.Mutator
	maps       *pending.Maps
	ctrl       *workflow.Controller
	cleanup    *lifecycle.Cleanup
	log        logger.Logger
	rec        Recorder

	annotations map[uint]assignment.Annotation
	dirty       map[uint]bool
	selectedID  uint
	selected    bool
	generation  uint64
	closed      bool
}

// New creates a session for activityID backed by st.
func New(activityID uint, st store.Store, cfg Config, opts ...Option) *Session {
	o := options{rec: nopRecorder{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.NewSlogLogger(nil, logger.LogLevelError, nil)
	}
	if o.rec == nil {
		o.rec = nopRecorder{}
	}

	id := uuid.NewString()
	base := o.log.With(logger.String("session_id", id))

	s := &Session{
		id:          id,
		activityID:  activityID,
		store:       st,
		mutator:     assignment.Mutator{ClearPracticeOnSwitch: cfg.ClearPracticeOnSwitch},
		maps:        pending.New(),
		log:         base.Module("session").With(logger.Uint64("activity_id", uint64(activityID))),
		rec:         o.rec,
		annotations: make(map[uint]assignment.Annotation),
		dirty:       make(map[uint]bool),
	}

	wopts := []workflow.Option{
		workflow.WithLogger(base),
		workflow.WithListener(func(c workflow.StepChange) {
			s.rec.RecordStepChange(string(c.Event), string(c.Source))
			s.log.Debug("step changed",
				logger.Uint64("annotation_id", uint64(c.AnnotationID)),
				logger.String("from", c.From.String()),
				logger.String("to", c.To.String()),
				logger.String("event", string(c.Event)),
				logger.String("source", string(c.Source)))
			if o.onChange != nil {
				o.onChange(c)
			}
		}),
		workflow.WithCancelListener(func(_ uint, reason string) {
			s.rec.RecordAutoAdvanceCancelled(reason)
		}),
	}
	if o.clock != nil {
		wopts = append(wopts, workflow.WithClock(o.clock))
	}
	if o.scheduler != nil {
		wopts = append(wopts, workflow.WithScheduler(o.scheduler))
	}
	s.ctrl = workflow.New(cfg.Workflow, wopts...)
	s.cleanup = lifecycle.New(st, lifecycle.WithLogger(base), lifecycle.WithRecorder(o.rec))

	return s
}

// ID returns the session's unique id.
func (s *Session) ID() string { return s.id }

// ActivityID returns the activity this session edits.
func (s *Session) ActivityID() uint { return s.activityID }

// Track adds annotations of the activity to the in-memory set. The set is
// scanned for sibling references when the store cannot query them.
func (s *Session) Track(annotations ...assignment.Annotation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range annotations {
		if a.ActivityID != s.activityID {
			return s.wrongActivity(a)
		}
	}
	for _, a := range annotations {
		s.annotations[a.ID] = a.Clone()
	}
	return nil
}

// Annotations returns the tracked annotations ordered by id.
func (s *Session) Annotations() []assignment.Annotation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() []assignment.Annotation {
	out := make([]assignment.Annotation, 0, len(s.annotations))
	for _, id := range slices.Sorted(maps.Keys(s.annotations)) {
		out = append(out, s.annotations[id].Clone())
	}
	return out
}

// Select makes annotation id current and returns its active step. An
// annotation not tracked yet is loaded from the store.
func (s *Session) Select(ctx context.Context, id uint) (assignment.Step, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return assignment.StepContext, ErrClosed
	}
	a, ok := s.annotations[id]
	s.mu.Unlock()

	if !ok {
		loaded, err := s.store.GetAnnotation(ctx, id)
		if err != nil {
			category := errors.CategoryDatabase
			if errors.Is(err, store.ErrNotFound) {
				category = errors.CategoryNotFound
			}
			return assignment.StepContext, errors.New(err).
				Component("session").
				Category(category).
				AnnotationContext(id, s.activityID).
				Context("operation", "load_annotation").
				Build()
		}
		a = loaded
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return assignment.StepContext, ErrClosed
	}
	if a.ActivityID != s.activityID {
		s.mu.Unlock()
		return assignment.StepContext, s.wrongActivity(a)
	}
	if cur, tracked := s.annotations[id]; tracked {
		a = cur
	} else {
		s.annotations[id] = a.Clone()
	}

	if !s.selected || s.selectedID != id {
		s.generation++
	}
	s.selectedID = id
	s.selected = true
	s.mu.Unlock()

	return s.ctrl.Select(a), nil
}

func (s *Session) wrongActivity(a assignment.Annotation) error {
	return errors.New(ErrWrongActivity).
		Component("session").
		Category(errors.CategoryValidation).
		AnnotationContext(a.ID, a.ActivityID).
		Context("session_activity_id", s.activityID).
		Build()
}

// Selected returns the current annotation.
func (s *Session) Selected() (assignment.Annotation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.currentLocked()
	if !ok {
		return assignment.Annotation{}, false
	}
	return a.Clone(), true
}

// currentLocked returns the selected annotation if it is still tracked.
// Caller holds s.mu.
func (s *Session) currentLocked() (assignment.Annotation, bool) {
	if !s.selected {
		return assignment.Annotation{}, false
	}
	a, ok := s.annotations[s.selectedID]
	return a, ok
}

// ToggleCriterion toggles c on the selected annotation.
func (s *Session) ToggleCriterion(c assignment.Candidate) (assignment.Outcome, error) {
	return s.toggle(store.KindCriterion, c)
}

// TogglePractice toggles c on the selected annotation. Without a criterion
// the outcome is Rejected and nothing changes.
func (s *Session) TogglePractice(c assignment.Candidate) (assignment.Outcome, error) {
	return s.toggle(store.KindPractice, c)
}

func (s *Session) toggle(kind store.AssociationKind, c assignment.Candidate) (assignment.Outcome, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	current, ok := s.currentLocked()
	if !ok {
		s.mu.Unlock()
		return assignment.Outcome{}, ErrNoSelection
	}

	var out assignment.Outcome
	if kind == store.KindCriterion {
		out = s.mutator.ToggleCriterion(current, c)
	} else {
		out = s.mutator.TogglePractice(current, c)
	}
	s.rec.RecordToggle(string(kind), out.Kind.String())

	if out.Kind == assignment.Rejected {
		s.mu.Unlock()
		s.log.Debug("toggle rejected",
			logger.String("kind", string(kind)),
			logger.Uint64("annotation_id", uint64(current.ID)),
			logger.String("reason", out.Reason))
		return out, nil
	}

	next := out.Annotation
	s.annotations[next.ID] = next.Clone()
	s.dirty[next.ID] = true
	if kind == store.KindCriterion {
		s.maps.Set(store.KindCriterion, next.ID, next.CriterionID)
	}
	if kind == store.KindPractice || out.PracticeCleared {
		s.maps.Set(store.KindPractice, next.ID, next.PracticeID)
	}
	s.mu.Unlock()

	s.ctrl.Update(next)
	if out.Kind == assignment.Assigned {
		trigger := workflow.TriggerCriterion
		if kind == store.KindPractice {
			trigger = workflow.TriggerPractice
		}
		s.ctrl.NotifyAssigned(trigger)
	}
	return out, nil
}

// Next moves the wizard forward; see workflow.Controller.Next.
func (s *Session) Next() (assignment.Step, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.ctrl.Next()
}

// Back moves the wizard backward.
func (s *Session) Back() (assignment.Step, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.ctrl.Back()
}

// GoTo jumps to step k when it is accessible.
func (s *Session) GoTo(k assignment.Step) (assignment.Step, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.ctrl.GoTo(k)
}

// ActiveStep returns the step currently shown.
func (s *Session) ActiveStep() assignment.Step {
	return s.ctrl.ActiveStep()
}

// Steps returns accessibility and completion per step.
func (s *Session) Steps() [assignment.StepCount]workflow.StepState {
	return s.ctrl.Steps()
}

// CanProceed reports whether Next would leave the active step.
func (s *Session) CanProceed() bool {
	return s.ctrl.CanProceed()
}

// HasPendingAdvance reports whether an auto-advance is scheduled.
func (s *Session) HasPendingAdvance() bool {
	return s.ctrl.HasPendingAdvance()
}

// InPlay returns the criteria or practices referenced by this session's
// edits, without a store read.
func (s *Session) InPlay(kind store.AssociationKind) []uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maps.ValuesDistinctNonNull(kind)
}

// Pending returns the recorded edit for annotation id, if any.
func (s *Session) Pending(kind store.AssociationKind, id uint) (*uint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maps.Get(kind, id)
}

// Dirty reports whether the annotation has unsaved edits.
func (s *Session) Dirty(id uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty[id]
}

// SaveResult is the outcome of Save.
type SaveResult struct {
	lifecycle.SaveResult
	AnnotationID uint
	// Stale is set when another annotation was selected before the save
	// finished; the result was not applied to the session.
	Stale bool
}

// Save persists the selected annotation and reconciles associations.
// On a store write failure local fields are kept as they are.
func (s *Session) Save(ctx context.Context) (SaveResult, error) {
	s.mu.Lock()
	current, ok := s.currentLocked()
	if !ok {
		s.mu.Unlock()
		return SaveResult{}, ErrNoSelection
	}
	gen := s.generation
	a := current.Clone()
	mapsSnapshot := s.cloneMapsLocked()
	s.mu.Unlock()

	ctx = logger.WithTraceID(ctx, uuid.NewString())
	res, err := s.cleanup.Save(ctx, a, s.activityID, mapsSnapshot)
	result := SaveResult{SaveResult: res, AnnotationID: a.ID}
	if err != nil {
		return result, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.annotations[a.ID]; ok && current.Equal(a) {
		s.dirty[a.ID] = false
	}
	if s.generation != gen {
		result.Stale = true
		s.log.Debug("save finished after selection changed",
			logger.Uint64("annotation_id", uint64(a.ID)))
	}
	return result, nil
}

// cloneMapsLocked copies the pending maps so a save can run unlocked.
func (s *Session) cloneMapsLocked() *pending.Maps {
	c := pending.New()
	for id := range s.annotations {
		for _, kind := range []store.AssociationKind{store.KindCriterion, store.KindPractice} {
			if v, ok := s.maps.Get(kind, id); ok {
				c.Set(kind, id, v)
			}
		}
	}
	return c
}

// DeleteResult is the outcome of Delete.
type DeleteResult struct {
	lifecycle.DeleteResult
	AnnotationID uint
	Stale        bool
}

// Delete removes the selected annotation, releasing associations no
// sibling uses, and clears the selection whenever the deleted annotation
// is still the selected one. If another annotation is selected when the
// delete finishes, that selection is left alone and the result is Stale.
func (s *Session) Delete(ctx context.Context) (DeleteResult, error) {
	s.mu.Lock()
	current, ok := s.currentLocked()
	if !ok {
		s.mu.Unlock()
		return DeleteResult{}, ErrNoSelection
	}
	a := current.Clone()
	siblings := s.snapshotLocked()
	s.mu.Unlock()

	ctx = logger.WithTraceID(ctx, uuid.NewString())
	res, err := s.cleanup.Delete(ctx, a, s.activityID, siblings)
	result := DeleteResult{DeleteResult: res, AnnotationID: a.ID}
	if err != nil {
		return result, err
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	delete(s.annotations, a.ID)
	delete(s.dirty, a.ID)
	s.maps.Forget(a.ID)

	if !s.selected || s.selectedID != a.ID {
		s.mu.Unlock()
		result.Stale = true
		s.log.Debug("delete finished after selection changed",
			logger.Uint64("annotation_id", uint64(a.ID)))
		return result, nil
	}
	s.selected = false
	s.selectedID = 0
	s.generation++
	s.mu.Unlock()

	s.ctrl.Deselect()
	return result, nil
}

// Close cancels pending timers. The session must not be used afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.ctrl.Close()
}
