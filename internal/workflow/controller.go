// Package workflow implements the four-step assignment wizard: which step
// an annotation opens on, which steps are reachable, and the navigation and
// auto-advance rules between them.
package workflow

import (
	"sync"
	"time"

	"github.com/evalgrid/postit/internal/assignment"
	"github.com/evalgrid/postit/internal/errors"
	"github.com/evalgrid/postit/internal/logger"
)

// Source tells whether a step change came from the user or from the engine.
type Source string

const (
	SourceUser Source = "user"
	SourceAuto Source = "auto"
)

// EventKind names what caused a step change.
type EventKind string

const (
	EventSelect      EventKind = "select"
	EventNext        EventKind = "next"
	EventBack        EventKind = "back"
	EventStepClick   EventKind = "step_click"
	EventAutoAdvance EventKind = "auto_advance"
	EventRealign     EventKind = "realign" // data edit made the active step unreachable
)

// Gating is the Summary step accessibility policy.
type Gating string

const (
	GatingStrict  Gating = "strict"
	GatingRelaxed Gating = "relaxed"
)

// Trigger is the kind of assignment that may schedule an auto-advance.
type Trigger int

const (
	TriggerCriterion Trigger = iota
	TriggerPractice
)

// target returns the step an assignment of this kind advances to.
func (t Trigger) target() assignment.Step {
	if t == TriggerPractice {
		return assignment.StepSummary
	}
	return assignment.StepPractice
}

func (t Trigger) String() string {
	if t == TriggerPractice {
		return "practice"
	}
	return "criterion"
}

// StepChange describes one transition of the active step.
type StepChange struct {
	AnnotationID uint
	From         assignment.Step
	To           assignment.Step
	Event        EventKind
	Source       Source
}

// StepState is what the UI renders for one step.
type StepState struct {
	Step       assignment.Step
	Accessible bool
	Completed  bool
}

// Listener observes step changes. It is called without the controller lock held.
type Listener func(StepChange)

// CancelListener observes dropped auto-advances. It is called with the
// controller lock held and must not call back into the controller.
type CancelListener func(annotationID uint, reason string)

// Config tunes the controller.
type Config struct {
	AutoAdvanceDelay time.Duration // delay before an auto-advance fires; 0 advances immediately
	ManualGrace      time.Duration // auto-advance is suppressed this long after user navigation
	Gating           Gating
}

// DefaultConfig returns the default controller settings.
func DefaultConfig() Config {
	return Config{
		AutoAdvanceDelay: 300 * time.Millisecond,
		ManualGrace:      500 * time.Millisecond,
		Gating:           GatingStrict,
	}
}

var (
	// ErrValidationBlocked is returned by Next on the criterion step while no criterion is set.
	ErrValidationBlocked = errors.NewStd("select a criterion before continuing")
	// ErrStepInaccessible is returned when navigating to a step that is not reachable.
	ErrStepInaccessible = errors.NewStd("step is not accessible")
	// ErrNoSelection is returned by navigation while no annotation is selected.
	ErrNoSelection = errors.NewStd("no annotation selected")
)

type pendingAdvance struct {
	seq          uint64
	annotationID uint
	target       assignment.Step
	trigger      Trigger
	timer        Timer
}

// Controller holds the wizard state for the selected annotation.
// It locks its own state because auto-advance callbacks run on timer goroutines.
type Controller struct {
	mu       sync.Mutex
	cfg      Config
	log      logger.Logger
	clock    Clock
	sched    Scheduler
	listener Listener
	onCancel CancelListener

	annotation       assignment.Annotation
	selected         bool
	lastAnnotationID uint
	active           assignment.Step
	lastManual       time.Time

	pending *pendingAdvance
	seq     uint64
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(ctrl *Controller) { ctrl.clock = c }
}

// WithScheduler replaces time.AfterFunc for auto-advance timers.
func WithScheduler(s Scheduler) Option {
	return func(ctrl *Controller) { ctrl.sched = s }
}

// WithListener registers a step change observer.
func WithListener(l Listener) Option {
	return func(ctrl *Controller) { ctrl.listener = l }
}

// WithCancelListener registers an observer for cancelled auto-advances.
func WithCancelListener(l CancelListener) Option {
	return func(ctrl *Controller) { ctrl.onCancel = l }
}

// WithLogger sets the logger; the controller logs under the "workflow" module.
func WithLogger(l logger.Logger) Option {
	return func(ctrl *Controller) { ctrl.log = l }
}

// New creates a controller with nothing selected.
func New(cfg Config, opts ...Option) *Controller {
	if cfg.Gating != GatingRelaxed {
		cfg.Gating = GatingStrict
	}
	c := &Controller{
		cfg:   cfg,
		clock: SystemClock(),
		sched: SystemScheduler(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.NewSlogLogger(nil, logger.LogLevelError, nil)
	}
	c.log = c.log.Module("workflow")
	return c
}

// EntryStep is the step an annotation opens on: its override when set,
// otherwise Summary when complete, Practice with only a criterion, and
// Context otherwise.
func EntryStep(a assignment.Annotation) assignment.Step {
	if a.StepOverride != nil && a.StepOverride.Valid() {
		return *a.StepOverride
	}
	switch {
	case assignment.HasCriterion(a) && assignment.HasPractice(a):
		return assignment.StepSummary
	case assignment.HasCriterion(a):
		return assignment.StepPractice
	default:
		return assignment.StepContext
	}
}

// Accessible reports whether step k can be shown for a under gating g.
func Accessible(a assignment.Annotation, k assignment.Step, g Gating) bool {
	switch k {
	case assignment.StepContext, assignment.StepCriterion:
		return true
	case assignment.StepPractice:
		return assignment.HasCriterion(a)
	case assignment.StepSummary:
		if g == GatingRelaxed {
			return assignment.HasCriterion(a)
		}
		return assignment.IsComplete(a)
	default:
		return false
	}
}

// Select makes a the current annotation. The entry step is computed only
// when a's id differs from the last selected one; reselecting the same
// annotation refreshes its data and keeps the active step.
func (c *Controller) Select(a assignment.Annotation) assignment.Step {
	c.mu.Lock()

	if c.selected && a.ID == c.lastAnnotationID {
		change, changed := c.refreshLocked(a)
		active := c.active
		c.mu.Unlock()
		if changed {
			c.emit(change)
		}
		return active
	}

	c.cancelPendingLocked("selection changed")
	from := c.active
	c.annotation = a.Clone()
	c.selected = true
	c.lastAnnotationID = a.ID
	c.lastManual = time.Time{}
	c.active = EntryStep(a)

	change := StepChange{
		AnnotationID: a.ID,
		From:         from,
		To:           c.active,
		Event:        EventSelect,
		Source:       SourceUser,
	}
	c.mu.Unlock()

	c.log.Debug("annotation selected",
		logger.Uint64("annotation_id", uint64(a.ID)),
		logger.String("entry_step", change.To.String()))
	c.emit(change)
	return change.To
}

// Update replaces the selected annotation's data after a mutation. If the
// active step is no longer reachable it moves back to the nearest
// reachable step. An annotation with another id is treated as Select.
func (c *Controller) Update(a assignment.Annotation) assignment.Step {
	c.mu.Lock()
	if !c.selected || a.ID != c.lastAnnotationID {
		c.mu.Unlock()
		return c.Select(a)
	}
	change, changed := c.refreshLocked(a)
	active := c.active
	c.mu.Unlock()

	if changed {
		c.emit(change)
	}
	return active
}

// refreshLocked stores a and realigns the active step. Caller holds c.mu.
func (c *Controller) refreshLocked(a assignment.Annotation) (StepChange, bool) {
	c.annotation = a.Clone()

	if c.pending != nil && !Accessible(c.annotation, c.pending.target, c.cfg.Gating) {
		c.cancelPendingLocked("target no longer accessible")
	}

	if Accessible(c.annotation, c.active, c.cfg.Gating) {
		return StepChange{}, false
	}

	from := c.active
	to := from
	for to > assignment.StepContext && !Accessible(c.annotation, to, c.cfg.Gating) {
		to--
	}
	c.active = to
	return StepChange{
		AnnotationID: a.ID,
		From:         from,
		To:           to,
		Event:        EventRealign,
		Source:       SourceAuto,
	}, true
}

// Deselect clears the selection and cancels any pending auto-advance.
func (c *Controller) Deselect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelPendingLocked("deselected")
	c.selected = false
	c.annotation = assignment.Annotation{}
	c.lastAnnotationID = 0
	c.active = assignment.StepContext
	c.lastManual = time.Time{}
}

// Selected returns the current annotation, if any.
func (c *Controller) Selected() (assignment.Annotation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.annotation.Clone(), c.selected
}

// ActiveStep returns the step currently shown.
func (c *Controller) ActiveStep() assignment.Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Gating returns the Summary gating policy in force.
func (c *Controller) Gating() Gating {
	return c.cfg.Gating
}

// Steps returns the accessibility and completion of every step.
func (c *Controller) Steps() [assignment.StepCount]StepState {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out [assignment.StepCount]StepState
	for i := range out {
		k := assignment.Step(i)
		out[i] = StepState{
			Step:       k,
			Accessible: c.selected && Accessible(c.annotation, k, c.cfg.Gating),
			Completed:  c.selected && c.completedLocked(k),
		}
	}
	return out
}

func (c *Controller) completedLocked(k assignment.Step) bool {
	switch k {
	case assignment.StepContext:
		return c.active > assignment.StepContext || assignment.HasCriterion(c.annotation)
	case assignment.StepCriterion:
		return assignment.HasCriterion(c.annotation)
	case assignment.StepPractice:
		return assignment.HasPractice(c.annotation)
	case assignment.StepSummary:
		return assignment.IsComplete(c.annotation)
	default:
		return false
	}
}

// CanProceed reports whether Next would leave the active step.
func (c *Controller) CanProceed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.selected {
		return false
	}
	switch c.active {
	case assignment.StepCriterion:
		return assignment.HasCriterion(c.annotation)
	case assignment.StepSummary:
		return false
	default:
		return true
	}
}

// IsManualNavigation reports whether the user navigated within the grace window.
func (c *Controller) IsManualNavigation() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.manualLocked()
}

func (c *Controller) manualLocked() bool {
	if c.lastManual.IsZero() {
		return false
	}
	return c.clock.Now().Sub(c.lastManual) < c.cfg.ManualGrace
}

// HasPendingAdvance reports whether an auto-advance is scheduled.
func (c *Controller) HasPendingAdvance() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

// Next moves forward one step. On the criterion step without a criterion
// it returns a validation-blocked error and the step does not change.
// Next on the Summary step does nothing.
func (c *Controller) Next() (assignment.Step, error) {
	c.mu.Lock()
	if !c.selected {
		c.mu.Unlock()
		return assignment.StepContext, ErrNoSelection
	}
	c.userEventLocked()

	from := c.active
	if from == assignment.StepCriterion && !assignment.HasCriterion(c.annotation) {
		id := c.annotation.ID
		activity := c.annotation.ActivityID
		c.mu.Unlock()

		c.log.Warn("next blocked without criterion", logger.Uint64("annotation_id", uint64(id)))
		return from, errors.New(ErrValidationBlocked).
			Component("workflow").
			Category(errors.CategoryValidationBlocked).
			AnnotationContext(id, activity).
			Context("step", from.String()).
			Build()
	}
	if from == assignment.StepSummary {
		c.mu.Unlock()
		return from, nil
	}

	return c.moveLocked(from+1, EventNext), nil
}

// Back moves one step backward; on the Context step it does nothing.
func (c *Controller) Back() (assignment.Step, error) {
	c.mu.Lock()
	if !c.selected {
		c.mu.Unlock()
		return assignment.StepContext, ErrNoSelection
	}
	c.userEventLocked()

	if c.active == assignment.StepContext {
		c.mu.Unlock()
		return assignment.StepContext, nil
	}
	return c.moveLocked(c.active-1, EventBack), nil
}

// GoTo jumps to step k if it is accessible; otherwise the active step is
// kept and ErrStepInaccessible is returned.
func (c *Controller) GoTo(k assignment.Step) (assignment.Step, error) {
	c.mu.Lock()
	if !c.selected {
		c.mu.Unlock()
		return assignment.StepContext, ErrNoSelection
	}
	c.userEventLocked()

	if !Accessible(c.annotation, k, c.cfg.Gating) {
		from := c.active
		id, activity := c.annotation.ID, c.annotation.ActivityID
		c.mu.Unlock()

		c.log.Debug("step click rejected",
			logger.Uint64("annotation_id", uint64(id)),
			logger.String("step", k.String()))
		return from, errors.New(ErrStepInaccessible).
			Component("workflow").
			Category(errors.CategoryValidation).
			AnnotationContext(id, activity).
			Context("step", k.String()).
			Build()
	}
	return c.moveLocked(k, EventStepClick), nil
}

// userEventLocked cancels any pending auto-advance and starts the manual
// navigation grace window. Caller holds c.mu.
func (c *Controller) userEventLocked() {
	c.cancelPendingLocked("user navigation")
	c.lastManual = c.clock.Now()
}

// moveLocked sets the active step and emits a user change. It releases c.mu.
func (c *Controller) moveLocked(to assignment.Step, event EventKind) assignment.Step {
	change := StepChange{
		AnnotationID: c.annotation.ID,
		From:         c.active,
		To:           to,
		Event:        event,
		Source:       SourceUser,
	}
	c.active = to
	c.mu.Unlock()

	if change.From != change.To {
		c.emit(change)
	}
	return to
}

// NotifyAssigned is called after a criterion or practice was assigned (not
// cleared). Unless the user navigated within the grace window it schedules
// a forward move to the trigger's target step. A newer notification
// replaces an older pending one.
func (c *Controller) NotifyAssigned(trigger Trigger) {
	c.mu.Lock()
	if !c.selected {
		c.mu.Unlock()
		return
	}
	c.cancelPendingLocked("superseded")

	target := trigger.target()
	id := c.annotation.ID
	switch {
	case c.manualLocked():
		c.mu.Unlock()
		c.log.Debug("auto-advance suppressed by manual navigation",
			logger.Uint64("annotation_id", uint64(id)),
			logger.String("trigger", trigger.String()))
		return
	case target <= c.active:
		c.mu.Unlock()
		return
	}

	if c.cfg.AutoAdvanceDelay <= 0 {
		change, ok := c.advanceLocked(target)
		c.mu.Unlock()
		if ok {
			c.emit(change)
		}
		return
	}

	c.seq++
	p := &pendingAdvance{seq: c.seq, annotationID: id, target: target, trigger: trigger}
	seq := p.seq
	p.timer = c.sched.AfterFunc(c.cfg.AutoAdvanceDelay, func() { c.fire(seq) })
	c.pending = p
	c.mu.Unlock()

	c.log.Trace("auto-advance scheduled",
		logger.Uint64("annotation_id", uint64(id)),
		logger.String("target", target.String()),
		logger.Duration("delay", c.cfg.AutoAdvanceDelay))
}

// fire runs a scheduled auto-advance if it is still the pending one.
func (c *Controller) fire(seq uint64) {
	c.mu.Lock()
	p := c.pending
	if p == nil || p.seq != seq || !c.selected || c.annotation.ID != p.annotationID {
		c.mu.Unlock()
		return
	}
	c.pending = nil
	if c.manualLocked() {
		c.mu.Unlock()
		return
	}
	change, ok := c.advanceLocked(p.target)
	c.mu.Unlock()

	if ok {
		c.emit(change)
	}
}

// advanceLocked moves forward to target when it is ahead and accessible.
func (c *Controller) advanceLocked(target assignment.Step) (StepChange, bool) {
	if target <= c.active || !Accessible(c.annotation, target, c.cfg.Gating) {
		return StepChange{}, false
	}
	change := StepChange{
		AnnotationID: c.annotation.ID,
		From:         c.active,
		To:           target,
		Event:        EventAutoAdvance,
		Source:       SourceAuto,
	}
	c.active = target
	return change, true
}

// CancelPending drops a scheduled auto-advance, if any.
func (c *Controller) CancelPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelPendingLocked("cancelled")
}

func (c *Controller) cancelPendingLocked(reason string) bool {
	if c.pending == nil {
		return false
	}
	p := c.pending
	c.pending = nil
	if p.timer != nil {
		p.timer.Stop()
	}
	c.log.Trace("auto-advance cancelled",
		logger.Uint64("annotation_id", uint64(p.annotationID)),
		logger.String("reason", reason))
	if c.onCancel != nil {
		c.onCancel(p.annotationID, reason)
	}
	return true
}

// Close cancels timers. The controller must not be used afterwards.
func (c *Controller) Close() {
	c.CancelPending()
}

func (c *Controller) emit(change StepChange) {
	if c.listener != nil {
		c.listener(change)
	}
}
