// Package engine is the state-transition layer over the schedule set. Every
// action is validated against the occurrence generator and the overlap
// detector on a private copy, committed to the store, reloaded, and only
// then becomes visible.
package engine

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"hvacsched/internal/model"
	"hvacsched/internal/notify"
	"hvacsched/internal/occurrence"
	"hvacsched/internal/store"
	"hvacsched/internal/timeutil"
)

// Result describes a committed action.
type Result struct {
	Action Action `json:"action"`
	// Changed holds the created or updated schedules as persisted.
	Changed []model.Schedule `json:"changed,omitempty"`
	// Removed holds the ids of deleted schedules.
	Removed []string `json:"removed,omitempty"`
}

func (r Result) ids() []string {
	out := make([]string, 0, len(r.Changed)+len(r.Removed))
	for _, s := range r.Changed {
		out = append(out, s.ID)
	}
	return append(out, r.Removed...)
}

type Engine struct {
	store     store.Store
	notifier  notify.Notifier
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
	scanYears int

	// busy admits one action at a time; a second caller gets ErrBusy.
	busy sync.Mutex

	mu  sync.RWMutex
	doc model.Document
}

type Option func(*Engine)

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) { e.newID = gen }
}

func WithNotifier(n notify.Notifier) Option {
	return func(e *Engine) {
		if n != nil {
			e.notifier = n
		}
	}
}

// WithScanYears sets the overlap horizon in calendar years starting with
// the current one.
func WithScanYears(years int) Option {
	return func(e *Engine) {
		if years > 0 {
			e.scanYears = years
		}
	}
}

// New builds an engine over st. Call Refresh before use.
func New(st store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:     st,
		notifier:  notify.Nop{},
		logger:    zap.NewNop(),
		now:       time.Now,
		newID:     uuid.NewString,
		scanYears: occurrence.DefaultScanYears,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Open builds an engine and loads the schedule set.
func Open(ctx context.Context, st store.Store, opts ...Option) (*Engine, error) {
	e := New(st, opts...)
	if err := e.Refresh(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// Refresh replaces the in-memory set with what the store holds. An empty
// store is seeded with a document holding only the default schedule.
func (e *Engine) Refresh(ctx context.Context) error {
	doc, err := e.store.Load(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		doc = model.NewDocument(e.stamp())
		if err := e.store.Save(ctx, doc); err != nil {
			return &PersistenceError{Op: "seed", Err: err}
		}
		e.logger.Info("schedule store seeded with default schedule")
	case err != nil:
		return &PersistenceError{Op: "load", Err: err}
	}

	if fixed, changed := e.ensureDefault(doc); changed {
		if err := e.store.Save(ctx, fixed); err != nil {
			return &PersistenceError{Op: "save", Err: err}
		}
		doc = fixed
	}

	e.mu.Lock()
	e.doc = doc
	e.mu.Unlock()
	return nil
}

// ensureDefault keeps exactly one default schedule, at the front.
func (e *Engine) ensureDefault(doc model.Document) (model.Document, bool) {
	idx := slices.IndexFunc(doc.Schedules, func(s model.Schedule) bool { return s.IsDefault })
	if idx < 0 {
		e.logger.Warn("stored schedule set has no default schedule, adding one")
		doc.Schedules = append([]model.Schedule{model.DefaultSchedule()}, doc.Schedules...)
		return doc, true
	}

	changed := false
	for i := idx + 1; i < len(doc.Schedules); i++ {
		if doc.Schedules[i].IsDefault {
			e.logger.Warn("extra default schedule demoted", zap.String("id", doc.Schedules[i].ID))
			doc.Schedules[i].IsDefault = false
			changed = true
		}
	}
	return doc, changed
}

// Schedules returns a copy of the current schedule set.
func (e *Engine) Schedules() []model.Schedule {
	return e.Document().Schedules
}

// Document returns a copy of the current document.
func (e *Engine) Document() model.Document {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.doc.Clone()
}

// Schedule returns the schedule with id.
func (e *Engine) Schedule(id string) (model.Schedule, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, s := range e.doc.Schedules {
		if s.ID == id {
			return s.Clone(), nil
		}
	}
	return model.Schedule{}, &NotFoundError{ID: id}
}

// Occurrences expands every schedule over w, ordered by date, then start
// time, then schedule id.
func (e *Engine) Occurrences(w occurrence.Window) []model.Occurrence {
	var out []model.Occurrence
	for _, s := range e.Schedules() {
		out = append(out, occurrence.Collect(s, w)...)
	}
	slices.SortFunc(out, func(a, b model.Occurrence) int {
		return cmp.Or(
			cmp.Compare(a.Date, b.Date),
			cmp.Compare(a.StartTime, b.StartTime),
			cmp.Compare(a.ScheduleID, b.ScheduleID),
		)
	})
	return out
}

// Active returns the schedule in effect at the given wall-clock instant.
func (e *Engine) Active(at time.Time, sun occurrence.SunFunc) (model.Schedule, bool) {
	return occurrence.ActiveAt(e.Schedules(), at, sun)
}

// Apply runs one command to completion: validate on a copy, persist,
// reload, notify. On any error the in-memory set is exactly as before.
func (e *Engine) Apply(ctx context.Context, cmd Command) (Result, error) {
	if !e.busy.TryLock() {
		return Result{}, ErrBusy
	}
	defer e.busy.Unlock()

	log := e.logger.With(zap.String("action", string(cmd.Action())))
	log.Debug("applying action")

	working := e.Document()
	res, err := e.plan(&working, cmd)
	if err != nil {
		log.Info("action rejected", zap.Error(err))
		return Result{}, err
	}
	res.Action = cmd.Action()
	working.Metadata.Version = model.DocumentVersion
	working.Metadata.UpdatedAt = e.stamp()

	if err := e.store.Save(ctx, working); err != nil {
		log.Error("saving schedule set failed", zap.Error(err))
		return Result{}, &PersistenceError{Op: "save", Err: err}
	}
	if err := e.Refresh(ctx); err != nil {
		log.Error("reloading schedule set failed", zap.Error(err))
		return Result{}, err
	}

	ids := res.ids()
	log.Info("action committed", zap.Strings("schedule_ids", ids), zap.Int("total", len(working.Schedules)))

	change := notify.Change{
		Action:      string(res.Action),
		ScheduleIDs: ids,
		At:          e.stamp(),
		Total:       len(working.Schedules),
	}
	if err := e.notifier.Publish(ctx, change); err != nil {
		log.Warn("change notification failed", zap.Error(err))
	}
	return res, nil
}

// plan mutates doc according to cmd. doc is a private copy; on error the
// caller discards it.
func (e *Engine) plan(doc *model.Document, cmd Command) (Result, error) {
	switch c := cmd.(type) {
	case Create:
		return e.create(doc, c)
	case Update:
		return e.update(doc, c)
	case Delete:
		return e.delete(doc, c)
	case Drag:
		return e.drag(doc, c)
	case Resize:
		return e.resize(doc, c)
	case RemoveExcludedDate:
		return e.removeExcludedDate(doc, c)
	case Import:
		return e.importSchedules(doc, c)
	default:
		return Result{}, invalid("action", "unsupported command %T", cmd)
	}
}

func (e *Engine) create(doc *model.Document, c Create) (Result, error) {
	s := Normalize(c.Schedule)
	s.ID = e.newID()
	s.IsDefault = false
	s.CreatedAt = e.stamp()
	s.UpdatedAt = s.CreatedAt

	if err := e.check(s, doc.Schedules, ""); err != nil {
		return Result{}, err
	}
	doc.Schedules = append(doc.Schedules, s)
	return Result{Changed: []model.Schedule{s}}, nil
}

func (e *Engine) update(doc *model.Document, c Update) (Result, error) {
	idx, err := find(doc, c.ID)
	if err != nil {
		return Result{}, err
	}
	orig := doc.Schedules[idx]

	if orig.IsDefault && c.Patch.touchesTiming() {
		return Result{}, &ProtectedEntityError{ID: orig.ID, Op: ActionUpdate}
	}

	merged, err := c.Patch.apply(orig.Clone())
	if err != nil {
		return Result{}, err
	}
	s := Normalize(merged)
	s.ID = orig.ID
	s.IsDefault = orig.IsDefault
	s.CreatedAt = orig.CreatedAt
	s.UpdatedAt = e.stamp()

	if s.IsDefault {
		if err := Validate(s); err != nil {
			return Result{}, err
		}
	} else if err := e.check(s, doc.Schedules, s.ID); err != nil {
		return Result{}, err
	}

	doc.Schedules[idx] = s
	return Result{Changed: []model.Schedule{s}}, nil
}

func (e *Engine) delete(doc *model.Document, c Delete) (Result, error) {
	idx, err := find(doc, c.ID)
	if err != nil {
		return Result{}, err
	}
	if doc.Schedules[idx].IsDefault {
		return Result{}, &ProtectedEntityError{ID: c.ID, Op: ActionDelete}
	}
	doc.Schedules = slices.Delete(doc.Schedules, idx, idx+1)
	return Result{Removed: []string{c.ID}}, nil
}

func (e *Engine) drag(doc *model.Document, c Drag) (Result, error) {
	idx, err := find(doc, c.ID)
	if err != nil {
		return Result{}, err
	}
	orig := doc.Schedules[idx]
	if orig.IsDefault {
		return Result{}, &ProtectedEntityError{ID: orig.ID, Op: ActionDrag}
	}

	length, err := timeutil.Duration(orig.StartTime, orig.EndTime)
	if err != nil {
		return Result{}, invalid("start_time", "%v", err)
	}
	date := timeutil.ToDateString(c.Start)
	start := timeutil.ToTimeString(c.Start)
	end, _ := timeutil.AddMinutes(start, length)

	if c.Scope == ScopeOccurrence && orig.RepeatFrequency == model.RepeatCustom {
		return e.split(doc, idx, c.OccurrenceDate, date, start, end)
	}

	s := orig.Clone()
	s.StartTime = start
	s.EndTime = end
	if s.RepeatFrequency == model.RepeatNever {
		s.StartDate = date
		s.EndDate = date
	}
	s.UpdatedAt = e.stamp()

	if err := e.check(s, doc.Schedules, s.ID); err != nil {
		return Result{}, err
	}
	doc.Schedules[idx] = s
	return Result{Changed: []model.Schedule{s}}, nil
}

// split carves the occurrence on occDate out of the series at idx: the
// series gains an exclusion and a one-time copy is created on date. The
// copy is checked against the set with the exclusion already applied.
func (e *Engine) split(doc *model.Document, idx int, occDate, date, start, end string) (Result, error) {
	orig := doc.Schedules[idx]
	if !timeutil.IsDate(occDate) {
		return Result{}, invalid("occurrence_date", "must be YYYY-MM-DD, got %q", occDate)
	}
	if !e.occursOn(orig, occDate) {
		return Result{}, invalid("occurrence_date", "schedule %q has no occurrence on %s", orig.ID, occDate)
	}

	now := e.stamp()
	series := orig.Clone()
	series.ExcludeDates = normalizeDates(append(series.ExcludeDates, occDate))
	series.UpdatedAt = now

	single := orig.Clone()
	single.ID = e.newID()
	single.RepeatFrequency = model.RepeatNever
	single.DaysOfWeek = []string{}
	single.StartDate = date
	single.EndDate = date
	single.StartTime = start
	single.EndTime = end
	single.ExcludeDates = []string{}
	single.CreatedAt = now
	single.UpdatedAt = now

	snapshot := slices.Clone(doc.Schedules)
	snapshot[idx] = series
	if err := e.check(single, snapshot, ""); err != nil {
		return Result{}, err
	}

	doc.Schedules = append(snapshot, single)
	return Result{Changed: []model.Schedule{series, single}}, nil
}

func (e *Engine) occursOn(s model.Schedule, date string) bool {
	day, err := timeutil.ParseDate(date)
	if err != nil {
		return false
	}
	for range occurrence.Generate(s, occurrence.Window{Start: day, End: day}) {
		return true
	}
	return false
}

func (e *Engine) resize(doc *model.Document, c Resize) (Result, error) {
	idx, err := find(doc, c.ID)
	if err != nil {
		return Result{}, err
	}
	orig := doc.Schedules[idx]
	if orig.IsDefault {
		return Result{}, &ProtectedEntityError{ID: orig.ID, Op: ActionResize}
	}
	if c.Scope == ScopeOccurrence && orig.RepeatFrequency == model.RepeatCustom {
		e.logger.Info("single-occurrence resize applies to the whole series",
			zap.String("id", orig.ID), zap.String("occurrence_date", c.OccurrenceDate))
	}

	s := orig.Clone()
	s.EndTime = timeutil.ToTimeString(c.End)
	s.UpdatedAt = e.stamp()

	if err := validateDuration(s); err != nil {
		return Result{}, err
	}
	if err := e.check(s, doc.Schedules, s.ID); err != nil {
		return Result{}, err
	}
	doc.Schedules[idx] = s
	return Result{Changed: []model.Schedule{s}}, nil
}

func (e *Engine) removeExcludedDate(doc *model.Document, c RemoveExcludedDate) (Result, error) {
	idx, err := find(doc, c.ID)
	if err != nil {
		return Result{}, err
	}
	s := doc.Schedules[idx].Clone()
	date := c.Date
	if d, _, ok := timeutil.SplitDateTime(date); ok {
		date = d
	}
	pos := slices.Index(s.ExcludeDates, date)
	if pos < 0 {
		return Result{}, invalid("date", "%q is not excluded from schedule %q", date, s.ID)
	}
	s.ExcludeDates = slices.Delete(s.ExcludeDates, pos, pos+1)
	s.UpdatedAt = e.stamp()

	// The restored occurrence may collide with a schedule created since.
	if err := e.check(s, doc.Schedules, s.ID); err != nil {
		return Result{}, err
	}
	doc.Schedules[idx] = s
	return Result{Changed: []model.Schedule{s}}, nil
}

// check validates s and runs the overlap detector against others.
func (e *Engine) check(s model.Schedule, others []model.Schedule, excludeID string) error {
	if err := Validate(s); err != nil {
		return err
	}
	if err := validateDuration(s); err != nil {
		return err
	}
	return e.conflict(s, others, excludeID)
}

func (e *Engine) conflict(s model.Schedule, others []model.Schedule, excludeID string) error {
	d := occurrence.Detector{Window: occurrence.ScanWindow(e.now(), e.scanYears, s, others...)}
	c, found := d.FindConflict(s, others, excludeID)
	if !found {
		return nil
	}
	return &OverlapConflictError{
		ScheduleID:   c.Schedule.ID,
		ScheduleName: c.Schedule.EventName,
		Date:         c.Date,
		Candidate:    TimeRange{Date: c.Candidate.Date, Start: c.Candidate.StartTime, End: c.Candidate.EndTime},
		Existing:     TimeRange{Date: c.Existing.Date, Start: c.Existing.StartTime, End: c.Existing.EndTime},
	}
}

func (e *Engine) stamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func find(doc *model.Document, id string) (int, error) {
	idx := slices.IndexFunc(doc.Schedules, func(s model.Schedule) bool { return s.ID == id })
	if idx < 0 {
		return -1, &NotFoundError{ID: id}
	}
	return idx, nil
}
