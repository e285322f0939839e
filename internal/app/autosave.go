package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"vendor-risk-service/internal/domain"
	"vendor-risk-service/internal/metrics"
)

// DefaultAutosaveDelay is the quiet period before an edit is persisted.
const DefaultAutosaveDelay = 2 * time.Second

// Timer is the cancellable handle returned by an AfterFunc.
type Timer interface {
	Stop() bool
}

// AfterFunc arms a single-shot timer; time.AfterFunc in production.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SaveFunc persists the latest snapshot of one question.
type SaveFunc func(ctx context.Context, questionID string, input domain.ResponseInput) (domain.SaveResult, error)

// SaveObserver is told about every persistence attempt.
type SaveObserver interface {
	SaveStarted(questionID string)
	Saved(questionID string, result domain.SaveResult, at time.Time)
	SaveFailed(questionID string, err error)
}

// AutosaveOptions tunes an AutosaveScheduler.
type AutosaveOptions struct {
	Delay       time.Duration
	SaveTimeout time.Duration
	AfterFunc   AfterFunc
	Now         func() time.Time
	Logger      *zap.Logger
}

// AutosaveScheduler debounces edits per question and persists only the last
// snapshot of each quiet period. Saves for different questions may overlap;
// saves for the same question never do: a flush that comes due while a save
// is in flight waits for it and runs right after.
type AutosaveScheduler struct {
	delay     time.Duration
	timeout   time.Duration
	save      SaveFunc
	observer  SaveObserver
	afterFunc AfterFunc
	now       func() time.Time
	logger    *zap.Logger

	mu        sync.Mutex
	timers    map[string]Timer
	gens      map[string]uint64
	pending   map[string]domain.ResponseInput
	inFlight  map[string]bool
	queued    map[string]bool
	lastSaved map[string]time.Time
	unsaved   map[string]bool
	closed    bool
	running   sync.WaitGroup
}

// NewAutosaveScheduler builds a scheduler that flushes through save.
func NewAutosaveScheduler(save SaveFunc, observer SaveObserver, opts AutosaveOptions) *AutosaveScheduler {
	if opts.Delay <= 0 {
		opts.Delay = DefaultAutosaveDelay
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = realAfterFunc
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &AutosaveScheduler{
		delay:     opts.Delay,
		timeout:   opts.SaveTimeout,
		save:      save,
		observer:  observer,
		afterFunc: opts.AfterFunc,
		now:       opts.Now,
		logger:    opts.Logger,
		timers:    make(map[string]Timer),
		gens:      make(map[string]uint64),
		pending:   make(map[string]domain.ResponseInput),
		inFlight:  make(map[string]bool),
		queued:    make(map[string]bool),
		lastSaved: make(map[string]time.Time),
		unsaved:   make(map[string]bool),
	}
}

// Schedule replaces the pending snapshot for questionID and restarts its timer.
func (s *AutosaveScheduler) Schedule(questionID string, snapshot domain.ResponseInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrSessionClosed
	}

	s.pending[questionID] = snapshot
	delete(s.queued, questionID)
	if t, ok := s.timers[questionID]; ok {
		t.Stop()
	}
	s.gens[questionID]++
	gen := s.gens[questionID]
	s.timers[questionID] = s.afterFunc(s.delay, func() { s.fire(questionID, gen) })
	metrics.AutosaveScheduled.Inc()
	return nil
}

// fire runs on timer expiry. A stale generation means the timer was reset
// after it had already fired.
func (s *AutosaveScheduler) fire(questionID string, gen uint64) {
	s.mu.Lock()
	if s.closed || s.gens[questionID] != gen {
		s.mu.Unlock()
		return
	}
	delete(s.timers, questionID)
	if s.inFlight[questionID] {
		s.queued[questionID] = true
		s.mu.Unlock()
		return
	}
	payload, ok := s.takeLocked(questionID)
	s.mu.Unlock()
	if !ok {
		return
	}
	_ = s.run(context.Background(), questionID, payload)
}

// takeLocked pops the pending payload and marks the question in flight.
func (s *AutosaveScheduler) takeLocked(questionID string) (domain.ResponseInput, bool) {
	payload, ok := s.pending[questionID]
	if !ok {
		return domain.ResponseInput{}, false
	}
	delete(s.pending, questionID)
	s.inFlight[questionID] = true
	s.running.Add(1)
	return payload, true
}

// run persists payload and then any snapshot queued behind it. It returns
// the error of the first attempt.
func (s *AutosaveScheduler) run(parent context.Context, questionID string, payload domain.ResponseInput) error {
	var first error
	for attempt := 0; ; attempt++ {
		err := s.persist(parent, questionID, payload)
		if attempt == 0 {
			first = err
		}

		s.mu.Lock()
		delete(s.inFlight, questionID)
		requeue := s.queued[questionID]
		delete(s.queued, questionID)
		var next domain.ResponseInput
		if requeue {
			next, requeue = s.takeLocked(questionID)
		}
		s.mu.Unlock()
		s.running.Done()

		if !requeue {
			return first
		}
		payload = next
	}
}

func (s *AutosaveScheduler) persist(parent context.Context, questionID string, payload domain.ResponseInput) error {
	if s.observer != nil {
		s.observer.SaveStarted(questionID)
	}
	ctx := parent
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, s.timeout)
		defer cancel()
	}

	metrics.AutosaveInFlight.Inc()
	start := time.Now()
	result, err := s.save(ctx, questionID, payload)
	metrics.AutosaveDuration.Observe(time.Since(start).Seconds())
	metrics.AutosaveInFlight.Dec()

	if err != nil {
		metrics.AutosaveFlushes.WithLabelValues("error").Inc()
		s.logger.Warn("autosave failed", zap.String("questionId", questionID), zap.Error(err))
		s.mu.Lock()
		s.unsaved[questionID] = true
		s.mu.Unlock()
		if s.observer != nil {
			s.observer.SaveFailed(questionID, err)
		}
		return err
	}

	metrics.AutosaveFlushes.WithLabelValues("ok").Inc()
	at := s.now()
	s.mu.Lock()
	s.lastSaved[questionID] = at
	delete(s.unsaved, questionID)
	s.mu.Unlock()
	if s.observer != nil {
		s.observer.Saved(questionID, result, at)
	}
	return nil
}

// Resend stages snapshot for the next flush of a question whose last save
// failed. It arms no timer and never replaces a newer pending snapshot.
func (s *AutosaveScheduler) Resend(questionID string, snapshot domain.ResponseInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrSessionClosed
	}
	if !s.unsaved[questionID] {
		return nil
	}
	if _, ok := s.pending[questionID]; !ok {
		s.pending[questionID] = snapshot
	}
	return nil
}

// Unsaved lists the questions whose most recent save failed, sorted.
func (s *AutosaveScheduler) Unsaved() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.unsaved))
	for questionID := range s.unsaved {
		out = append(out, questionID)
	}
	sort.Strings(out)
	return out
}

// FlushAll persists every pending snapshot now, waiting for in-flight saves.
func (s *AutosaveScheduler) FlushAll(ctx context.Context) error {
	s.mu.Lock()
	taken := s.drainLocked(true)
	s.mu.Unlock()
	return s.runAll(ctx, taken)
}

// Close stops every timer. With flush the pending snapshots are persisted
// first; without it they are discarded. Close waits for running saves.
func (s *AutosaveScheduler) Close(ctx context.Context, flush bool) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	taken := s.drainLocked(flush)
	s.mu.Unlock()
	return s.runAll(ctx, taken)
}

// drainLocked cancels all timers. Pending snapshots of idle questions are
// returned marked in flight; those of busy questions are queued behind the
// running save, or dropped when keep is false.
func (s *AutosaveScheduler) drainLocked(keep bool) map[string]domain.ResponseInput {
	for questionID, t := range s.timers {
		t.Stop()
		s.gens[questionID]++
		delete(s.timers, questionID)
	}

	taken := make(map[string]domain.ResponseInput)
	for questionID := range s.pending {
		switch {
		case !keep:
			delete(s.pending, questionID)
			delete(s.queued, questionID)
		case s.inFlight[questionID]:
			s.queued[questionID] = true
		default:
			payload, _ := s.takeLocked(questionID)
			taken[questionID] = payload
		}
	}
	return taken
}

func (s *AutosaveScheduler) runAll(ctx context.Context, taken map[string]domain.ResponseInput) error {
	// One failed question must not cancel the others.
	var g errgroup.Group
	for questionID, payload := range taken {
		g.Go(func() error {
			return s.run(ctx, questionID, payload)
		})
	}
	err := g.Wait()
	s.running.Wait()
	return err
}

// IsSaving reports whether a save for questionID is in flight.
func (s *AutosaveScheduler) IsSaving(questionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight[questionID]
}

// HasPending reports whether an unsaved snapshot is waiting for questionID.
func (s *AutosaveScheduler) HasPending(questionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[questionID]
	return ok
}

// LastSaved returns when questionID was last persisted successfully.
func (s *AutosaveScheduler) LastSaved(questionID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.lastSaved[questionID]
	return at, ok
}
