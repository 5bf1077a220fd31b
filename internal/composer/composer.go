package composer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/citifix/backend/internal/models"
	"github.com/citifix/backend/internal/ratelimit"
)

// RateLimitMessage is shown when a submission follows the previous one too closely.
const RateLimitMessage = "Please wait before trying again"

var (
	ErrTooSoon          = errors.New("submitted too soon after the previous attempt")
	ErrSubmitInProgress = errors.New("a submission is already in progress")
)

type SubmitStatus string

const (
	StatusIdle       SubmitStatus = "idle"
	StatusSubmitting SubmitStatus = "submitting"
	StatusSuccess    SubmitStatus = "success"
	StatusError      SubmitStatus = "error"
)

// Sink persists a freshly built report. A failing sink fails the submission.
type Sink interface {
	Save(ctx context.Context, r models.Report) error
}

type SinkFunc func(ctx context.Context, r models.Report) error

func (f SinkFunc) Save(ctx context.Context, r models.Report) error { return f(ctx, r) }

type Locator interface {
	Locate(ctx context.Context) (models.Coordinates, error)
}

type LocatorFunc func(ctx context.Context) (models.Coordinates, error)

func (f LocatorFunc) Locate(ctx context.Context) (models.Coordinates, error) { return f(ctx) }

type Options struct {
	SubmitDelay     time.Duration
	ResetDelay      time.Duration
	LocationTimeout time.Duration
	Limiter         ratelimit.Limiter
	LimiterKey      string
	Sink            Sink
	IDs             *IDGenerator
	Validator       *validator.Validate
	Now             func() time.Time
	Logger          zerolog.Logger
}

// State is a snapshot of the composer as a form would render it.
type State struct {
	Status          SubmitStatus           `json:"status"`
	Category        models.Category        `json:"category"`
	Priority        models.Priority        `json:"priority"`
	Analysis        *models.AnalysisResult `json:"analysis,omitempty"`
	Fix             *models.Coordinates    `json:"location_fix,omitempty"`
	LocationLoading bool                   `json:"location_loading"`
	LastReport      *models.Report         `json:"last_report,omitempty"`
}

type Composer struct {
	opts Options

	mu            sync.Mutex
	state         State
	submitting    bool
	locationTried bool
	resetTimer    *time.Timer
}

func New(opts Options) *Composer {
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.NewLocal(2 * time.Second)
	}
	if opts.LimiterKey == "" {
		opts.LimiterKey = "report-form"
	}
	if opts.IDs == nil {
		opts.IDs = &IDGenerator{}
	}
	if opts.Validator == nil {
		opts.Validator = NewValidator()
	}
	if opts.LocationTimeout <= 0 {
		opts.LocationTimeout = 10 * time.Second
	}
	c := &Composer{opts: opts}
	c.state = defaultState()
	return c
}

func defaultState() State {
	return State{
		Status:   StatusIdle,
		Category: models.CategoryPothole,
		Priority: models.PriorityMedium,
	}
}

func (c *Composer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	if s.Fix != nil {
		fix := *s.Fix
		s.Fix = &fix
	}
	return s
}

// ApplyAnalysis carries a category choice into the draft defaults. The
// catalog severity becomes the default priority.
func (c *Composer) ApplyAnalysis(res models.AnalysisResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := res
	c.state.Analysis = &r
	if cat := models.Category(res.Category); cat.Valid() {
		c.state.Category = cat
	}
	if p := models.Priority(res.Severity); p.Valid() {
		c.state.Priority = p
	}
}

func (c *Composer) SetLocation(fix models.Coordinates) {
	c.mu.Lock()
	c.state.Fix = &fix
	c.state.LocationLoading = false
	c.mu.Unlock()
}

func (c *Composer) ClearLocation() {
	c.mu.Lock()
	c.state.Fix = nil
	c.mu.Unlock()
}

// AcquireLocation asks the locator once, bounded by LocationTimeout. Denial or
// timeout leaves the composer without a fix and the address becomes required.
func (c *Composer) AcquireLocation(ctx context.Context, loc Locator) (models.Coordinates, bool) {
	c.mu.Lock()
	if c.locationTried || loc == nil {
		fix := c.state.Fix
		c.mu.Unlock()
		if fix != nil {
			return *fix, true
		}
		return models.Coordinates{}, false
	}
	c.locationTried = true
	c.state.LocationLoading = true
	c.mu.Unlock()

	lctx, cancel := context.WithTimeout(ctx, c.opts.LocationTimeout)
	defer cancel()
	coords, err := loc.Locate(lctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.LocationLoading = false
	if err != nil {
		c.opts.Logger.Debug().Err(err).Msg("location unavailable, manual address required")
		return models.Coordinates{}, false
	}
	c.state.Fix = &coords
	return coords, true
}

func (c *Composer) Submit(ctx context.Context, d Draft, who *models.Identity) (models.Report, error) {
	c.mu.Lock()
	fix := c.state.Fix
	if d.Category == "" {
		d.Category = c.state.Category
	}
	if d.Priority == "" {
		d.Priority = c.state.Priority
	}
	c.mu.Unlock()

	if err := Validate(c.opts.Validator, d, fix); err != nil {
		return models.Report{}, err
	}

	ok, err := c.opts.Limiter.Allow(ctx, c.opts.LimiterKey)
	if err != nil {
		return models.Report{}, fmt.Errorf("rate limiter: %w", err)
	}
	if !ok {
		return models.Report{}, ErrTooSoon
	}

	c.mu.Lock()
	if c.submitting {
		c.mu.Unlock()
		return models.Report{}, ErrSubmitInProgress
	}
	c.submitting = true
	c.state.Status = StatusSubmitting
	c.stopResetLocked()
	c.mu.Unlock()

	now := c.now()
	loc := models.AddressLocation(d.Location)
	if fix != nil {
		loc = models.CoordinateLocation(*fix)
	}
	report := models.Report{
		ID:          c.opts.IDs.Next(now),
		Title:       strings.TrimSpace(d.Title),
		Description: strings.TrimSpace(d.Description),
		Category:    d.Category,
		Priority:    d.Priority,
		Status:      models.StatusReported,
		Location:    loc,
		Reporter:    who.DisplayName(),
		UserID:      who.ID(),
		Votes:       0,
		ImageURL:    d.ImageURL,
		Date:        now,
		UpdatedAt:   now,
	}

	err = c.deliver(ctx, report)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitting = false
	if err != nil {
		c.state.Status = StatusError
		return models.Report{}, err
	}
	c.state.Status = StatusSuccess
	r := report
	c.state.LastReport = &r
	c.scheduleResetLocked()
	return report, nil
}

func (c *Composer) deliver(ctx context.Context, r models.Report) error {
	if c.opts.SubmitDelay > 0 {
		timer := time.NewTimer(c.opts.SubmitDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	if c.opts.Sink == nil {
		return nil
	}
	if err := c.opts.Sink.Save(ctx, r); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

// Reset clears the draft back to its defaults. The location fix survives.
func (c *Composer) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopResetLocked()
	c.resetLocked()
}

func (c *Composer) resetLocked() {
	fix := c.state.Fix
	c.state = defaultState()
	c.state.Fix = fix
}

func (c *Composer) scheduleResetLocked() {
	if c.opts.ResetDelay <= 0 {
		return
	}
	c.resetTimer = time.AfterFunc(c.opts.ResetDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.state.Status == StatusSuccess {
			c.resetLocked()
		}
	})
}

func (c *Composer) stopResetLocked() {
	if c.resetTimer != nil {
		c.resetTimer.Stop()
		c.resetTimer = nil
	}
}

// Close stops the pending reset timer.
func (c *Composer) Close() {
	c.mu.Lock()
	c.stopResetLocked()
	c.mu.Unlock()
}

func (c *Composer) now() time.Time {
	if c.opts.Now != nil {
		return c.opts.Now()
	}
	return time.Now().UTC()
}
