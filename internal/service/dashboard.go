package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/citifix/backend/internal/classifier"
	"github.com/citifix/backend/internal/composer"
	"github.com/citifix/backend/internal/db"
	"github.com/citifix/backend/internal/events"
	"github.com/citifix/backend/internal/geocode"
	"github.com/citifix/backend/internal/metrics"
	"github.com/citifix/backend/internal/models"
	"github.com/citifix/backend/internal/ratelimit"
	"github.com/citifix/backend/internal/reports"
	"github.com/citifix/backend/internal/resilience"
	"github.com/citifix/backend/internal/session"
	"github.com/citifix/backend/internal/storage"
	"github.com/citifix/backend/internal/voting"
)

// DefaultPointsPerReport is awarded to the reporter after a successful submission.
const DefaultPointsPerReport = 10

var ErrReportNotFound = errors.New("report not found")

type Options struct {
	Repo       db.Repository
	Storage    storage.ObjectStore
	Classifier classifier.Analyzer
	Geocoder   geocode.ReverseGeocoder
	Publisher  events.Publisher
	Metrics    *metrics.Metrics
	Breaker    *resilience.Breaker
	Limiter    ratelimit.Limiter

	SubmitDelay     time.Duration
	ResetDelay      time.Duration
	LocationTimeout time.Duration
	PointsPerReport int
	ListLimit       int
	DemoFixtures    bool

	Logger zerolog.Logger
	Now    func() time.Time
}

// Dashboard runs the report workflow on top of a session's workspace and
// the external backend.
type Dashboard struct {
	opts   Options
	logger zerolog.Logger
	ids    *composer.IDGenerator

	// Sessions receives moderation fan-out. Set once the manager exists.
	Sessions *session.Manager
}

func NewDashboard(opts Options) *Dashboard {
	if opts.Publisher == nil {
		opts.Publisher = events.Nop{}
	}
	if opts.Classifier == nil {
		opts.Classifier = classifier.NewManual(0)
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.NewLocal(2 * time.Second)
	}
	if opts.PointsPerReport == 0 {
		opts.PointsPerReport = DefaultPointsPerReport
	}
	if opts.ListLimit <= 0 {
		opts.ListLimit = db.DefaultListLimit
	}
	return &Dashboard{
		opts:   opts,
		logger: opts.Logger.With().Str("component", "dashboard").Logger(),
		ids:    &composer.IDGenerator{},
	}
}

func (d *Dashboard) now() time.Time {
	if d.opts.Now != nil {
		return d.opts.Now()
	}
	return time.Now().UTC()
}

// NewWorkspace is the session.WorkspaceFactory wiring a workspace to the backend.
func (d *Dashboard) NewWorkspace(id models.Identity) *session.Workspace {
	var source reports.Source
	if d.opts.Repo != nil {
		source = reports.SourceFunc(d.fetchProblems)
	}
	if d.opts.DemoFixtures {
		source = reports.WithFixtures(source)
	}
	store := reports.NewStore(source)

	var sink composer.Sink
	var confirmer voting.Confirmer
	if d.opts.Repo != nil {
		sink = composer.SinkFunc(d.saveProblem)
		confirmer = voting.ConfirmerFunc(d.confirmVote)
	}
	if d.opts.DemoFixtures && confirmer != nil {
		confirmer = withLocalFixtures(confirmer)
	}

	return &session.Workspace{
		Composer: composer.New(composer.Options{
			SubmitDelay:     d.opts.SubmitDelay,
			ResetDelay:      d.opts.ResetDelay,
			LocationTimeout: d.opts.LocationTimeout,
			Limiter:         d.opts.Limiter,
			LimiterKey:      "report-form:" + id.ID(),
			Sink:            sink,
			IDs:             d.ids,
			Now:             d.opts.Now,
			Logger:          d.logger.With().Str("user_id", id.UserID).Logger(),
		}),
		Reports: store,
		Votes:   voting.NewLedger(store, confirmer),
	}
}

func (d *Dashboard) fetchProblems(ctx context.Context) ([]models.Report, error) {
	var list []models.Report
	err := d.opts.Breaker.Execute(ctx, "db.list_problems", func(ctx context.Context) error {
		var err error
		list, err = d.opts.Repo.ListProblems(ctx, d.opts.ListLimit)
		return err
	})
	return list, err
}

func (d *Dashboard) saveProblem(ctx context.Context, r models.Report) error {
	return d.opts.Breaker.Execute(ctx, "db.create_problem", func(ctx context.Context) error {
		_, err := d.opts.Repo.CreateProblem(ctx, r)
		return err
	})
}

func (d *Dashboard) confirmVote(ctx context.Context, id string) error {
	return d.opts.Breaker.Execute(ctx, "db.increment_votes", func(ctx context.Context) error {
		_, err := d.opts.Repo.IncrementVotes(ctx, id)
		return err
	})
}

// withLocalFixtures confirms votes on demo reports without the backend,
// which has no rows for them.
func withLocalFixtures(next voting.Confirmer) voting.Confirmer {
	return voting.ConfirmerFunc(func(ctx context.Context, id string) error {
		if reports.IsFixture(id) {
			return nil
		}
		return next.ConfirmVote(ctx, id)
	})
}

// SubmitReport turns the draft into a persisted report, shows it first in
// the session's listing and credits the reporter.
func (d *Dashboard) SubmitReport(ctx context.Context, s *session.Session, draft composer.Draft) (models.Report, error) {
	ws := s.Workspace
	if draft.ImageURL == "" {
		if a := ws.Composer.State().Analysis; a != nil {
			draft.ImageURL = a.ImageURL
		}
	}
	who := s.Identity
	report, err := ws.Composer.Submit(ctx, draft, &who)
	if err != nil {
		d.opts.Metrics.RecordReport(submitResult(err))
		return models.Report{}, err
	}
	d.opts.Metrics.RecordReport("ok")
	ws.Reports.Add(report)

	if who.UserID != "" && d.opts.Repo != nil {
		err := d.opts.Breaker.Execute(ctx, "db.add_user_points", func(ctx context.Context) error {
			_, err := d.opts.Repo.AddUserPoints(ctx, who.UserID, d.opts.PointsPerReport)
			return err
		})
		if err != nil {
			d.logger.Warn().Err(err).Str("user_id", who.UserID).Msg("points not awarded")
		}
	}

	d.publish(ctx, events.Event{Type: events.ReportCreated, ReportID: report.ID, Status: report.Status, UserID: report.UserID, Report: &report})
	d.logger.Info().Str("report_id", report.ID).Str("category", string(report.Category)).Msg("report submitted")
	return report, nil
}

func submitResult(err error) string {
	switch {
	case composer.IsValidationError(err):
		return "invalid"
	case errors.Is(err, composer.ErrTooSoon), errors.Is(err, composer.ErrSubmitInProgress):
		return "rate_limited"
	default:
		return "error"
	}
}

// Reports lists the session's reports, fetching the external listing on
// first use. A failed first fetch leaves the session's own reports visible
// and is retried on the next call.
func (d *Dashboard) Reports(ctx context.Context, s *session.Session, f reports.Filter) []models.Report {
	d.ensureLoaded(ctx, s)
	return s.Workspace.Reports.List(f)
}

func (d *Dashboard) ensureLoaded(ctx context.Context, s *session.Session) {
	if s.Workspace.Reports.Loaded() {
		return
	}
	if err := s.Workspace.Reports.Refresh(ctx); err != nil {
		d.logger.Warn().Err(err).Str("user_id", s.Identity.UserID).Msg("initial report fetch failed")
	}
}

// Refresh reloads the external listing of the session.
func (d *Dashboard) Refresh(ctx context.Context, s *session.Session) error {
	return s.Workspace.Reports.Refresh(ctx)
}

func (d *Dashboard) Vote(ctx context.Context, s *session.Session, reportID string) (models.Report, error) {
	d.ensureLoaded(ctx, s)
	err := s.Workspace.Votes.Vote(ctx, reportID)
	switch {
	case errors.Is(err, voting.ErrUnknownReport):
		d.opts.Metrics.RecordVote("unknown")
		return models.Report{}, ErrReportNotFound
	case err != nil:
		d.opts.Metrics.RecordVote("rolled_back")
		return models.Report{}, err
	}
	d.opts.Metrics.RecordVote("ok")
	r, _ := s.Workspace.Reports.Get(reportID)
	return r, nil
}

// Statistics combines the global counts with the caller's points.
func (d *Dashboard) Statistics(ctx context.Context, s *session.Session) (models.Stats, error) {
	if d.opts.Repo == nil {
		return models.Stats{}, nil
	}
	var st models.Stats
	err := d.opts.Breaker.Execute(ctx, "db.stats", func(ctx context.Context) error {
		var err error
		st, err = d.opts.Repo.Stats(ctx)
		return err
	})
	if err != nil {
		return models.Stats{}, fmt.Errorf("load statistics: %w", err)
	}
	if s == nil || s.Identity.UserID == "" {
		return st, nil
	}
	p, err := d.opts.Repo.GetUserProfile(ctx, s.Identity.UserID)
	switch {
	case err == nil:
		st.UserPoints = p.Points
	case !errors.Is(err, db.ErrNotFound):
		d.logger.Warn().Err(err).Str("user_id", s.Identity.UserID).Msg("profile lookup failed")
	}
	return st, nil
}

func (d *Dashboard) MyReports(ctx context.Context, s *session.Session) ([]models.Report, error) {
	if d.opts.Repo == nil || s.Identity.UserID == "" {
		return []models.Report{}, nil
	}
	var list []models.Report
	err := d.opts.Breaker.Execute(ctx, "db.list_user_problems", func(ctx context.Context) error {
		var err error
		list, err = d.opts.Repo.ListProblemsByUser(ctx, s.Identity.UserID)
		return err
	})
	if list == nil {
		list = []models.Report{}
	}
	return list, err
}

// Upload is an image received for analysis.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Analyze stores the photo and returns the pending analysis. The image URL
// is kept on the composer so the next submission carries it.
func (d *Dashboard) Analyze(ctx context.Context, s *session.Session, up Upload) (models.AnalysisResult, error) {
	if err := storage.CheckImage(up.ContentType); err != nil {
		return models.AnalysisResult{}, err
	}
	var imageURL string
	if d.opts.Storage != nil {
		name := storage.NewFilename(up.Filename)
		err := d.opts.Breaker.Execute(ctx, "storage.upload", func(ctx context.Context) error {
			obj, err := d.opts.Storage.Upload(ctx, name, up.ContentType, up.Body)
			if err != nil {
				return err
			}
			imageURL = obj.PublicURL
			d.opts.Metrics.ObserveUpload(obj.Size)
			return nil
		})
		if err != nil {
			return models.AnalysisResult{}, fmt.Errorf("upload image: %w", err)
		}
	}

	res, err := d.opts.Classifier.Analyze(ctx)
	if err != nil {
		return models.AnalysisResult{}, err
	}
	res.ImageURL = imageURL
	s.Workspace.Composer.ApplyAnalysis(res)
	return res, nil
}

// SelectCategory resolves the user's manual choice and makes it the draft default.
func (d *Dashboard) SelectCategory(s *session.Session, value string) (models.AnalysisResult, error) {
	res, err := d.opts.Classifier.Select(value)
	if err != nil {
		return models.AnalysisResult{}, err
	}
	if prev := s.Workspace.Composer.State().Analysis; prev != nil {
		res.ImageURL = prev.ImageURL
	}
	s.Workspace.Composer.ApplyAnalysis(res)
	return res, nil
}

func (d *Dashboard) Categories() []models.CategoryOption {
	return d.opts.Classifier.Options()
}

// AcquireLocation offers the browser's fix to the composer. Only the first
// offer of a session is taken; later ones return the fix already held.
func (d *Dashboard) AcquireLocation(ctx context.Context, s *session.Session, fix models.Coordinates) (geocode.Place, bool, error) {
	if !geocode.ValidCoordinates(fix) {
		return geocode.Place{}, false, geocode.ErrInvalidCoordinates
	}
	got, ok := s.Workspace.Composer.AcquireLocation(ctx, composer.LocatorFunc(func(context.Context) (models.Coordinates, error) {
		return fix, nil
	}))
	if !ok {
		return geocode.Place{}, false, nil
	}
	place, _ := d.Locate(ctx, got)
	return place, true, nil
}

// Locate labels coordinates. Geocoder failures only cost the area label.
func (d *Dashboard) Locate(ctx context.Context, c models.Coordinates) (geocode.Place, error) {
	place, err := geocode.Describe(ctx, d.opts.Geocoder, c)
	if errors.Is(err, geocode.ErrInvalidCoordinates) {
		return geocode.Place{}, err
	}
	if err != nil {
		d.logger.Debug().Err(err).Msg("reverse geocoding failed")
	}
	return place, nil
}

// ModerateStatus records a moderation decision and pushes it into every
// live session that shows the report.
func (d *Dashboard) ModerateStatus(ctx context.Context, id string, status models.Status) (models.Report, error) {
	if !status.Valid() {
		return models.Report{}, &composer.ValidationError{Field: "status", Message: fmt.Sprintf("Unknown status %q", status)}
	}
	var updated models.Report
	persisted := false
	if d.opts.Repo != nil {
		err := d.opts.Breaker.Execute(ctx, "db.update_problem", func(ctx context.Context) error {
			var err error
			updated, err = d.opts.Repo.UpdateProblem(ctx, id, db.ProblemUpdate{Status: &status})
			return err
		})
		switch {
		case err == nil:
			persisted = true
		case !errors.Is(err, db.ErrNotFound):
			return models.Report{}, fmt.Errorf("update status: %w", err)
		}
	}

	shown := false
	d.eachSession(func(s *session.Session) {
		if err := s.Workspace.Reports.SetStatus(id, status); err == nil {
			shown = true
			if !persisted {
				updated, _ = s.Workspace.Reports.Get(id)
			}
		}
	})
	if !persisted && !shown {
		return models.Report{}, ErrReportNotFound
	}

	d.publish(ctx, events.Event{Type: events.ReportStatus, ReportID: id, Status: status, UserID: updated.UserID})
	d.logger.Info().Str("report_id", id).Str("status", string(status)).Msg("report moderated")
	return updated, nil
}

// ApplyModeration handles decisions published by the moderation process.
func (d *Dashboard) ApplyModeration(ctx context.Context, ev events.Event) error {
	if ev.ReportID == "" {
		return fmt.Errorf("moderation event without report id")
	}
	_, err := d.ModerateStatus(ctx, ev.ReportID, ev.Status)
	return err
}

func (d *Dashboard) DeleteReport(ctx context.Context, id string) error {
	deleted := false
	if d.opts.Repo != nil {
		err := d.opts.Breaker.Execute(ctx, "db.delete_problem", func(ctx context.Context) error {
			return d.opts.Repo.DeleteProblem(ctx, id)
		})
		switch {
		case err == nil:
			deleted = true
		case !errors.Is(err, db.ErrNotFound):
			return fmt.Errorf("delete report: %w", err)
		}
	}
	d.eachSession(func(s *session.Session) {
		if s.Workspace.Reports.Remove(id) {
			deleted = true
		}
	})
	if !deleted {
		return ErrReportNotFound
	}
	d.publish(ctx, events.Event{Type: events.ReportDeleted, ReportID: id})
	return nil
}

func (d *Dashboard) eachSession(fn func(*session.Session)) {
	if d.Sessions == nil {
		return
	}
	d.Sessions.Each(fn)
}

func (d *Dashboard) publish(ctx context.Context, ev events.Event) {
	if ev.At.IsZero() {
		ev.At = d.now()
	}
	if err := d.opts.Publisher.Publish(ctx, ev); err != nil {
		d.logger.Warn().Err(err).Str("type", string(ev.Type)).Str("report_id", ev.ReportID).Msg("event not published")
	}
}
