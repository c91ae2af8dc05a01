package sis

import (
	"context"
	"log/slog"
	"time"
	"uthsis-backend/lib/gradestore"
	"uthsis-backend/lib/scrapers/sisweb"
	"uthsis-backend/lib/timezone"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/sis")

type Options struct {
	CasLoginUrl string
	GradesUrl   string
	// defaults to one hour
	SessionTtl time.Duration
	// defaults to ten minutes
	SweepInterval time.Duration
}

// Service ties the scraping pipeline together: CAS login over HTTP,
// session redemption, the headless-browser fallback, and snapshot
// persistence for trend charts.
type Service struct {
	scraper  *sisweb.Client
	registry *sisweb.SessionRegistry
	store    gradestore.Store
	opts     Options
}

// Snapshot is what every successful extraction produces, regardless
// of which path got us there.
type Snapshot struct {
	Username  string
	Grades    []sisweb.GradeRecord
	FetchedAt time.Time
}

func NewService(ctx context.Context, store gradestore.Store, opts Options) Service {
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = time.Minute * 10
	}

	registry := sisweb.NewSessionRegistry(opts.SessionTtl)
	scraper := sisweb.NewClient(sisweb.ClientOptions{
		CasLoginUrl: opts.CasLoginUrl,
		GradesUrl:   opts.GradesUrl,
	}, registry)

	s := Service{
		scraper:  scraper,
		registry: registry,
		store:    store,
		opts:     opts,
	}
	go s.sweepDaemon(ctx)
	return s
}

func (s Service) sweepDaemon(ctx context.Context) {
	ticker := time.NewTicker(s.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.registry.Sweep(timezone.Now())
		}
	}
}

// Login authenticates against CAS and returns a session id the caller
// redeems later with FetchGrades. The id dies with the process.
func (s Service) Login(ctx context.Context, username, password string) (string, error) {
	ctx, span := tracer.Start(ctx, "Login")
	defer span.End()
	span.SetAttributes(attribute.String("username", username))

	id, err := s.scraper.Login(ctx, username, password)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return id, nil
}

// FetchGrades redeems a session id and persists a snapshot of the
// result. A store failure doesn't fail the fetch, the caller still
// gets their grades.
func (s Service) FetchGrades(ctx context.Context, sessionId string) (Snapshot, error) {
	ctx, span := tracer.Start(ctx, "FetchGrades")
	defer span.End()

	session, ok := s.registry.Get(sessionId)
	if !ok {
		span.SetStatus(codes.Error, sisweb.ErrSessionExpired.Error())
		return Snapshot{}, sisweb.ErrSessionExpired
	}

	records, err := s.scraper.FetchGrades(ctx, sessionId)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Snapshot{}, err
	}

	snapshot := Snapshot{
		Username:  session.Username,
		Grades:    records,
		FetchedAt: timezone.Now(),
	}
	s.persist(ctx, snapshot)
	return snapshot, nil
}

// FetchGradesBrowser is the self-contained headless-browser path,
// login and extraction in one call, no session id involved.
func (s Service) FetchGradesBrowser(ctx context.Context, username, password string) (Snapshot, error) {
	ctx, span := tracer.Start(ctx, "FetchGradesBrowser")
	defer span.End()
	span.SetAttributes(attribute.String("username", username))

	records, err := sisweb.FetchGradesBrowser(ctx, username, password, sisweb.BrowserOptions{
		GradesUrl: s.opts.GradesUrl,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Snapshot{}, err
	}

	snapshot := Snapshot{
		Username:  username,
		Grades:    records,
		FetchedAt: timezone.Now(),
	}
	s.persist(ctx, snapshot)
	return snapshot, nil
}

func (s Service) persist(ctx context.Context, snapshot Snapshot) {
	courses := make([]gradestore.CourseSnapshot, len(snapshot.Grades))
	for i, record := range snapshot.Grades {
		courses[i] = gradestore.CourseSnapshot{
			Course: record.Title,
			Value:  record.Grade,
		}
	}
	err := s.store.Push(ctx, snapshot.Username, snapshot.FetchedAt, courses)
	if err != nil {
		slog.WarnContext(ctx, "failed to persist grade snapshot",
			"username", snapshot.Username, "err", err)
	}
}

// Snapshots returns the persisted per-course grade history for a user.
func (s Service) Snapshots(ctx context.Context, username string) ([]gradestore.CourseSeries, error) {
	ctx, span := tracer.Start(ctx, "Snapshots")
	defer span.End()
	span.SetAttributes(attribute.String("username", username))

	series, err := s.store.Pull(ctx, username)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return series, nil
}

// RetainSnapshots drops persisted snapshots older than the given age,
// wired to a cron schedule by the server binary.
func (s Service) RetainSnapshots(ctx context.Context, maxAge time.Duration) error {
	ctx, span := tracer.Start(ctx, "RetainSnapshots")
	defer span.End()

	err := s.store.DeleteBefore(ctx, timezone.Now().Add(-maxAge))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}
