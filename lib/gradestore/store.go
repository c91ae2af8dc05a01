package gradestore

import (
	"context"
	"database/sql"
	"time"
	"uthsis-backend/lib/timezone"

	_ "modernc.org/sqlite"
)

// Store keeps a time series of grade values per user and course so
// the frontend can render trend charts and "new grades since last
// fetch" without re-scraping.
type Store struct {
	db *sql.DB
}

func NewStore(database *sql.DB) Store {
	return Store{db: database}
}

type CourseSnapshot struct {
	Course string
	Value  float64
}

// Push records one scrape for a user. Only one snapshot per course
// per day is kept, a second push on the same day replaces the first.
func (s Store) Push(ctx context.Context, user string, at time.Time, courses []CourseSnapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	startOfToday := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, timezone.Location).Unix()
	startOfTomorrow := time.Date(at.Year(), at.Month(), at.Day()+1, 0, 0, 0, 0, timezone.Location).Unix()

	_, err = tx.ExecContext(ctx, `
		DELETE FROM grade_snapshots
		WHERE time >= ? AND time < ?
		AND user_course_id IN (SELECT id FROM user_courses WHERE user = ?)`,
		startOfToday, startOfTomorrow, user,
	)
	if err != nil {
		return err
	}

	for _, course := range courses {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO user_courses (user, course) VALUES (?, ?)
			ON CONFLICT (user, course) DO NOTHING`,
			user, course.Course,
		)
		if err != nil {
			return err
		}

		var userCourseId int64
		err = tx.QueryRowContext(ctx, `
			SELECT id FROM user_courses WHERE user = ? AND course = ?`,
			user, course.Course,
		).Scan(&userCourseId)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO grade_snapshots (user_course_id, time, value)
			VALUES (?, ?, ?)`,
			userCourseId, at.Unix(), course.Value,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

type GradePoint struct {
	Time  time.Time
	Value float64
}

type CourseSeries struct {
	Course string
	Points []GradePoint
}

// Pull returns every course series for a user, points sorted by time.
func (s Store) Pull(ctx context.Context, user string) ([]CourseSeries, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.course, g.time, g.value
		FROM grade_snapshots g
		JOIN user_courses c ON c.id = g.user_course_id
		WHERE c.user = ?
		ORDER BY c.course, g.time`,
		user,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var series []CourseSeries
	var last *CourseSeries

	// rows are sorted by course so every course's points arrive in
	// one contiguous run
	for rows.Next() {
		var course string
		var unix int64
		var value float64
		if err := rows.Scan(&course, &unix, &value); err != nil {
			return nil, err
		}

		if last == nil || last.Course != course {
			series = append(series, CourseSeries{Course: course})
			last = &series[len(series)-1]
		}
		last.Points = append(last.Points, GradePoint{
			Time:  time.Unix(unix, 0).In(timezone.Location),
			Value: value,
		})
	}
	return series, rows.Err()
}

// DeleteBefore drops snapshots older than the cutoff, the retention
// job calls this periodically.
func (s Store) DeleteBefore(ctx context.Context, cutoff time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM grade_snapshots WHERE time < ?`,
		cutoff.Unix(),
	)
	return err
}
