package source

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/panbanda/gradelens/internal/logger"
	"github.com/panbanda/gradelens/pkg/models"
)

// PostgresConfig holds connection settings for PostgresSource.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	ConnectTimeout time.Duration
}

// PoolConfig returns the pgxpool configuration.
func (c PostgresConfig) PoolConfig() (*pgxpool.Config, error) {
	config, err := pgxpool.ParseConfig(c.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to parse connection string: %w", err)
	}
	if c.MaxConns > 0 {
		config.MaxConns = c.MaxConns
	}
	if c.ConnectTimeout > 0 {
		config.ConnConfig.ConnectTimeout = c.ConnectTimeout
	}
	return config, nil
}

// Scope filters use the "empty parameter matches everything" form so every
// query stays a fixed, parameterized statement.
const (
	examsQuery = `
SELECT id, academic_year, term, COALESCE(name, ''), exam_date
FROM exams
WHERE ($1 = '' OR academic_year = $1)
  AND (cardinality($2::bigint[]) = 0 OR id = ANY($2))
ORDER BY id`

	subjectsQuery = `
SELECT id, COALESCE(name, ''), COALESCE(max_points, 0)
FROM subjects
ORDER BY id`

	pupilsQuery = `
SELECT id, COALESCE(name, ''), COALESCE(class_code, ''), COALESCE(track, ''), COALESCE(cohort, 0)
FROM pupils
WHERE ($1 = '' OR class_code = $1)
  AND ($2 = '' OR track = $2)
ORDER BY id`

	scoresQuery = `
SELECT s.pupil_id, s.subject_id, s.exam_id, s.score
FROM scores s
JOIN pupils p ON p.id = s.pupil_id
JOIN exams e ON e.id = s.exam_id
WHERE ($1 = '' OR p.class_code = $1)
  AND ($2 = '' OR p.track = $2)
  AND ($3 = '' OR e.academic_year = $3)
  AND (cardinality($4::bigint[]) = 0 OR s.exam_id = ANY($4))
ORDER BY s.exam_id, s.subject_id, s.pupil_id`
)

// examIDs never returns nil: a NULL array would make cardinality() NULL
// and filter out every row.
func (s Scope) examIDs() []int64 {
	if s.ExamIDs == nil {
		return []int64{}
	}
	return s.ExamIDs
}

func (s Scope) examArgs() []any {
	return []any{s.AcademicYear, s.examIDs()}
}

func (s Scope) pupilArgs() []any {
	return []any{s.ClassCode, s.Track}
}

func (s Scope) scoreArgs() []any {
	return []any{s.ClassCode, s.Track, s.AcademicYear, s.examIDs()}
}

// querier is the subset of *pgxpool.Pool used for loading.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresSource loads datasets from the exams, subjects, pupils and
// scores tables.
type PostgresSource struct {
	pool   *pgxpool.Pool
	db     querier
	logger *logger.Logger
}

var _ Source = (*PostgresSource)(nil)

// NewPostgres connects and pings the database.
func NewPostgres(ctx context.Context, cfg PostgresConfig, log *logger.Logger) (*PostgresSource, error) {
	if log == nil {
		log = logger.Nop()
	}
	poolConfig, err := cfg.PoolConfig()
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: failed to ping: %w", err)
	}

	log.Info("postgres connected", "dsn", cfg.DSN, "max_conns", poolConfig.MaxConns)
	return &PostgresSource{pool: pool, db: pool, logger: log}, nil
}

// Close releases the pool.
func (s *PostgresSource) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Load implements Source.
func (s *PostgresSource) Load(ctx context.Context, scope Scope) (*models.Dataset, error) {
	start := time.Now()
	ds := &models.Dataset{}
	var err error

	if ds.Exams, err = s.exams(ctx, scope); err != nil {
		return nil, err
	}
	if ds.Subjects, err = s.subjects(ctx); err != nil {
		return nil, err
	}
	if ds.Pupils, err = s.pupils(ctx, scope); err != nil {
		return nil, err
	}
	if ds.Scores, err = s.scores(ctx, scope); err != nil {
		return nil, err
	}

	s.logger.Debug("dataset loaded",
		"records", len(ds.Scores),
		"exams", len(ds.Exams),
		"pupils", len(ds.Pupils),
		"elapsed", time.Since(start),
	)
	return ds, nil
}

func (s *PostgresSource) exams(ctx context.Context, scope Scope) ([]models.Exam, error) {
	rows, err := s.db.Query(ctx, examsQuery, scope.examArgs()...)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query exams: %w", err)
	}
	defer rows.Close()

	var out []models.Exam
	for rows.Next() {
		var e models.Exam
		if err := rows.Scan(&e.ID, &e.AcademicYear, &e.Term, &e.Name, &e.Date); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan exam: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: failed to read exams: %w", err)
	}
	return out, nil
}

func (s *PostgresSource) subjects(ctx context.Context) ([]models.Subject, error) {
	rows, err := s.db.Query(ctx, subjectsQuery)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query subjects: %w", err)
	}
	defer rows.Close()

	var out []models.Subject
	for rows.Next() {
		var sub models.Subject
		if err := rows.Scan(&sub.ID, &sub.Name, &sub.MaxPoints); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan subject: %w", err)
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: failed to read subjects: %w", err)
	}
	return out, nil
}

func (s *PostgresSource) pupils(ctx context.Context, scope Scope) ([]models.Pupil, error) {
	rows, err := s.db.Query(ctx, pupilsQuery, scope.pupilArgs()...)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query pupils: %w", err)
	}
	defer rows.Close()

	var out []models.Pupil
	for rows.Next() {
		var p models.Pupil
		if err := rows.Scan(&p.ID, &p.Name, &p.ClassCode, &p.Track, &p.Group); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan pupil: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: failed to read pupils: %w", err)
	}
	return out, nil
}

func (s *PostgresSource) scores(ctx context.Context, scope Scope) ([]models.ScoreRecord, error) {
	rows, err := s.db.Query(ctx, scoresQuery, scope.scoreArgs()...)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query scores: %w", err)
	}
	defer rows.Close()

	var out []models.ScoreRecord
	for rows.Next() {
		var r models.ScoreRecord
		if err := rows.Scan(&r.PupilID, &r.SubjectID, &r.ExamID, &r.Score); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan score: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: failed to read scores: %w", err)
	}
	return out, nil
}
