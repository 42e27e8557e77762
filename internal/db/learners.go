package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/HanTheDev/tutor-gateway/internal/learner"
)

// LearnerSource reads student records for the context builder.
type LearnerSource struct {
	db *DB
}

var _ learner.Source = (*LearnerSource)(nil)

func NewLearnerSource(db *DB) *LearnerSource {
	return &LearnerSource{db: db}
}

func (s *LearnerSource) Profile(ctx context.Context, studentID string) (*learner.Profile, error) {
	query := `
        SELECT id, COALESCE(first_name, ''), COALESCE(last_name, ''), COALESCE(email, ''),
               grade_level, COALESCE(learning_level, ''),
               COALESCE(strengths, '{}'), COALESCE(weaknesses, '{}')
        FROM student_profiles
        WHERE id = $1
    `

	var p learner.Profile
	err := s.db.Pool.QueryRow(ctx, query, studentID).Scan(
		&p.ID,
		&p.FirstName,
		&p.LastName,
		&p.Email,
		&p.Grade,
		&p.Level,
		&p.Strengths,
		&p.Weaknesses,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, learner.ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *LearnerSource) LatestProgress(ctx context.Context, studentID string) (*learner.Progress, error) {
	query := `
        SELECT sp.lesson_id, l.title, COALESCE(sub.name, ''), sp.status, sp.updated_at
        FROM student_progress sp
        JOIN lessons l ON l.id = sp.lesson_id
        LEFT JOIN subjects sub ON sub.id = l.subject_id
        WHERE sp.student_id = $1
        ORDER BY sp.updated_at DESC
        LIMIT 1
    `

	var p learner.Progress
	err := s.db.Pool.QueryRow(ctx, query, studentID).Scan(
		&p.LessonID,
		&p.LessonTitle,
		&p.Subject,
		&p.Status,
		&p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *LearnerSource) LearningPath(ctx context.Context, studentID string) ([]learner.PathEntry, error) {
	query := `
        SELECT lp.lesson_id, l.title, COALESCE(sub.name, ''), lp.status
        FROM student_learning_path lp
        JOIN lessons l ON l.id = lp.lesson_id
        LEFT JOIN subjects sub ON sub.id = l.subject_id
        WHERE lp.student_id = $1
        ORDER BY lp.position
    `

	rows, err := s.db.Pool.Query(ctx, query, studentID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (learner.PathEntry, error) {
		var e learner.PathEntry
		err := row.Scan(&e.LessonID, &e.Title, &e.Subject, &e.Status)
		return e, err
	})
}

func (s *LearnerSource) Mastery(ctx context.Context, studentID string) ([]learner.SkillMastery, error) {
	query := `
        SELECT skill_id, mastery_pct
        FROM student_skill_mastery
        WHERE student_id = $1
    `

	rows, err := s.db.Pool.Query(ctx, query, studentID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (learner.SkillMastery, error) {
		var m learner.SkillMastery
		err := row.Scan(&m.SkillID, &m.Percent)
		return m, err
	})
}

func (s *LearnerSource) SkillSubjects(ctx context.Context, skillIDs []string) (map[string]string, error) {
	return s.lookup(ctx, `SELECT id, subject_id FROM skills WHERE id = ANY($1)`, skillIDs)
}

func (s *LearnerSource) SubjectNames(ctx context.Context, subjectIDs []string) (map[string]string, error) {
	return s.lookup(ctx, `SELECT id, name FROM subjects WHERE id = ANY($1)`, subjectIDs)
}

func (s *LearnerSource) lookup(ctx context.Context, query string, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := s.db.Pool.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}
