// Package learner builds the anonymized student context used to ground tutoring.
package learner

import (
	"context"
	"time"
)

// Source is the read-only data-store collaborator. Lookups that find nothing
// return zero values, not errors.
type Source interface {
	Profile(ctx context.Context, studentID string) (*Profile, error)
	LatestProgress(ctx context.Context, studentID string) (*Progress, error)
	LearningPath(ctx context.Context, studentID string) ([]PathEntry, error)
	Mastery(ctx context.Context, studentID string) ([]SkillMastery, error)
	SkillSubjects(ctx context.Context, skillIDs []string) (map[string]string, error)
	SubjectNames(ctx context.Context, subjectIDs []string) (map[string]string, error)
}

// Profile mirrors the stored row. Name and email are never copied into a
// StudentContext.
type Profile struct {
	ID         string
	FirstName  string
	LastName   string
	Email      string
	Grade      *int
	Level      string
	Strengths  []string
	Weaknesses []string
}

type Progress struct {
	LessonID    string
	LessonTitle string
	Subject     string
	Status      string
	UpdatedAt   time.Time
}

type PathEntry struct {
	LessonID string
	Title    string
	Subject  string
	Status   string
}

type SkillMastery struct {
	SkillID string
	Percent float64
}
