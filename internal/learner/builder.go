package learner

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/HanTheDev/tutor-gateway/internal/models"
	"github.com/HanTheDev/tutor-gateway/internal/sanitize"
)

const (
	maxListItems  = 5
	maxItemLen    = 120
	focusFallback = 2
	statusDone    = "completed"
)

var ErrProfileNotFound = errors.New("student profile not found")

// RefFunc anonymizes a student id.
type RefFunc func(studentID string) string

type Builder struct {
	source Source
	ref    RefFunc
	log    zerolog.Logger
}

func NewBuilder(source Source, ref RefFunc, log zerolog.Logger) *Builder {
	return &Builder{source: source, ref: ref, log: log}
}

// Build assembles a fresh context. Only the profile fetch is fatal; every other
// lookup degrades to an empty section.
func (b *Builder) Build(ctx context.Context, studentID string) (*models.StudentContext, error) {
	profile, err := b.source.Profile(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if profile == nil {
		return nil, ErrProfileNotFound
	}

	ref := b.ref(studentID)
	log := b.log.With().Str("learner", ref).Logger()

	sc := &models.StudentContext{
		LearnerRef:       ref,
		Grade:            profile.Grade,
		Level:            clean(profile.Level),
		Strengths:        cleanList(profile.Strengths),
		FocusAreas:       []string{},
		MasteryBySubject: []models.SubjectMastery{},
	}

	if progress, err := b.source.LatestProgress(ctx, studentID); err != nil {
		log.Warn().Err(err).Msg("progress lookup failed")
	} else if progress != nil && progress.LessonTitle != "" {
		sc.ActiveLesson = &models.LessonRef{
			Title:   clean(progress.LessonTitle),
			Subject: clean(progress.Subject),
			Status:  progress.Status,
		}
	}

	if path, err := b.source.LearningPath(ctx, studentID); err != nil {
		log.Warn().Err(err).Msg("learning path lookup failed")
	} else {
		sc.NextLesson = nextLesson(path)
	}

	sc.MasteryBySubject = b.masteryBySubject(ctx, studentID, log)

	if focus := cleanList(profile.Weaknesses); len(focus) > 0 {
		sc.FocusAreas = focus
	} else {
		sc.FocusAreas = lowestSubjects(sc.MasteryBySubject, focusFallback)
	}
	return sc, nil
}

func (b *Builder) masteryBySubject(ctx context.Context, studentID string, log zerolog.Logger) []models.SubjectMastery {
	out := []models.SubjectMastery{}

	rows, err := b.source.Mastery(ctx, studentID)
	if err != nil {
		log.Warn().Err(err).Msg("mastery lookup failed")
		return out
	}
	if len(rows) == 0 {
		return out
	}

	skillIDs := make([]string, 0, len(rows))
	for _, r := range rows {
		skillIDs = append(skillIDs, r.SkillID)
	}
	skillSubject, err := b.source.SkillSubjects(ctx, skillIDs)
	if err != nil {
		log.Warn().Err(err).Msg("skill lookup failed")
		return out
	}

	subjectIDs := make([]string, 0, len(skillSubject))
	seen := make(map[string]bool)
	for _, id := range skillSubject {
		if !seen[id] {
			seen[id] = true
			subjectIDs = append(subjectIDs, id)
		}
	}
	names, err := b.source.SubjectNames(ctx, subjectIDs)
	if err != nil {
		log.Warn().Err(err).Msg("subject lookup failed")
		return out
	}

	type agg struct {
		sum float64
		n   int
	}
	bySubject := make(map[string]*agg)
	for _, r := range rows {
		subjectID, ok := skillSubject[r.SkillID]
		if !ok {
			continue
		}
		name := clean(names[subjectID])
		if name == "" {
			continue
		}
		a, ok := bySubject[name]
		if !ok {
			a = &agg{}
			bySubject[name] = a
		}
		a.sum += r.Percent
		a.n++
	}

	for name, a := range bySubject {
		avg := math.Round(a.sum/float64(a.n)*10) / 10
		out = append(out, models.SubjectMastery{Subject: name, Percent: avg})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Subject < out[j].Subject })
	return out
}

func nextLesson(path []PathEntry) *models.LessonRef {
	for _, entry := range path {
		if strings.EqualFold(entry.Status, statusDone) {
			continue
		}
		title := clean(entry.Title)
		if title == "" {
			continue
		}
		return &models.LessonRef{
			Title:   title,
			Subject: clean(entry.Subject),
			Status:  entry.Status,
		}
	}
	return nil
}

func lowestSubjects(mastery []models.SubjectMastery, n int) []string {
	sorted := append([]models.SubjectMastery(nil), mastery...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Percent < sorted[j].Percent })
	out := []string{}
	for i := 0; i < len(sorted) && i < n; i++ {
		out = append(out, sorted[i].Subject)
	}
	return out
}

func clean(s string) string {
	return sanitize.Sanitize(s, maxItemLen)
}

func cleanList(items []string) []string {
	out := []string{}
	for _, item := range items {
		if c := clean(item); c != "" {
			out = append(out, c)
		}
		if len(out) == maxListItems {
			break
		}
	}
	return out
}
