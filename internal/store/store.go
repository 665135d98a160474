// Package store provides the gamification data repository. The repository is
// an explicit object constructed at process start, seeded once, and closed at
// process exit; request handlers receive it as a dependency.
package store

import "context"

// Repository defines persistence for users, cohorts, challenges, badges,
// modules and lessons. Lookups return (nil, nil) when the row is absent.
type Repository interface {
	GetUser(ctx context.Context, id int64) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	CreateUser(ctx context.Context, u *User) (*User, error)
	// UpdateUserXP adds delta XP and recomputes the level (one level per
	// 300 XP, starting at 1).
	UpdateUserXP(ctx context.Context, id int64, delta int64) (*User, error)
	GetUserChallenges(ctx context.Context, userID int64) ([]Challenge, error)

	GetCohort(ctx context.Context, id int64) (*Cohort, error)
	CreateCohort(ctx context.Context, c *Cohort) (*Cohort, error)
	AddUserToCohort(ctx context.Context, userID, cohortID int64) error

	GetChallenges(ctx context.Context, challengeType string) ([]Challenge, error)
	CreateChallenge(ctx context.Context, c *Challenge) (*Challenge, error)
	UpdateChallengeProgress(ctx context.Context, id, progress int64) (*Challenge, error)

	GetBadges(ctx context.Context, userID int64) ([]Badge, error)
	CreateBadge(ctx context.Context, b *Badge) (*Badge, error)

	GetModules(ctx context.Context) ([]Module, error)
	CreateModule(ctx context.Context, m *Module) (*Module, error)

	GetLessons(ctx context.Context, moduleID int64) ([]Lesson, error)
	CreateLesson(ctx context.Context, l *Lesson) (*Lesson, error)
	MarkLessonCompleted(ctx context.Context, id, userID int64) (*Lesson, error)

	Ping(ctx context.Context) error
	Close() error
}
