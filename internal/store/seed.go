package store

import (
	"context"
	"fmt"
	"log"
	"time"
)

func ptr[T any](v T) *T { return &v }

// Seed populates an empty repository with the default learning ecosystem:
// one learner, one cohort, the six module tiles, daily challenges, starter
// badges and the audio tutor lessons. Seeding a non-empty repository is a
// no-op so restarts keep accumulated progress.
func Seed(ctx context.Context, repo Repository) error {
	existing, err := repo.GetUser(ctx, 1)
	if err != nil {
		return fmt.Errorf("check seed state: %w", err)
	}
	if existing != nil {
		return nil
	}

	user, err := repo.CreateUser(ctx, &User{
		Username:       "jordan",
		Password:       "hashed_password",
		DisplayName:    "Jordan Smith",
		AvatarInitials: "JS",
		AvatarColor:    "primary",
		Streak:         7,
	})
	if err != nil {
		return fmt.Errorf("seed user: %w", err)
	}

	cohort, err := repo.CreateCohort(ctx, &Cohort{
		Name:        "AI Enthusiasts",
		Description: "A group of learners focused on artificial intelligence and machine learning",
		Tier:        "Scholar Circle",
	})
	if err != nil {
		return fmt.Errorf("seed cohort: %w", err)
	}
	if err := repo.AddUserToCohort(ctx, user.ID, cohort.ID); err != nil {
		return fmt.Errorf("seed cohort membership: %w", err)
	}

	modules := []Module{
		{Name: "AI Audio Tutor", Description: "Learn with podcast-style lessons", Icon: "microphone-alt", Color: "accent-blue"},
		{Name: "AI Visual Tutor", Description: "Interactive whiteboard learning", Icon: "chalkboard-teacher", Color: "accent-purple"},
		{Name: "Quiz Battle Arena", Description: "Test your knowledge against others", Icon: "trophy", Color: "secondary"},
		{Name: "Cohort Engine", Description: "Learn together with peers", Icon: "users", Color: "accent-green"},
		{Name: "Curriculum Composer", Description: "Personalized learning paths", Icon: "book-open", Color: "accent-yellow"},
		{Name: "BEYOND", Description: "Advanced research tools", Icon: "rocket", Color: "primary"},
	}
	var audioModuleID int64
	for i, m := range modules {
		created, err := repo.CreateModule(ctx, &m)
		if err != nil {
			return fmt.Errorf("seed module %q: %w", m.Name, err)
		}
		if i == 0 {
			audioModuleID = created.ID
		}
	}

	expires := time.Now().Add(24 * time.Hour)
	challenges := []Challenge{
		{
			Title:       "Complete 1 quiz battle",
			Description: "Win a battle in the Quiz Arena",
			Type:        "daily",
			XPReward:    15,
			Target:      1,
			UserID:      &user.ID,
			ExpiresAt:   &expires,
		},
		{
			Title:       "Highlight a concept in Visual Tutor",
			Description: "Find and highlight key concepts",
			Type:        "daily",
			XPReward:    10,
			Target:      3,
			Progress:    2,
			UserID:      &user.ID,
			ExpiresAt:   &expires,
		},
	}
	for _, c := range challenges {
		if _, err := repo.CreateChallenge(ctx, &c); err != nil {
			return fmt.Errorf("seed challenge %q: %w", c.Title, err)
		}
	}

	badges := []Badge{
		{Name: "First Steps", Description: "Completed your first lesson", Icon: "award", Color: "accent-blue", UserID: &user.ID},
		{Name: "Week Warrior", Description: "Maintained a 7-day learning streak", Icon: "flame", Color: "accent-yellow", UserID: &user.ID},
	}
	for _, b := range badges {
		if _, err := repo.CreateBadge(ctx, &b); err != nil {
			return fmt.Errorf("seed badge %q: %w", b.Name, err)
		}
	}

	lessons := []Lesson{
		{Title: "Introduction to Neural Networks", ModuleID: ptr(audioModuleID), Duration: 765, UserID: &user.ID},
		{Title: "Training Neural Networks", ModuleID: ptr(audioModuleID), Duration: 930, UserID: &user.ID},
		{Title: "Applications of Neural Networks", ModuleID: ptr(audioModuleID), Duration: 1100, UserID: &user.ID},
		{Title: "Advanced Neural Network Architectures", ModuleID: ptr(audioModuleID), Duration: 1215, UserID: &user.ID},
	}
	for _, l := range lessons {
		if _, err := repo.CreateLesson(ctx, &l); err != nil {
			return fmt.Errorf("seed lesson %q: %w", l.Title, err)
		}
	}

	log.Printf("store: seeded %d modules, %d challenges, %d lessons", len(modules), len(challenges), len(lessons))
	return nil
}
