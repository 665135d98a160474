package store

import "time"

// User is a learner account with gamification progress.
// The password hash is never serialized into API responses.
type User struct {
	ID             int64      `json:"id"`
	Username       string     `json:"username"`
	Password       string     `json:"-"`
	DisplayName    string     `json:"displayName"`
	XP             int64      `json:"xp"`
	Level          int64      `json:"level"`
	Tier           string     `json:"tier"`
	AvatarInitials string     `json:"avatarInitials"`
	AvatarColor    string     `json:"avatarColor"`
	Streak         int64      `json:"streak"`
	LastActive     *time.Time `json:"lastActive"`
	CohortID       *int64     `json:"cohortId"`
}

type Cohort struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Tier        string `json:"tier"`
	MemberCount int64  `json:"memberCount"`
}

type Challenge struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Type        string     `json:"type"` // daily, weekly, cohort, seasonal
	XPReward    int64      `json:"xpReward"`
	BadgeReward *string    `json:"badgeReward"`
	Target      int64      `json:"target"`
	Progress    int64      `json:"progress"`
	UserID      *int64     `json:"userId"`
	ExpiresAt   *time.Time `json:"expiresAt"`
}

type Badge struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Color       string `json:"color"`
	UserID      *int64 `json:"userId"`
}

type Module struct {
	ID                  int64  `json:"id"`
	Name                string `json:"name"`
	Description         string `json:"description"`
	Icon                string `json:"icon"`
	Color               string `json:"color"`
	UnreadNotifications int64  `json:"unreadNotifications"`
}

type Lesson struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	ModuleID  *int64 `json:"moduleId"`
	Duration  int64  `json:"duration"` // seconds
	Completed bool   `json:"completed"`
	UserID    *int64 `json:"userId"`
}
