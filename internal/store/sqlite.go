package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the database at dbPath and ensures the
// schema exists.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		display_name TEXT NOT NULL,
		xp INTEGER NOT NULL DEFAULT 0,
		level INTEGER NOT NULL DEFAULT 1,
		tier TEXT NOT NULL DEFAULT 'Novice Nexus',
		avatar_initials TEXT NOT NULL DEFAULT '',
		avatar_color TEXT NOT NULL DEFAULT 'primary',
		streak INTEGER NOT NULL DEFAULT 0,
		last_active INTEGER,
		cohort_id INTEGER REFERENCES cohorts(id)
	);
	CREATE TABLE IF NOT EXISTS cohorts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		description TEXT NOT NULL,
		tier TEXT NOT NULL DEFAULT 'Novice Nexus',
		member_count INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS challenges (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		type TEXT NOT NULL,
		xp_reward INTEGER NOT NULL,
		badge_reward TEXT,
		target INTEGER NOT NULL,
		progress INTEGER NOT NULL DEFAULT 0,
		user_id INTEGER REFERENCES users(id),
		expires_at INTEGER
	);
	CREATE TABLE IF NOT EXISTS badges (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		description TEXT NOT NULL,
		icon TEXT NOT NULL,
		color TEXT NOT NULL,
		user_id INTEGER REFERENCES users(id)
	);
	CREATE TABLE IF NOT EXISTS modules (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		description TEXT NOT NULL,
		icon TEXT NOT NULL,
		color TEXT NOT NULL,
		unread_notifications INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS lessons (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		module_id INTEGER REFERENCES modules(id),
		duration INTEGER NOT NULL,
		completed INTEGER NOT NULL DEFAULT 0,
		user_id INTEGER REFERENCES users(id)
	);
	CREATE INDEX IF NOT EXISTS idx_challenges_type ON challenges(type);
	CREATE INDEX IF NOT EXISTS idx_lessons_module ON lessons(module_id);
	CREATE INDEX IF NOT EXISTS idx_badges_user ON badges(user_id);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *SQLiteStore) Close() error                   { return s.db.Close() }

const userColumns = `id, username, password, display_name, xp, level, tier, avatar_initials, avatar_color, streak, last_active, cohort_id`

func scanUser(row *sql.Row) (*User, error) {
	var u User
	var lastActive sql.NullInt64
	var cohortID sql.NullInt64
	err := row.Scan(&u.ID, &u.Username, &u.Password, &u.DisplayName, &u.XP, &u.Level,
		&u.Tier, &u.AvatarInitials, &u.AvatarColor, &u.Streak, &lastActive, &cohortID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}
	if lastActive.Valid {
		t := time.Unix(lastActive.Int64, 0)
		u.LastActive = &t
	}
	if cohortID.Valid {
		u.CohortID = &cohortID.Int64
	}
	return &u, nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	return scanUser(row)
}

func (s *SQLiteStore) CreateUser(ctx context.Context, u *User) (*User, error) {
	if u.Tier == "" {
		u.Tier = "Novice Nexus"
	}
	if u.Level == 0 {
		u.Level = 1
	}
	now := time.Now()
	var cohortID interface{}
	if u.CohortID != nil {
		cohortID = *u.CohortID
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, display_name, xp, level, tier, avatar_initials, avatar_color, streak, last_active, cohort_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Username, u.Password, u.DisplayName, u.XP, u.Level, u.Tier,
		u.AvatarInitials, u.AvatarColor, u.Streak, now.Unix(), cohortID)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.GetUser(ctx, id)
}

func (s *SQLiteStore) UpdateUserXP(ctx context.Context, id int64, delta int64) (*User, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET xp = xp + ?, level = (xp + ?) / 300 + 1 WHERE id = ?`,
		delta, delta, id)
	if err != nil {
		return nil, fmt.Errorf("update user xp: %w", err)
	}
	return s.GetUser(ctx, id)
}

func (s *SQLiteStore) GetUserChallenges(ctx context.Context, userID int64) ([]Challenge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, description, type, xp_reward, badge_reward, target, progress, user_id, expires_at
		 FROM challenges WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query user challenges: %w", err)
	}
	defer rows.Close()
	return collectChallenges(rows)
}

func (s *SQLiteStore) GetCohort(ctx context.Context, id int64) (*Cohort, error) {
	var c Cohort
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, tier, member_count FROM cohorts WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.Description, &c.Tier, &c.MemberCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan cohort row: %w", err)
	}
	return &c, nil
}

func (s *SQLiteStore) CreateCohort(ctx context.Context, c *Cohort) (*Cohort, error) {
	if c.Tier == "" {
		c.Tier = "Novice Nexus"
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO cohorts (name, description, tier, member_count) VALUES (?, ?, ?, 0)`,
		c.Name, c.Description, c.Tier)
	if err != nil {
		return nil, fmt.Errorf("insert cohort: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.GetCohort(ctx, id)
}

func (s *SQLiteStore) AddUserToCohort(ctx context.Context, userID, cohortID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `UPDATE users SET cohort_id = ? WHERE id = ?`, cohortID, userID); err != nil {
		return fmt.Errorf("assign cohort: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE cohorts SET member_count = member_count + 1 WHERE id = ?`, cohortID); err != nil {
		return fmt.Errorf("bump member count: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetChallenges(ctx context.Context, challengeType string) ([]Challenge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, description, type, xp_reward, badge_reward, target, progress, user_id, expires_at
		 FROM challenges WHERE type = ? ORDER BY id`, challengeType)
	if err != nil {
		return nil, fmt.Errorf("query challenges: %w", err)
	}
	defer rows.Close()
	return collectChallenges(rows)
}

func collectChallenges(rows *sql.Rows) ([]Challenge, error) {
	var out []Challenge
	for rows.Next() {
		var c Challenge
		var badgeReward sql.NullString
		var userID, expiresAt sql.NullInt64
		if err := rows.Scan(&c.ID, &c.Title, &c.Description, &c.Type, &c.XPReward,
			&badgeReward, &c.Target, &c.Progress, &userID, &expiresAt); err != nil {
			return nil, fmt.Errorf("scan challenge row: %w", err)
		}
		if badgeReward.Valid {
			c.BadgeReward = &badgeReward.String
		}
		if userID.Valid {
			c.UserID = &userID.Int64
		}
		if expiresAt.Valid {
			t := time.Unix(expiresAt.Int64, 0)
			c.ExpiresAt = &t
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) getChallenge(ctx context.Context, id int64) (*Challenge, error) {
	var c Challenge
	var badgeReward sql.NullString
	var userID, expiresAt sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, description, type, xp_reward, badge_reward, target, progress, user_id, expires_at
		 FROM challenges WHERE id = ?`, id).
		Scan(&c.ID, &c.Title, &c.Description, &c.Type, &c.XPReward,
			&badgeReward, &c.Target, &c.Progress, &userID, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan challenge row: %w", err)
	}
	if badgeReward.Valid {
		c.BadgeReward = &badgeReward.String
	}
	if userID.Valid {
		c.UserID = &userID.Int64
	}
	if expiresAt.Valid {
		t := time.Unix(expiresAt.Int64, 0)
		c.ExpiresAt = &t
	}
	return &c, nil
}

func (s *SQLiteStore) CreateChallenge(ctx context.Context, c *Challenge) (*Challenge, error) {
	var badgeReward, userID, expiresAt interface{}
	if c.BadgeReward != nil {
		badgeReward = *c.BadgeReward
	}
	if c.UserID != nil {
		userID = *c.UserID
	}
	if c.ExpiresAt != nil {
		expiresAt = c.ExpiresAt.Unix()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO challenges (title, description, type, xp_reward, badge_reward, target, progress, user_id, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Title, c.Description, c.Type, c.XPReward, badgeReward, c.Target, c.Progress, userID, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("insert challenge: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.getChallenge(ctx, id)
}

func (s *SQLiteStore) UpdateChallengeProgress(ctx context.Context, id, progress int64) (*Challenge, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE challenges SET progress = ? WHERE id = ?`, progress, id)
	if err != nil {
		return nil, fmt.Errorf("update challenge progress: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return s.getChallenge(ctx, id)
}

func (s *SQLiteStore) GetBadges(ctx context.Context, userID int64) ([]Badge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, icon, color, user_id FROM badges WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query badges: %w", err)
	}
	defer rows.Close()
	var out []Badge
	for rows.Next() {
		var b Badge
		var uid sql.NullInt64
		if err := rows.Scan(&b.ID, &b.Name, &b.Description, &b.Icon, &b.Color, &uid); err != nil {
			return nil, fmt.Errorf("scan badge row: %w", err)
		}
		if uid.Valid {
			b.UserID = &uid.Int64
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CreateBadge(ctx context.Context, b *Badge) (*Badge, error) {
	var userID interface{}
	if b.UserID != nil {
		userID = *b.UserID
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO badges (name, description, icon, color, user_id) VALUES (?, ?, ?, ?, ?)`,
		b.Name, b.Description, b.Icon, b.Color, userID)
	if err != nil {
		return nil, fmt.Errorf("insert badge: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	created := *b
	created.ID = id
	return &created, nil
}

func (s *SQLiteStore) GetModules(ctx context.Context) ([]Module, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, icon, color, unread_notifications FROM modules ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query modules: %w", err)
	}
	defer rows.Close()
	var out []Module
	for rows.Next() {
		var m Module
		if err := rows.Scan(&m.ID, &m.Name, &m.Description, &m.Icon, &m.Color, &m.UnreadNotifications); err != nil {
			return nil, fmt.Errorf("scan module row: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CreateModule(ctx context.Context, m *Module) (*Module, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO modules (name, description, icon, color, unread_notifications) VALUES (?, ?, ?, ?, 0)`,
		m.Name, m.Description, m.Icon, m.Color)
	if err != nil {
		return nil, fmt.Errorf("insert module: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	created := *m
	created.ID = id
	created.UnreadNotifications = 0
	return &created, nil
}

func (s *SQLiteStore) GetLessons(ctx context.Context, moduleID int64) ([]Lesson, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, module_id, duration, completed, user_id FROM lessons WHERE module_id = ? ORDER BY id`, moduleID)
	if err != nil {
		return nil, fmt.Errorf("query lessons: %w", err)
	}
	defer rows.Close()
	var out []Lesson
	for rows.Next() {
		var l Lesson
		var moduleID, userID sql.NullInt64
		if err := rows.Scan(&l.ID, &l.Title, &moduleID, &l.Duration, &l.Completed, &userID); err != nil {
			return nil, fmt.Errorf("scan lesson row: %w", err)
		}
		if moduleID.Valid {
			l.ModuleID = &moduleID.Int64
		}
		if userID.Valid {
			l.UserID = &userID.Int64
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CreateLesson(ctx context.Context, l *Lesson) (*Lesson, error) {
	var moduleID, userID interface{}
	if l.ModuleID != nil {
		moduleID = *l.ModuleID
	}
	if l.UserID != nil {
		userID = *l.UserID
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO lessons (title, module_id, duration, completed, user_id) VALUES (?, ?, ?, 0, ?)`,
		l.Title, moduleID, l.Duration, userID)
	if err != nil {
		return nil, fmt.Errorf("insert lesson: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	created := *l
	created.ID = id
	created.Completed = false
	return &created, nil
}

func (s *SQLiteStore) MarkLessonCompleted(ctx context.Context, id, userID int64) (*Lesson, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE lessons SET completed = 1 WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return nil, fmt.Errorf("mark lesson completed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	var l Lesson
	var mid, uid sql.NullInt64
	err = s.db.QueryRowContext(ctx,
		`SELECT id, title, module_id, duration, completed, user_id FROM lessons WHERE id = ?`, id).
		Scan(&l.ID, &l.Title, &mid, &l.Duration, &l.Completed, &uid)
	if err != nil {
		return nil, fmt.Errorf("scan lesson row: %w", err)
	}
	if mid.Valid {
		l.ModuleID = &mid.Int64
	}
	if uid.Valid {
		l.UserID = &uid.Int64
	}
	return &l, nil
}
