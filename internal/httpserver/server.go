package httpserver

import (
	"log"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Hvlim-techbro/learnmatrix-prototype/internal/lesson"
	"github.com/Hvlim-techbro/learnmatrix-prototype/internal/store"
)

// currentUserID stands in for session auth; the prototype serves a single
// mock learner.
const currentUserID int64 = 1

const lessonCompletionXP = 20

// Server bundles the router and its dependencies.
type Server struct {
	echo    *echo.Echo
	repo    store.Repository
	lessons *lesson.Generator
}

// New constructs the Echo server with all routes. audioWS and hubWS serve the
// intervention channel and the quiz battle relay; publicDir is mounted at
// /public for generated lesson audio.
func New(repo store.Repository, lessons *lesson.Generator, audioWS, hubWS http.Handler, publicDir string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{echo: e, repo: repo, lessons: lessons}

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.Static("/public", publicDir)
	e.GET("/ws", echo.WrapHandler(hubWS))
	e.GET("/ws/audio", echo.WrapHandler(audioWS))

	api := e.Group("/api")
	api.POST("/audio/chat", s.generateLesson)
	api.GET("/user", s.getUser)
	api.GET("/user/badges", s.getUserBadges)
	api.GET("/user/cohort", s.getUserCohort)
	api.GET("/modules", s.getModules)
	api.GET("/modules/:moduleId/lessons", s.getModuleLessons)
	api.GET("/challenges/daily", s.getDailyChallenges)
	api.POST("/challenges/:id/progress", s.updateChallengeProgress)
	api.POST("/lessons/:id/complete", s.completeLesson)

	return s
}

// Handler exposes the router for the HTTP server and tests.
func (s *Server) Handler() http.Handler { return s.echo }

type topicRequest struct {
	Topic string `json:"topic"`
}

func (s *Server) generateLesson(c echo.Context) error {
	var req topicRequest
	if err := c.Bind(&req); err != nil || req.Topic == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Topic is required and must be a string"})
	}
	l, err := s.lessons.Generate(c.Request().Context(), req.Topic)
	if err != nil {
		log.Printf("lesson generation failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Internal server error"})
	}
	return c.JSON(http.StatusOK, l)
}

func (s *Server) getUser(c echo.Context) error {
	u, err := s.repo.GetUser(c.Request().Context(), currentUserID)
	if err != nil {
		return err
	}
	if u == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"message": "User not found"})
	}
	// The password field is tagged json:"-" so it never serializes.
	return c.JSON(http.StatusOK, u)
}

func (s *Server) getUserBadges(c echo.Context) error {
	badges, err := s.repo.GetBadges(c.Request().Context(), currentUserID)
	if err != nil {
		return err
	}
	if badges == nil {
		badges = []store.Badge{}
	}
	return c.JSON(http.StatusOK, badges)
}

func (s *Server) getUserCohort(c echo.Context) error {
	ctx := c.Request().Context()
	u, err := s.repo.GetUser(ctx, currentUserID)
	if err != nil {
		return err
	}
	if u == nil || u.CohortID == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"message": "Cohort not found"})
	}
	cohort, err := s.repo.GetCohort(ctx, *u.CohortID)
	if err != nil {
		return err
	}
	if cohort == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"message": "Cohort not found"})
	}
	return c.JSON(http.StatusOK, cohort)
}

func (s *Server) getModules(c echo.Context) error {
	modules, err := s.repo.GetModules(c.Request().Context())
	if err != nil {
		return err
	}
	if modules == nil {
		modules = []store.Module{}
	}
	return c.JSON(http.StatusOK, modules)
}

func (s *Server) getModuleLessons(c echo.Context) error {
	moduleID, err := strconv.ParseInt(c.Param("moduleId"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Invalid module ID"})
	}
	lessons, err := s.repo.GetLessons(c.Request().Context(), moduleID)
	if err != nil {
		return err
	}
	if lessons == nil {
		lessons = []store.Lesson{}
	}
	return c.JSON(http.StatusOK, lessons)
}

func (s *Server) getDailyChallenges(c echo.Context) error {
	challenges, err := s.repo.GetChallenges(c.Request().Context(), "daily")
	if err != nil {
		return err
	}
	if challenges == nil {
		challenges = []store.Challenge{}
	}
	return c.JSON(http.StatusOK, challenges)
}

type progressRequest struct {
	Progress *int64 `json:"progress"`
}

func (s *Server) updateChallengeProgress(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Invalid challenge ID"})
	}
	var req progressRequest
	if err := c.Bind(&req); err != nil || req.Progress == nil || *req.Progress < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Invalid request"})
	}

	ctx := c.Request().Context()
	updated, err := s.repo.UpdateChallengeProgress(ctx, id, *req.Progress)
	if err != nil {
		return err
	}
	if updated == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"message": "Challenge not found"})
	}

	if updated.Progress >= updated.Target {
		userID := currentUserID
		if updated.UserID != nil {
			userID = *updated.UserID
		}
		if _, err := s.repo.UpdateUserXP(ctx, userID, updated.XPReward); err != nil {
			log.Printf("awarding xp for challenge %d failed: %v", updated.ID, err)
		}
		if updated.BadgeReward != nil {
			_, err := s.repo.CreateBadge(ctx, &store.Badge{
				Name:        *updated.BadgeReward,
				Description: "Earned by completing the " + updated.Title + " challenge",
				Icon:        "trophy",
				Color:       "accent-yellow",
				UserID:      &userID,
			})
			if err != nil {
				log.Printf("awarding badge for challenge %d failed: %v", updated.ID, err)
			}
		}
	}
	return c.JSON(http.StatusOK, updated)
}

func (s *Server) completeLesson(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Invalid lesson ID"})
	}
	ctx := c.Request().Context()
	updated, err := s.repo.MarkLessonCompleted(ctx, id, currentUserID)
	if err != nil {
		return err
	}
	if updated == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"message": "Lesson not found"})
	}
	if _, err := s.repo.UpdateUserXP(ctx, currentUserID, lessonCompletionXP); err != nil {
		log.Printf("awarding xp for lesson %d failed: %v", id, err)
	}
	return c.JSON(http.StatusOK, updated)
}
