package api

import (
	"errors"
	"net/http"

	"skillpath_miniapp/internal/middleware"
	"skillpath_miniapp/internal/model"
	"skillpath_miniapp/internal/service"
	"skillpath_miniapp/pkg/auth"
	"skillpath_miniapp/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type challengeRoutes struct {
	cs service.ChallengeServiceI
	a  *auth.TelegramAuth
}

func NewChallengeRoutes(handler *gin.RouterGroup, cs service.ChallengeServiceI, authz *middleware.Authorization, a *auth.TelegramAuth) {
	r := &challengeRoutes{cs: cs, a: a}
	h := handler.Group("/challenges")
	h.Use(a.TelegramAuthMiddleware())
	{
		h.PUT("/:day", authz.AdminOnly(), r.UpsertDayChallenge)
		h.GET("/:day", r.GetDayChallenge)
	}
}

type ChallengeQuestionRequest struct {
	Prompt        string   `json:"prompt" binding:"required"`
	Options       []string `json:"options" binding:"required"`
	CorrectOption int      `json:"correct_option"`
	Explanation   string   `json:"explanation"`
}

type UpsertChallengeRequest struct {
	Lives     int                        `json:"lives" binding:"required"`
	Questions []ChallengeQuestionRequest `json:"questions" binding:"required"`
}

func (r *challengeRoutes) UpsertDayChallenge(c *gin.Context) {
	log := logger.Logger()

	var req UpsertChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	challenge := &model.DayChallenge{
		Weekday:   model.Weekday(c.Param("day")),
		Lives:     req.Lives,
		Questions: make([]model.ChallengeQuestion, len(req.Questions)),
	}
	for i, q := range req.Questions {
		challenge.Questions[i] = model.ChallengeQuestion{
			ID:            uuid.New(),
			Prompt:        q.Prompt,
			Options:       q.Options,
			CorrectOption: q.CorrectOption,
			Explanation:   q.Explanation,
		}
	}

	err := r.cs.UpsertDayChallenge(c.Request.Context(), challenge)
	if err != nil {
		log.Error("failed to upsert challenge", zap.Error(err))
		switch {
		case errors.Is(err, service.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown day"})
		case errors.Is(err, service.ErrInvalidChallenge):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid challenge definition"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to upsert challenge"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"day": c.Param("day"), "questions": len(challenge.Questions)})
}

type ChallengeQuestionResponse struct {
	QuestionID string   `json:"question_id"`
	Prompt     string   `json:"prompt"`
	Options    []string `json:"options"`
}

type DayChallengeResponse struct {
	Day       string                      `json:"day"`
	Lives     int                         `json:"lives"`
	Questions []ChallengeQuestionResponse `json:"questions"`
}

// GetDayChallenge returns the playable view of a day: prompts and
// options only, never the correct answer.
func (r *challengeRoutes) GetDayChallenge(c *gin.Context) {
	log := logger.Logger()

	challenge, err := r.cs.GetDayChallenge(c.Request.Context(), model.Weekday(c.Param("day")))
	if err != nil {
		log.Error("failed to get challenge", zap.Error(err))
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no challenge for this day"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get challenge"})
		return
	}

	questions := make([]ChallengeQuestionResponse, len(challenge.Questions))
	for i, q := range challenge.Questions {
		questions[i] = ChallengeQuestionResponse{
			QuestionID: q.ID.String(),
			Prompt:     q.Prompt,
			Options:    q.Options,
		}
	}

	c.JSON(http.StatusOK, DayChallengeResponse{
		Day:       string(challenge.Weekday),
		Lives:     challenge.Lives,
		Questions: questions,
	})
}
