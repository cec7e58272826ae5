package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"skillpath_miniapp/internal/model"
	"skillpath_miniapp/internal/service"
	"skillpath_miniapp/pkg/auth"
	"skillpath_miniapp/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type weeklyQuestRoutes struct {
	qs     service.WeeklyQuestServiceI
	events *service.QuestNotifier
	a      *auth.TelegramAuth
}

func NewWeeklyQuestRoutes(handler *gin.RouterGroup, qs service.WeeklyQuestServiceI, events *service.QuestNotifier, a *auth.TelegramAuth) {
	r := &weeklyQuestRoutes{qs: qs, events: events, a: a}
	h := handler.Group("/weeklyquest")
	h.Use(a.TelegramAuthMiddleware())
	{
		h.GET("/:telegram_id", r.GetStatus)
		h.POST("/:telegram_id/days/:day/answers", r.SubmitAnswer)
		h.POST("/:telegram_id/days/:day/reset", r.ResetDay)
		h.POST("/:telegram_id/dutypass/claim", r.ClaimDutyPass)
		h.POST("/:telegram_id/dutypass/use", r.UseDutyPass)
		h.POST("/:telegram_id/reward/claim", r.ClaimReward)
		h.GET("/ws", r.handleWebSocket)
	}
}

type DayStatusResponse struct {
	Day                  string `json:"day"`
	Status               string `json:"status"`
	CanAccess            bool   `json:"can_access"`
	IsMissed             bool   `json:"is_missed"`
	NeedsDutyPass        bool   `json:"needs_duty_pass"`
	LivesRemaining       int    `json:"lives_remaining"`
	CurrentQuestionIndex int    `json:"current_question_index"`
	Score                int    `json:"score"`
	QuestionCount        int    `json:"question_count"`
}

type WeeklyProgressResponse struct {
	CompletedDays        []string   `json:"completed_days"`
	TotalQuestsCompleted int        `json:"total_quests_completed"`
	RewardClaimed        bool       `json:"reward_claimed"`
	RewardXP             int        `json:"reward_xp"`
	ClaimedAt            *time.Time `json:"claimed_at,omitempty"`
}

type RewardChestResponse struct {
	IsLocked    bool `json:"is_locked"`
	IsReady     bool `json:"is_ready"`
	IsClaimed   bool `json:"is_claimed"`
	PotentialXP int  `json:"potential_xp"`
	CanClaim    bool `json:"can_claim"`
}

type QuestStatusResponse struct {
	UserTelegramID int64                  `json:"user_telegram_id"`
	WeekStartDate  string                 `json:"week_start_date"`
	CurrentDay     string                 `json:"current_day"`
	IsWeekend      bool                   `json:"is_weekend"`
	Days           []DayStatusResponse    `json:"days"`
	DutyPasses     int                    `json:"duty_passes"`
	CurrentStreak  int                    `json:"current_streak"`
	LongestStreak  int                    `json:"longest_streak"`
	WeeklyProgress WeeklyProgressResponse `json:"weekly_progress"`
	RewardChest    RewardChestResponse    `json:"reward_chest"`
}

func questStatusResponse(status *model.QuestStatus) QuestStatusResponse {
	days := make([]DayStatusResponse, len(status.Days))
	for i, d := range status.Days {
		days[i] = DayStatusResponse{
			Day:                  string(d.Day),
			Status:               string(d.Status),
			CanAccess:            d.CanAccess,
			IsMissed:             d.IsMissed,
			NeedsDutyPass:        d.NeedsDutyPass,
			LivesRemaining:       d.LivesRemaining,
			CurrentQuestionIndex: d.CurrentQuestionIndex,
			Score:                d.Score,
			QuestionCount:        d.QuestionCount,
		}
	}

	completed := make([]string, len(status.Progress.CompletedDays))
	for i, d := range status.Progress.CompletedDays {
		completed[i] = string(d)
	}

	return QuestStatusResponse{
		UserTelegramID: status.UserTelegramID,
		WeekStartDate:  status.WeekStartDate.Format("2006-01-02"),
		CurrentDay:     status.CurrentDay,
		IsWeekend:      status.IsWeekend,
		Days:           days,
		DutyPasses:     status.DutyPasses,
		CurrentStreak:  status.CurrentStreak,
		LongestStreak:  status.LongestStreak,
		WeeklyProgress: WeeklyProgressResponse{
			CompletedDays:        completed,
			TotalQuestsCompleted: status.Progress.TotalQuestsCompleted,
			RewardClaimed:        status.Progress.RewardClaimed,
			RewardXP:             status.Progress.RewardXP,
			ClaimedAt:            status.Progress.ClaimedAt,
		},
		RewardChest: RewardChestResponse{
			IsLocked:    status.RewardChest.IsLocked,
			IsReady:     status.RewardChest.IsReady,
			IsClaimed:   status.RewardChest.IsClaimed,
			PotentialXP: status.RewardChest.PotentialXP,
			CanClaim:    status.RewardChest.CanClaim,
		},
	}
}

func parseTelegramID(c *gin.Context) (int64, bool) {
	log := logger.Logger()

	id, err := strconv.ParseInt(c.Param("telegram_id"), 10, 64)
	if err != nil {
		log.Error("failed to parse telegram_id", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid telegram_id"})
		return 0, false
	}
	return id, true
}

// questError maps the engine's sentinel errors onto HTTP rejections.
// Only concurrent_update is worth an automatic client retry.
func questError(c *gin.Context, err error) {
	log := logger.Logger()
	log.Error("weekly quest operation failed", zap.Error(err))

	switch {
	case errors.Is(err, service.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown day or question"})
	case errors.Is(err, service.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": "operation not allowed in current state"})
	case errors.Is(err, service.ErrAlreadyClaimed):
		c.JSON(http.StatusConflict, gin.H{"error": "already claimed this week"})
	case errors.Is(err, service.ErrInsufficientPasses):
		c.JSON(http.StatusForbidden, gin.H{"error": "no duty passes available"})
	case errors.Is(err, service.ErrNotMissed):
		c.JSON(http.StatusConflict, gin.H{"error": "day is not missed"})
	case errors.Is(err, service.ErrNotReady):
		c.JSON(http.StatusConflict, gin.H{"error": "reward chest is not ready"})
	case errors.Is(err, service.ErrConcurrentUpdate):
		c.JSON(http.StatusConflict, gin.H{"error": "concurrent update", "retryable": true})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func (r *weeklyQuestRoutes) GetStatus(c *gin.Context) {
	id, ok := parseTelegramID(c)
	if !ok {
		return
	}

	status, err := r.qs.GetStatus(c.Request.Context(), id)
	if err != nil {
		questError(c, err)
		return
	}

	c.JSON(http.StatusOK, questStatusResponse(status))
}

type SubmitAnswerRequest struct {
	QuestionID     string `json:"question_id" binding:"required"`
	SelectedOption *int   `json:"selected_option" binding:"required"`
}

type SubmitAnswerResponse struct {
	IsCorrect      bool   `json:"is_correct"`
	CorrectOption  int    `json:"correct_option"`
	Explanation    string `json:"explanation"`
	LivesRemaining int    `json:"lives_remaining"`
	Score          int    `json:"score"`
	IsCompleted    bool   `json:"is_completed"`
	IsFailed       bool   `json:"is_failed"`
}

func (r *weeklyQuestRoutes) SubmitAnswer(c *gin.Context) {
	log := logger.Logger()

	id, ok := parseTelegramID(c)
	if !ok {
		return
	}

	var req SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	questionID, err := uuid.Parse(req.QuestionID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid question_id"})
		return
	}

	result, err := r.qs.SubmitAnswer(c.Request.Context(), id, model.Weekday(c.Param("day")), questionID, *req.SelectedOption)
	if err != nil {
		questError(c, err)
		return
	}

	c.JSON(http.StatusOK, SubmitAnswerResponse{
		IsCorrect:      result.IsCorrect,
		CorrectOption:  result.CorrectOption,
		Explanation:    result.Explanation,
		LivesRemaining: result.LivesRemaining,
		Score:          result.Score,
		IsCompleted:    result.IsCompleted,
		IsFailed:       result.IsFailed,
	})
}

func (r *weeklyQuestRoutes) ResetDay(c *gin.Context) {
	id, ok := parseTelegramID(c)
	if !ok {
		return
	}

	view, err := r.qs.ResetDay(c.Request.Context(), id, model.Weekday(c.Param("day")))
	if err != nil {
		questError(c, err)
		return
	}

	c.JSON(http.StatusOK, DayStatusResponse{
		Day:                  string(view.Day),
		Status:               string(view.Status),
		CanAccess:            view.CanAccess,
		IsMissed:             view.IsMissed,
		NeedsDutyPass:        view.NeedsDutyPass,
		LivesRemaining:       view.LivesRemaining,
		CurrentQuestionIndex: view.CurrentQuestionIndex,
		Score:                view.Score,
		QuestionCount:        view.QuestionCount,
	})
}

func (r *weeklyQuestRoutes) ClaimDutyPass(c *gin.Context) {
	id, ok := parseTelegramID(c)
	if !ok {
		return
	}

	passes, err := r.qs.ClaimDutyPass(c.Request.Context(), id)
	if err != nil {
		questError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"duty_passes": passes})
}

type UseDutyPassRequest struct {
	Day string `json:"day" binding:"required"`
}

func (r *weeklyQuestRoutes) UseDutyPass(c *gin.Context) {
	log := logger.Logger()

	id, ok := parseTelegramID(c)
	if !ok {
		return
	}

	var req UseDutyPassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	status, err := r.qs.UseDutyPass(c.Request.Context(), id, model.Weekday(req.Day))
	if err != nil {
		questError(c, err)
		return
	}

	c.JSON(http.StatusOK, questStatusResponse(status))
}

func (r *weeklyQuestRoutes) ClaimReward(c *gin.Context) {
	id, ok := parseTelegramID(c)
	if !ok {
		return
	}

	xp, err := r.qs.ClaimReward(c.Request.Context(), id)
	if err != nil {
		questError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reward_xp": xp})
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (r *weeklyQuestRoutes) handleWebSocket(c *gin.Context) {
	log := logger.Logger()

	userData, exists := c.Get("telegram_user")
	if !exists {
		log.Error("telegram user data not found in context")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	user, ok := userData.(*auth.TelegramUserData)
	if !ok {
		log.Error("invalid type assertion for telegram user data")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	events := r.events.Subscribe(user.ID)
	done := make(chan struct{})
	go r.questReadLoop(conn, done)
	go r.questEventsLoop(conn, user.ID, events, done)
}

// questReadLoop drains inbound frames so a client disconnect is
// noticed even when no event is pending a write.
func (r *weeklyQuestRoutes) questReadLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (r *weeklyQuestRoutes) questEventsLoop(conn *websocket.Conn, telegramID int64, events chan model.QuestEvent, done chan struct{}) {
	log := logger.Logger()
	defer func() {
		r.events.Unsubscribe(telegramID, events)
		conn.Close()
	}()

	for {
		select {
		case <-done:
			log.Info("websocket closed by client", zap.Int64("telegram_id", telegramID))
			return
		case event, ok := <-events:
			if !ok {
				return
			}

			out, err := json.Marshal(event)
			if err != nil {
				log.Error("failed to marshal quest event", zap.Error(err))
				continue
			}

			if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
				log.Info("websocket write failed, closing", zap.Int64("telegram_id", telegramID), zap.Error(err))
				return
			}
		}
	}
}
