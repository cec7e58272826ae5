package service

import (
	"fmt"

	"skillpath_miniapp/pkg/logger"
	"go.uber.org/zap"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type RewardBotConfig struct {
	BotToken string
	Debug    bool
}

// RewardBot sends the weekly-chest congratulation message. It is
// strictly best-effort and never part of the claim transaction.
type RewardBot struct {
	bot *tgbotapi.BotAPI
}

func NewRewardBot(config RewardBotConfig) (*RewardBot, error) {
	bot, err := tgbotapi.NewBotAPI(config.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize bot: %w", err)
	}

	bot.Debug = config.Debug

	return &RewardBot{bot: bot}, nil
}

func (b *RewardBot) NotifyRewardClaimed(telegramID int64, xp int) {
	if b == nil {
		return
	}

	text := fmt.Sprintf("Weekly quest complete! Your reward chest granted %d XP. See you Monday!", xp)
	msg := tgbotapi.NewMessage(telegramID, text)

	if _, err := b.bot.Send(msg); err != nil {
		logger.Logger().Warn("failed to send reward notification",
			zap.Int64("telegram_id", telegramID),
			zap.Error(err))
	}
}
