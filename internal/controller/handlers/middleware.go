package handlers

import (
	"context"
	"errors"

	"github.com/Freeeeeet/attendance_bot/internal/controller/common"
	"github.com/Freeeeeet/attendance_bot/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// requireUser проверяет что пользователь зарегистрирован
// Возвращает user и true если OK, nil и false если нет
func (h *Handlers) requireUser(ctx context.Context, b *bot.Bot, update *models.Update) (*model.User, bool) {
	if update.Message == nil || update.Message.From == nil {
		return nil, false
	}

	telegramID := update.Message.From.ID
	user, err := common.LookupUser(ctx, h.svc, telegramID)
	if err != nil {
		if !errors.Is(err, common.ErrUserNotFound) {
			h.svc.Logger.Error("Failed to get user", zap.Int64("telegram_id", telegramID), zap.Error(err))
		}
		h.sendMessage(ctx, b, update.Message.Chat.ID, common.ErrorMessage(err))
		return nil, false
	}

	return user, true
}

func (h *Handlers) sendMessage(ctx context.Context, b *bot.Bot, chatID int64, text string) {
	common.SendMessage(ctx, b, h.svc.Logger, chatID, text, nil)
}
