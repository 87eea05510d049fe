package callbacks

import (
	"context"
	"strings"

	"github.com/Freeeeeet/attendance_bot/internal/controller/common"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// Handler обработчик нажатий на inline кнопки
type Handler struct {
	svc *common.Services
}

// NewHandler создаёт обработчик callback query
func NewHandler(svc *common.Services) *Handler {
	return &Handler{svc: svc}
}

// HandleCallbackQuery точка входа для bot.HandlerTypeCallbackQueryData
func (h *Handler) HandleCallbackQuery(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}
	h.Route(ctx, b, update.CallbackQuery)
}

// Route распределяет callback query по обработчикам
func (h *Handler) Route(ctx context.Context, b *bot.Bot, callback *models.CallbackQuery) {
	data := callback.Data

	h.svc.Logger.Debug("Routing callback",
		zap.String("data", data),
		zap.Int64("user_id", callback.From.ID),
	)

	switch {
	case data == common.Noop:
		common.AnswerCallback(ctx, b, callback.ID, "")
	case data == common.RefreshToday:
		h.handleRefresh(ctx, b, callback)
	case strings.HasPrefix(data, common.MarkLesson):
		h.handleMark(ctx, b, callback)
	case strings.HasPrefix(data, common.OpenLesson):
		h.handleOpen(ctx, b, callback)
	case strings.HasPrefix(data, common.CloseLesson):
		h.handleClose(ctx, b, callback)
	case strings.HasPrefix(data, common.LessonRoster):
		h.handleRoster(ctx, b, callback)
	default:
		h.svc.Logger.Warn("Unknown callback", zap.String("data", data))
		common.AnswerCallback(ctx, b, callback.ID, "❌ Неизвестная команда")
	}
}
