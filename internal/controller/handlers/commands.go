package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/Freeeeeet/attendance_bot/internal/controller/common"
	"github.com/Freeeeeet/attendance_bot/internal/controller/common/formatting"
	"github.com/Freeeeeet/attendance_bot/internal/controller/common/screens"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// HandleStart обрабатывает команду /start
func (h *Handlers) HandleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}

	from := update.Message.From
	fullName := strings.TrimSpace(from.FirstName + " " + from.LastName)

	user, err := h.svc.Users.RegisterUser(ctx, from.ID, from.Username, fullName)
	if err != nil {
		h.svc.Logger.Error("Failed to register user", zap.Int64("telegram_id", from.ID), zap.Error(err))
		h.sendMessage(ctx, b, update.Message.Chat.ID, "❌ Произошла ошибка при регистрации. Попробуйте позже.")
		return
	}

	text := fmt.Sprintf(
		"👋 Привет, %s!\n\n"+
			"Это бот учёта посещаемости.\n\n"+
			"/today - Занятия на сегодня\n"+
			"/stats - Моя посещаемость\n"+
			"/token - Ключ для мобильного приложения\n"+
			"/help - Справка",
		user.FullName,
	)
	h.sendMessage(ctx, b, update.Message.Chat.ID, text)
}

// HandleHelp обрабатывает команду /help
func (h *Handlers) HandleHelp(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	policy := h.svc.Lessons.Policy()
	helpText := "📚 Справка по командам:\n\n" +
		"Для студентов:\n" +
		"/today - Занятия группы на сегодня и кнопка отметки\n" +
		"/stats - Статистика посещаемости\n\n" +
		"Для преподавателей:\n" +
		"/today - Свои пары: открыть, закрыть, ведомость\n\n" +
		fmt.Sprintf("Отметка открывается за %d мин до начала пары и закрывается через %d мин после. ",
			int(policy.OpenBefore.Minutes()), int(policy.CloseAfter.Minutes())) +
		fmt.Sprintf("Позже %d мин от начала отметка засчитывается как опоздание.",
			int(policy.LateThreshold.Minutes()))

	h.sendMessage(ctx, b, update.Message.Chat.ID, helpText)
}

// HandleToday обрабатывает команду /today
func (h *Handlers) HandleToday(ctx context.Context, b *bot.Bot, update *models.Update) {
	user, ok := h.requireUser(ctx, b, update)
	if !ok {
		return
	}

	text, markup, err := screens.Today(ctx, h.svc, user)
	if err != nil {
		h.svc.Logger.Error("Failed to build today screen", zap.Int64("user_id", user.ID), zap.Error(err))
		h.sendMessage(ctx, b, update.Message.Chat.ID, common.ErrorMessage(err))
		return
	}

	common.SendMessage(ctx, b, h.svc.Logger, update.Message.Chat.ID, text, markup)
}

// HandleStats обрабатывает команду /stats
func (h *Handlers) HandleStats(ctx context.Context, b *bot.Bot, update *models.Update) {
	user, ok := h.requireUser(ctx, b, update)
	if !ok {
		return
	}

	student, err := h.svc.Users.StudentOf(ctx, user)
	if err != nil {
		h.sendMessage(ctx, b, update.Message.Chat.ID, common.ErrorMessage(err))
		return
	}

	today := h.svc.Lessons.Policy().Today(h.svc.Clock())
	stats, err := h.svc.Reports.StudentStats(ctx, student.ID, today.AddDate(-1, 0, 0), today)
	if err != nil {
		h.svc.Logger.Error("Failed to get stats", zap.Int64("student_id", student.ID), zap.Error(err))
		h.sendMessage(ctx, b, update.Message.Chat.ID, common.ErrorMessage(err))
		return
	}

	h.sendMessage(ctx, b, update.Message.Chat.ID, formatting.Stats(stats))
}

// HandleToken выдаёт JWT для мобильного клиента
func (h *Handlers) HandleToken(ctx context.Context, b *bot.Bot, update *models.Update) {
	user, ok := h.requireUser(ctx, b, update)
	if !ok {
		return
	}
	if h.svc.Issuer == nil {
		h.sendMessage(ctx, b, update.Message.Chat.ID, "❌ Выдача ключей отключена")
		return
	}

	token, expires, err := h.svc.Issuer.Issue(user)
	if err != nil {
		h.svc.Logger.Error("Failed to issue token", zap.Int64("user_id", user.ID), zap.Error(err))
		h.sendMessage(ctx, b, update.Message.Chat.ID, common.ErrorMessage(err))
		return
	}

	h.sendMessage(ctx, b, update.Message.Chat.ID, fmt.Sprintf(
		"🔑 Ключ для приложения (действует до %s):\n\n%s",
		formatting.FormatDateTime(expires.In(h.svc.Lessons.Policy().Location)),
		token,
	))
}
