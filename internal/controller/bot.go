package controller

import (
	"context"

	"github.com/Freeeeeet/attendance_bot/internal/controller/callbacks"
	"github.com/Freeeeeet/attendance_bot/internal/controller/common"
	"github.com/Freeeeeet/attendance_bot/internal/controller/handlers"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

type BotController struct {
	bot             *bot.Bot
	handlers        *handlers.Handlers
	callbackHandler *callbacks.Handler
	logger          *zap.Logger
}

func NewBotController(botInstance *bot.Bot, svc *common.Services) *BotController {
	return &BotController{
		bot:             botInstance,
		handlers:        handlers.NewHandlers(svc),
		callbackHandler: callbacks.NewHandler(svc),
		logger:          svc.Logger,
	}
}

// RegisterHandlers регистрирует все обработчики команд
func (c *BotController) RegisterHandlers(ctx context.Context) error {
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypeExact, c.handlers.HandleStart)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/help", bot.MatchTypeExact, c.handlers.HandleHelp)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/today", bot.MatchTypeExact, c.handlers.HandleToday)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/stats", bot.MatchTypeExact, c.handlers.HandleStats)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/token", bot.MatchTypeExact, c.handlers.HandleToken)

	// Обработчик нажатий на inline кнопки
	c.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "", bot.MatchTypePrefix, c.callbackHandler.HandleCallbackQuery)

	return c.setCommands(ctx)
}

// setCommands устанавливает список команд в меню бота
func (c *BotController) setCommands(ctx context.Context) error {
	commands := []models.BotCommand{
		{Command: "start", Description: "🚀 Начать работу с ботом"},
		{Command: "today", Description: "📅 Занятия на сегодня"},
		{Command: "stats", Description: "📊 Моя посещаемость"},
		{Command: "token", Description: "🔑 Ключ для приложения"},
		{Command: "help", Description: "❓ Справка по командам"},
	}

	_, err := c.bot.SetMyCommands(ctx, &bot.SetMyCommandsParams{
		Commands: commands,
	})

	if err != nil {
		c.logger.Error("Failed to set bot commands", zap.Error(err))
		return err
	}

	c.logger.Info("✅ Bot commands menu set")
	return nil
}

// Start запускает long polling; блокируется до отмены ctx
func (c *BotController) Start(ctx context.Context) error {
	c.logger.Info("Starting bot...")
	c.bot.Start(ctx)
	return nil
}
