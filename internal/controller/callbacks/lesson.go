package callbacks

import (
	"context"
	"errors"
	"time"

	"github.com/Freeeeeet/attendance_bot/internal/controller/common"
	"github.com/Freeeeeet/attendance_bot/internal/controller/common/formatting"
	"github.com/Freeeeeet/attendance_bot/internal/controller/common/screens"
	"github.com/Freeeeeet/attendance_bot/internal/model"
	"github.com/Freeeeeet/attendance_bot/internal/service"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// prepare пользователь и ID занятия из callback; при ошибке уже ответили
func (h *Handler) prepare(ctx context.Context, b *bot.Bot, callback *models.CallbackQuery) (*model.User, int64, bool) {
	lessonID, err := common.ParseIDFromCallback(callback.Data)
	if err != nil {
		common.AnswerCallbackAlert(ctx, b, callback.ID, common.ErrorMessage(err))
		return nil, 0, false
	}

	user, err := common.LookupUser(ctx, h.svc, callback.From.ID)
	if err != nil {
		h.fail(ctx, b, callback, err)
		return nil, 0, false
	}
	return user, lessonID, true
}

func (h *Handler) handleMark(ctx context.Context, b *bot.Bot, callback *models.CallbackQuery) {
	user, lessonID, ok := h.prepare(ctx, b, callback)
	if !ok {
		return
	}

	student, err := h.svc.Users.StudentOf(ctx, user)
	if err != nil {
		h.fail(ctx, b, callback, err)
		return
	}

	mark, err := h.svc.Lessons.Mark(ctx, service.MarkRequest{
		LessonID:  lessonID,
		StudentID: student.ID,
		Actor:     model.SelfActor(user.ID),
		Now:       h.svc.Clock(),
	})
	if err != nil {
		h.fail(ctx, b, callback, err)
		return
	}

	d := formatting.GetAttendanceStatusDisplay(mark.Status)
	common.AnswerCallbackAlert(ctx, b, callback.ID, d.Emoji+" Отметка принята: "+d.Text)
	h.refresh(ctx, b, callback, user)
}

func (h *Handler) handleOpen(ctx context.Context, b *bot.Bot, callback *models.CallbackQuery) {
	h.transition(ctx, b, callback, h.svc.Lessons.OpenByID, "▶️ Занятие открыто")
}

func (h *Handler) handleClose(ctx context.Context, b *bot.Bot, callback *models.CallbackQuery) {
	h.transition(ctx, b, callback, h.svc.Lessons.CloseByID, "⏹ Занятие закрыто")
}

func (h *Handler) transition(
	ctx context.Context,
	b *bot.Bot,
	callback *models.CallbackQuery,
	do func(ctx context.Context, lessonID int64, actor model.Actor, now time.Time) (*model.Lesson, error),
	done string,
) {
	user, lessonID, ok := h.prepare(ctx, b, callback)
	if !ok {
		return
	}

	if _, err := do(ctx, lessonID, h.svc.Users.ActorFor(user), h.svc.Clock()); err != nil {
		h.fail(ctx, b, callback, err)
		return
	}

	common.AnswerCallback(ctx, b, callback.ID, done)
	h.refresh(ctx, b, callback, user)
}

func (h *Handler) handleRoster(ctx context.Context, b *bot.Bot, callback *models.CallbackQuery) {
	user, lessonID, ok := h.prepare(ctx, b, callback)
	if !ok {
		return
	}

	if err := h.svc.Lessons.CanManage(ctx, lessonID, h.svc.Users.ActorFor(user)); err != nil {
		h.fail(ctx, b, callback, err)
		return
	}

	roster, err := h.svc.Reports.LessonRoster(ctx, lessonID)
	if err != nil {
		h.fail(ctx, b, callback, err)
		return
	}

	common.AnswerCallback(ctx, b, callback.ID, "")
	common.SendMessage(ctx, b, h.svc.Logger, callback.From.ID, formatting.Roster(roster), nil)
}

func (h *Handler) handleRefresh(ctx context.Context, b *bot.Bot, callback *models.CallbackQuery) {
	user, err := common.LookupUser(ctx, h.svc, callback.From.ID)
	if err != nil {
		h.fail(ctx, b, callback, err)
		return
	}

	common.AnswerCallback(ctx, b, callback.ID, "")
	h.refresh(ctx, b, callback, user)
}

// refresh перерисовывает экран "сегодня" в исходном сообщении
func (h *Handler) refresh(ctx context.Context, b *bot.Bot, callback *models.CallbackQuery, user *model.User) {
	msg := common.GetMessageFromCallback(callback)
	if msg == nil {
		h.svc.Logger.Debug("Callback without message", zap.Error(common.ErrNoMessage))
		return
	}

	text, markup, err := screens.Today(ctx, h.svc, user)
	if err != nil {
		h.svc.Logger.Error("Failed to rebuild today screen", zap.Int64("user_id", user.ID), zap.Error(err))
		return
	}
	common.EditMessage(ctx, b, h.svc.Logger, msg, text, markup)
}

// fail показывает понятный текст ошибки; непредвиденные ошибки логируются
func (h *Handler) fail(ctx context.Context, b *bot.Bot, callback *models.CallbackQuery, err error) {
	if !isExpected(err) {
		h.svc.Logger.Error("Callback failed",
			zap.String("data", callback.Data),
			zap.Int64("telegram_id", callback.From.ID),
			zap.Error(err),
		)
	}
	common.AnswerCallbackAlert(ctx, b, callback.ID, common.ErrorMessage(err))
}

func isExpected(err error) bool {
	for _, target := range []error{
		common.ErrUserNotFound,
		service.ErrAlreadyOpen,
		service.ErrAlreadyClosed,
		service.ErrNotOpen,
		service.ErrAlreadyMarked,
		service.ErrGroupMismatch,
		service.ErrNotYourLesson,
		service.ErrInvalidActor,
		service.ErrNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
