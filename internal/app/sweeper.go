package app

import (
	"context"
	"sync"
	"time"

	"github.com/Freeeeeet/attendance_bot/internal/model"
	"github.com/Freeeeeet/attendance_bot/internal/service"
	"go.uber.org/zap"
)

// SweepResult итог одного прохода
type SweepResult struct {
	Opened int
	Closed int
	Failed int
}

// SweepObserver получает итог каждого прохода (метрики)
type SweepObserver interface {
	ObserveSweep(result SweepResult, took time.Duration)
}

// Sweeper фоновая задача: открывает занятия к началу окна и закрывает
// по его истечении. Все переходы идут через LessonService.
type Sweeper struct {
	lessons   *service.LessonService
	templates service.TemplateStore
	store     service.LessonStore
	interval  time.Duration
	observer  SweepObserver
	now       func() time.Time
	logger    *zap.Logger

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSweeper создаёт новый sweeper
func NewSweeper(
	lessons *service.LessonService,
	templates service.TemplateStore,
	store service.LessonStore,
	interval time.Duration,
	observer SweepObserver,
	logger *zap.Logger,
) *Sweeper {
	return &Sweeper{
		lessons:   lessons,
		templates: templates,
		store:     store,
		interval:  interval,
		observer:  observer,
		now:       time.Now,
		logger:    logger,
		stopChan:  make(chan struct{}),
	}
}

// Start запускает цикл; первый проход сразу
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("Starting lesson sweeper", zap.Duration("interval", s.interval))

	s.wg.Add(1)
	go s.run(ctx)
}

// Stop останавливает цикл и ждёт завершения текущего прохода
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping lesson sweeper")
		close(s.stopChan)
	})
	s.wg.Wait()
}

func (s *Sweeper) run(ctx context.Context) {
	defer s.wg.Done()

	s.Tick(ctx, s.now())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Tick(ctx, s.now())
		case <-s.stopChan:
			s.logger.Info("Lesson sweeper stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Lesson sweeper cancelled")
			return
		}
	}
}

// Tick один проход: сначала открытие, затем закрытие.
// Состояние каждый раз читается заново.
func (s *Sweeper) Tick(ctx context.Context, now time.Time) SweepResult {
	started := time.Now()

	var result SweepResult
	s.openPass(ctx, now, &result)
	s.closePass(ctx, now, &result)

	if result.Opened > 0 || result.Closed > 0 || result.Failed > 0 {
		s.logger.Info("Sweep completed",
			zap.Int("opened", result.Opened),
			zap.Int("closed", result.Closed),
			zap.Int("failed", result.Failed),
		)
	}
	if s.observer != nil {
		s.observer.ObserveSweep(result, time.Since(started))
	}

	return result
}

// openPass шаблоны, у которых окно открыто сейчас. Диапазон по времени начала
// [now-CLOSE_AFTER, now+OPEN_BEFORE] покрывает пропущенные тики и может
// захватывать соседние сутки: пара в 00:02 открывается ещё накануне.
func (s *Sweeper) openPass(ctx context.Context, now time.Time, result *SweepResult) {
	policy := s.lessons.Policy()

	for _, day := range startRange(policy, now) {
		templates, err := s.templates.ListStartingBetween(ctx, model.Weekday(day.date), day.from, day.to)
		if err != nil {
			s.logger.Error("Failed to list templates for open pass",
				zap.Time("date", day.date),
				zap.Error(err),
			)
			result.Failed++
			continue
		}

		for _, tpl := range templates {
			s.openOccurrence(ctx, tpl, day.date, now, result)
		}
	}
}

func (s *Sweeper) openOccurrence(ctx context.Context, tpl *model.ScheduleTemplate, date, now time.Time, result *SweepResult) {
	if !s.lessons.Policy().ShouldBeOpen(tpl, date, now) {
		return
	}

	lesson, err := s.lessons.EnsureOccurrence(ctx, tpl, date)
	if err != nil {
		s.logger.Error("Failed to ensure lesson",
			zap.Int64("template_id", tpl.ID),
			zap.Time("date", date),
			zap.Error(err),
		)
		result.Failed++
		return
	}
	if !lesson.IsPending() {
		return
	}

	if _, err := s.lessons.OpenByID(ctx, lesson.ID, model.SystemActor(), now); err != nil {
		s.skip(result, "open", lesson.ID, err)
		return
	}
	result.Opened++
}

// dayRange отрезок времени начала внутри одной календарной даты
type dayRange struct {
	date time.Time
	from model.TimeOfDay
	to   model.TimeOfDay
}

// startRange режет [now-CLOSE_AFTER, now+OPEN_BEFORE] по границам суток
// рабочей таймзоны
func startRange(policy service.WindowPolicy, now time.Time) []dayRange {
	lo := now.Add(-policy.CloseAfter).In(policy.Location)
	hi := now.Add(policy.OpenBefore).In(policy.Location)

	first := model.DateOf(lo, policy.Location)
	last := model.DateOf(hi, policy.Location)

	var ranges []dayRange
	for date := first; !date.After(last); date = date.AddDate(0, 0, 1) {
		r := dayRange{
			date: date,
			from: model.TimeOfDay{},
			to:   model.TimeOfDay{Hour: 23, Minute: 59},
		}
		if date.Equal(first) {
			r.from = model.TimeOfDayOf(lo)
		}
		if date.Equal(last) {
			r.to = model.TimeOfDayOf(hi)
		}
		ranges = append(ranges, r)
	}
	return ranges
}

func (s *Sweeper) closePass(ctx context.Context, now time.Time, result *SweepResult) {
	open, err := s.store.ListOpen(ctx)
	if err != nil {
		s.logger.Error("Failed to list open lessons", zap.Error(err))
		result.Failed++
		return
	}

	policy := s.lessons.Policy()
	templates := make(map[int64]*model.ScheduleTemplate)

	for _, lesson := range open {
		tpl, ok := templates[lesson.TemplateID]
		if !ok {
			tpl, err = s.templates.GetByID(ctx, lesson.TemplateID)
			if err != nil || tpl == nil {
				s.logger.Error("Failed to load template of open lesson",
					zap.Int64("lesson_id", lesson.ID),
					zap.Int64("template_id", lesson.TemplateID),
					zap.Error(err),
				)
				result.Failed++
				continue
			}
			templates[lesson.TemplateID] = tpl
		}

		if !policy.ShouldBeClosed(tpl, lesson.Date, now) {
			continue
		}

		if _, err := s.lessons.CloseByID(ctx, lesson.ID, model.SystemActor(), now); err != nil {
			s.skip(result, "close", lesson.ID, err)
			continue
		}
		result.Closed++
	}
}

// skip гонки с ручными действиями ожидаемы, остальное считаем сбоем
func (s *Sweeper) skip(result *SweepResult, op string, lessonID int64, err error) {
	if service.IsTransitionRace(err) {
		s.logger.Debug("Sweep transition lost the race",
			zap.String("op", op),
			zap.Int64("lesson_id", lessonID),
			zap.Error(err),
		)
		return
	}

	s.logger.Error("Sweep transition failed",
		zap.String("op", op),
		zap.Int64("lesson_id", lessonID),
		zap.Error(err),
	)
	result.Failed++
}
