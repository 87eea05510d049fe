// Package events доставка событий жизненного цикла занятий внешним подписчикам.
package events

import (
	"context"
	"errors"

	"github.com/Freeeeeet/attendance_bot/internal/model"
	"github.com/Freeeeeet/attendance_bot/internal/service"
)

// Nop отбрасывает события
type Nop struct{}

func (Nop) Publish(context.Context, model.LessonEvent) error { return nil }

// Fanout рассылает событие всем получателям. Ошибка одного не мешает остальным.
type Fanout []service.EventSink

func (f Fanout) Publish(ctx context.Context, event model.LessonEvent) error {
	var errs []error
	for _, sink := range f {
		if sink == nil {
			continue
		}
		if err := sink.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder хранит события в памяти; для тестов и отладки
type Recorder struct {
	ch chan model.LessonEvent
}

// NewRecorder создаёт буфер на size событий
func NewRecorder(size int) *Recorder {
	return &Recorder{ch: make(chan model.LessonEvent, size)}
}

// Publish кладёт событие в буфер, не блокируясь дольше ctx
func (r *Recorder) Publish(ctx context.Context, event model.LessonEvent) error {
	select {
	case r.ch <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Events канал записанных событий
func (r *Recorder) Events() <-chan model.LessonEvent {
	return r.ch
}
