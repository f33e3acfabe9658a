package mysql

import (
	"context"

	eventDomain "zkloan/internal/domain/event"

	"gorm.io/gorm"
)

type EventRepository struct{ db *gorm.DB }

func NewEventRepository(db *gorm.DB) *EventRepository { return &EventRepository{db: db} }

func (r *EventRepository) Append(ctx context.Context, evs ...eventDomain.Event) error {
	if len(evs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&evs).Error
}

// ListBySubject returns the newest events first.
func (r *EventRepository) ListBySubject(ctx context.Context, subject string, limit int) ([]eventDomain.Event, error) {
	var out []eventDomain.Event
	q := r.db.WithContext(ctx).Where("subject = ?", subject).Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	return out, q.Find(&out).Error
}
