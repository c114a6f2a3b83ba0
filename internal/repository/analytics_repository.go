package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/chatdesk/internal/model"
)

// AnalyticsRepo appends and lists analytics events.
type AnalyticsRepo struct{ db *sqlx.DB }

func NewAnalyticsRepo(db *sqlx.DB) *AnalyticsRepo { return &AnalyticsRepo{db: db} }

func (r *AnalyticsRepo) InsertEvent(ctx context.Context, e *model.AnalyticsEvent) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO analytics_events
		(id, company_id, event_type, chat_id, user_id, data, created_at)
		VALUES (:id, :company_id, :event_type, :chat_id, :user_id, :data, :created_at)`, e)
	return mapErr(err)
}

// ListEvents pages through a company's events, newest first.  An empty
// eventType matches every type.
func (r *AnalyticsRepo) ListEvents(ctx context.Context, companyID, eventType string, offset, limit int) ([]model.AnalyticsEvent, int, error) {
	where, args := " WHERE company_id = ?", []any{companyID}
	if eventType != "" {
		where, args = where+" AND event_type = ?", append(args, eventType)
	}
	total, err := countQuery(ctx, r.db, "SELECT COUNT(*) FROM analytics_events"+where, args...)
	if err != nil {
		return nil, 0, err
	}
	out := []model.AnalyticsEvent{}
	err = sqlx.SelectContext(ctx, r.db, &out,
		"SELECT id, company_id, event_type, chat_id, user_id, data, created_at FROM analytics_events"+where+
			" ORDER BY created_at DESC LIMIT ? OFFSET ?", append(args, limit, offset)...)
	return out, total, err
}
