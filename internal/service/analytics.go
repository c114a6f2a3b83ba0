package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/chatdesk/internal/logger"
	"github.com/iliyamo/chatdesk/internal/model"
	"github.com/iliyamo/chatdesk/internal/queue"
)

// ChatStats summarises a company's chats.
type ChatStats struct {
	ByStatus             map[string]int `json:"byStatus"`
	Total                int            `json:"total"`
	AvgFirstResponseSecs float64        `json:"avgFirstResponseSeconds"`
}

// AnalyticsService records chat events for companies whose plan includes
// reports and serves the aggregates.
type AnalyticsService struct {
	events   AnalyticsStore
	chats    ChatStore
	messages MessageStore
	plans    *PlanChecker
}

func NewAnalyticsService(events AnalyticsStore, chats ChatStore, messages MessageStore, plans *PlanChecker) *AnalyticsService {
	return &AnalyticsService{events: events, chats: chats, messages: messages, plans: plans}
}

// Track stores ev when the company's plan allows reports and silently drops
// it otherwise.  It is the handler of the chat event consumer.
func (s *AnalyticsService) Track(ctx context.Context, ev queue.ChatEvent) error {
	ok, err := s.plans.CheckFeatureAccess(ctx, ev.CompanyID, FeatureReports)
	if err != nil || !ok {
		if err != nil && KindOf(err) == nil {
			return err
		}
		logger.FromContext(ctx).Debug("analytics skipped",
			zap.String("company_id", ev.CompanyID), zap.String("type", ev.Type))
		return nil
	}
	e := model.AnalyticsEvent{
		ID:        uuid.NewString(),
		CompanyID: ev.CompanyID,
		EventType: ev.Type,
		Data:      model.JSONMap(ev.Data),
		CreatedAt: ev.OccurredAt,
	}
	if ev.ChatID != "" {
		e.ChatID = &ev.ChatID
	}
	if ev.UserID != "" {
		e.UserID = &ev.UserID
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = nowUTC()
	}
	return s.events.InsertEvent(ctx, &e)
}

// ChatStats counts chats by status and reports the average time to the
// first agent reply.
func (s *AnalyticsService) ChatStats(ctx context.Context, companyID string) (ChatStats, error) {
	counts, err := s.chats.CountChatsByStatus(ctx, companyID)
	if err != nil {
		return ChatStats{}, err
	}
	out := ChatStats{ByStatus: map[string]int{}}
	for _, st := range []string{model.ChatPending, model.ChatActive, model.ChatAssigned, model.ChatClosed} {
		out.ByStatus[st] = counts[st]
		out.Total += counts[st]
	}
	if out.AvgFirstResponseSecs, err = s.messages.AvgFirstResponseSeconds(ctx, companyID); err != nil {
		return ChatStats{}, err
	}
	return out, nil
}

// Events pages through recorded events, newest first.
func (s *AnalyticsService) Events(ctx context.Context, companyID, eventType string, p Paging) (Page[model.AnalyticsEvent], error) {
	p = p.normalize(50)
	list, total, err := s.events.ListEvents(ctx, companyID, eventType, p.offset(), p.Limit)
	if err != nil {
		return Page[model.AnalyticsEvent]{}, err
	}
	return newPage(list, total, p), nil
}
