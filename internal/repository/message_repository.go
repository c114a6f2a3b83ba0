package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/chatdesk/internal/model"
)

const messageColumns = "id, chat_id, sender_id, sender_type, content, message_type, metadata, is_read, read_at, created_at"

// MessageRepo persists chat messages.
type MessageRepo struct{ db *sqlx.DB }

func NewMessageRepo(db *sqlx.DB) *MessageRepo { return &MessageRepo{db: db} }

func (r *MessageRepo) CreateMessage(ctx context.Context, m *model.Message) error {
	m.CreatedAt = time.Now().UTC()
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO messages
		(id, chat_id, sender_id, sender_type, content, message_type, metadata, is_read, created_at)
		VALUES (:id, :chat_id, :sender_id, :sender_type, :content, :message_type, :metadata, :is_read, :created_at)`, m)
	return mapErr(err)
}

// GetMessage fetches a message by id.  Tenant checks go through the chat.
func (r *MessageRepo) GetMessage(ctx context.Context, id string) (model.Message, error) {
	var m model.Message
	err := r.db.GetContext(ctx, &m, "SELECT "+messageColumns+" FROM messages WHERE id = ? LIMIT 1", id)
	return m, mapErr(err)
}

// ListMessages returns one page of a chat's history in chronological order.
// Pages count back from the newest message: page 1 is the latest limit messages.
func (r *MessageRepo) ListMessages(ctx context.Context, chatID string, offset, limit int) ([]model.Message, int, error) {
	total, err := r.CountMessages(ctx, chatID)
	if err != nil {
		return nil, 0, err
	}
	out := []model.Message{}
	if err := r.db.SelectContext(ctx, &out, "SELECT "+messageColumns+
		" FROM messages WHERE chat_id = ? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		chatID, limit, offset); err != nil {
		return nil, 0, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, total, nil
}

func (r *MessageRepo) CountMessages(ctx context.Context, chatID string) (int, error) {
	return countQuery(ctx, r.db, "SELECT COUNT(*) FROM messages WHERE chat_id = ?", chatID)
}

// MarkRead marks every unread message of the chat not sent by readerID.
func (r *MessageRepo) MarkRead(ctx context.Context, chatID, readerID string, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET is_read = 1, read_at = ?
		WHERE chat_id = ? AND is_read = 0 AND (sender_id IS NULL OR sender_id <> ?)`, at, chatID, readerID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// firstAgentReplyQuery averages, per chat, the delay between chat creation
// and the first agent message.
const firstAgentReplyQuery = `SELECT AVG(TIMESTAMPDIFF(SECOND, c.created_at, f.first_reply))
	FROM chats c JOIN (
		SELECT chat_id, MIN(created_at) AS first_reply FROM messages WHERE sender_type = 'agent' GROUP BY chat_id
	) f ON f.chat_id = c.id
	WHERE c.company_id = ?`

// AvgFirstResponseSeconds reports the mean first agent response time of a
// company's chats, or 0 when no chat has an agent reply yet.
func (r *MessageRepo) AvgFirstResponseSeconds(ctx context.Context, companyID string) (float64, error) {
	var avg *float64
	if err := sqlx.GetContext(ctx, r.db, &avg, firstAgentReplyQuery, companyID); err != nil {
		return 0, err
	}
	if avg == nil {
		return 0, nil
	}
	return *avg, nil
}
