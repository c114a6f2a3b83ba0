package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/chatdesk/internal/model"
)

const chatColumns = `id, company_id, department_id, visitor_id, visitor_name, visitor_email, visitor_ip,
	user_agent, status, priority, rating, feedback, metadata, closed_at, created_at, updated_at`

const assignmentColumns = "id, chat_id, user_id, assigned_by, is_active, assigned_at, unassigned_at"

// ChatRepo persists chats and their assignments.
type ChatRepo struct{ db *sqlx.DB }

func NewChatRepo(db *sqlx.DB) *ChatRepo { return &ChatRepo{db: db} }

func (r *ChatRepo) CreateChat(ctx context.Context, c *model.Chat) error {
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO chats
		(id, company_id, department_id, visitor_id, visitor_name, visitor_email, visitor_ip, user_agent,
		 status, priority, metadata, created_at, updated_at)
		VALUES (:id, :company_id, :department_id, :visitor_id, :visitor_name, :visitor_email, :visitor_ip, :user_agent,
		 :status, :priority, :metadata, :created_at, :updated_at)`, c)
	return mapErr(err)
}

// GetChatForCompany fetches a chat, returning ErrForbidden when it exists
// under a different company.
func (r *ChatRepo) GetChatForCompany(ctx context.Context, companyID, id string) (model.Chat, error) {
	var c model.Chat
	if err := r.db.GetContext(ctx, &c, "SELECT "+chatColumns+" FROM chats WHERE id = ? LIMIT 1", id); err != nil {
		return c, mapErr(err)
	}
	return c, ownedBy(c.CompanyID, companyID)
}

// ListChats pages through a company's chats, newest first.  An empty status
// matches every status.
func (r *ChatRepo) ListChats(ctx context.Context, companyID, status string, offset, limit int) ([]model.Chat, int, error) {
	where, args := " WHERE company_id = ?", []any{companyID}
	if status != "" {
		where, args = where+" AND status = ?", append(args, status)
	}
	total, err := countQuery(ctx, r.db, "SELECT COUNT(*) FROM chats"+where, args...)
	if err != nil {
		return nil, 0, err
	}
	out := []model.Chat{}
	err = r.db.SelectContext(ctx, &out, "SELECT "+chatColumns+" FROM chats"+where+
		" ORDER BY created_at DESC LIMIT ? OFFSET ?", append(args, limit, offset)...)
	return out, total, err
}

// UpdateChat loads the chat with SELECT ... FOR UPDATE, lets apply mutate
// it and writes the mutable columns back in the same transaction.
func (r *ChatRepo) UpdateChat(ctx context.Context, companyID, id string, apply func(*model.Chat) error) (model.Chat, error) {
	var c model.Chat
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &c, "SELECT "+chatColumns+" FROM chats WHERE id = ? FOR UPDATE", id); err != nil {
			return err
		}
		if err := ownedBy(c.CompanyID, companyID); err != nil {
			return err
		}
		if err := apply(&c); err != nil {
			return err
		}
		c.UpdatedAt = time.Now().UTC()
		_, err := tx.NamedExecContext(ctx, `UPDATE chats SET department_id = :department_id, status = :status,
			priority = :priority, rating = :rating, feedback = :feedback, metadata = :metadata,
			closed_at = :closed_at, updated_at = :updated_at WHERE id = :id`, c)
		return err
	})
	return c, mapErr(err)
}

// ActivatePending moves a pending chat to active.  It reports whether the
// transition happened; a chat in any other status is left alone.
func (r *ChatRepo) ActivatePending(ctx context.Context, companyID, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE chats SET status = ?, updated_at = ? WHERE id = ? AND company_id = ? AND status = ?",
		model.ChatActive, time.Now().UTC(), id, companyID, model.ChatPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ReassignChat deactivates every active assignment of the chat and records
// a as the only active one, then marks the chat assigned.  The chat row is
// locked with SELECT ... FOR UPDATE so concurrent reassignments of the same
// chat serialise instead of interleaving.
func (r *ChatRepo) ReassignChat(ctx context.Context, companyID, chatID string, a *model.ChatAssignment) error {
	now := time.Now().UTC()
	a.ChatID, a.IsActive, a.AssignedAt, a.UnassignedAt = chatID, true, now, nil
	return mapErr(withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var owner string
		if err := tx.GetContext(ctx, &owner, "SELECT company_id FROM chats WHERE id = ? FOR UPDATE", chatID); err != nil {
			return err
		}
		if err := ownedBy(owner, companyID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE chat_assignments SET is_active = 0, unassigned_at = ? WHERE chat_id = ? AND is_active = 1",
			now, chatID); err != nil {
			return err
		}
		if _, err := tx.NamedExecContext(ctx, `INSERT INTO chat_assignments
			(id, chat_id, user_id, assigned_by, is_active, assigned_at)
			VALUES (:id, :chat_id, :user_id, :assigned_by, :is_active, :assigned_at)`, a); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "UPDATE chats SET status = ?, updated_at = ? WHERE id = ?",
			model.ChatAssigned, now, chatID)
		return err
	}))
}

// ActiveAssignment returns the chat's active assignment, or nil when unassigned.
func (r *ChatRepo) ActiveAssignment(ctx context.Context, chatID string) (*model.ChatAssignment, error) {
	var a model.ChatAssignment
	err := r.db.GetContext(ctx, &a, "SELECT "+assignmentColumns+
		" FROM chat_assignments WHERE chat_id = ? AND is_active = 1 LIMIT 1", chatID)
	if err != nil {
		if mapErr(err) == ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// ListAssignments returns the assignment history of a chat, oldest first.
func (r *ChatRepo) ListAssignments(ctx context.Context, chatID string) ([]model.ChatAssignment, error) {
	out := []model.ChatAssignment{}
	err := r.db.SelectContext(ctx, &out, "SELECT "+assignmentColumns+
		" FROM chat_assignments WHERE chat_id = ? ORDER BY assigned_at, id", chatID)
	return out, err
}

// ListPendingByIDs returns the chats among ids that belong to companyID and
// are still pending, oldest first.  Used to reconcile the queue index
// against persisted state.
func (r *ChatRepo) ListPendingByIDs(ctx context.Context, companyID string, ids []string) ([]model.Chat, error) {
	out := []model.Chat{}
	if len(ids) == 0 {
		return out, nil
	}
	q, args, err := sqlx.In("SELECT "+chatColumns+
		" FROM chats WHERE company_id = ? AND status = ? AND id IN (?) ORDER BY created_at ASC",
		companyID, model.ChatPending, ids)
	if err != nil {
		return nil, err
	}
	err = r.db.SelectContext(ctx, &out, r.db.Rebind(q), args...)
	return out, err
}

// CountChatsByStatus groups a company's chats by status.
func (r *ChatRepo) CountChatsByStatus(ctx context.Context, companyID string) (map[string]int, error) {
	rows := []struct {
		Status string `db:"status"`
		N      int    `db:"n"`
	}{}
	if err := r.db.SelectContext(ctx, &rows,
		"SELECT status, COUNT(*) AS n FROM chats WHERE company_id = ? GROUP BY status", companyID); err != nil {
		return nil, err
	}
	out := make(map[string]int, len(rows))
	for _, row := range rows {
		out[row.Status] = row.N
	}
	return out, nil
}

// CountChats counts chats across every company.
func (r *ChatRepo) CountChats(ctx context.Context) (int, error) {
	return countQuery(ctx, r.db, "SELECT COUNT(*) FROM chats")
}
