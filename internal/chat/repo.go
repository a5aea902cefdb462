package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/suPer8Hu/personachat/internal/common"
)

// Store is the conversation persistence used by the pipeline.
type Store interface {
	CreateConversation(ctx context.Context, title string) (*Conversation, error)
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	Append(ctx context.Context, convID, role, content, modelUsed string, metadata map[string]any) (*Message, error)
	SaveTurn(ctx context.Context, convID string, create bool, msgs ...*Message) error
	ListMessages(ctx context.Context, convID string, limit int) ([]Message, error)
	ListConversations(ctx context.Context) ([]Conversation, error)
	DeleteConversation(ctx context.Context, id string) (bool, error)
	RenameConversation(ctx context.Context, id, title string) (bool, error)
}

// JobStore tracks async chat jobs.
type JobStore interface {
	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	MarkJobRunning(ctx context.Context, id string) (bool, error)
	ReleaseJob(ctx context.Context, id string) error
	MarkJobSucceeded(ctx context.Context, id, convID, response string) error
	MarkJobFailed(ctx context.Context, id, errMsg string) error
}

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// Models lists the tables owned by this package, for migration.
func Models() []any {
	return []any{&Conversation{}, &Message{}, &Job{}}
}

func notFound(kind, key string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return common.NewNotFound(kind, key)
	}
	return err
}

func (r *Repo) CreateConversation(ctx context.Context, title string) (*Conversation, error) {
	id, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	c := &Conversation{ID: id}
	if t := strings.TrimSpace(title); t != "" {
		c.Title = &t
	}
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

func (r *Repo) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	var c Conversation
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, notFound("conversation", id, err)
	}
	return &c, nil
}

func (r *Repo) Append(ctx context.Context, convID, role, content, modelUsed string, metadata map[string]any) (*Message, error) {
	m := &Message{Role: role, Content: content, Metadata: metadata}
	if modelUsed != "" {
		m.ModelUsed = &modelUsed
	}
	if err := r.SaveTurn(ctx, convID, false, m); err != nil {
		return nil, err
	}
	return m, nil
}

// SaveTurn writes msgs in order inside one transaction. With create set the
// conversation row is inserted first, so a failed turn leaves nothing behind.
func (r *Repo) SaveTurn(ctx context.Context, convID string, create bool, msgs ...*Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		if create {
			if err := tx.Create(&Conversation{ID: convID, CreatedAt: now, UpdatedAt: now}).Error; err != nil {
				return err
			}
		} else {
			res := tx.Model(&Conversation{}).Where("id = ?", convID).Update("updated_at", now)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return common.NewNotFound("conversation", convID)
			}
		}
		for _, m := range msgs {
			m.ConversationID = convID
			if err := tx.Create(m).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// ListMessages returns the most recent limit messages, oldest first. A
// non-positive limit returns the whole conversation.
func (r *Repo) ListMessages(ctx context.Context, convID string, limit int) ([]Message, error) {
	q := r.db.WithContext(ctx).Where("conversation_id = ?", convID).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var msgs []Message
	if err := q.Find(&msgs).Error; err != nil {
		return nil, err
	}
	// reverse to ASC (oldest -> newest)
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// ListConversations returns every conversation, most recently active first.
func (r *Repo) ListConversations(ctx context.Context) ([]Conversation, error) {
	var out []Conversation
	if err := r.db.WithContext(ctx).Order("updated_at DESC").Order("id DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) DeleteConversation(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", id).Delete(&Message{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&Conversation{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	return deleted, err
}

func (r *Repo) RenameConversation(ctx context.Context, id, title string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&Conversation{}).Where("id = ?", id).Update("title", strings.TrimSpace(title))
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	// mysql reports zero affected rows when the title is unchanged
	var n int64
	if err := r.db.WithContext(ctx).Model(&Conversation{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// Job CRUD
func (r *Repo) CreateJob(ctx context.Context, job *Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *Repo) GetJob(ctx context.Context, id string) (*Job, error) {
	var j Job
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		return nil, notFound("job", id, err)
	}
	return &j, nil
}

// jobStaleAfter bounds how long a running job may go without a status write
// before another worker may claim it. A worker killed mid-job leaves one behind.
const jobStaleAfter = 10 * time.Minute

// MarkJobRunning moves a queued job to running. It reports false when the
// job was already picked up, which happens on broker redelivery. A running
// job older than jobStaleAfter is claimed again.
func (r *Repo) MarkJobRunning(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND (status = ? OR (status = ? AND updated_at < ?))",
			id, JobQueued, JobRunning, time.Now().Add(-jobStaleAfter)).
		Update("status", JobRunning)
	return res.RowsAffected > 0, res.Error
}

// ReleaseJob puts a running job back to queued so a redelivery can claim it.
func (r *Repo) ReleaseJob(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status = ?", id, JobRunning).
		Update("status", JobQueued).Error
}

func (r *Repo) MarkJobSucceeded(ctx context.Context, id, convID, response string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":          JobSucceeded,
			"conversation_id": convID,
			"response":        response,
			"error":           nil,
		}).Error
}

func (r *Repo) MarkJobFailed(ctx context.Context, id string, errMsg string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":   JobFailed,
			"error":    errMsg,
			"response": nil,
		}).Error
}
