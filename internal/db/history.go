package db

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/uptrace/bun"

	"textbook-rag/internal/helper"
	"textbook-rag/internal/models"
)

// ChatHistory is one answered question.
type ChatHistory struct {
	bun.BaseModel `bun:"table:chat_history,alias:ch"`

	ID         string         `bun:"id,pk,type:uuid"`
	UserID     string         `bun:"user_id,nullzero"`
	Question   string         `bun:"question,notnull"`
	Answer     string         `bun:"answer,notnull"`
	Sources    pq.StringArray `bun:"sources,type:text[]"`
	Confidence float64        `bun:"confidence"`
	CreatedAt  time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type HistoryStore struct {
	db *bun.DB
}

func NewHistoryStore(db *bun.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// Init creates the chat_history table if it does not exist.
func (h *HistoryStore) Init(ctx context.Context) error {
	_, err := h.db.NewCreateTable().Model((*ChatHistory)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create chat_history table: %w", err)
	}
	_, err = h.db.NewCreateIndex().
		Model((*ChatHistory)(nil)).
		Index("chat_history_user_id_idx").
		Column("user_id").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create chat_history index: %w", err)
	}
	return nil
}

func newHistoryRow(userID, question string, result models.AnswerResult) (*ChatHistory, error) {
	id, err := helper.GenerateUUID()
	if err != nil {
		return nil, err
	}
	sources := result.Sources
	if sources == nil {
		sources = []string{}
	}
	return &ChatHistory{
		ID:         id,
		UserID:     userID,
		Question:   question,
		Answer:     result.Answer,
		Sources:    pq.StringArray(sources),
		Confidence: result.Confidence,
	}, nil
}

// Record stores one exchange and returns its id.
func (h *HistoryStore) Record(ctx context.Context, userID, question string, result models.AnswerResult) (string, error) {
	row, err := newHistoryRow(userID, question, result)
	if err != nil {
		return "", err
	}
	if _, err := h.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to insert chat history: %w", err)
	}
	return row.ID, nil
}
