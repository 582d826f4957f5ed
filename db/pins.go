package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/onnwee/contact-bot/chat"
)

// PinStore is a chat.PinBoard kept in the pins table, so marks survive a
// restart of the bot.
type PinStore struct {
	DB *sql.DB
}

// NewPinStore returns a board backed by db. The schema must be migrated.
func NewPinStore(db *sql.DB) *PinStore { return &PinStore{DB: db} }

var _ chat.PinBoard = (*PinStore)(nil)

// Pin records m. Pinning an already pinned message keeps the original time.
func (s *PinStore) Pin(ctx context.Context, m chat.Message) error {
	var sent sql.NullTime
	if !m.Sent.IsZero() {
		sent = sql.NullTime{Time: m.Sent, Valid: true}
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO pins(message_id, author_id, author_name, content, sent_at, pinned_at)
		 VALUES($1,$2,$3,$4,$5,NOW())
		 ON CONFLICT(message_id) DO NOTHING`,
		m.ID, m.Author.ID, m.Author.Name, m.Content, sent)
	if err != nil {
		return fmt.Errorf("pin %s: %w", m.ID, err)
	}
	return nil
}

func (s *PinStore) Unpin(ctx context.Context, id string) error {
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM pins WHERE message_id=$1`, id); err != nil {
		return fmt.Errorf("unpin %s: %w", id, err)
	}
	return nil
}

func (s *PinStore) Get(ctx context.Context, id string) (chat.Message, bool, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT message_id, author_id, author_name, content, sent_at, pinned_at FROM pins WHERE message_id=$1`, id)
	p, err := scanPin(row)
	if errors.Is(err, sql.ErrNoRows) {
		return chat.Message{}, false, nil
	}
	if err != nil {
		return chat.Message{}, false, fmt.Errorf("get pin %s: %w", id, err)
	}
	return p.Message, true, nil
}

// List returns pins oldest first.
func (s *PinStore) List(ctx context.Context) ([]chat.Pin, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT message_id, author_id, author_name, content, sent_at, pinned_at FROM pins ORDER BY pinned_at, message_id`)
	if err != nil {
		return nil, fmt.Errorf("list pins: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []chat.Pin{}
	for rows.Next() {
		p, err := scanPin(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pin: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPin(r scanner) (chat.Pin, error) {
	var (
		p      chat.Pin
		sent   sql.NullTime
		pinned time.Time
	)
	err := r.Scan(&p.Message.ID, &p.Message.Author.ID, &p.Message.Author.Name, &p.Message.Content, &sent, &pinned)
	if err != nil {
		return chat.Pin{}, err
	}
	if sent.Valid {
		p.Message.Sent = sent.Time.UTC()
	}
	p.PinnedAt = pinned.UTC()
	return p, nil
}
