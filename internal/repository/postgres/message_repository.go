package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"mensajeria/internal/domain"
	"mensajeria/internal/repository"
)

const createMessagesTable = `
CREATE TABLE IF NOT EXISTS mensajes (
	id SERIAL PRIMARY KEY,
	mensaje TEXT,
	autor TEXT,
	usuario TEXT,
	fecha_creacion TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`

type MessageRepository struct {
	conn *Conn
}

// NewMessageRepository binds the repository to conn and makes sure the
// table exists on every (re)connect.
func NewMessageRepository(conn *Conn) repository.MessageRepository {
	conn.OnConnect(func(ctx context.Context, db *sql.DB) error {
		if _, err := db.ExecContext(ctx, createMessagesTable); err != nil {
			return fmt.Errorf("create mensajes table: %w", err)
		}
		return nil
	})
	return &MessageRepository{conn: conn}
}

func (r *MessageRepository) Init(ctx context.Context) error {
	_, err := r.conn.DB(ctx)
	return err
}

func (r *MessageRepository) Create(ctx context.Context, msg *domain.Message) (int64, error) {
	db, err := r.conn.DB(ctx)
	if err != nil {
		return 0, err
	}

	err = db.QueryRowContext(ctx, `
INSERT INTO mensajes (mensaje, autor, usuario)
VALUES ($1, $2, $3)
RETURNING id, fecha_creacion`,
		msg.Body,
		msg.Author,
		msg.Username,
	).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return 0, r.conn.checkFailure(ctx, db, fmt.Errorf("insert message: %w", err))
	}
	return msg.ID, nil
}

// List returns all messages, newest first.
func (r *MessageRepository) List(ctx context.Context) ([]domain.Message, error) {
	db, err := r.conn.DB(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
SELECT id, mensaje, autor, usuario, fecha_creacion
FROM mensajes
ORDER BY id DESC`)
	if err != nil {
		return nil, r.conn.checkFailure(ctx, db, fmt.Errorf("list messages: %w", err))
	}
	defer rows.Close()

	messages := make([]domain.Message, 0)
	for rows.Next() {
		var (
			msg                    domain.Message
			body, author, username sql.NullString
			createdAt              sql.NullTime
		)
		if err := rows.Scan(&msg.ID, &body, &author, &username, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Body = body.String
		msg.Author = author.String
		msg.Username = username.String
		msg.CreatedAt = createdAt.Time
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

func (r *MessageRepository) Delete(ctx context.Context, id int64) error {
	db, err := r.conn.DB(ctx)
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx, `DELETE FROM mensajes WHERE id = $1`, id)
	if err != nil {
		return r.conn.checkFailure(ctx, db, fmt.Errorf("delete message: %w", err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete message rows affected: %w", err)
	}
	if affected == 0 {
		return repository.ErrMessageNotFound
	}
	return nil
}

func (r *MessageRepository) Ping(ctx context.Context) error {
	return r.conn.Ping(ctx)
}
