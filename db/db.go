package db

import (
	"context"
	"fmt"
	"time"

	"github.com/rqlite/gorqlite"
)

func New(conn *gorqlite.Connection) *Queries {
	return &Queries{
		conn: conn,
	}
}

type Queries struct {
	conn *gorqlite.Connection
}

type Vote string

const (
	VoteUp   Vote = "upvote"
	VoteDown Vote = "downvote"
)

func (v Vote) Valid() bool {
	return v == VoteUp || v == VoteDown
}

type Feedback struct {
	ID         int64
	ChatID     string
	MessageID  string
	Vote       Vote
	Feedback   string
	Source     string
	CallerType string
	CallerID   string
	CreatedAt  time.Time
}

func (q *Queries) FeedbackPut(ctx context.Context, f Feedback) (id int64, err error) {
	if !f.Vote.Valid() {
		return 0, fmt.Errorf("invalid vote %q", f.Vote)
	}
	stmt := gorqlite.ParameterizedStatement{
		Query: `insert into feedback (chat_id, message_id, vote, feedback, source, caller_type, caller_id, created_at)
values (?, ?, ?, ?, ?, ?, ?, ?)`,
		Arguments: []any{f.ChatID, f.MessageID, string(f.Vote), f.Feedback, f.Source, f.CallerType, f.CallerID, f.CreatedAt},
	}
	result, err := q.conn.WriteOneParameterizedContext(ctx, stmt)
	if err != nil {
		return 0, err
	}
	if result.LastInsertID == 0 {
		return 0, fmt.Errorf("expected a non-zero row ID")
	}
	return result.LastInsertID, nil
}

func (q *Queries) FeedbackList(ctx context.Context, chatID string) (feedback []Feedback, err error) {
	stmt := gorqlite.ParameterizedStatement{
		Query:     `select id, chat_id, message_id, vote, feedback, source, caller_type, caller_id, created_at from feedback where chat_id = ? order by id asc`,
		Arguments: []any{chatID},
	}
	result, err := q.conn.QueryOneParameterizedContext(ctx, stmt)
	if err != nil {
		return feedback, err
	}
	for result.Next() {
		var f Feedback
		var vote string
		if err = result.Scan(&f.ID, &f.ChatID, &f.MessageID, &vote, &f.Feedback, &f.Source, &f.CallerType, &f.CallerID, &f.CreatedAt); err != nil {
			return feedback, err
		}
		f.Vote = Vote(vote)
		feedback = append(feedback, f)
	}
	return feedback, nil
}

func (q *Queries) FeedbackDelete(ctx context.Context, chatID string) (err error) {
	stmt := gorqlite.ParameterizedStatement{
		Query:     `delete from feedback where chat_id = ?`,
		Arguments: []any{chatID},
	}
	_, err = q.conn.WriteOneParameterizedContext(ctx, stmt)
	return err
}
