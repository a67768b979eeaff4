// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package trackerd

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const sessionColumns = `id, agent, client_kind, client_version, host, venture, repo, track,
	branch, commit_sha, status, meta, created_at, last_heartbeat_at, ended_at`

// PostgresStore 多实例部署用的存储，依赖 coord_sessions 与 coord_handoffs 两张表
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore 创建基于 PostgreSQL 的会话存储；dsn 为连接串
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

// Close 关闭连接池
func (s *PostgresStore) Close() {
	s.pool.Close()
}

type sessionRow interface {
	Scan(dest ...interface{}) error
}

func scanSession(row sessionRow) (*Session, error) {
	var out Session
	var meta []byte
	var endedAt *time.Time
	if err := row.Scan(&out.ID, &out.Agent, &out.ClientKind, &out.ClientVersion, &out.Host,
		&out.Venture, &out.Repo, &out.Track, &out.Branch, &out.CommitSHA, &out.Status,
		&meta, &out.CreatedAt, &out.LastHeartbeatAt, &endedAt); err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		_ = json.Unmarshal(meta, &out.Meta)
	}
	if endedAt != nil {
		out.EndedAt = *endedAt
	}
	return &out, nil
}

func (s *PostgresStore) StartSession(ctx context.Context, sess *Session) (*Session, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM coord_sessions
		 WHERE agent = $1 AND venture = $2 AND repo = $3 AND status = 'active'
		 ORDER BY id LIMIT 1 FOR UPDATE`,
		sess.Agent, sess.Venture, sess.Repo)
	existing, err := scanSession(row)
	switch {
	case err == nil:
		if _, err := tx.Exec(ctx,
			`UPDATE coord_sessions SET last_heartbeat_at = GREATEST(last_heartbeat_at, $2) WHERE id = $1`,
			existing.ID, sess.LastHeartbeatAt); err != nil {
			return nil, false, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, false, err
		}
		if sess.LastHeartbeatAt.After(existing.LastHeartbeatAt) {
			existing.LastHeartbeatAt = sess.LastHeartbeatAt
		}
		return existing, true, nil

	case errors.Is(err, pgx.ErrNoRows):
		created := *sess
		created.ID = "sess-" + uuid.New().String()
		created.Status = StatusActive
		var metaJSON []byte
		if len(created.Meta) > 0 {
			metaJSON, _ = json.Marshal(created.Meta)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO coord_sessions (id, agent, client_kind, client_version, host, venture, repo, track,
			 branch, commit_sha, status, meta, created_at, last_heartbeat_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			created.ID, created.Agent, created.ClientKind, created.ClientVersion, created.Host,
			created.Venture, created.Repo, created.Track, created.Branch, created.CommitSHA,
			created.Status, metaJSON, created.CreatedAt, created.LastHeartbeatAt); err != nil {
			return nil, false, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, false, err
		}
		return &created, false, nil

	default:
		return nil, false, err
	}
}

func (s *PostgresStore) ActiveSessions(ctx context.Context, venture, repo string) ([]*Session, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM coord_sessions
		 WHERE venture = $1 AND repo = $2 AND status = 'active' ORDER BY id`,
		venture, repo)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// sessionError 区分会话缺失与已结束
func (s *PostgresStore) sessionError(ctx context.Context, sessionID string) error {
	var status string
	err := s.pool.QueryRow(ctx,
		`SELECT status FROM coord_sessions WHERE id = $1`, sessionID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrSessionNotFound
	}
	if err != nil {
		return err
	}
	return ErrSessionNotActive
}

func (s *PostgresStore) Heartbeat(ctx context.Context, sessionID string, at time.Time) (*Session, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE coord_sessions SET last_heartbeat_at = GREATEST(last_heartbeat_at, $2)
		 WHERE id = $1 AND status = 'active'
		 RETURNING `+sessionColumns,
		sessionID, at)
	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, s.sessionError(ctx, sessionID)
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *PostgresStore) UpdateSession(ctx context.Context, sessionID, branch, commitSHA string, meta map[string]string, at time.Time) (*Session, error) {
	var metaJSON []byte
	if len(meta) > 0 {
		metaJSON, _ = json.Marshal(meta)
	}
	row := s.pool.QueryRow(ctx,
		`UPDATE coord_sessions SET
		   branch = CASE WHEN $2 = '' THEN branch ELSE $2 END,
		   commit_sha = CASE WHEN $3 = '' THEN commit_sha ELSE $3 END,
		   meta = COALESCE(meta, '{}'::jsonb) || COALESCE($4::jsonb, '{}'::jsonb),
		   last_heartbeat_at = GREATEST(last_heartbeat_at, $5)
		 WHERE id = $1 AND status = 'active'
		 RETURNING `+sessionColumns,
		sessionID, branch, commitSHA, metaJSON, at)
	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, s.sessionError(ctx, sessionID)
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *PostgresStore) EndSession(ctx context.Context, sessionID string, h *Handoff, at time.Time) (*Handoff, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var agent, venture, repo string
	err = tx.QueryRow(ctx,
		`UPDATE coord_sessions SET status = 'ended', ended_at = $2
		 WHERE id = $1 AND status = 'active'
		 RETURNING agent, venture, repo`,
		sessionID, at).Scan(&agent, &venture, &repo)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, s.sessionError(ctx, sessionID)
	}
	if err != nil {
		return nil, err
	}

	stored := *h
	stored.ID = "hand-" + uuid.New().String()
	stored.SessionID = sessionID
	stored.Agent = agent
	stored.Venture = venture
	stored.Repo = repo
	stored.CreatedAt = at

	if _, err := tx.Exec(ctx,
		`INSERT INTO coord_handoffs (id, session_id, agent, venture, repo, summary,
		 accomplished, in_progress, blocked, next_steps, status_label, end_reason, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		stored.ID, stored.SessionID, stored.Agent, stored.Venture, stored.Repo, stored.Summary,
		stored.Accomplished, stored.InProgress, stored.Blocked, stored.NextSteps,
		stored.StatusLabel, stored.EndReason, stored.CreatedAt); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &stored, nil
}

func (s *PostgresStore) LastHandoff(ctx context.Context, venture, repo string) (*Handoff, error) {
	var h Handoff
	err := s.pool.QueryRow(ctx,
		`SELECT id, session_id, agent, venture, repo, summary, accomplished, in_progress,
		 blocked, next_steps, status_label, end_reason, created_at
		 FROM coord_handoffs WHERE venture = $1 AND repo = $2
		 ORDER BY created_at DESC, id DESC LIMIT 1`,
		venture, repo).Scan(&h.ID, &h.SessionID, &h.Agent, &h.Venture, &h.Repo, &h.Summary,
		&h.Accomplished, &h.InProgress, &h.Blocked, &h.NextSteps, &h.StatusLabel,
		&h.EndReason, &h.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (s *PostgresStore) ExpireSessions(ctx context.Context, cutoff time.Time) ([]*Session, error) {
	rows, err := s.pool.Query(ctx,
		`UPDATE coord_sessions SET status = 'abandoned'
		 WHERE status = 'active' AND last_heartbeat_at < $1
		 RETURNING `+sessionColumns,
		cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
