package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/odysseia-chat/worldbook/internal/domain"
	"github.com/odysseia-chat/worldbook/internal/pagination"
)

// PendingRepository persists submissions awaiting community vote. Rows are
// never deleted; resolved entries stay behind as an audit trail.
type PendingRepository struct {
	db dbtx
}

func NewPendingRepository(pool *pgxpool.Pool) *PendingRepository {
	return &PendingRepository{db: pool}
}

func NewPendingRepositoryWithTx(tx pgx.Tx) *PendingRepository {
	return &PendingRepository{db: tx}
}

const pendingColumns = `id, entry_type, payload, channel_id, guild_id, submitter_id, review_message_id, status, created_at, expires_at`

// Create inserts a new pending row and fills in the generated id
func (r *PendingRepository) Create(ctx context.Context, e *domain.PendingEntry) error {
	if err := domain.ValidatePendingEntry(e); err != nil {
		return err
	}

	return r.db.QueryRow(ctx,
		`INSERT INTO pending_entries (entry_type, payload, channel_id, guild_id, submitter_id, review_message_id, status, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		e.Type, e.Payload, e.Origin.ChannelID, e.Origin.GuildID, e.Origin.SubmitterID,
		nullableString(e.ReviewMessageID), e.Status, e.CreatedAt, e.ExpiresAt,
	).Scan(&e.ID)
}

// AttachMessage records the public review message id once it has been posted
func (r *PendingRepository) AttachMessage(ctx context.Context, id int64, messageID string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE pending_entries SET review_message_id = $1 WHERE id = $2`,
		messageID, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrPendingEntryNotFound
	}
	return nil
}

// GetPending returns a row only while its status is still pending. Resolved
// entries are invisible to this accessor; use GetByID for audit reads.
func (r *PendingRepository) GetPending(ctx context.Context, id int64) (*domain.PendingEntry, error) {
	return r.scanOne(r.db.QueryRow(ctx,
		`SELECT `+pendingColumns+` FROM pending_entries WHERE id = $1 AND status = $2`,
		id, domain.PendingStatusPending,
	))
}

// GetByID returns a row regardless of status
func (r *PendingRepository) GetByID(ctx context.Context, id int64) (*domain.PendingEntry, error) {
	return r.scanOne(r.db.QueryRow(ctx,
		`SELECT `+pendingColumns+` FROM pending_entries WHERE id = $1`,
		id,
	))
}

// GetPendingByMessage looks up a still-pending entry by its review message id
func (r *PendingRepository) GetPendingByMessage(ctx context.Context, messageID string) (*domain.PendingEntry, error) {
	return r.scanOne(r.db.QueryRow(ctx,
		`SELECT `+pendingColumns+` FROM pending_entries WHERE review_message_id = $1 AND status = $2`,
		messageID, domain.PendingStatusPending,
	))
}

// MarkResolved flips a pending row to a terminal status. The conditional
// UPDATE is a single statement, so only one caller can ever observe a
// transition: a false return means the row was already resolved and the
// caller must skip its side effects (commit, refund).
func (r *PendingRepository) MarkResolved(ctx context.Context, id int64, status domain.PendingStatus) (bool, error) {
	if status != domain.PendingStatusApproved && status != domain.PendingStatusRejected {
		return false, domain.ErrInvalidPendingStatus
	}

	cmdTag, err := r.db.Exec(ctx,
		`UPDATE pending_entries SET status = $1 WHERE id = $2 AND status = $3`,
		status, id, domain.PendingStatusPending,
	)
	if err != nil {
		return false, err
	}
	return cmdTag.RowsAffected() > 0, nil
}

// ListExpired returns all pending rows whose review window closed at or
// before asOf
func (r *PendingRepository) ListExpired(ctx context.Context, asOf time.Time) ([]*domain.PendingEntry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+pendingColumns+` FROM pending_entries
		 WHERE status = $1 AND expires_at <= $2
		 ORDER BY expires_at ASC`,
		domain.PendingStatusPending, asOf,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.PendingEntry
	for rows.Next() {
		e, err := scanPendingRow(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListPendingPage returns a page of unresolved entries, oldest first
func (r *PendingRepository) ListPendingPage(ctx context.Context, cursor *pagination.Cursor, limit int) (*pagination.PageResult[*domain.PendingEntry], error) {
	if limit <= 0 {
		limit = 20
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		lastID, parseErr := strconv.ParseInt(cursor.LastID, 10, 64)
		if parseErr != nil {
			return nil, pagination.ErrInvalidCursor
		}
		rows, err = r.db.Query(ctx,
			`SELECT `+pendingColumns+` FROM pending_entries
			 WHERE status = $1 AND (created_at, id) > ($2, $3)
			 ORDER BY created_at ASC, id ASC
			 LIMIT $4`,
			domain.PendingStatusPending, cursor.Timestamp, lastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT `+pendingColumns+` FROM pending_entries
			 WHERE status = $1
			 ORDER BY created_at ASC, id ASC
			 LIMIT $2`,
			domain.PendingStatusPending, limit+1,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.PendingEntry
	for rows.Next() {
		e, err := scanPendingRow(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	hasMore := len(entries) > limit
	if hasMore {
		entries = entries[:limit]
	}

	var nextCursor string
	if hasMore && len(entries) > 0 {
		last := entries[len(entries)-1]
		nextCursor = pagination.EncodeCursor(strconv.FormatInt(last.ID, 10), last.CreatedAt)
	}

	return &pagination.PageResult[*domain.PendingEntry]{
		Items:   entries,
		Cursor:  nextCursor,
		HasMore: hasMore,
	}, nil
}

func (r *PendingRepository) scanOne(row pgx.Row) (*domain.PendingEntry, error) {
	e, err := scanPendingRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPendingEntryNotFound
		}
		return nil, err
	}
	return e, nil
}

func scanPendingRow(row pgx.Row) (*domain.PendingEntry, error) {
	var e domain.PendingEntry
	var messageID pgtype.Text
	err := row.Scan(&e.ID, &e.Type, &e.Payload, &e.Origin.ChannelID, &e.Origin.GuildID,
		&e.Origin.SubmitterID, &messageID, &e.Status, &e.CreatedAt, &e.ExpiresAt)
	if err != nil {
		return nil, err
	}
	if messageID.Valid {
		e.ReviewMessageID = messageID.String
	}
	return &e, nil
}
