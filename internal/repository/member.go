package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/odysseia-chat/worldbook/internal/domain"
)

// MemberRepository persists community member profiles and their nickname
// sub-collection.
type MemberRepository struct {
	db dbtx
}

func NewMemberRepository(pool *pgxpool.Pool) *MemberRepository {
	return &MemberRepository{db: pool}
}

func NewMemberRepositoryWithTx(tx pgx.Tx) *MemberRepository {
	return &MemberRepository{db: tx}
}

// Create inserts a profile row and its nicknames. Run inside a transaction.
func (r *MemberRepository) Create(ctx context.Context, p *domain.CommunityMemberProfile) error {
	if err := domain.ValidateCommunityMemberProfile(p); err != nil {
		return err
	}

	content, err := json.Marshal(p.Content)
	if err != nil {
		return fmt.Errorf("failed to encode profile content: %w", err)
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO community_members (id, title, discord_number_id, content, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.Title, nullableString(p.DiscordNumberID), content, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrEntryIDConflict
		}
		return err
	}

	return r.insertNicknames(ctx, p.ID, p.Nicknames)
}

// Update fully replaces a profile's content and nickname set. This is a
// replace, not a merge: resubmissions supersede the stored profile.
func (r *MemberRepository) Update(ctx context.Context, p *domain.CommunityMemberProfile) error {
	if err := domain.ValidateCommunityMemberProfile(p); err != nil {
		return err
	}

	content, err := json.Marshal(p.Content)
	if err != nil {
		return fmt.Errorf("failed to encode profile content: %w", err)
	}

	cmdTag, err := r.db.Exec(ctx,
		`UPDATE community_members
		 SET title = $1, discord_number_id = $2, content = $3, updated_at = $4
		 WHERE id = $5`,
		p.Title, nullableString(p.DiscordNumberID), content, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrMemberProfileNotFound
	}

	if _, err := r.db.Exec(ctx,
		`DELETE FROM member_nicknames WHERE member_id = $1`, p.ID,
	); err != nil {
		return err
	}
	return r.insertNicknames(ctx, p.ID, p.Nicknames)
}

// GetByID loads a profile and its nicknames
func (r *MemberRepository) GetByID(ctx context.Context, id string) (*domain.CommunityMemberProfile, error) {
	var p domain.CommunityMemberProfile
	var content []byte
	var discordID pgtype.Text
	err := r.db.QueryRow(ctx,
		`SELECT id, title, discord_number_id, content, created_at, updated_at
		 FROM community_members WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Title, &discordID, &content, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMemberProfileNotFound
		}
		return nil, err
	}
	if discordID.Valid {
		p.DiscordNumberID = discordID.String
	}
	if len(content) > 0 {
		if err := json.Unmarshal(content, &p.Content); err != nil {
			return nil, fmt.Errorf("failed to decode profile content: %w", err)
		}
	}

	rows, err := r.db.Query(ctx,
		`SELECT nickname FROM member_nicknames WHERE member_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var nick string
		if err := rows.Scan(&nick); err != nil {
			return nil, err
		}
		p.Nicknames = append(p.Nicknames, nick)
	}
	return &p, rows.Err()
}

// FindByDiscordNumberID returns the id of the profile linked to a Discord
// numeric id, used to route resubmissions to an update instead of a new row
func (r *MemberRepository) FindByDiscordNumberID(ctx context.Context, discordID string) (string, error) {
	var id string
	err := r.db.QueryRow(ctx,
		`SELECT id FROM community_members WHERE discord_number_id = $1`,
		discordID,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrMemberProfileNotFound
		}
		return "", err
	}
	return id, nil
}

// ListIDs returns the ids of every committed profile, used by the
// full-rebuild pass over the vector index
func (r *MemberRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM community_members ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *MemberRepository) insertNicknames(ctx context.Context, memberID string, nicknames []string) error {
	for _, nick := range nicknames {
		if _, err := r.db.Exec(ctx,
			`INSERT INTO member_nicknames (member_id, nickname) VALUES ($1, $2)`,
			memberID, nick,
		); err != nil {
			return err
		}
	}
	return nil
}
