package service

import (
	"context"

	"github.com/odysseia-chat/worldbook/internal/domain"
)

// GeneralKnowledgeRepositoryInterface defines the repository interface for
// committed general knowledge entries
type GeneralKnowledgeRepositoryInterface interface {
	Create(ctx context.Context, k *domain.GeneralKnowledge) error
	GetByID(ctx context.Context, id string) (*domain.GeneralKnowledge, error)
	ListIDs(ctx context.Context) ([]string, error)
}

// MemberRepositoryInterface defines the repository interface for community
// member profiles
type MemberRepositoryInterface interface {
	Create(ctx context.Context, p *domain.CommunityMemberProfile) error
	Update(ctx context.Context, p *domain.CommunityMemberProfile) error
	GetByID(ctx context.Context, id string) (*domain.CommunityMemberProfile, error)
	FindByDiscordNumberID(ctx context.Context, discordID string) (string, error)
	ListIDs(ctx context.Context) ([]string, error)
}

// CategoryRepositoryInterface resolves category names to ids
type CategoryRepositoryInterface interface {
	GetOrCreate(ctx context.Context, name string) (int64, error)
}

// IndexJobRepositoryInterface defines the repository interface for the
// indexing outbox
type IndexJobRepositoryInterface interface {
	Create(ctx context.Context, job *domain.IndexJob) error
}

// TxRepositories provides transaction-bound repositories.
type TxRepositories interface {
	GeneralKnowledge() GeneralKnowledgeRepositoryInterface
	Members() MemberRepositoryInterface
	Categories() CategoryRepositoryInterface
	IndexJobs() IndexJobRepositoryInterface
}

// TxRunner executes a function within a transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(repos TxRepositories) error) error
}
