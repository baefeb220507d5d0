package admin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/odysseia-chat/worldbook/internal/config"
	"github.com/odysseia-chat/worldbook/internal/openai"
	"github.com/odysseia-chat/worldbook/internal/repository"
	"github.com/odysseia-chat/worldbook/internal/service"
	"github.com/spf13/cobra"
)

// ReindexCmd returns the reindex command
func ReindexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the vector index",
		Long:  "Wipe the chunk collection and re-project every committed entry and member profile",
		RunE:  runReindex,
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runReindex(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	outputFormat, _ := cmd.Flags().GetString("output")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.HasOpenAI() {
		return fmt.Errorf("OPENAI_API_KEY is required to rebuild the index")
	}

	pool, err := getDBPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	generalRepo := repository.NewGeneralKnowledgeRepository(pool)
	memberRepo := repository.NewMemberRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)
	embeddingClient := openai.NewClient(cfg.OpenAIAPIKey)

	indexer := service.NewIndexer(generalRepo, memberRepo, chunkRepo, embeddingClient)

	indexed, failed, err := indexer.RebuildAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to rebuild index: %w", err)
	}

	if outputFormat == "json" {
		data := map[string]interface{}{
			"indexed": indexed,
			"failed":  failed,
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(jsonBytes))
	} else {
		fmt.Printf("Index rebuilt: %d entries indexed, %d failed\n", indexed, failed)
	}

	return nil
}

func getDBPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}
