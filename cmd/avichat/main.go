// avichat is a terminal client for the conversation engine: it signs in
// a user, watches the session for a takeover by another device, and runs
// an interactive question loop against the assistant.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/aviationai/chatengine/completion"
	"github.com/aviationai/chatengine/pipeline"
	"github.com/aviationai/chatengine/search"
	"github.com/aviationai/chatengine/session"
	"github.com/aviationai/chatengine/state"
	"github.com/aviationai/chatengine/store"
	"github.com/aviationai/chatengine/vectorstore/qdrant"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "avichat",
		Short: "Interactive aviation exam-prep chat",
		Long: `avichat signs in, loads your conversations, and answers aviation
exam questions. Transcripts persist across restarts when a Supabase
store is configured; a second login for the same user signs this
client out.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

			cfg, err := LoadConfig(configPath)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, logger)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "avichat.yaml", "path to the config file")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	return cmd
}

// buildSessionStore wires the session record store from config.
func buildSessionStore(cfg *Config) (session.Store, error) {
	switch cfg.Session.Type {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Session.RedisAddr,
			Password: cfg.Session.RedisPassword,
		})
		return session.NewStore(session.StoreTypeRedis, session.WithRedisClient(client))
	default:
		return session.NewStore(session.StoreTypeMemory)
	}
}

// buildConversationStore wires the conversation store from config.
func buildConversationStore(cfg *Config) (store.Store, error) {
	switch cfg.Store.Type {
	case "supabase":
		opts := []store.StoreOption{store.WithSupabase(cfg.Store.SupabaseURL, cfg.Store.SupabaseKey)}
		if cfg.Store.Table != "" {
			opts = append(opts, store.WithTable(cfg.Store.Table))
		}
		return store.NewStore(store.StoreTypeSupabase, opts...)
	default:
		return store.NewStore(store.StoreTypeMemory)
	}
}

// buildIndexer wires transcript search when a Qdrant endpoint is
// configured; otherwise search is simply unavailable.
func buildIndexer(cfg *Config, embedder completion.Embedder, logger *slog.Logger) (*search.Indexer, error) {
	if cfg.Search.QdrantURL == "" {
		return nil, nil
	}
	vectors, err := qdrant.New(qdrant.Config{
		URL:            cfg.Search.QdrantURL,
		CollectionName: cfg.Search.Collection,
		APIKey:         cfg.Search.QdrantAPIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: %w", err)
	}
	return search.NewIndexer(embedder, vectors, cfg.UserID, logger), nil
}

func buildPipeline(cfg *Config, conversations store.Store, completer completion.Completer,
	authToken string, indexer *search.Indexer, logger *slog.Logger) *pipeline.Pipeline {
	opts := []pipeline.Option{pipeline.WithLogger(logger)}
	if indexer != nil {
		opts = append(opts, pipeline.WithIndexer(indexer))
	}
	return pipeline.New(state.NewStore(), conversations, completer, cfg.UserID, authToken, opts...)
}
