package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/viper"

	"github.com/Veraticus/the-bill-must-split/internal/common"
	"github.com/Veraticus/the-bill-must-split/internal/config"
	"github.com/Veraticus/the-bill-must-split/internal/engine"
	"github.com/Veraticus/the-bill-must-split/internal/llm"
	"github.com/Veraticus/the-bill-must-split/internal/secrets"
	"github.com/Veraticus/the-bill-must-split/internal/storage"
)

// initStorage opens the database and brings its schema up to date.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(config.DatabasePath(viper.GetViper()))
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

func closeStorage(store *storage.SQLiteStorage) {
	if err := store.Close(); err != nil {
		slog.Error("Failed to close database", "error", err)
	}
}

// keyProvider reads the API key from the key file, then the environment.
func keyProvider() (file *secrets.File, provider secrets.Provider) {
	v := viper.GetViper()
	file = secrets.NewFile(config.SecretsPath(v))
	return file, secrets.WithFallback(file, secrets.NewEnv(config.SecretsEnvVar(v)))
}

// newGeminiClient builds the client and the response cache shared by all
// receipts classified in one invocation.
func newGeminiClient() (*llm.GeminiClient, *llm.ResponseCache, llm.Config, error) {
	cfg := config.LoadLLMConfig(viper.GetViper())
	client, err := llm.NewGeminiClient(cfg, slog.Default())
	if err != nil {
		return nil, nil, cfg, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client, llm.NewResponseCache(cfg.CacheTTL), cfg, nil
}

// parseEngineKind validates an engine name given on the command line or read
// from the database.
func parseEngineKind(s string) (engine.Kind, error) {
	kind, err := engine.ParseKind(s)
	if err != nil {
		return "", common.NewUserError(fmt.Sprintf("unknown engine %q (choose chain or batch)", s), err)
	}
	return kind, nil
}

type engineSettings interface {
	EngineKind(ctx context.Context) (string, error)
}

// resolveEngineKind picks the engine: the flag, then the persisted
// selection, then engine.kind from the config.
func resolveEngineKind(ctx context.Context, settings engineSettings, flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}

	kind, err := settings.EngineKind(ctx)
	switch {
	case err == nil && kind != "":
		return kind, nil
	case err == nil, errors.Is(err, common.ErrNotFound):
		return viper.GetString("engine.kind"), nil
	default:
		return "", fmt.Errorf("failed to read engine selection: %w", err)
	}
}
