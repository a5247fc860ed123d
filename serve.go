package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tanpawarit/atelier-storefront/pkg/algolia"
	configx "github.com/tanpawarit/atelier-storefront/pkg/config"
	logx "github.com/tanpawarit/atelier-storefront/pkg/logger"
	openrouterx "github.com/tanpawarit/atelier-storefront/pkg/openrouter"
	qstashx "github.com/tanpawarit/atelier-storefront/pkg/qstash"
	"github.com/tanpawarit/atelier-storefront/storefront/api"
	"github.com/tanpawarit/atelier-storefront/storefront/contract"
	"github.com/tanpawarit/atelier-storefront/storefront/session"
	"github.com/tanpawarit/atelier-storefront/storefront/summary"
	"github.com/tanpawarit/atelier-storefront/storefront/tool"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the storefront HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	// Re-init now that --env is known.
	logCfg, err := configx.New[logx.Config]("LOG")
	if err != nil {
		return fmt.Errorf("load log config: %w", err)
	}
	logx.Init(*logCfg)
	if !logCfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	appCfg, err := configx.New[AppConfig]("")
	if err != nil {
		return fmt.Errorf("load app config: %w", err)
	}
	algoliaCfg, err := configx.New[algolia.Config]("ALGOLIA")
	if err != nil {
		return fmt.Errorf("load algolia config: %w", err)
	}
	client, err := algolia.NewClient(*algoliaCfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summarizer, err := newSummarizer(ctx, appCfg.SummaryBackend, client)
	if err != nil {
		return err
	}
	store, err := newSessionStore(ctx, appCfg.SessionStore)
	if err != nil {
		return err
	}
	forwarder, err := newForwarder(appCfg.ToolResultTopic)
	if err != nil {
		return err
	}

	manager := session.NewManager(session.Config{
		IndexName:     client.IndexName(),
		HitsPerPage:   appCfg.HitsPerPage,
		SearchTimeout: appCfg.SearchTimeout,
		Bridge: tool.BridgeConfig{
			ResultLimit:   appCfg.ToolResultLimit,
			SettleTimeout: appCfg.SearchSettleTimeout,
		},
		Summary: summary.Config{
			Debounce:          appCfg.SummaryDebounce,
			RequestsPerMinute: appCfg.SummaryPerMinute,
		},
	}, session.Deps{
		Backend:    client,
		Catalog:    client,
		Summarizer: summarizer,
		Forwarder:  forwarder,
		Store:      store,
	})

	server := api.NewServer(manager, client, api.Options{SettleWait: appCfg.SearchSettleTimeout})
	httpServer := &http.Server{
		Addr:              appCfg.HTTPAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", appCfg.HTTPAddr).Str("index", client.IndexName()).Msg("storefront api listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), appCfg.ShutdownTimeout)
		defer cancel()

		log.Info().Msg("shutting down")
		return errors.Join(
			httpServer.Shutdown(shutdownCtx),
			manager.Shutdown(shutdownCtx),
		)
	})
	return g.Wait()
}

func newSummarizer(ctx context.Context, backend string, client *algolia.Client) (contract.Summarizer, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", "agent":
		return summary.NewAgentSummarizer(client, summary.DefaultTopHits), nil
	case "llm":
		cfg, err := configx.New[openrouterx.Config]("OPENROUTER")
		if err != nil {
			return nil, fmt.Errorf("load openrouter config: %w", err)
		}
		chatModel, err := cfg.New(ctx)
		if err != nil {
			return nil, err
		}
		return summary.NewChatModelSummarizer(ctx, chatModel, summary.DefaultTopHits)
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown summary backend %q", backend)
	}
}

func newSessionStore(ctx context.Context, kind string) (session.Store, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "memory":
		return session.NewMemoryStore(), nil
	case "redis":
		cfg, err := configx.New[session.RedisConfig]("REDIS")
		if err != nil {
			return nil, fmt.Errorf("load redis config: %w", err)
		}
		store, err := session.NewRedisStore(*cfg)
		if err != nil {
			return nil, err
		}
		if err := store.Ping(ctx); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		return store, nil
	case "upstash":
		cfg, err := configx.New[session.UpstashRedisConfig]("UPSTASH_REDIS")
		if err != nil {
			return nil, fmt.Errorf("load upstash redis config: %w", err)
		}
		return session.NewUpstashRedisStore(*cfg)
	default:
		return nil, fmt.Errorf("unknown session store %q", kind)
	}
}

// newForwarder returns nil when no destination is configured.
func newForwarder(destination string) (tool.Forwarder, error) {
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return nil, nil
	}
	cfg, err := configx.New[qstashx.Config]("QSTASH")
	if err != nil {
		return nil, fmt.Errorf("load qstash config: %w", err)
	}
	client, err := qstashx.NewClient(*cfg)
	if err != nil {
		return nil, err
	}
	return tool.NewQStashForwarder(client, destination), nil
}
