package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/KP1729/coursepilot/internal/embedder"
	"github.com/KP1729/coursepilot/internal/logging"
	"github.com/KP1729/coursepilot/internal/orchestrator"
	"github.com/KP1729/coursepilot/internal/provider"
	"github.com/KP1729/coursepilot/internal/server"
	"github.com/KP1729/coursepilot/internal/session"
	"github.com/KP1729/coursepilot/internal/tracing"
)

// NewServeCmd constructs the `coursepilot serve` command, which starts the
// HTTP server exposing the query and course listing API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the CoursePilot HTTP server",
		Long: `Start the CoursePilot HTTP server on localhost.

The server exposes POST /api/query for question answering, GET /api/courses
for the course listing, and /api/health, /api/ready, and /metrics for
operations.

Examples:
  coursepilot serve
  coursepilot serve --port 9090
  MODEL_PROVIDER=azure coursepilot serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Setup Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			if err := embedder.ValidateForSearch(log); err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			providerCfg := provider.ConfigFromEnv()
			chatModel, err := provider.New(ctx, providerCfg)
			if err != nil {
				return fmt.Errorf("serve: failed to initialise model provider: %w", err)
			}
			log.Info("provider initialised", slog.String("provider", string(providerCfg.Backend)))

			stack, closeStack, err := buildSearchStack(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer closeStack()

			retriever, err := stack.newRetriever()
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			sessions := session.NewStore(getEnvInt("SESSION_MAX_EXCHANGES", 0))
			orch, err := orchestrator.New(&orchestrator.Config{
				ChatModel: chatModel,
				Searcher:  retriever,
				Resolver:  retriever,
				Outlines:  stack.catalog,
				Sessions:  sessions,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to initialise orchestrator: %w", err)
			}

			pingers := []server.Pinger{
				server.NewLLMPinger(chatModel, string(providerCfg.Backend)),
				server.NewQdrantPinger(stack.content),
				server.NewCatalogPinger(stack.catalog),
			}

			if host == "" {
				host = getEnvOrDefault("SERVER_HOST", "127.0.0.1")
			}
			if port == 0 {
				port = getEnvInt("SERVER_PORT", 8080)
			}

			srv, err := server.New(orch, stack.catalog, &server.Config{
				Host:     host,
				Port:     port,
				Logger:   log,
				Pingers:  pingers,
				APIKey:   os.Getenv("COURSEPILOT_API_KEY"),
				Sessions: sessions,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Host address to bind to (default: $SERVER_HOST or 127.0.0.1)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "TCP port to listen on (default: $SERVER_PORT or 8080)")

	return cmd
}
