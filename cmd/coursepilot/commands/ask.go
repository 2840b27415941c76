package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KP1729/coursepilot/internal/embedder"
	"github.com/KP1729/coursepilot/internal/logging"
	"github.com/KP1729/coursepilot/internal/orchestrator"
	"github.com/KP1729/coursepilot/internal/provider"
	"github.com/KP1729/coursepilot/internal/session"
)

// NewAskCmd constructs the `coursepilot ask` command, which sends a single
// natural language question through the assistant and prints the answer with
// its cited sources.
func NewAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question about your ingested course materials",
		Long: `Ask the assistant a natural language question about ingested courses.

The assistant searches the course content, answers from what it finds, and
cites the courses and lessons the answer drew on.

Examples:
  coursepilot ask "what does lesson 3 of the MCP course cover?"
  coursepilot ask "how do embeddings work?"
  coursepilot ask "show me the outline of the Chroma course"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if err := embedder.ValidateForSearch(log); err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			chatModel, err := provider.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("ask: failed to initialise model provider: %w", err)
			}

			stack, closeStack, err := buildSearchStack(ctx, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer closeStack()

			retriever, err := stack.newRetriever()
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			orch, err := orchestrator.New(&orchestrator.Config{
				ChatModel: chatModel,
				Searcher:  retriever,
				Resolver:  retriever,
				Outlines:  stack.catalog,
				Sessions:  session.NewStore(getEnvInt("SESSION_MAX_EXCHANGES", 0)),
			})
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			question := strings.Join(args, " ")
			ans, err := orch.Answer(ctx, question, "")
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, ans.Text)
			if len(ans.Sources) > 0 {
				fmt.Fprintln(out, "\nSources:")
				for _, src := range ans.Sources {
					line := "  " + src.CourseTitle
					if src.Lesson != nil {
						line += fmt.Sprintf(" - Lesson %d", *src.Lesson)
					}
					if src.Link != "" {
						line += " (" + src.Link + ")"
					}
					fmt.Fprintln(out, line)
				}
			}
			return nil
		},
	}

	return cmd
}
