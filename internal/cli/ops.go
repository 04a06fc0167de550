package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"scalable-rag-engine/internal/domain"
	pg "scalable-rag-engine/internal/infra/db/postgres"
)

var askSources bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()
		if err := pg.Migrate(ctx, pool, cfg.Index.Dimension); err != nil {
			return err
		}
		logger.Info().Int("dimension", cfg.Index.Dimension).Msg("schema applied")
		return nil
	},
}

var submitCmd = &cobra.Command{
	Use:   "submit <url>",
	Short: "Submit a URL for ingestion",
	Long: `Submit a URL for ingestion and print the job id.

Examples:
  ragengine submit https://go.dev/doc/effective_go`,
	Args: cobra.ExactArgs(1),
	RunE: runSubmit,
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from the ingested content",
	Long: `Retrieve the closest chunks and ask the configured model to answer
from them only.

Examples:
  ragengine ask "What does effective go say about naming?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Show queued and dead-lettered task counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg, logger, appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()
		queued, dead, err := a.queue.Depth(cmd.Context())
		if err != nil {
			return fmt.Errorf("queue depth: %w", err)
		}
		fmt.Printf("queue %q: %d queued, %d dead-lettered\n", cfg.Queue.Name, queued, dead)
		return nil
	},
}

func init() {
	askCmd.Flags().BoolVarP(&askSources, "sources", "s", true, "print source URLs")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, logger, appOptions{migrate: true})
	if err != nil {
		return err
	}
	defer a.Close()

	job, err := a.submission.Submit(ctx, args[0])
	if err != nil {
		var ce *domain.ConflictError
		if errors.As(err, &ce) {
			return fmt.Errorf("already submitted as job %s (%s)", ce.JobID, ce.Status)
		}
		return err
	}
	fmt.Printf("job %s %s\n", job.ID, job.Status)
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, logger, appOptions{withGenerator: true})
	if err != nil {
		return err
	}
	defer a.Close()

	ans, err := a.query.Answer(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	fmt.Println(ans.Text)
	if askSources && len(ans.Sources) > 0 {
		fmt.Println()
		for _, s := range ans.Sources {
			fmt.Printf("- %s\n", s)
		}
	}
	return nil
}
