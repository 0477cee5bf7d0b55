package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"NewsCaster/internal/app"
	"NewsCaster/internal/domain"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP triggers, scheduled jobs and audio workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app.Application) error {
				if err := a.Migrate(cmd.Context()); err != nil {
					return err
				}
				return a.Serve(cmd.Context())
			})
		},
	}
}

func newIngestCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Run one collection pass over the configured sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app.Application) error {
				report, err := a.Ingest(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "processed %d, inserted %d, duplicates %d, failed %d\n",
					report.Processed(), report.Inserted, report.Duplicates, report.Failed)
				return nil
			})
		},
	}
}

func newAssembleCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "assemble",
		Short: "Render and publish the podcast feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app.Application) error {
				report, err := a.Assembler.Assemble(cmd.Context())
				if errors.Is(err, domain.ErrNoEpisodes) {
					fmt.Fprintln(cmd.OutOrStdout(), "no eligible episodes; published feed left unchanged")
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "published %d episodes to %s\n", report.Episodes, report.URL)
				return nil
			})
		},
	}
}

func newWorkCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "work",
		Short: "Consume audio tasks from the Redis queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app.Application) error {
				return a.Work(cmd.Context())
			})
		},
	}
}

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "generate <article-id>",
		Short: "Generate audio for one article",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app.Application) error {
				res, err := a.Worker.Generate(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s %s\n", res.ArticleID, res.Outcome, res.Artifact.URL)
				return nil
			})
		},
	}
}

func newEpisodesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "episodes",
		Short: "List the episodes the next feed would contain",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app.Application) error {
				episodes, err := a.Episodes(cmd.Context())
				if err != nil {
					return err
				}
				if len(episodes) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no eligible episodes")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderEpisodes(episodes))
				return nil
			})
		},
	}
}

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app.Application) error {
				if err := a.Migrate(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
				return nil
			})
		},
	}
}
