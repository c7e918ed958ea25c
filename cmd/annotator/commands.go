package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"turn-annotator/internal/application/port/input"
	"turn-annotator/internal/di"
	"turn-annotator/internal/domain/entity"
	"turn-annotator/internal/infrastructure/env"
	"turn-annotator/internal/infrastructure/httpapi"
	"turn-annotator/internal/infrastructure/prompts"
)

type rootOptions struct {
	tasksFile      string
	dbPath         string
	transcriptPath string
	logDir         string
	verbose        bool
}

func newRootCmd() *cobra.Command {
	envService := env.NewEnvService("ANNOTATOR")
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "annotator",
		Short:         "Run annotation tasks on conversation turns",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.tasksFile, "tasks", envService.GetWithDefault("TASKS_FILE", "tasks.yaml"), "Task settings file")
	root.PersistentFlags().StringVar(&opts.dbPath, "db", envService.GetWithDefault("DB", "annotator.db"), "Result database; empty disables persistence")
	root.PersistentFlags().StringVar(&opts.transcriptPath, "transcript", envService.GetWithDefault("TRANSCRIPT", "transcript.json"), "Transcript JSON file")
	root.PersistentFlags().StringVar(&opts.logDir, "log-dir", envService.GetWithDefault("LOG_DIR", "log"), "Directory for log files")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", envService.GetBool("VERBOSE", false), "Enable debug logging")

	root.AddCommand(
		newRunCmd(envService, opts),
		newRunTaskCmd(envService, opts),
		newServeCmd(envService, opts),
		newTasksCmd(envService, opts),
		newResultsCmd(envService, opts),
	)
	return root
}

func containerConfig(envService *env.EnvService, opts *rootOptions, cmd *cobra.Command) di.Config {
	cfg := di.Config{
		TasksFile:      opts.tasksFile,
		DBPath:         opts.dbPath,
		TranscriptPath: opts.transcriptPath,
		APIKey:         envService.Get("API_KEY"),
		Model:          envService.Get("MODEL"),
		Provider:       entity.Provider(envService.Get("PROVIDER")),
		BaseURL:        envService.Get("BASE_URL"),
		LogDir:         opts.logDir,
		LogStderr:      envService.GetBool("LOG_STDERR", false),
		Verbose:        opts.verbose,
		Output:         cmd.OutOrStdout(),
	}
	if envService.Get("ENABLED") != "" {
		enabled := envService.GetBool("ENABLED", true)
		cfg.Enabled = &enabled
	}
	return cfg
}

func withContainer(envService *env.EnvService, opts *rootOptions, cmd *cobra.Command, fn func(c *di.Container) error) error {
	c, err := di.NewContainer(cmd.Context(), containerConfig(envService, opts, cmd))
	if err != nil {
		return err
	}
	defer c.Close()

	if files := envService.LoadedFiles(); len(files) > 0 {
		c.Logger.Debug("Environment loaded", "files", files)
	}
	return fn(c)
}

func newRunCmd(envService *env.EnvService, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run all enabled tasks on the latest assistant turn",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(envService, opts, cmd, func(c *di.Container) error {
				batch, ok := c.Events.ProcessLatest(cmd.Context())
				if !ok {
					return errors.New("transcript has no assistant turn")
				}
				return finishBatch(cmd, c, batch)
			})
		},
	}
}

func newRunTaskCmd(envService *env.EnvService, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run-task <task-id>",
		Short: "Run one task on the latest assistant turn",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(envService, opts, cmd, func(c *di.Container) error {
				batch, ok, err := c.Events.ProcessLatestOne(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !ok {
					return errors.New("transcript has no assistant turn")
				}
				return finishBatch(cmd, c, batch)
			})
		},
	}
}

func finishBatch(cmd *cobra.Command, c *di.Container, batch input.BatchResult) error {
	if batch.Skipped {
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing to run: annotations are disabled, unconfigured, or have no enabled tasks.")
		return nil
	}
	if err := c.SaveTranscript(); err != nil {
		return fmt.Errorf("save transcript: %w", err)
	}

	failed := 0
	for _, r := range batch.Results {
		if !r.Succeeded() {
			failed++
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nTurn %d: %d task(s), %d failed\n", batch.TurnIndex, len(batch.Results), failed)
	return nil
}

func newServeCmd(envService *env.EnvService, opts *rootOptions) *cobra.Command {
	var addr string
	var accessLog bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept transcript events over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(envService, opts, cmd, func(c *di.Container) error {
				server := httpapi.NewServer(
					httpapi.Config{
						Addr:               addr,
						AccessLog:          accessLog,
						OnTranscriptChange: c.SaveTranscript,
					},
					c.Events,
					c.Transcript,
					c.Results,
					c.Settings,
					c.Logger.Named("http"),
				)

				g, ctx := errgroup.WithContext(cmd.Context())
				g.Go(func() error {
					return c.Loader.Watch(ctx)
				})
				g.Go(func() error {
					return server.Run(ctx)
				})
				return g.Wait()
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", envService.GetWithDefault("ADDR", "127.0.0.1:8080"), "Listen address")
	cmd.Flags().BoolVar(&accessLog, "access-log", true, "Log every HTTP request")
	return cmd
}

func newTasksCmd(envService *env.EnvService, opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Manage annotation tasks",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List configured tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(envService, opts, cmd, func(c *di.Container) error {
				out := cmd.OutOrStdout()
				for _, t := range c.Settings.Settings().Tasks {
					flags := []string{string(t.RenderPosition)}
					if !t.Enabled {
						flags = append(flags, "disabled")
					}
					if t.WriteToContext {
						flags = append(flags, "writes-to-turn")
					}
					fmt.Fprintf(out, "%s\t%s\t[%s]\n", t.ID, t.Name, strings.Join(flags, ", "))
				}
				return nil
			})
		},
	}

	var name string
	var writeToContext, above bool
	add := &cobra.Command{
		Use:   "new",
		Short: "Add a task with the default prompts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(envService, opts, cmd, func(c *di.Container) error {
				task := prompts.NewTask()
				if name != "" {
					task.Name = name
				}
				task.WriteToContext = writeToContext
				if above {
					task.RenderPosition = entity.RenderAbove
				}

				if err := c.Loader.AddTask(task); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), task.ID)
				return nil
			})
		},
	}
	add.Flags().StringVar(&name, "name", "", "Task name")
	add.Flags().BoolVar(&writeToContext, "write-to-context", false, "Splice the result into the turn text")
	add.Flags().BoolVar(&above, "above", false, "Render the result above the turn")

	remove := &cobra.Command{
		Use:   "remove <task-id>",
		Short: "Remove a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(envService, opts, cmd, func(c *di.Container) error {
				if err := c.Loader.RemoveTask(args[0]); err != nil {
					return err
				}
				c.Results.DeleteTask(args[0])
				if c.Store == nil {
					return nil
				}
				return c.Store.Save(cmd.Context(), c.Transcript.ID(), c.Results.Snapshot())
			})
		},
	}

	cmd.AddCommand(list, add, remove)
	return cmd
}

func newResultsCmd(envService *env.EnvService, opts *rootOptions) *cobra.Command {
	var clearAll bool
	cmd := &cobra.Command{
		Use:   "results",
		Short: "Show saved results for the transcript",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(envService, opts, cmd, func(c *di.Container) error {
				if clearAll {
					if c.Store != nil {
						if err := c.Store.Delete(cmd.Context(), c.Transcript.ID()); err != nil {
							return err
						}
					}
					fmt.Fprintln(cmd.OutOrStdout(), "Results cleared.")
					return nil
				}
				if len(c.Results.TurnIndices()) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No results yet.")
					return nil
				}
				c.Display.RefreshAnnotations(cmd.Context())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&clearAll, "clear", false, "Delete the saved results instead of showing them")
	return cmd
}
