package cli

import (
	"context"
	"fmt"

	"bjs/parser/internal/config"
	"bjs/parser/internal/container"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries the state shared by the commands of one invocation
type app struct {
	configPath string
	config     *config.Config
}

// NewRootCommand builds the bjsparser command tree
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "bjsparser",
		Short:         "bjsparser downloads the BJ's inventory and loads it into a category tree database.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.config = cfg
			return setupLogging(cfg.Log)
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default ./config.yaml)")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("log.level", root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(
		a.downloadCommand(),
		a.populateCommand(),
		a.syncCommand(),
		a.walkCommand(),
	)
	return root
}

// Execute runs the command line with args and returns the error that ended it
func Execute(ctx context.Context, args []string) error {
	root := NewRootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func (a *app) downloadCommand() *cobra.Command {
	var resume bool

	cmd := &cobra.Command{
		Use:   "download [inventory]",
		Short: "Download every search API record into an inventory snapshot.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withContainer(func(c *container.Container) error {
				_, err := c.Download(cmd.Context(), optionalArg(args, 0), resume)
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&resume, "resume", false, "continue from an existing snapshot")
	return cmd
}

func (a *app) populateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "populate <database> <inventory>",
		Short: "Load an inventory snapshot into the category and product tables.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withContainer(func(c *container.Container) error {
				_, err := c.Populate(cmd.Context(), args[0], args[1])
				return err
			})
		},
	}
}

func (a *app) syncCommand() *cobra.Command {
	var resume bool

	cmd := &cobra.Command{
		Use:   "sync <database> <inventory>",
		Short: "Download the inventory and load it into the database.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withContainer(func(c *container.Container) error {
				_, err := c.Sync(cmd.Context(), args[0], args[1], resume)
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&resume, "resume", false, "continue from an existing snapshot")
	return cmd
}

func (a *app) walkCommand() *cobra.Command {
	var database string

	cmd := &cobra.Command{
		Use:   "walk [inventory]",
		Short: "Collect the inventory by walking the store's category pages in a browser.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withContainer(func(c *container.Container) error {
				_, err := c.Walk(cmd.Context(), optionalArg(args, 0), database)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&database, "populate", "", "also load the result into this database")
	return cmd
}

func (a *app) withContainer(run func(c *container.Container) error) error {
	c := container.New(a.config)
	defer func() {
		if err := c.Close(); err != nil {
			log.Warnf("Failed to release resources: %v", err)
		}
	}()
	return run(c)
}

func setupLogging(cfg config.LogConfig) error {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	log.SetLevel(level)

	switch cfg.Format {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		return fmt.Errorf("unsupported log format %q", cfg.Format)
	}
	return nil
}

func optionalArg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}
