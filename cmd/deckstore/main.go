// Command deckstore runs the presentation storage core: an HTTP server over
// the deck repository plus maintenance verbs for the search index and the
// legacy-format migration.
//
// Exit codes: 0 on success, 1 on any operational error, 2 on usage errors.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/docker/go-metrics"
	gorillahandlers "github.com/gorilla/handlers"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sethwebster/presentations/configuration"
	"github.com/sethwebster/presentations/handlers"
	"github.com/sethwebster/presentations/storage"
	"github.com/sethwebster/presentations/thumbnail"
)

type usageError struct{ err error }

func (u usageError) Error() string { return u.err.Error() }

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "deckstore:", err)
		var usage usageError
		if errors.As(err, &usage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "deckstore",
		Short:         "presentation deck storage core",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return usageError{fmt.Errorf("unknown command %q for %q", args[0], cmd.CommandPath())}
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to yaml configuration (defaults to environment only)")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	root.AddCommand(
		newServeCommand(&configPath),
		newReindexCommand(&configPath),
		newMigrateCommand(&configPath),
		newIndexInfoCommand(&configPath),
	)
	return root
}

func resolveConfiguration(path string) (*configuration.Configuration, error) {
	if path == "" {
		if env := os.Getenv("DECKSTORE_CONFIGURATION_PATH"); env != "" {
			path = env
		}
	}
	if path == "" {
		return configuration.FromEnv(), nil
	}
	fp, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	return configuration.Parse(fp)
}

// setup builds the shared client and facade from configuration.
func setup(configPath string) (*configuration.Configuration, *storage.DeckService, *logrus.Entry, error) {
	config, err := resolveConfiguration(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("configuration error: %w", err)
	}

	level, err := logrus.ParseLevel(string(config.Loglevel))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger := logrus.New()
	logger.SetLevel(level)
	log := logrus.NewEntry(logger)

	redisOpts, err := redis.ParseURL(config.Redis.URL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("redis url: %w", err)
	}
	client := redis.NewClient(redisOpts)

	opts := storage.Options{Prefix: config.Storage.Prefix, Logger: log}
	var renderer thumbnail.Renderer
	if !config.Thumbnails.Disabled {
		renderer = thumbnail.FirstBackground{
			Assets:   storage.NewAssetStore(client, opts),
			Fallback: thumbnail.Placeholder{},
		}
	}
	return config, storage.NewDeckService(client, renderer, opts), log, nil
}

func newServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "serve the deck storage HTTP surface",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			config, service, log, err := setup(*configPath)
			if err != nil {
				return err
			}

			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			mux.Handle("/", gorillahandlers.CombinedLoggingHandler(os.Stdout, handlers.NewApp(service, log)))

			log.WithField("addr", config.HTTP.Addr).Info("listening")
			return http.ListenAndServe(config.HTTP.Addr, mux)
		},
	}
}

func newReindexCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "rebuild the search projection for every stored deck",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, service, _, err := setup(*configPath)
			if err != nil {
				return err
			}
			n, err := service.SearchIndex().ReindexAll(context.Background())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reindexed %d decks\n", n)
			return nil
		},
	}
}

func newMigrateCommand(configPath *string) *cobra.Command {
	var destructive bool

	cmd := &cobra.Command{
		Use:   "migrate <id>...",
		Short: "promote legacy decks to the split schema",
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) < 1 {
				return usageError{errors.New("migrate requires at least one deck id")}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			_, service, log, err := setup(*configPath)
			if err != nil {
				return err
			}

			failed := 0
			for _, id := range args {
				migrated, err := service.MigrateLegacy(context.Background(), id, destructive)
				switch {
				case err != nil:
					failed++
					log.WithField("deck.id", id).WithError(err).Error("migration failed")
				case migrated:
					fmt.Fprintf(cmd.OutOrStdout(), "%s: migrated\n", id)
				default:
					fmt.Fprintf(cmd.OutOrStdout(), "%s: no legacy data\n", id)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d migrations failed", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&destructive, "destructive", false, "delete legacy keys after migrating")
	return cmd
}

func newIndexInfoCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "index-info",
		Short: "print search index statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, service, _, err := setup(*configPath)
			if err != nil {
				return err
			}
			info, err := service.SearchIndex().IndexInfo(context.Background())
			if err != nil {
				return err
			}
			if info == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "no search index (capability absent or index not created)")
				return nil
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		},
	}
}
