package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"coredetect/application/commands"
	"coredetect/infrastructure/config"
	"coredetect/infrastructure/di"
	"coredetect/pkg/auth"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type rootOptions struct {
	configFile string
	storage    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "coredetect",
		Short:         "Find the core user of a social network community",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "YAML config file (overrides CONFIG_FILE)")
	root.PersistentFlags().StringVar(&opts.storage, "storage", "", "storage backend: dynamodb or memory")

	root.AddCommand(newDetectCmd(opts), newDownloadTweetsCmd(opts), newTokenCmd(opts))
	return root
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	if o.configFile != "" {
		if err := os.Setenv("CONFIG_FILE", o.configFile); err != nil {
			return nil, err
		}
	}
	if o.storage != "" {
		if err := os.Setenv("STORAGE", o.storage); err != nil {
			return nil, err
		}
	}
	return config.LoadConfig()
}

// withContainer runs fn with a wired container and a context cancelled on SIGINT or SIGTERM
func (o *rootOptions) withContainer(fn func(ctx context.Context, c *di.Container) error) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	// The CLI never reloads its config
	cfg.HotReload = false
	cfg.ConfigFile = ""

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container, cleanup, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	return fn(ctx, container)
}

func newDetectCmd(root *rootOptions) *cobra.Command {
	var cmd commands.DetectCoreCommand

	c := &cobra.Command{
		Use:   "detect",
		Short: "Run core detection from a seed user",
		Example: `  coredetect detect --seed 12
  coredetect detect --screen-name jack --max-iterations 10 --skip-download`,
		RunE: func(c *cobra.Command, args []string) error {
			cmd.RequestedBy = "cli"
			return root.withContainer(func(ctx context.Context, container *di.Container) error {
				result, err := container.CommandBus.Send(ctx, cmd)
				if err != nil {
					container.Logger.Error("Detection failed", zap.Error(err))
					return err
				}
				return printJSON(c, result)
			})
		},
	}
	c.Flags().StringVar(&cmd.SeedUserID, "seed", "", "seed user id")
	c.Flags().StringVar(&cmd.ScreenName, "screen-name", "", "seed user screen name")
	c.Flags().IntVar(&cmd.MaxIterations, "max-iterations", 0, "iteration cap (0 uses the configured default)")
	c.Flags().BoolVar(&cmd.SkipDownload, "skip-download", false, "reuse stored users, friends and neighbourhoods")
	c.MarkFlagsMutuallyExclusive("seed", "screen-name")
	c.MarkFlagsOneRequired("seed", "screen-name")
	return c
}

func newDownloadTweetsCmd(root *rootOptions) *cobra.Command {
	var cmd commands.DownloadNeighbourhoodTweetsCommand

	c := &cobra.Command{
		Use:   "download-tweets",
		Short: "Download tweets for every member of a stored neighbourhood",
		RunE: func(c *cobra.Command, args []string) error {
			return root.withContainer(func(ctx context.Context, container *di.Container) error {
				result, err := container.CommandBus.Send(ctx, cmd)
				if err != nil {
					return err
				}
				return printJSON(c, result)
			})
		},
	}
	c.Flags().StringVar(&cmd.UserID, "user", "", "user id whose neighbourhood is downloaded")
	_ = c.MarkFlagRequired("user")
	return c
}

func newTokenCmd(root *rootOptions) *cobra.Command {
	var (
		userID string
		email  string
		roles  string
		ttl    time.Duration
	)

	c := &cobra.Command{
		Use:   "token",
		Short: "Issue an API token signed with JWT_SECRET",
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return fmt.Errorf("JWT_SECRET is not set")
			}
			validator, err := auth.NewJWTValidator(auth.JWTConfig{
				SecretKey: cfg.JWTSecret,
				Issuer:    cfg.JWTIssuer,
				Audience:  splitList(cfg.JWTAudience),
				TTL:       ttl,
			})
			if err != nil {
				return err
			}
			token, err := validator.GenerateToken(userID, email, splitList(roles))
			if err != nil {
				return err
			}
			fmt.Fprintln(c.OutOrStdout(), token)
			return nil
		},
	}
	c.Flags().StringVar(&userID, "user", "", "token subject")
	c.Flags().StringVar(&email, "email", "", "token email claim")
	c.Flags().StringVar(&roles, "roles", "analyst", "comma separated roles")
	c.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = c.MarkFlagRequired("user")
	return c
}

func printJSON(c *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(c.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
