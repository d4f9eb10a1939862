package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/rflorenc/mesh-workbench/internal/config"
	"github.com/rflorenc/mesh-workbench/internal/controlplane"
	"github.com/rflorenc/mesh-workbench/internal/logger"
	"github.com/rflorenc/mesh-workbench/internal/models"
)

var VERSION = "0.0.0-dev.0"

var rootCmd = &cobra.Command{
	Use:           "meshctl",
	Version:       VERSION,
	SilenceUsage:  true,
	SilenceErrors: true,
	Short:         "Browse the resources of a Kuma control plane page by page.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Initialize the console logger only if one wasn't provided.
		if log.IsZero() {
			log = logger.NewConsoleLogger(rootArgs.prettyLog, rootArgs.verbosity)
		}
		cmd.SetContext(logr.NewContext(context.Background(), log))
	},
}

type rootFlags struct {
	url       string
	token     string
	insecure  bool
	timeout   time.Duration
	prettyLog bool
	verbosity int
}

var (
	rootArgs = rootFlags{
		url:     "http://localhost:5681",
		timeout: 30 * time.Second,
	}
	log logr.Logger
)

func init() {
	if env, err := config.ReadEnvConnection(); err == nil {
		if env.URL != "" {
			rootArgs.url = env.URL
		}
		rootArgs.token = env.Token
		rootArgs.insecure = env.Insecure
	}

	rootCmd.PersistentFlags().StringVar(&rootArgs.url, "cp-url", rootArgs.url,
		"The control plane API URL, defaults to $KUMA_CP_URL.")
	rootCmd.PersistentFlags().StringVar(&rootArgs.token, "token", rootArgs.token,
		"The user token sent as a bearer token, defaults to $KUMA_CP_TOKEN.")
	rootCmd.PersistentFlags().BoolVar(&rootArgs.insecure, "insecure", rootArgs.insecure,
		"If true, the control plane certificate is not verified.")
	rootCmd.PersistentFlags().DurationVar(&rootArgs.timeout, "timeout", rootArgs.timeout,
		"The length of time to wait before giving up on the current operation.")
	rootCmd.PersistentFlags().BoolVar(&rootArgs.prettyLog, "log-pretty", rootArgs.prettyLog,
		"Adds timestamps and colorized output to the logs.")
	rootCmd.PersistentFlags().IntVarP(&rootArgs.verbosity, "verbose", "v", rootArgs.verbosity,
		"Log verbosity, 1 shows requests and discovery details.")

	rootCmd.DisableAutoGenTag = true
	rootCmd.SetOut(color.Output)
	rootCmd.SetErr(color.Error)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if log.IsZero() {
			log = logger.NewConsoleLogger(rootArgs.prettyLog, rootArgs.verbosity)
		}
		log.Error(nil, err.Error())
		os.Exit(1)
	}
}

// newControlPlane connects to the control plane named by the root flags and
// discovers its version and mode, which gate the browsable resource types.
func newControlPlane(ctx context.Context) (*controlplane.Kuma, error) {
	conn := &models.Connection{Token: rootArgs.token, Insecure: rootArgs.insecure}
	if err := conn.SetURL(rootArgs.url); err != nil {
		return nil, err
	}
	client := controlplane.NewClient(conn, controlplane.WithTimeout(rootArgs.timeout))
	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("control plane %s unreachable: %w", client.BaseURL(), err)
	}
	controlplane.DiscoverAndStore(ctx, client, conn, nil, log.V(1))
	return controlplane.NewKuma(client, conn.Version, conn.IsGlobal()), nil
}
