package main

import (
	"errors"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jrsteele09/go-auth-refresher/internal/config"
)

func main() {
	if err := run(); err != nil {
		log.Error().Err(err).Msg("refresher stopped")
		os.Exit(1)
	}
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	return newRootCmd(config.New()).Execute()
}

func newRootCmd(cfg config.Config) *cobra.Command {
	var logLevel string
	var quiet bool

	cmd := &cobra.Command{
		Use:           "refresher",
		Short:         "Keep an API console's OAuth2 authorization alive",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := setupLogger(cfg.GetEnv(), logLevel, os.Stderr); err != nil {
				return err
			}
			if !quiet {
				displayAppname(cfg.GetAppName())
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", cfg.GetLogLevel(), "Log level (trace, debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Do not print the banner")

	cmd.AddCommand(newRunCmd(cfg))
	cmd.AddCommand(newServeCmd(cfg))
	return cmd
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
