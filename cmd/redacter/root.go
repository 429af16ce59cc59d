// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/redacter/pkg/config"
	"github.com/walteh/redacter/pkg/log"
	"gitlab.com/tozd/go/errors"
)

// errEntriesFailed marks a completed run with at least one failed entry
var errEntriesFailed = errors.Base("one or more entries failed")

type rootOpts struct {
	configFile string
	dotenv     []string
	debug      bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOpts{}

	cmd := &cobra.Command{
		Use:   "redacter",
		Short: "Copy files between storage backends, redacting sensitive data on the way",
		Long: `redacter copies files between local paths, S3, GCS, zip archives and the
clipboard. Entries can be sent through one or more DLP backends (presidio,
openai, comprehend, gcp-dlp); detected sensitive spans are masked before
the entry is written.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogging(cmd.ErrOrStderr(), opts.debug)
			cmd.SetContext(logger.WithContext(cmd.Context()))
			return nil
		},
	}

	addRootFlags(cmd, opts)

	cmd.AddCommand(
		newCpCmd(opts),
		newLsCmd(opts),
		newVersionCmd(),
	)

	return cmd
}

func addRootFlags(cmd *cobra.Command, opts *rootOpts) {
	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "run configuration file (.yaml, .json, .toml or .hcl)")
	cmd.PersistentFlags().StringArrayVar(&opts.dotenv, "env-file", nil, "dotenv file to load before reading credentials (default ./.env when present)")
	cmd.PersistentFlags().BoolVarP(&opts.debug, "debug", "d", false, "enable debug logging")
}

// setupLogging installs the structured logger. Console output goes through
// pkg/log; zerolog only carries diagnostics, so it stays quiet by default.
func setupLogging(w io.Writer, debug bool) zerolog.Logger {
	level := zerolog.WarnLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	logger := zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: !log.IsTerminal(w)}).
		With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &logger
	return logger
}

// loadConfig reads --config or starts from an empty configuration
func (o *rootOpts) loadConfig(ctx context.Context) (*config.Config, error) {
	if o.configFile == "" {
		return &config.Config{}, nil
	}
	if _, err := os.Stat(o.configFile); err != nil {
		return nil, errors.Errorf("config file: %w", err)
	}
	cfg, err := config.Load(ctx, o.configFile)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// console builds the user-facing logger for a command
func console(cmd *cobra.Command) *log.Logger {
	return log.New(cmd.OutOrStdout(), *zerolog.Ctx(cmd.Context()))
}
