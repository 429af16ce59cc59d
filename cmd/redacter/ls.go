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
	"github.com/spf13/cobra"
	"github.com/walteh/redacter/pkg/operation"
	"github.com/walteh/redacter/pkg/storage"
	"gitlab.com/tozd/go/errors"
)

func newLsCmd(root *rootOpts) *cobra.Command {
	flags := &filterFlags{}

	cmd := &cobra.Command{
		Use:   "ls [options] <SOURCE>",
		Short: "List the entries cp would copy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := root.loadConfig(ctx)
			if err != nil {
				return err
			}
			flags.apply(cfg, cmd.Flags().Changed)
			if err := cfg.Validate(); err != nil {
				return errors.Errorf("invalid options: %w", err)
			}
			run, err := cfg.Resolve()
			if err != nil {
				return errors.Errorf("invalid options: %w", err)
			}

			src, err := storage.Open(ctx, args[0])
			if err != nil {
				return errors.Errorf("opening source: %w", err)
			}
			defer src.Close(ctx)

			listing, err := operation.List(ctx, src, run.Filter)
			if err != nil {
				return err
			}
			console(cmd).Listing(listing)
			return nil
		},
	}

	flags.register(cmd)

	return cmd
}
