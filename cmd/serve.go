/***************************************************************
 *
 * Copyright (C) 2026, Pelican Project, Morgridge Institute for Research
 *
 * Licensed under the Apache License, Version 2.0 (the "License"); you
 * may not use this file except in compliance with the License.  You may
 * obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 ***************************************************************/

package main

import (
	"github.com/spf13/cobra"

	"github.com/mediadeck/mediadeck/launchers"
)

var (
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the signed URL web API",
		Long: `Start the signed URL service.  It signs object references against the
storage backend configured by Storage.Url and exposes lookup, batch,
prefetch and invalidation endpoints under /api/v1.0/signed-urls.`,
		RunE: serveMain,
	}
)

func init() {
	serveCmd.Flags().AddFlag(portFlag)
}

func serveMain(cmd *cobra.Command, args []string) error {
	// The server keeps running on the errgroup in the command context;
	// Execute waits on it.
	cancel, err := launchers.LaunchServer(cmd.Context())
	if err != nil {
		cancel()
	}
	return err
}
