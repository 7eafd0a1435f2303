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
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mediadeck/mediadeck/launchers"
	"github.com/mediadeck/mediadeck/server_structs"
	"github.com/mediadeck/mediadeck/signed_url"
)

var (
	urlCmd = &cobra.Command{
		Use:   "url",
		Short: "Sign object references from the command line",
	}

	urlGetCmd = &cobra.Command{
		Use:   "get <bucket> <path>",
		Short: "Print a signed URL for one object",
		Example: `# Sign a video for two hours
mediadeck url get media clips/intro.mp4 --ttl 2h`,
		Args: cobra.ExactArgs(2),
		RunE: urlGetMain,
	}

	urlBatchCmd = &cobra.Command{
		Use:   "batch <bucket>/<path> [<bucket>/<path> ...]",
		Short: "Sign several objects at once",
		Long: `Sign several objects at once.  Each failure is reported next to its
object; the command fails if any object could not be signed.`,
		Example: `mediadeck url batch thumbnails/a.jpg thumbnails/b.jpg media/clips/intro.mp4`,
		Args:    cobra.MinimumNArgs(1),
		RunE:    urlBatchMain,
	}

	urlTTL time.Duration
)

func init() {
	urlCmd.PersistentFlags().DurationVar(&urlTTL, "ttl", 0, "Requested lifetime of the signed URL; defaults to SignedUrl.DefaultExpiry")
	urlCmd.AddCommand(urlGetCmd)
	urlCmd.AddCommand(urlBatchCmd)
}

// parseObjectArg splits "bucket/path/to/object" at the first slash.
func parseObjectArg(arg string) (signed_url.Item, error) {
	bucket, objectPath, found := strings.Cut(arg, "/")
	if !found || bucket == "" || objectPath == "" {
		return signed_url.Item{}, errors.Errorf("%q is not of the form <bucket>/<path>", arg)
	}
	return signed_url.Item{Bucket: bucket, Path: objectPath, TTL: urlTTL}, nil
}

// withCoordinator runs fn against a coordinator built from the current
// configuration and tears it down afterwards.
func withCoordinator(ctx context.Context, fn func(*signed_url.Coordinator) error) error {
	ctx, cancel := context.WithCancel(ctx)
	egrp := &errgroup.Group{}
	defer func() {
		cancel()
		if err := egrp.Wait(); err != nil {
			log.Debugln("Error while stopping the signed URL service:", err)
		}
	}()

	coordinator, _, err := launchers.SignedUrlServe(ctx, egrp)
	if err != nil {
		return err
	}
	return fn(coordinator)
}

func urlGetMain(cmd *cobra.Command, args []string) error {
	return withCoordinator(cmd.Context(), func(coordinator *signed_url.Coordinator) error {
		signed, err := coordinator.Lookup(cmd.Context(), args[0], args[1], urlTTL)
		if err != nil {
			return errors.Wrapf(err, "failed to sign %s/%s (%s)", args[0], args[1], signed_url.ErrorKind(err))
		}
		if outputJSON {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(server_structs.SignedUrlResp{
				Bucket: server_structs.Bucket(args[0]),
				Path:   args[1],
				URL:    signed,
			})
		}
		fmt.Fprintln(cmd.OutOrStdout(), signed)
		return nil
	})
}

// batchResp converts a batch result into its wire form.
func batchResp(result signed_url.BatchResult) server_structs.SignedUrlBatchResp {
	resp := server_structs.SignedUrlBatchResp{
		URLs:   make(map[string]string, len(result.URLs)),
		Errors: make(map[string]server_structs.SimpleApiResp, len(result.Errors)),
	}
	for key, signed := range result.URLs {
		resp.URLs[key.String()] = signed
	}
	for key, err := range result.Errors {
		resp.Errors[key.String()] = server_structs.SimpleApiResp{
			Status: server_structs.RespFailed,
			Msg:    err.Error(),
			Kind:   string(signed_url.ErrorKind(err)),
		}
	}
	return resp
}

func printBatch(cmd *cobra.Command, resp server_structs.SignedUrlBatchResp) error {
	if outputJSON {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(resp)
	}
	keys := make([]string, 0, len(resp.URLs)+len(resp.Errors))
	for key := range resp.URLs {
		keys = append(keys, key)
	}
	for key := range resp.Errors {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if signed, ok := resp.URLs[key]; ok {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", key, signed)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\terror (%s): %s\n", key, resp.Errors[key].Kind, resp.Errors[key].Msg)
		}
	}
	return nil
}

func urlBatchMain(cmd *cobra.Command, args []string) error {
	items := make([]signed_url.Item, 0, len(args))
	for _, arg := range args {
		item, err := parseObjectArg(arg)
		if err != nil {
			return err
		}
		items = append(items, item)
	}

	return withCoordinator(cmd.Context(), func(coordinator *signed_url.Coordinator) error {
		resp := batchResp(coordinator.BatchLookup(cmd.Context(), items))
		if err := printBatch(cmd, resp); err != nil {
			return err
		}
		if len(resp.Errors) > 0 {
			return errors.Errorf("%d of %d objects could not be signed", len(resp.Errors), len(resp.Errors)+len(resp.URLs))
		}
		return nil
	})
}
