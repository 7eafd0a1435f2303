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
	"fmt"
	"os"
	"strconv"
	"syscall"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/mediadeck/mediadeck/cmd/config_printer"
	"github.com/mediadeck/mediadeck/config"
	"github.com/mediadeck/mediadeck/launchers"
	"github.com/mediadeck/mediadeck/logging"
)

type uint16Value uint16

var (
	outputJSON bool

	rootCmd = &cobra.Command{
		Use:   "mediadeck",
		Short: "Resolve and cache signed media URLs",
		Long: `mediadeck turns storage object references into short-lived signed
URLs, caching them so repeated renders do not hit the storage backend.`,
		SilenceUsage: true,
	}

	// Only one pflag.Flag may be bound to the Server.WebPort key, so the
	// flag is defined once here and inserted into each command that serves.
	emptyPort = uint16(0)
	portFlag  = &pflag.Flag{
		Name:      "port",
		Shorthand: "p",
		Usage:     "Set the port at which the web server should be accessible",
		Value:     (*uint16Value)(&emptyPort),
	}
)

// The Value member of the portFlag object must implement the pflag.Value interface.
func (i *uint16Value) Set(s string) error {
	v, err := strconv.ParseUint(s, 0, 16)
	*i = uint16Value(v)
	return err
}

func (i *uint16Value) Type() string {
	return "uint16"
}

func (i *uint16Value) String() string { return strconv.FormatUint(uint64(*i), 10) }

func Execute() error {
	logging.SetupLogBuffering()

	egrp, egrpCtx := errgroup.WithContext(context.Background())
	ctx := context.WithValue(egrpCtx, config.EgrpKey, egrp)
	runErr := rootCmd.ExecuteContext(ctx)
	if runErr != nil {
		log.Errorln("mediadeck failed to start; shutting down:", runErr)
	}

	// Background services keep running on egrp until a signal or a fatal
	// error stops them.
	switch waitErr := egrp.Wait(); {
	case errors.Is(waitErr, launchers.ErrExitOnSignal):
		fmt.Println("mediadeck exited safely")
		return nil
	case errors.Is(waitErr, launchers.ErrRestart):
		fmt.Println("Restarting mediadeck...")
		return restartProgram()
	case waitErr != nil:
		log.Errorln("mediadeck stopped after a fatal error:", waitErr)
		return waitErr
	}
	return runErr
}

// restartProgram replaces the process with a fresh copy of itself, so a
// SIGHUP picks up configuration and credential changes.
func restartProgram() error {
	executable, err := os.Executable()
	if err != nil {
		return errors.Wrap(err, "cannot locate the mediadeck executable")
	}
	return errors.Wrap(syscall.Exec(executable, os.Args, os.Environ()), "failed to re-exec mediadeck")
}

// flushLogs releases the buffered startup logs once the configuration,
// and therefore Logging.LogLocation, is known.
func flushLogs() {
	if err := logging.FlushLogs(true); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to set up logging:", err)
	}
}

func init() {
	cobra.OnInitialize(config.InitConfig, flushLogs)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(urlCmd)
	rootCmd.AddCommand(config_printer.ConfigCmd)
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	persistent := rootCmd.PersistentFlags()
	persistent.String("config", "", "config file (default is $HOME/.config/mediadeck/mediadeck.yaml)")
	persistent.BoolP("debug", "d", false, "Enable debug logs")
	persistent.StringP("log", "l", "", "Write logs to this file instead of stderr")
	persistent.String("storage-url", "", "Base URL of the storage API, e.g. https://project.example.com/storage/v1")

	// Listed for --help only; handleCLI intercepts --version before cobra runs.
	persistent.Bool("version", false, "Print the version and exit")
	persistent.BoolVar(&outputJSON, "json", false, "Print results as JSON")

	for key, flag := range map[string]*pflag.Flag{
		"config":              persistent.Lookup("config"),
		"Debug":               persistent.Lookup("debug"),
		"Logging.LogLocation": persistent.Lookup("log"),
		"Storage.Url":         persistent.Lookup("storage-url"),
		"Server.WebPort":      portFlag,
	} {
		if err := viper.BindPFlag(key, flag); err != nil {
			panic(err)
		}
	}
}
