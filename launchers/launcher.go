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

package launchers

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/mediadeck/mediadeck/config"
	"github.com/mediadeck/mediadeck/param"
	"github.com/mediadeck/mediadeck/web_ui"
)

var (
	ErrExitOnSignal error = errors.New("Exit program on signal")
	ErrRestart      error = errors.New("Restart program")
)

// LaunchServer wires the signed URL service into the web engine and starts
// serving.  Everything runs on the errgroup stored in ctx; the returned
// cancel function stops all of it.
func LaunchServer(ctx context.Context) (shutdownCancel context.CancelFunc, err error) {
	egrp, ok := ctx.Value(config.EgrpKey).(*errgroup.Group)
	if !ok {
		egrp = &errgroup.Group{}
	}

	ctx, shutdownCancel = context.WithCancel(ctx)
	defer func() {
		if err != nil {
			shutdownCancel()
		}
	}()

	config.PrintConfig()

	if !param.Monitoring_EnablePrometheus.GetBool() {
		log.Warn("Prometheus is disabled; the /metrics endpoint will not be available")
	}

	coordinator, bus, err := SignedUrlServe(ctx, egrp)
	if err != nil {
		return
	}

	engine := web_ui.GetEngine()
	web_ui.RegisterSignedUrlAPI(engine, coordinator, bus)

	egrp.Go(func() error {
		if err := web_ui.RunEngine(ctx, engine, egrp); err != nil {
			log.Errorln("Failure when running the web engine:", err)
			shutdownCancel()
			return err
		}
		return nil
	})

	egrp.Go(func() error {
		log.Debug("Will shutdown process on signal")
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
		defer signal.Stop(sigs)
		select {
		case sig := <-sigs:
			if sig == syscall.SIGHUP {
				log.Warning("Received SIGHUP; will restart process")
				shutdownCancel()
				return ErrRestart
			}
			log.Warningf("Received signal %v; will shutdown process", sig)
			shutdownCancel()
			return ErrExitOnSignal
		case <-ctx.Done():
			return nil
		}
	})

	return
}
