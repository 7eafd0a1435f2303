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
	"net/http"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/mediadeck/mediadeck/config"
	"github.com/mediadeck/mediadeck/param"
	"github.com/mediadeck/mediadeck/signed_url"
	"github.com/mediadeck/mediadeck/storage_client"
)

const signedUrlCacheName = "signedUrls"

// Reason published on the invalidation bus when the storage credential on
// disk is replaced.
const credentialChangeReason = "credential-change"

func newTokenProvider(bus *signed_url.InvalidationBus) storage_client.TokenProvider {
	if location := param.Storage_TokenLocation.GetString(); location != "" {
		log.Debugln("Reading the storage credential from", location)
		return storage_client.NewFileTokenProvider(location, func() {
			bus.Publish(credentialChangeReason)
		})
	}
	return storage_client.StaticTokenProvider(param.Storage_Token.GetString())
}

func newResolver(tokens storage_client.TokenProvider) (*storage_client.HTTPResolver, error) {
	return storage_client.NewHTTPResolver(param.Storage_Url.GetString(), tokens,
		storage_client.WithHTTPClient(&http.Client{Transport: config.GetTransport()}),
		storage_client.WithAPIKey(param.Storage_ApiKey.GetString()),
		storage_client.WithRequestTimeout(param.Storage_RequestTimeout.GetDuration()),
		storage_client.WithRateLimit(param.Storage_RateLimit.GetInt()),
	)
}

// SignedUrlServe builds the coordinator from configuration and launches
// its background maintenance on egrp.  Both stop when ctx is cancelled.
func SignedUrlServe(ctx context.Context, egrp *errgroup.Group) (*signed_url.Coordinator, *signed_url.InvalidationBus, error) {
	if err := config.ValidateStorage(); err != nil {
		return nil, nil, err
	}
	cfg, err := signed_url.LoadConfig()
	if err != nil {
		return nil, nil, errors.Wrap(err, "invalid signed URL configuration")
	}

	bus := signed_url.NewInvalidationBus()
	resolver, err := newResolver(newTokenProvider(bus))
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to configure the storage client")
	}
	coordinator, err := signed_url.NewCoordinator(cfg, resolver, signed_url.WithInvalidationBus(bus))
	if err != nil {
		return nil, nil, err
	}

	go coordinator.StartJanitor()
	egrp.Go(func() error {
		<-ctx.Done()
		log.Debugln("Stopping the signed URL cache")
		coordinator.StopJanitor()
		coordinator.Close()
		coordinator.Wait()
		return nil
	})

	launchMaintenance(ctx, egrp, coordinator, param.SignedUrl_MaintenanceInterval.GetDuration())
	return coordinator, bus, nil
}

// launchMaintenance periodically drops expired failure records and
// publishes the cache counters.  A non-positive interval disables it.
func launchMaintenance(ctx context.Context, egrp *errgroup.Group, coordinator *signed_url.Coordinator, interval time.Duration) {
	if interval <= 0 {
		log.Debugln("Signed URL maintenance is disabled")
		return
	}
	egrp.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if pruned := coordinator.PruneFailures(); pruned > 0 {
					log.Debugf("Pruned %d expired failure records", pruned)
				}
				coordinator.ReportCacheMetrics(signedUrlCacheName)
			case <-ctx.Done():
				return nil
			}
		}
	})
}
