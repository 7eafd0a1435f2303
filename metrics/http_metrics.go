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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP-level metrics for the calls the storage client makes to the
// signing endpoints.  These sit underneath the per-lookup signed URL
// metrics: one logical resolution may issue several requests.

// Endpoint labels
const (
	EndpointSign     = "sign"
	EndpointBulkSign = "bulk_sign"
)

var (
	MediadeckStorageRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediadeck_storage_http_requests_total",
		Help: "Total number of HTTP requests sent to the storage backend",
	}, []string{"endpoint", "code"}) // code: HTTP status, or "error" when no response arrived

	MediadeckStorageRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mediadeck_storage_http_request_duration_seconds",
		Help:    "Storage backend HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets, // 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10
	}, []string{"endpoint", "code"})

	MediadeckStorageActiveRequests = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mediadeck_storage_http_active_requests",
		Help: "Number of storage backend HTTP requests currently outstanding",
	}, []string{"endpoint"})

	MediadeckStorageResponseBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediadeck_storage_http_response_bytes_total",
		Help: "Total bytes read from storage backend responses",
	}, []string{"endpoint"})
)
