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
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

type (
	HealthStatusEnum int

	HealthStatusComponent string

	// ComponentStatus is how one component is reported on /health.
	ComponentStatus struct {
		Status     string `json:"status"`
		Message    string `json:"message,omitempty"`
		LastUpdate int64  `json:"last_update"`
		// Unix time at which the component entered its current status.
		Since int64 `json:"since"`
	}

	HealthStatus struct {
		OverallStatus   string                     `json:"status"`
		ComponentStatus map[string]ComponentStatus `json:"components"`
	}

	componentHealth struct {
		status     HealthStatusEnum
		message    string
		since      time.Time
		lastUpdate time.Time
	}
)

// Lower is worse; the overall status is the minimum over all components.
const (
	StatusCritical HealthStatusEnum = iota + 1
	StatusWarning
	StatusOK
	StatusUnknown
)

const invalidStatusString = "invalid"

const (
	Storage_Backend    HealthStatusComponent = "storage-backend"    // last signing call outcome
	Storage_Credential HealthStatusComponent = "storage-credential" // bearer token freshness
	Server_WebAPI      HealthStatusComponent = "web-api"
)

var (
	healthMu   sync.RWMutex
	components = make(map[HealthStatusComponent]componentHealth)

	MediadeckHealthStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mediadeck_component_health_status",
		Help: "The health status of each component: 1 critical, 2 warning, 3 ok, 4 unknown",
	}, []string{"component"})

	MediadeckHealthLastUpdate = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mediadeck_component_health_status_last_update",
		Help: "Last update timestamp of components health status",
	}, []string{"component"})
)

func (status HealthStatusEnum) String() string {
	switch status {
	case StatusCritical:
		return "critical"
	case StatusWarning:
		return "warning"
	case StatusOK:
		return "ok"
	case StatusUnknown:
		return "unknown"
	}
	return invalidStatusString
}

func (component HealthStatusComponent) String() string {
	return string(component)
}

// SetComponentHealthStatus records the current state of a component.
// Signing paths call this on every outcome, so only transitions are logged.
func SetComponentHealthStatus(name HealthStatusComponent, state HealthStatusEnum, msg string) {
	now := time.Now()

	healthMu.Lock()
	prev, known := components[name]
	current := componentHealth{status: state, message: msg, since: now, lastUpdate: now}
	if known && prev.status == state {
		current.since = prev.since
	}
	components[name] = current
	healthMu.Unlock()

	if !known || prev.status != state {
		entry := log.WithField("component", name.String())
		if state == StatusCritical || state == StatusWarning {
			entry.Warningf("Component health is now %s: %s", state, msg)
		} else {
			entry.Debugf("Component health is now %s", state)
		}
	}

	MediadeckHealthStatus.WithLabelValues(name.String()).Set(float64(state))
	MediadeckHealthLastUpdate.WithLabelValues(name.String()).SetToCurrentTime()
}

// DeleteComponentHealthStatus stops reporting a component, both on
// /health and in the exported gauges.
func DeleteComponentHealthStatus(name HealthStatusComponent) {
	healthMu.Lock()
	delete(components, name)
	healthMu.Unlock()
	MediadeckHealthStatus.DeleteLabelValues(name.String())
	MediadeckHealthLastUpdate.DeleteLabelValues(name.String())
}

func GetHealthStatus() HealthStatus {
	healthMu.RLock()
	defer healthMu.RUnlock()

	status := HealthStatus{ComponentStatus: make(map[string]ComponentStatus, len(components))}
	overall := StatusUnknown
	for name, health := range components {
		status.ComponentStatus[name.String()] = ComponentStatus{
			Status:     health.status.String(),
			Message:    health.message,
			LastUpdate: health.lastUpdate.Unix(),
			Since:      health.since.Unix(),
		}
		if health.status < overall {
			overall = health.status
		}
	}
	status.OverallStatus = overall.String()
	return status
}
