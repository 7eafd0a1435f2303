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

package config

import (
	"crypto/tls"
	"net"
	"net/http"
	"sync"

	"github.com/mwitkow/go-conntrack"

	"github.com/mediadeck/mediadeck/param"
)

const storageDialerName = "storage"

var (
	// The shared transport for calls to the storage backend; rebuilt
	// only after ResetConfig.
	transport   *http.Transport
	transportMu sync.Mutex
)

// GetTransport returns the process-wide transport, creating it on first use.
func GetTransport() *http.Transport {
	transportMu.Lock()
	defer transportMu.Unlock()
	if transport == nil {
		transport = setupTransport()
	}
	return transport
}

func setupTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   param.Transport_DialerTimeout.GetDuration(),
		KeepAlive: param.Transport_DialerKeepAlive.GetDuration(),
	}

	// Wrap the dialer so connection counts show up in the Prometheus
	// conntrack metrics under dialer_name="storage".
	conntrack.PreRegisterDialerMetrics(storageDialerName)
	dialContext := conntrack.NewDialContextFunc(
		conntrack.DialWithName(storageDialerName),
		conntrack.DialWithDialer(dialer),
		conntrack.DialWithTracing(),
	)

	t := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialContext,
		MaxIdleConns:          param.Transport_MaxIdleConns.GetInt(),
		IdleConnTimeout:       param.Transport_IdleConnTimeout.GetDuration(),
		TLSHandshakeTimeout:   param.Transport_TLSHandshakeTimeout.GetDuration(),
		ExpectContinueTimeout: param.Transport_ExpectContinueTimeout.GetDuration(),
		ResponseHeaderTimeout: param.Transport_ResponseHeaderTimeout.GetDuration(),
	}
	if param.TLSSkipVerify.GetBool() {
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return t
}
