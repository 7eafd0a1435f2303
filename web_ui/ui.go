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

package web_ui

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzhttp"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/mediadeck/mediadeck/metrics"
	"github.com/mediadeck/mediadeck/param"
)

func ConfigureMetrics(engine *gin.Engine) {
	if param.Monitoring_EnablePrometheus.GetBool() {
		prometheusMonitor := ginprometheus.NewPrometheus("gin")
		prometheusMonitor.Use(engine)
	}

	engine.GET("/api/v1.0/health", func(ctx *gin.Context) {
		healthStatus := metrics.GetHealthStatus()
		ctx.JSON(http.StatusOK, healthStatus)
	})
}

const requestIDHeader = "X-Request-Id"

// requestIDMiddleware keeps the caller's X-Request-Id, or mints one, and
// echoes it back so UI bug reports can be matched against the logs.
func requestIDMiddleware(ctx *gin.Context) {
	requestID := strings.TrimSpace(ctx.GetHeader(requestIDHeader))
	if requestID == "" || len(requestID) > 128 {
		requestID = uuid.NewString()
	}
	ctx.Set(requestIDHeader, requestID)
	ctx.Header(requestIDHeader, requestID)
	ctx.Next()
}

func GetEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestIDMiddleware)
	webLogger := log.WithFields(log.Fields{"daemon": "gin"})
	engine.Use(func(ctx *gin.Context) {
		startTime := time.Now()

		ctx.Next()

		latency := time.Since(startTime)
		webLogger.WithFields(log.Fields{"method": ctx.Request.Method,
			"status":     ctx.Writer.Status(),
			"time":       latency.String(),
			"client":     ctx.RemoteIP(),
			"resource":   ctx.Request.URL.Path,
			"request_id": ctx.GetString(requestIDHeader)},
		).Info("Served Request")
	})
	ConfigureMetrics(engine)
	if param.Debug.GetBool() {
		configurePprof(engine)
	}
	return engine
}

// RunEngine serves engine on Server.WebHost:Server.WebPort until ctx is
// cancelled.
func RunEngine(ctx context.Context, engine *gin.Engine, egrp *errgroup.Group) error {
	addr := fmt.Sprintf("%v:%v", param.Server_WebHost.GetString(), param.Server_WebPort.GetInt())
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", addr)
	}
	return runEngineWithListener(ctx, ln, engine, egrp)
}

// serverHandler compresses responses for clients that accept it; batch
// responses carry one long signed URL per object.
func serverHandler(engine *gin.Engine) http.Handler {
	return gzhttp.GzipHandler(engine)
}

func runEngineWithListener(ctx context.Context, ln net.Listener, engine *gin.Engine, egrp *errgroup.Group) error {
	server := &http.Server{
		Handler:           serverHandler(engine),
		ReadHeaderTimeout: 10 * time.Second,
	}
	egrp.Go(func() error {
		<-ctx.Done()
		log.Debugln("Shutting down the web engine")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	metrics.SetComponentHealthStatus(metrics.Server_WebAPI, metrics.StatusOK, "")
	log.Infoln("Serving the web API at", ln.Addr().String())
	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		metrics.SetComponentHealthStatus(metrics.Server_WebAPI, metrics.StatusCritical, err.Error())
		return err
	}
	return nil
}
