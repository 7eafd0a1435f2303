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
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/mediadeck/mediadeck/server_structs"
	"github.com/mediadeck/mediadeck/signed_url"
)

const maxBatchItems = 1000

type signedUrlHandler struct {
	coordinator *signed_url.Coordinator
	bus         *signed_url.InvalidationBus
}

var invalidationReason = regexp.MustCompile(`^[a-z0-9_-]{1,32}$`)

// RegisterSignedUrlAPI mounts the signed URL endpoints under
// /api/v1.0/signed-urls.  bus may be nil, in which case invalidation
// requests clear only this coordinator.
func RegisterSignedUrlAPI(router *gin.Engine, coordinator *signed_url.Coordinator, bus *signed_url.InvalidationBus) {
	h := &signedUrlHandler{coordinator: coordinator, bus: bus}
	group := router.Group("/api/v1.0/signed-urls")
	{
		group.GET("/objects/:bucket/*path", h.handleLookup)
		group.POST("/batch", h.handleBatch)
		group.POST("/prefetch", h.handlePrefetch)
		group.GET("/cache", h.handleCacheStats)
		group.DELETE("/cache", h.handleClear)
		group.DELETE("/cache/:bucket/*path", h.handleInvalidateKey)
		group.POST("/invalidate", h.handleInvalidate)
		group.GET("/config", h.handleConfig)
	}
}

// statusForKind maps an error class onto the HTTP status the UI keys off.
func statusForKind(kind signed_url.Kind) int {
	switch kind {
	case signed_url.KindValidation:
		return http.StatusBadRequest
	case signed_url.KindCooldown:
		return http.StatusTooManyRequests
	case signed_url.KindExpired:
		return http.StatusGone
	case signed_url.KindCanceled:
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

func errorResp(err error) server_structs.SimpleApiResp {
	return server_structs.SimpleApiResp{
		Status: server_structs.RespFailed,
		Msg:    err.Error(),
		Kind:   string(signed_url.ErrorKind(err)),
	}
}

func abortWithError(ctx *gin.Context, err error) {
	kind := signed_url.ErrorKind(err)
	var cooldown *signed_url.CooldownError
	if errors.As(err, &cooldown) {
		ctx.Header("Retry-After", strconv.Itoa(int(math.Ceil(cooldown.RetryAfter.Seconds()))))
	}
	ctx.AbortWithStatusJSON(statusForKind(kind), errorResp(err))
}

func badRequest(ctx *gin.Context, msg string) {
	ctx.AbortWithStatusJSON(http.StatusBadRequest, server_structs.SimpleApiResp{
		Status: server_structs.RespFailed,
		Msg:    msg,
		Kind:   string(signed_url.KindValidation),
	})
}

// parseTTL reads the optional ttl query parameter, in seconds.
func parseTTL(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.Errorf("ttl must be an integer number of seconds, got %q", raw)
	}
	return secondsToDuration(secs)
}

func secondsToDuration(secs int64) (time.Duration, error) {
	if secs > int64(math.MaxInt64/time.Second) || secs < -int64(math.MaxInt64/time.Second) {
		return 0, errors.Errorf("ttl %d is out of range", secs)
	}
	return time.Duration(secs) * time.Second, nil
}

func objectPathParam(ctx *gin.Context) string {
	return strings.TrimPrefix(ctx.Param("path"), "/")
}

func (h *signedUrlHandler) handleLookup(ctx *gin.Context) {
	ttl, err := parseTTL(ctx.Query("ttl"))
	if err != nil {
		badRequest(ctx, err.Error())
		return
	}
	bucket := ctx.Param("bucket")
	objectPath := objectPathParam(ctx)

	signed, err := h.coordinator.Lookup(ctx.Request.Context(), bucket, objectPath, ttl)
	if err != nil {
		log.WithFields(log.Fields{"bucket": bucket, "path": objectPath}).Debugln("Signed URL lookup failed:", err)
		abortWithError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, server_structs.SignedUrlResp{
		Bucket: server_structs.Bucket(bucket),
		Path:   objectPath,
		URL:    signed,
	})
}

func bindItems(ctx *gin.Context) ([]signed_url.Item, bool) {
	req := server_structs.SignedUrlBatchReq{}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "Invalid request body: "+err.Error())
		return nil, false
	}
	if len(req.Items) == 0 {
		badRequest(ctx, "At least one item is required")
		return nil, false
	}
	if len(req.Items) > maxBatchItems {
		badRequest(ctx, "Too many items; the limit is "+strconv.Itoa(maxBatchItems))
		return nil, false
	}
	items := make([]signed_url.Item, 0, len(req.Items))
	for _, item := range req.Items {
		ttl, err := secondsToDuration(item.TTLSeconds)
		if err != nil {
			badRequest(ctx, err.Error())
			return nil, false
		}
		items = append(items, signed_url.Item{
			Bucket: item.Bucket.String(),
			Path:   item.Path,
			TTL:    ttl,
		})
	}
	return items, true
}

func (h *signedUrlHandler) handleBatch(ctx *gin.Context) {
	items, ok := bindItems(ctx)
	if !ok {
		return
	}
	result := h.coordinator.BatchLookup(ctx.Request.Context(), items)

	resp := server_structs.SignedUrlBatchResp{
		URLs:   make(map[string]string, len(result.URLs)),
		Errors: make(map[string]server_structs.SimpleApiResp, len(result.Errors)),
	}
	for key, signed := range result.URLs {
		resp.URLs[key.String()] = signed
	}
	for key, err := range result.Errors {
		resp.Errors[key.String()] = errorResp(err)
	}
	ctx.JSON(http.StatusOK, resp)
}

func (h *signedUrlHandler) handlePrefetch(ctx *gin.Context) {
	items, ok := bindItems(ctx)
	if !ok {
		return
	}
	h.coordinator.Prefetch(ctx.Request.Context(), items)
	ctx.JSON(http.StatusAccepted, server_structs.SimpleApiResp{Status: server_structs.RespOK})
}

func (h *signedUrlHandler) handleCacheStats(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, server_structs.SignedUrlCacheStats{
		Entries:         h.coordinator.CacheLen(),
		TrackedFailures: h.coordinator.TrackedFailures(),
	})
}

func (h *signedUrlHandler) handleClear(ctx *gin.Context) {
	h.coordinator.ClearCache()
	ctx.JSON(http.StatusOK, server_structs.SimpleApiResp{Status: server_structs.RespOK})
}

func (h *signedUrlHandler) handleInvalidateKey(ctx *gin.Context) {
	if err := h.coordinator.Invalidate(ctx.Param("bucket"), objectPathParam(ctx)); err != nil {
		abortWithError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, server_structs.SimpleApiResp{Status: server_structs.RespOK})
}

// handleInvalidate raises the process-wide invalidation signal, e.g. when
// the user signs out.  The body is optional.
func (h *signedUrlHandler) handleInvalidate(ctx *gin.Context) {
	req := server_structs.InvalidateReq{}
	if ctx.Request.ContentLength != 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			badRequest(ctx, "Invalid request body: "+err.Error())
			return
		}
	}
	reason := req.Reason
	if reason == "" {
		reason = "api"
	}
	if !invalidationReason.MatchString(reason) {
		badRequest(ctx, "reason must be 1-32 characters of a-z, 0-9, '-' or '_'")
		return
	}

	if h.bus != nil {
		h.bus.Publish(reason)
	} else {
		h.coordinator.ClearCache()
	}
	ctx.JSON(http.StatusOK, server_structs.SimpleApiResp{Status: server_structs.RespOK})
}

func (h *signedUrlHandler) handleConfig(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, h.coordinator.Config().View())
}
