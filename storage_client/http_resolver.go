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

package storage_client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/mediadeck/mediadeck/metrics"
	"github.com/mediadeck/mediadeck/server_structs"
)

const (
	// Cap on how much of a response body we are willing to read.
	maxResponseBytes = 4 << 20
	userAgent        = "mediadeck/1"
)

type (
	// HTTPResolver signs URLs through the storage REST API:
	//
	//	POST {base}/object/sign/{bucket}/{path}  {"expiresIn": N}
	//	POST {base}/object/sign/{bucket}         {"expiresIn": N, "paths": [...]}
	HTTPResolver struct {
		baseURL *url.URL
		client  *http.Client
		tokens  TokenProvider
		apiKey  string
		timeout time.Duration
		limiter *rate.Limiter
	}

	HTTPOption func(*HTTPResolver)

	signBody struct {
		ExpiresIn int64    `json:"expiresIn"`
		Paths     []string `json:"paths,omitempty"`
	}

	signResp struct {
		SignedURL string `json:"signedURL"`
	}

	bulkSignItem struct {
		Path      string  `json:"path"`
		SignedURL *string `json:"signedURL"`
		Error     *string `json:"error"`
	}

	// Error body the backend sends alongside non-2xx responses.  Its
	// statusCode may differ from the HTTP status (e.g. a 400 carrying "404").
	backendErrorBody struct {
		StatusCode string `json:"statusCode"`
		Error      string `json:"error"`
		Message    string `json:"message"`
	}
)

var _ BatchResolver = (*HTTPResolver)(nil)

func WithHTTPClient(client *http.Client) HTTPOption {
	return func(r *HTTPResolver) {
		r.client = client
	}
}

func WithAPIKey(key string) HTTPOption {
	return func(r *HTTPResolver) {
		r.apiKey = key
	}
}

// WithRequestTimeout bounds each individual signing call; zero disables it.
func WithRequestTimeout(timeout time.Duration) HTTPOption {
	return func(r *HTTPResolver) {
		r.timeout = timeout
	}
}

// WithRateLimit caps signing calls at perSecond, with bursts of up to twice
// that.  Zero or less leaves calls unlimited.
func WithRateLimit(perSecond int) HTTPOption {
	return func(r *HTTPResolver) {
		if perSecond > 0 {
			r.limiter = rate.NewLimiter(rate.Limit(perSecond), perSecond*2)
		} else {
			r.limiter = nil
		}
	}
}

func NewHTTPResolver(baseURL string, tokens TokenProvider, opts ...HTTPOption) (*HTTPResolver, error) {
	parsed, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid storage URL %q", baseURL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, errors.Errorf("storage URL %q must use http or https", baseURL)
	}
	if tokens == nil {
		return nil, errors.New("a storage token provider is required")
	}
	r := &HTTPResolver{
		baseURL: parsed,
		client:  http.DefaultClient,
		tokens:  tokens,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func escapeObjectPath(objectPath string) string {
	segments := strings.Split(objectPath, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}

func (r *HTTPResolver) signEndpoint(bucket server_structs.Bucket, objectPath string) string {
	endpoint := r.baseURL.String() + "/object/sign/" + url.PathEscape(bucket.String())
	if objectPath != "" {
		endpoint += "/" + escapeObjectPath(objectPath)
	}
	return endpoint
}

// absoluteURL joins the backend's (usually relative) signed URL onto the
// storage base URL.
func (r *HTTPResolver) absoluteURL(signed string) (string, error) {
	if signed == "" {
		return "", errors.New("response did not include a signed URL")
	}
	ref, err := url.Parse(signed)
	if err != nil {
		return "", errors.Wrap(err, "response included an unparsable signed URL")
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	joined := *r.baseURL
	joined.Path = strings.TrimSuffix(joined.Path, "/") + "/" + strings.TrimPrefix(ref.Path, "/")
	joined.RawPath = ""
	joined.RawQuery = ref.RawQuery
	return joined.String(), nil
}

// post performs one authenticated JSON call.  On success the raw body is
// returned; every failure is turned into a *ResolveError.
func (r *HTTPResolver) post(ctx context.Context, bucket server_structs.Bucket, objectPath string, body signBody) ([]byte, error) {
	fail := func(kind Kind, status int, msg string, err error) *ResolveError {
		return &ResolveError{Kind: kind, StatusCode: status, Message: msg, Bucket: bucket, Path: objectPath, Err: err}
	}

	token, err := r.tokens.Get()
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return nil, fail(KindUnauthorized, 0, "storage credential expired", err)
		}
		return nil, fail(KindUnknown, 0, "no usable storage credential", err)
	}

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, fail(KindNetworkError, 0, "gave up waiting for the signing rate limit", err)
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fail(KindUnknown, 0, "", err)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	endpoint := r.signEndpoint(bucket, objectPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fail(KindUnknown, 0, "", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Authorization", "Bearer "+token)
	if r.apiKey != "" {
		req.Header.Set("apikey", r.apiKey)
	}

	endpointLabel := metrics.EndpointSign
	if objectPath == "" {
		endpointLabel = metrics.EndpointBulkSign
	}
	active := metrics.MediadeckStorageActiveRequests.WithLabelValues(endpointLabel)
	active.Inc()
	start := time.Now()
	resp, err := r.client.Do(req)
	active.Dec()
	if err != nil {
		observeRequest(endpointLabel, "error", start)
		return nil, fail(KindNetworkError, 0, "", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	observeRequest(endpointLabel, strconv.Itoa(resp.StatusCode), start)
	metrics.MediadeckStorageResponseBytes.WithLabelValues(endpointLabel).Add(float64(len(respBody)))
	if err != nil {
		return nil, fail(KindNetworkError, resp.StatusCode, "failed to read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		status := resp.StatusCode
		msg := http.StatusText(resp.StatusCode)
		errBody := backendErrorBody{}
		if jsonErr := json.Unmarshal(respBody, &errBody); jsonErr == nil {
			if code, convErr := strconv.Atoi(errBody.StatusCode); convErr == nil && code >= 100 {
				status = code
			}
			if errBody.Message != "" {
				msg = errBody.Message
			}
		}
		log.Debugf("Storage backend returned %d (effective %d) for %s: %s", resp.StatusCode, status, endpoint, msg)
		return nil, fail(KindFromStatus(status), status, msg, nil)
	}
	return respBody, nil
}

func observeRequest(endpoint, code string, start time.Time) {
	metrics.MediadeckStorageRequestsTotal.WithLabelValues(endpoint, code).Inc()
	metrics.MediadeckStorageRequestDuration.WithLabelValues(endpoint, code).Observe(time.Since(start).Seconds())
}

func (r *HTTPResolver) Resolve(ctx context.Context, req SignRequest) (string, error) {
	body, err := r.post(ctx, req.Bucket, req.Path, signBody{ExpiresIn: req.Seconds()})
	if err != nil {
		return "", err
	}

	parsed := signResp{}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &ResolveError{Kind: KindUnknown, Message: "malformed response", Bucket: req.Bucket, Path: req.Path, Err: err}
	}
	signed, err := r.absoluteURL(parsed.SignedURL)
	if err != nil {
		return "", &ResolveError{Kind: KindUnknown, Message: "malformed response", Bucket: req.Bucket, Path: req.Path, Err: err}
	}
	return signed, nil
}

// ResolveBatch signs every path in one call.  Paths the backend reports
// individually as failed, or leaves out of the response, come back with a
// KindUnknown error.
func (r *HTTPResolver) ResolveBatch(ctx context.Context, bucket server_structs.Bucket, paths []string, ttl time.Duration) ([]BatchItemResult, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	body, err := r.post(ctx, bucket, "", signBody{
		ExpiresIn: SignRequest{TTL: ttl}.Seconds(),
		Paths:     paths,
	})
	if err != nil {
		return nil, err
	}

	items := []bulkSignItem{}
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, &ResolveError{Kind: KindUnknown, Message: "malformed bulk response", Bucket: bucket, Err: err}
	}
	byPath := make(map[string]bulkSignItem, len(items))
	for _, item := range items {
		byPath[item.Path] = item
	}

	results := make([]BatchItemResult, 0, len(paths))
	for _, objectPath := range paths {
		result := BatchItemResult{Path: objectPath}
		item, ok := byPath[objectPath]
		switch {
		case !ok:
			result.Err = &ResolveError{Kind: KindUnknown, Message: "missing from bulk response", Bucket: bucket, Path: objectPath}
		case item.Error != nil && *item.Error != "":
			// Per-item errors carry no status code, so they are never expired-class
			result.Err = &ResolveError{Kind: KindUnknown, Message: *item.Error, Bucket: bucket, Path: objectPath}
		case item.SignedURL == nil:
			result.Err = &ResolveError{Kind: KindUnknown, Message: "malformed bulk response", Bucket: bucket, Path: objectPath}
		default:
			signed, err := r.absoluteURL(*item.SignedURL)
			if err != nil {
				result.Err = &ResolveError{Kind: KindUnknown, Message: "malformed bulk response", Bucket: bucket, Path: objectPath, Err: err}
			} else {
				result.URL = signed
			}
		}
		results = append(results, result)
	}
	return results, nil
}
