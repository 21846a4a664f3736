// Copyright 2025 The RevGeo Authors
// SPDX-License-Identifier: Apache-2.0

package geocoding

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/jcodagnone/revgeo/utils/httputils"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RequestTimeout bounds every geocoding request.
const RequestTimeout = 60 * time.Second

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 4 << 20

// ClientOptions configures the HTTP client shared by the providers.
type ClientOptions struct {
	// UserAgent is the User-Agent header to use in HTTP requests
	UserAgent string

	// Enables light tracing of HTTP requests and responses
	EnableHTTPTrace bool

	// Enables full HTTP body tracing
	EnableHTTPBodyTrace bool

	// Where traces go, stderr when nil
	TraceWriter io.Writer
}

// NewHTTPClient creates the client used to talk to the geocoding services.
func NewHTTPClient(options *ClientOptions) *http.Client {
	if options == nil {
		options = &ClientOptions{}
	}

	var httpLogWriter io.Writer
	if options.EnableHTTPTrace || options.EnableHTTPBodyTrace {
		httpLogWriter = options.TraceWriter
		if httpLogWriter == nil {
			httpLogWriter = os.Stderr
		}
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          4,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       30 * time.Second,
		ResponseHeaderTimeout: RequestTimeout,
	}

	loggingTransport := &httputils.LoggingRoundTripper{
		Writer:        httpLogWriter,
		DumpBody:      options.EnableHTTPBodyTrace,
		Transport:     transport,
		RedactQueries: []string{"key", "email"},
	}

	userAgent := "revgeo/unknown"
	if options.UserAgent != "" {
		userAgent = options.UserAgent
	}

	headerTransport := &httputils.AppendRequestHeadersRoundTripper{
		Headers: map[string]string{
			"User-Agent": userAgent,
			"Accept":     "application/json",
		},
		Transport: loggingTransport,
	}

	return &http.Client{
		Timeout:   RequestTimeout,
		Transport: headerTransport,
	}
}

// fetchJSON issues one GET and returns the body of a 200 response.
func fetchJSON(
	ctx context.Context,
	client *http.Client,
	limiter *rate.Limiter,
	logger *zap.Logger,
	endpoint string,
	params url.Values,
) ([]byte, error) {
	if err := limiter.Wait(ctx); err != nil {
		return nil, &GeocodingError{Type: ErrorTypeRateLimit, Message: "waiting for rate limiter", Err: err}
	}

	reqURL := endpoint + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &GeocodingError{Type: ErrorTypeInvalidRequest, Message: "building request", Err: err}
	}

	logger.Debug("geocoding request", zap.String("url", httputils.RedactURL(req.URL, "key", "email")))

	resp, err := client.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, transportError(err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, ClassifyHTTPError(resp.StatusCode, string(body))
	}

	return body, nil
}

func transportError(err error) *GeocodingError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &GeocodingError{Type: ErrorTypeTimeout, Message: "geocoding request timed out", Err: err}
	}

	return &GeocodingError{Type: ErrorTypeNetworkError, Message: "geocoding request failed", Err: err}
}
