// Package availability blocks until the service reports itself healthy.
package availability

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/callistaenterprise/blog-test-aync-processes/logger"
	"github.com/callistaenterprise/blog-test-aync-processes/tracing"
)

var ErrUnavailable = errors.New("unable to get healthy indicator from application healthcheck")

const (
	DefaultTimeout  = 60 * time.Second
	DefaultInterval = time.Second
	healthPath      = "/actuator/health"
)

type Options struct {
	Client   *http.Client
	Timeout  time.Duration
	Interval time.Duration
}

func (o Options) withDefaults() Options {
	if o.Client == nil {
		o.Client = tracing.NewHTTPClient(5 * time.Second)
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	return o
}

// HealthURL builds the health check URL for host ("localhost:8097").
func HealthURL(host string) string {
	return "http://" + host + healthPath
}

// WaitUntilHealthy polls the health endpoint of host until its body contains
// "UP". Transport errors and unhealthy answers are retried until the timeout,
// after which ErrUnavailable is returned.
func WaitUntilHealthy(ctx context.Context, host string, opts Options) error {
	opts = opts.withDefaults()
	url := HealthURL(host)
	logger.Info("querying healthcheck", logger.FieldKV("url", url))

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	for {
		if healthy(ctx, opts.Client, url) {
			return nil
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrUnavailable
			}
			return ctx.Err()
		case <-time.After(opts.Interval):
		}
	}
}

func healthy(ctx context.Context, c *http.Client, url string) bool {
	logger.Debug("pinging healthcheck endpoint")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	res, err := c.Do(req)
	if err != nil {
		return false
	}
	defer res.Body.Close()
	body, err := io.ReadAll(io.LimitReader(res.Body, 64*1024))
	if err != nil {
		return false
	}
	return strings.Contains(string(body), "UP")
}
