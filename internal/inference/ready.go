package inference

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// ModelReady reports whether the deployment behind ep answers its model
// readiness probe.
func (c *Client) ModelReady(ctx context.Context, ep Endpoint) error {
	dep, ok := c.deployments[ep]
	if !ok || dep.URL == "" || dep.Model == "" {
		return fmt.Errorf("%s endpoint not configured", ep)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	resp, err := c.http.R().SetContext(ctx).Get(fmt.Sprintf("%s/v2/models/%s/ready", dep.URL, dep.Model))
	if err != nil {
		return fmt.Errorf("%s model %s unreachable: %w", ep, dep.Model, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("%s model %s not ready: %s", ep, dep.Model, resp.Status())
	}
	return nil
}

// EnsureReady probes both deployments concurrently and writes one status
// line per endpoint to w. It fails if either model is not ready.
func EnsureReady(ctx context.Context, c *Client, w io.Writer) error {
	var mu sync.Mutex
	report := func(format string, args ...any) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(w, format, args...)
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, ep := range []Endpoint{Native, General} {
		g.Go(func() error {
			if err := c.ModelReady(ctx, ep); err != nil {
				report("%s model: %v\n", ep, err)
				return err
			}
			report("%s model %s: ready\n", ep, c.deployments[ep].Model)
			return nil
		})
	}
	return g.Wait()
}
