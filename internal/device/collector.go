package device

import (
	"context"
	"fmt"
	"log/slog"

	"shelly-exporter/internal/flatten"
	"shelly-exporter/internal/model"
)

// ResourceError is a recoverable per-device failure of one sub-resource.
type ResourceError struct {
	Host     string
	Resource string
	Err      error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("device %s resource %s: %v", e.Host, e.Resource, e.Err)
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}

// Result is the private buffer a collector fills during one cycle.
type Result struct {
	Endpoint model.Endpoint
	Samples  map[string][]model.Sample
	Errors   []*ResourceError
}

func (r *Result) Failed() bool {
	return len(r.Errors) > 0
}

func (r *Result) SampleCount() int {
	n := 0
	for _, s := range r.Samples {
		n += len(s)
	}
	return n
}

// Collector polls the fixed sub-resources of one device.
type Collector struct {
	endpoint  model.Endpoint
	client    *Client
	logger    *slog.Logger
	resources []Resource
}

func NewCollector(endpoint model.Endpoint, client *Client, logger *slog.Logger) *Collector {
	return &Collector{
		endpoint:  endpoint,
		client:    client,
		logger:    logger.With("host", endpoint.Host),
		resources: Resources(),
	}
}

func (c *Collector) Endpoint() model.Endpoint {
	return c.endpoint
}

// Collect never fails as a whole. Each resource either contributes all of
// its samples or none, and failures are returned in Result.Errors.
func (c *Collector) Collect(ctx context.Context) *Result {
	res := &Result{Endpoint: c.endpoint, Samples: make(map[string][]model.Sample, len(c.resources))}
	policy := flatten.HostPolicy(c.endpoint.Host)

	for _, r := range c.resources {
		if !r.Fetched() {
			continue
		}
		if err := ctx.Err(); err != nil {
			res.Errors = append(res.Errors, &ResourceError{Host: c.endpoint.Host, Resource: r.Name, Err: err})
			continue
		}
		samples, err := c.collectResource(ctx, r, policy)
		if err != nil {
			rerr := &ResourceError{Host: c.endpoint.Host, Resource: r.Name, Err: err}
			res.Errors = append(res.Errors, rerr)
			c.logger.Warn("device resource collect failed", "resource", r.Name, "error", err)
			continue
		}
		res.Samples[r.Family] = append(res.Samples[r.Family], samples...)
	}
	return res
}

func (c *Collector) collectResource(ctx context.Context, r Resource, policy flatten.Policy) ([]model.Sample, error) {
	doc, err := c.client.GetJSON(ctx, c.endpoint.URL(r.Path))
	if err != nil {
		return nil, err
	}
	samples, memberErrs, err := r.Flatten(doc, policy)
	if err != nil {
		return nil, err
	}
	for _, merr := range memberErrs {
		c.logger.Error("dropping sample", "resource", r.Name, "error", merr)
	}
	return samples, nil
}
