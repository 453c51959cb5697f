package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
)

// ErrBackend is returned for any failed inference call: transport errors,
// non-2xx statuses, error payloads, malformed responses and open breakers.
var ErrBackend = errors.New("inference backend error")

// Endpoint selects one of the two model deployments.
type Endpoint string

const (
	// Native serves the regional languages flagged is_native.
	Native Endpoint = "native"
	// General is the broad multilingual model.
	General Endpoint = "general"
)

// Deployment addresses one model on a KServe v2 compatible server.
type Deployment struct {
	URL   string
	Model string
}

// Request is a single translation hop.
type Request struct {
	Text     string
	SrcLang  string
	DstLang  string
	Endpoint Endpoint
}

// Result is the model output with its provenance.
type Result struct {
	Text         string
	ModelName    string
	ModelVersion string
}

// Options configures a Client.
type Options struct {
	Native  Deployment
	General Deployment
	// Timeout bounds a single HTTP call.
	Timeout time.Duration
	// BreakerFailures is the number of consecutive failures that opens an
	// endpoint's circuit breaker. Zero disables tripping.
	BreakerFailures uint32
	// BreakerCooldown is how long an open breaker rejects calls.
	BreakerCooldown time.Duration
}

// Client talks to the inference server over the v2 REST protocol.
type Client struct {
	http        *resty.Client
	deployments map[Endpoint]Deployment
	breakers    map[Endpoint]*gobreaker.CircuitBreaker
}

// New creates a Client for the native and general deployments.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.BreakerCooldown <= 0 {
		opts.BreakerCooldown = 30 * time.Second
	}

	c := &Client{
		http: resty.New().SetTimeout(opts.Timeout),
		deployments: map[Endpoint]Deployment{
			Native:  trimDeployment(opts.Native),
			General: trimDeployment(opts.General),
		},
		breakers: make(map[Endpoint]*gobreaker.CircuitBreaker, 2),
	}
	for ep := range c.deployments {
		c.breakers[ep] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    string(ep),
			Timeout: opts.BreakerCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return opts.BreakerFailures > 0 && counts.ConsecutiveFailures >= opts.BreakerFailures
			},
		})
	}
	return c
}

func trimDeployment(d Deployment) Deployment {
	d.URL = strings.TrimRight(d.URL, "/")
	return d
}

type tensor struct {
	Name     string     `json:"name"`
	Shape    []int      `json:"shape"`
	Datatype string     `json:"datatype"`
	Data     [][]string `json:"data"`
}

type inferRequest struct {
	ID     string   `json:"id"`
	Inputs []tensor `json:"inputs"`
}

type inferResponse struct {
	ModelName    string `json:"model_name"`
	ModelVersion string `json:"model_version"`
	Outputs      []struct {
		Name string            `json:"name"`
		Data []json.RawMessage `json:"data"`
	} `json:"outputs"`
	Error string `json:"error"`
}

func bytesInput(name, value string) tensor {
	return tensor{Name: name, Shape: []int{1, 1}, Datatype: "BYTES", Data: [][]string{{value}}}
}

// Infer runs one translation on the endpoint named in req. There are no
// retries; callers bound the call with ctx.
func (c *Client) Infer(ctx context.Context, req Request) (Result, error) {
	dep, ok := c.deployments[req.Endpoint]
	if !ok || dep.URL == "" || dep.Model == "" {
		return Result{}, fmt.Errorf("%w: endpoint %q not configured", ErrBackend, req.Endpoint)
	}

	out, err := c.breakers[req.Endpoint].Execute(func() (interface{}, error) {
		return c.infer(ctx, dep, req)
	})
	if err != nil {
		if errors.Is(err, ErrBackend) {
			return Result{}, err
		}
		return Result{}, fmt.Errorf("%w: %s: %v", ErrBackend, req.Endpoint, err)
	}
	return out.(Result), nil
}

func (c *Client) infer(ctx context.Context, dep Deployment, req Request) (Result, error) {
	body := inferRequest{
		ID: "0",
		Inputs: []tensor{
			bytesInput("input_text", req.Text),
			bytesInput("source_lang", req.SrcLang),
			bytesInput("target_lang", req.DstLang),
		},
	}

	url := fmt.Sprintf("%s/v2/models/%s/infer", dep.URL, dep.Model)
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(url)
	if err != nil {
		return Result{}, fmt.Errorf("%w: posting to %s: %v", ErrBackend, dep.Model, err)
	}

	var parsed inferResponse
	decodeErr := json.Unmarshal(resp.Body(), &parsed)
	if resp.IsError() {
		if decodeErr == nil && parsed.Error != "" {
			return Result{}, fmt.Errorf("%w: %s returned %s: %s", ErrBackend, dep.Model, resp.Status(), parsed.Error)
		}
		return Result{}, fmt.Errorf("%w: %s returned %s", ErrBackend, dep.Model, resp.Status())
	}
	if decodeErr != nil {
		return Result{}, fmt.Errorf("%w: decoding %s response: %v", ErrBackend, dep.Model, decodeErr)
	}
	if parsed.Error != "" {
		return Result{}, fmt.Errorf("%w: %s: %s", ErrBackend, dep.Model, parsed.Error)
	}
	if len(parsed.Outputs) == 0 || len(parsed.Outputs[0].Data) == 0 {
		return Result{}, fmt.Errorf("%w: %s returned no outputs", ErrBackend, dep.Model)
	}

	var text string
	if err := json.Unmarshal(parsed.Outputs[0].Data[0], &text); err != nil {
		return Result{}, fmt.Errorf("%w: %s output is not text: %v", ErrBackend, dep.Model, err)
	}

	name := parsed.ModelName
	if name == "" {
		name = dep.Model
	}
	return Result{Text: text, ModelName: name, ModelVersion: parsed.ModelVersion}, nil
}
