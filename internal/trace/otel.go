// Package trace builds the tracer provider marionette records command
// spans with.
package trace

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/liuxd6825/marionette/log"
)

const serviceName = "marionette"

var (
	// ErrInvalidTracesOutput indicates that the defined traces output is not valid.
	ErrInvalidTracesOutput = errors.New("invalid traces output")
	// ErrInvalidProto indicates that the defined exporter protocol is not valid.
	ErrInvalidProto = errors.New("invalid protocol")
	// ErrInvalidURLScheme indicates that the defined exporter URL scheme is not valid.
	ErrInvalidURLScheme = errors.New("invalid URL scheme")
	// ErrInvalidGRPCWithURLPath indicates that an exporter using gRPC protocol does not support URL path.
	ErrInvalidGRPCWithURLPath = errors.New("grpc protocol does not support URL path")
)

// TracerProvider hands out tracers and shuts the export pipeline down.
type TracerProvider struct {
	trace.TracerProvider
	shutdown func(ctx context.Context) error
}

type providerParams struct {
	proto    string
	endpoint string
	urlPath  string
	insecure bool
	headers  map[string]string
}

func defaultProviderParams() providerParams {
	return providerParams{
		proto:    "grpc",
		endpoint: "127.0.0.1:4317",
		insecure: true,
		headers:  make(map[string]string),
	}
}

// NewNoopTracerProvider returns a provider whose spans are discarded.
func NewNoopTracerProvider() *TracerProvider {
	prov := noop.NewTracerProvider()
	otel.SetTracerProvider(prov)

	return &TracerProvider{
		TracerProvider: prov,
		shutdown:       func(context.Context) error { return nil },
	}
}

func newTracerProvider(ctx context.Context, params providerParams) (*TracerProvider, error) {
	exporter, err := otlptrace.New(ctx, newClient(params))
	if err != nil {
		return nil, fmt.Errorf("creating TracerProvider exporter: %w", err)
	}

	prov := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		)),
	)

	// Only the engine's own spans are exported.
	otel.SetTracerProvider(noop.NewTracerProvider())

	return &TracerProvider{
		TracerProvider: prov,
		shutdown:       prov.Shutdown,
	}, nil
}

func newClient(params providerParams) otlptrace.Client {
	if params.proto == "http" {
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(params.endpoint),
			otlptracehttp.WithURLPath(params.urlPath),
			otlptracehttp.WithHeaders(params.headers),
		}
		if params.insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.NewClient(opts...)
	}

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(params.endpoint),
		otlptracegrpc.WithHeaders(params.headers),
	}
	if params.insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	return otlptracegrpc.NewClient(opts...)
}

// Shutdown flushes pending spans. The provider is a no-op afterwards.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	return tp.shutdown(ctx)
}

// TracerProviderFromConfigLine returns the provider described by a
// --traces-output line. An empty line or `none` disables tracing.
//
// Supported format is: otel[=<endpoint>:<port>,<other opts>]
// Where endpoint and port default to: 127.0.0.1:4317
// And other opts accept:
//   - proto: http or grpc (default).
//   - header.<header_name>
func TracerProviderFromConfigLine(ctx context.Context, line string) (*TracerProvider, error) {
	if line == "" || line == "none" {
		return NewNoopTracerProvider(), nil
	}
	params, err := paramsFromConfigLine(line)
	if err != nil {
		return nil, err
	}
	return newTracerProvider(ctx, params)
}

func paramsFromConfigLine(line string) (providerParams, error) {
	params := defaultProviderParams()
	if line == "otel" {
		return params, nil
	}

	output, _, _ := strings.Cut(line, "=")
	if output != "otel" {
		return params, fmt.Errorf("%w %q", ErrInvalidTracesOutput, output)
	}

	kvs, err := log.ParseConfigLine(line)
	if err != nil {
		return params, fmt.Errorf("error while parsing otel configuration %w", err)
	}
	for _, kv := range kvs {
		switch {
		case kv.Key == "otel":
			if err := params.parseURL(kv.Value); err != nil {
				return params, fmt.Errorf("couldn't parse the otel URL: %w", err)
			}
		case kv.Key == "proto":
			if kv.Value != "http" && kv.Value != "grpc" {
				return params, fmt.Errorf("couldn't parse the otel proto: %w: %q", ErrInvalidProto, kv.Value)
			}
			params.proto = kv.Value
		case strings.HasPrefix(kv.Key, "header."):
			params.headers[strings.TrimPrefix(kv.Key, "header.")] = kv.Value
		default:
			return params, fmt.Errorf("unknown otel config key %s", kv.Key)
		}
	}

	if params.proto == "grpc" && params.urlPath != "" {
		return params, ErrInvalidGRPCWithURLPath
	}
	return params, nil
}

// parseURL accepts either a URL or a bare host:port endpoint.
func (p *providerParams) parseURL(s string) error {
	if !strings.Contains(s, "://") {
		p.endpoint = s
		return nil
	}

	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: %q", ErrInvalidURLScheme, u.Scheme)
	}

	p.proto = "http"
	p.endpoint = u.Host
	p.urlPath = u.Path
	p.insecure = u.Scheme == "http"
	return nil
}
