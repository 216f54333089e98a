package trace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamsFromConfigLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		line    string
		want    providerParams
		wantErr error
		errMsg  string
	}{
		{
			name: "default",
			line: "otel",
			want: defaultProviderParams(),
		},
		{
			name: "grpc endpoint",
			line: "otel=collector:4317,header.Authorization=token",
			want: providerParams{
				proto:    "grpc",
				endpoint: "collector:4317",
				insecure: true,
				headers:  map[string]string{"Authorization": "token"},
			},
		},
		{
			name: "http url",
			line: "otel=https://collector:4318/v1/traces,proto=http",
			want: providerParams{
				proto:    "http",
				endpoint: "collector:4318",
				urlPath:  "/v1/traces",
				headers:  map[string]string{},
			},
		},
		{
			name:    "grpc with path",
			line:    "otel=http://collector:4318/v1/traces,proto=grpc",
			wantErr: ErrInvalidGRPCWithURLPath,
		},
		{
			name:    "unknown output",
			line:    "jaeger=collector",
			wantErr: ErrInvalidTracesOutput,
		},
		{
			name:    "bad scheme",
			line:    "otel=ftp://collector",
			wantErr: ErrInvalidURLScheme,
		},
		{
			name:    "bad proto",
			line:    "otel=collector:4317,proto=udp",
			wantErr: ErrInvalidProto,
		},
		{
			name:   "unknown key",
			line:   "otel=collector:4317,sampling=1",
			errMsg: "unknown otel config key sampling",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := paramsFromConfigLine(tt.line)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.errMsg != "":
				assert.EqualError(t, err, tt.errMsg)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestNoopTracerProvider(t *testing.T) {
	t.Parallel()

	for _, line := range []string{"", "none"} {
		tp, err := TracerProviderFromConfigLine(context.Background(), line)
		require.NoError(t, err)
		_, span := tp.Tracer("test").Start(context.Background(), "newSession")
		assert.False(t, span.SpanContext().IsValid())
		span.End()
		assert.NoError(t, tp.Shutdown(context.Background()))
	}
}
