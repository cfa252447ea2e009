package telemetry

import (
	"context"
	"os/exec"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace"
)

func TestSetupWithoutEndpoints(t *testing.T) {
	tel, err := Setup(context.Background(), "bookingbot-test", Config{})
	require.NoError(t, err)
	require.Nil(t, tel.TracerProvider)
	require.Nil(t, tel.MeterProvider)
	require.NoError(t, tel.Shutdown(context.Background()))
}

func TestOtlpConnConfigEnabled(t *testing.T) {
	require.False(t, OtlpConnConfig{}.Enabled())
	require.True(t, OtlpConnConfig{GrpcEndpoint: "http://localhost:4317"}.Enabled())
	require.True(t, OtlpConnConfig{HttpEndpoint: "http://localhost:4318"}.Enabled())
}

func TestReadChildStats(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("needs procfs")
	}
	if _, err := exec.LookPath("pgrep"); err != nil {
		t.Skip("needs procps")
	}
	child := exec.Command("sleep", "5")
	require.NoError(t, child.Start())
	t.Cleanup(func() {
		child.Process.Kill()
		child.Wait()
	})

	stats, err := ReadChildStats(context.Background())
	require.NoError(t, err)
	require.GreaterOrEqual(t, stats.Count, 1)
}

func TestNewResource(t *testing.T) {
	r, err := newResource(context.Background(), "bookingbot-test", map[string]string{
		"deployment.environment": "home",
	})
	require.NoError(t, err)

	found := map[string]string{}
	for _, kv := range r.Attributes() {
		found[string(kv.Key)] = kv.Value.Emit()
	}
	require.Equal(t, "bookingbot-test", found["service.name"])
	require.Equal(t, "home", found["deployment.environment"])
}

func TestNewSampler(t *testing.T) {
	require.Equal(t, trace.AlwaysSample().Description(), newSampler(0).Description())
	require.Equal(t, trace.AlwaysSample().Description(), newSampler(1).Description())
	require.Contains(t, newSampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}
