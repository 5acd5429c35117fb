package observability

import (
	"context"
	"testing"
)

func TestInitTelemetry_InstallsProvidersAndShutsDownCleanly(t *testing.T) {
	shutdown, err := InitTelemetry(context.Background(), TelemetryConfig{
		ServiceName:    "repotoire-sub004-test",
		ServiceVersion: "test",
		Environment:    "test",
	})
	if err != nil {
		t.Fatalf("InitTelemetry: %v", err)
	}
	if shutdown == nil {
		t.Fatal("expected a non-nil shutdown func")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
