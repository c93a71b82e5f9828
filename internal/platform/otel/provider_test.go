package otel

import (
	"context"
	"testing"
)

func TestSetupDisabledWithoutEndpoint(t *testing.T) {
	t.Setenv("MOONFALL_OTEL_ENDPOINT", "")

	shutdown, err := Setup(context.Background(), "game")
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if shutdown == nil {
		t.Fatal("Setup should always return a shutdown function")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("no-op shutdown: %v", err)
	}
}

func TestSetupDisabledExplicitly(t *testing.T) {
	t.Setenv("MOONFALL_OTEL_ENDPOINT", "http://localhost:4318")
	t.Setenv("MOONFALL_OTEL_ENABLED", "false")

	shutdown, err := Setup(context.Background(), "game")
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("no-op shutdown: %v", err)
	}
}
