package otel

import (
	"context"
	"testing"
)

func TestInitWithoutExportersInstallsPropagatorOnly(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "marketd"})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if _, err := Init(context.Background(), Config{}); err == nil {
		t.Fatalf("expected missing service name error")
	}
}

func TestParseHeaders(t *testing.T) {
	got := ParseHeaders(" authorization = Bearer x ,bad, =empty,team=market")
	if len(got) != 2 || got["authorization"] != "Bearer x" || got["team"] != "market" {
		t.Fatalf("unexpected headers %v", got)
	}
}
