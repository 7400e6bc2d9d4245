package roster

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestOperationsRecordSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	store := openStore(t)
	ev := createEvent(t, store, spots(1))
	engine := New(store, Options{Now: fixedClock(testNow), Tracer: tp.Tracer("test")})
	ctx := context.Background()

	if _, err := engine.SignUp(ctx, ev.ID, "date-0", signUp("u1")); err != nil {
		t.Fatal(err)
	}
	_, _ = engine.SignUp(ctx, ev.ID, "date-0", signUp("u2"))

	spans := rec.Ended()
	if len(spans) != 2 {
		t.Fatalf("spans = %d, want 2", len(spans))
	}
	ok, failed := spans[0], spans[1]
	if ok.Name() != "roster.SignUp" || ok.Status().Code == codes.Error {
		t.Fatalf("first span = %s %v", ok.Name(), ok.Status())
	}
	if failed.Status().Code != codes.Error || failed.Status().Description != "CAPACITY_EXCEEDED" {
		t.Fatalf("failed span status = %v", failed.Status())
	}

	want := attribute.String("event.id", ev.ID)
	found := false
	for _, a := range ok.Attributes() {
		if a == want {
			found = true
		}
	}
	if !found {
		t.Fatalf("span attributes %v missing %v", ok.Attributes(), want)
	}
}
