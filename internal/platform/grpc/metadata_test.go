package grpc

import (
	"context"
	"testing"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/louisbranch/dungeonrun/internal/platform/requestctx"
)

func TestWithCaller_ReadsMetadata(t *testing.T) {
	md := metadata.Pairs(MetadataActorID, " gm-7 ", MetadataAcceptLanguage, "fr-FR,fr;q=0.9")
	ctx := WithCaller(metadata.NewIncomingContext(context.Background(), md))
	if got := requestctx.ActorIDFromContext(ctx); got != "gm-7" {
		t.Fatalf("actor = %q, want %q", got, "gm-7")
	}
	if got := requestctx.LocaleFromContext(ctx); got != "fr-FR,fr;q=0.9" {
		t.Fatalf("locale = %q", got)
	}
}

func TestWithCaller_NoMetadata(t *testing.T) {
	ctx := WithCaller(context.Background())
	if got := requestctx.ActorIDFromContext(ctx); got != "" {
		t.Fatalf("actor = %q, want empty", got)
	}
}

func TestCallerUnaryInterceptor(t *testing.T) {
	md := metadata.Pairs(MetadataActorID, "trigger-1")
	ctx := metadata.NewIncomingContext(context.Background(), md)
	var seen string
	_, err := CallerUnaryInterceptor()(ctx, nil, &gogrpc.UnaryServerInfo{}, func(ctx context.Context, _ any) (any, error) {
		seen = requestctx.ActorIDFromContext(ctx)
		return nil, nil
	})
	if err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	if seen != "trigger-1" {
		t.Fatalf("handler saw actor %q", seen)
	}
}

func TestOutgoingCaller(t *testing.T) {
	ctx := OutgoingCaller(context.Background(), "gm-1", "en-US")
	md, ok := metadata.FromOutgoingContext(ctx)
	if !ok {
		t.Fatal("expected outgoing metadata")
	}
	if got := md.Get(MetadataActorID); len(got) != 1 || got[0] != "gm-1" {
		t.Fatalf("actor metadata = %v", got)
	}
	if OutgoingCaller(context.Background(), " ", "") != context.Background() {
		t.Fatal("expected ctx unchanged without values")
	}
}
