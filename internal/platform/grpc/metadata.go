package grpc

import (
	"context"
	"strings"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/louisbranch/dungeonrun/internal/platform/requestctx"
)

// Metadata keys read from incoming calls.
const (
	MetadataActorID        = "x-actor-id"
	MetadataAcceptLanguage = "accept-language"
)

// WithCaller attaches the caller identity and locale found in incoming
// metadata to ctx.
func WithCaller(ctx context.Context) context.Context {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx
	}
	if actor := firstValue(md, MetadataActorID); actor != "" {
		ctx = requestctx.WithActorID(ctx, actor)
	}
	if locale := firstValue(md, MetadataAcceptLanguage); locale != "" {
		ctx = requestctx.WithLocale(ctx, locale)
	}
	return ctx
}

func firstValue(md metadata.MD, key string) string {
	for _, value := range md.Get(key) {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// CallerUnaryInterceptor applies WithCaller to unary calls.
func CallerUnaryInterceptor() gogrpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *gogrpc.UnaryServerInfo, handler gogrpc.UnaryHandler) (any, error) {
		return handler(WithCaller(ctx), req)
	}
}

// CallerStreamInterceptor applies WithCaller to streaming calls.
func CallerStreamInterceptor() gogrpc.StreamServerInterceptor {
	return func(srv any, ss gogrpc.ServerStream, _ *gogrpc.StreamServerInfo, handler gogrpc.StreamHandler) error {
		return handler(srv, &callerStream{ServerStream: ss, ctx: WithCaller(ss.Context())})
	}
}

type callerStream struct {
	gogrpc.ServerStream
	ctx context.Context
}

func (s *callerStream) Context() context.Context {
	return s.ctx
}

// OutgoingCaller returns ctx carrying actorID and locale for an outgoing call.
func OutgoingCaller(ctx context.Context, actorID, locale string) context.Context {
	var pairs []string
	if actorID = strings.TrimSpace(actorID); actorID != "" {
		pairs = append(pairs, MetadataActorID, actorID)
	}
	if locale = strings.TrimSpace(locale); locale != "" {
		pairs = append(pairs, MetadataAcceptLanguage, locale)
	}
	if len(pairs) == 0 {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, pairs...)
}
