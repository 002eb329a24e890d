package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/louisbranch/dungeonrun/internal/platform/errors/i18n"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("notify: %w", New(CodeSignalUnknown, "signal dragons.arrive is not in the catalog"))
	if !stderrors.Is(err, New(CodeSignalUnknown, "")) {
		t.Fatal("expected match by code")
	}
	if stderrors.Is(err, New(CodeRunNotFound, "")) {
		t.Fatal("unexpected match on a different code")
	}
	if got := CodeOf(err); got != CodeSignalUnknown {
		t.Fatalf("CodeOf = %s, want %s", got, CodeSignalUnknown)
	}
	if got := CodeOf(stderrors.New("plain")); got != CodeUnknown {
		t.Fatalf("CodeOf(plain) = %s, want %s", got, CodeUnknown)
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stderrors.New("disk full")
	err := Wrap(CodeStorageFailure, "", cause)
	if !stderrors.Is(err, cause) {
		t.Fatal("expected cause in chain")
	}
	if err.Error() != "disk full" {
		t.Fatalf("error = %q, want cause message", err.Error())
	}
}

func TestGRPCCodeMapping(t *testing.T) {
	tests := map[Code]codes.Code{
		CodeSignalUnknown:        codes.InvalidArgument,
		CodeSignalPayloadInvalid: codes.InvalidArgument,
		CodeOverridePhaseInvalid: codes.InvalidArgument,
		CodeSignalRoleForbidden:  codes.PermissionDenied,
		CodeRunNotFound:          codes.NotFound,
		CodeRunAlreadyExists:     codes.AlreadyExists,
		CodeLayoutInvalid:        codes.FailedPrecondition,
		CodeStorageFailure:       codes.Unavailable,
		CodeUnknown:              codes.Internal,
	}
	for code, want := range tests {
		if got := code.GRPCCode(); got != want {
			t.Fatalf("%s.GRPCCode() = %s, want %s", code, got, want)
		}
	}
}

func TestToGRPCAttachesDetails(t *testing.T) {
	err := WithMetadata(CodeRunNotFound, "run r-1 not found", map[string]string{"run_id": "r-1"})
	st, ok := status.FromError(ToGRPC(err, "fr-FR"))
	if !ok {
		t.Fatal("expected grpc status")
	}
	if st.Code() != codes.NotFound {
		t.Fatalf("code = %s, want %s", st.Code(), codes.NotFound)
	}
	var info *errdetails.ErrorInfo
	var localized *errdetails.LocalizedMessage
	for _, detail := range st.Details() {
		switch d := detail.(type) {
		case *errdetails.ErrorInfo:
			info = d
		case *errdetails.LocalizedMessage:
			localized = d
		}
	}
	if info == nil || info.Reason != string(CodeRunNotFound) || info.Domain != Domain {
		t.Fatalf("error info = %+v", info)
	}
	if localized == nil || localized.Locale != "fr-FR" || localized.Message != "La partie r-1 n'existe pas." {
		t.Fatalf("localized message = %+v", localized)
	}
}

func TestToGRPCPlainErrors(t *testing.T) {
	if ToGRPC(nil, "") != nil {
		t.Fatal("expected nil")
	}
	st, _ := status.FromError(ToGRPC(stderrors.New("boom"), ""))
	if st.Code() != codes.Internal {
		t.Fatalf("code = %s, want %s", st.Code(), codes.Internal)
	}
	passthrough := status.Error(codes.Canceled, "gone")
	if got := ToGRPC(passthrough, ""); got != passthrough {
		t.Fatalf("status error was rewritten: %v", got)
	}
}

func TestEveryCodeHasMessage(t *testing.T) {
	cat := i18n.GetCatalog(i18n.BaseLocale)
	for _, code := range Codes() {
		if !cat.Has(string(code)) {
			t.Fatalf("no message for %s", code)
		}
	}
}
