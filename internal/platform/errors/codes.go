// Package errors provides coded domain errors that map onto gRPC statuses.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Run errors
	CodeRunIDRequired    Code = "RUN_ID_REQUIRED"
	CodeRunNotFound      Code = "RUN_NOT_FOUND"
	CodeRunAlreadyExists Code = "RUN_ALREADY_EXISTS"

	// Signal errors
	CodeSignalTypeRequired   Code = "SIGNAL_TYPE_REQUIRED"
	CodeSignalUnknown        Code = "SIGNAL_UNKNOWN"
	CodeSignalRoleForbidden  Code = "SIGNAL_ROLE_FORBIDDEN"
	CodeSignalPayloadInvalid Code = "SIGNAL_PAYLOAD_INVALID"
	CodeWaveMemberUnknown    Code = "WAVE_MEMBER_UNKNOWN"

	// Operator errors
	CodeOverridePhaseInvalid Code = "OVERRIDE_PHASE_INVALID"

	// Query errors
	CodeQueryKeyInvalid Code = "QUERY_KEY_INVALID"
	CodePhaseInvalid    Code = "PHASE_INVALID"

	// Infrastructure errors
	CodeLayoutInvalid  Code = "LAYOUT_INVALID"
	CodeStorageFailure Code = "STORAGE_FAILURE"
)

// Codes lists every code with a user-facing message.
func Codes() []Code {
	return []Code{
		CodeRunIDRequired, CodeRunNotFound, CodeRunAlreadyExists,
		CodeSignalTypeRequired, CodeSignalUnknown, CodeSignalRoleForbidden, CodeSignalPayloadInvalid,
		CodeWaveMemberUnknown, CodeOverridePhaseInvalid, CodeQueryKeyInvalid, CodePhaseInvalid,
		CodeLayoutInvalid, CodeStorageFailure,
	}
}

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - malformed input rejected at the boundary
	case CodeRunIDRequired,
		CodeSignalTypeRequired,
		CodeSignalUnknown,
		CodeSignalPayloadInvalid,
		CodeWaveMemberUnknown,
		CodeOverridePhaseInvalid,
		CodeQueryKeyInvalid,
		CodePhaseInvalid:
		return codes.InvalidArgument

	// PermissionDenied - the emitting role may not send the signal
	case CodeSignalRoleForbidden:
		return codes.PermissionDenied

	// NotFound - run doesn't exist
	case CodeRunNotFound:
		return codes.NotFound

	// AlreadyExists - run id taken
	case CodeRunAlreadyExists:
		return codes.AlreadyExists

	// FailedPrecondition - the service was configured with a bad layout
	case CodeLayoutInvalid:
		return codes.FailedPrecondition

	case CodeStorageFailure:
		return codes.Unavailable

	default:
		return codes.Internal
	}
}
