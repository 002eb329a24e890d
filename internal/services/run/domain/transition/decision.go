package transition

import (
	"github.com/louisbranch/dungeonrun/internal/services/run/domain/action"
	"github.com/louisbranch/dungeonrun/internal/services/run/domain/progress"
)

const (
	RejectionCodeSignalUnsupported     = "SIGNAL_UNSUPPORTED"
	RejectionCodeSignalOutOfWindow     = "SIGNAL_OUT_OF_WINDOW"
	RejectionCodeSignalRoleForbidden   = "SIGNAL_ROLE_FORBIDDEN"
	RejectionCodeSignalPayloadInvalid  = "SIGNAL_PAYLOAD_INVALID"
	RejectionCodeWaveMemberUnknown     = "WAVE_MEMBER_UNKNOWN"
	RejectionCodeWaveMemberAlreadyDead = "WAVE_MEMBER_ALREADY_DEAD"
	RejectionCodeBossAlreadyDefeated   = "BOSS_ALREADY_DEFEATED"
	RejectionCodeOverridePhaseInvalid  = "OVERRIDE_PHASE_INVALID"
	RejectionCodeStateInvalid          = "STATE_INVALID"
)

// Rejection captures why a signal was declined.
type Rejection struct {
	Code    string
	Message string
}

// Decision is the pure outcome of one signal or override.
type Decision struct {
	Accepted bool
	From     progress.Phase
	To       progress.Phase
	// State is the next state when accepted, the unchanged input otherwise.
	State     State
	Effects   []action.Action
	Rejection Rejection
	// Regressed marks a recovery after the key actor died.
	Regressed bool
	// Overridden marks a jump that bypassed the forward guards.
	Overridden bool
}

// Transitioned reports whether the phase changed.
func (d Decision) Transitioned() bool {
	return d.Accepted && d.From != d.To
}

func reject(state State, code, message string) Decision {
	return Decision{
		From:      state.Phase,
		To:        state.Phase,
		State:     state,
		Rejection: Rejection{Code: code, Message: message},
	}
}

func accept(from progress.Phase, next State, effects []action.Action) Decision {
	next.Seq++
	return Decision{
		Accepted: true,
		From:     from,
		To:       next.Phase,
		State:    next,
		Effects:  effects,
	}
}
