package signal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/dungeonrun/internal/services/run/domain/progress"
)

// PayloadValidator validates a payload JSON document.
type PayloadValidator func(json.RawMessage) error

// CrateRevealedPayload captures the payload for crates.revealed signals.
type CrateRevealedPayload struct {
	// Remaining is the number of crates still hidden after this reveal.
	Remaining *int `json:"remaining"`
}

// MemberDiedPayload captures the payload for waves.member_died signals.
type MemberDiedPayload struct {
	MemberID string `json:"member_id"`
}

// BossDefeatedPayload captures the payload for boss.defeated signals.
type BossDefeatedPayload struct {
	Boss string `json:"boss"`
}

// OverridePayload captures the payload for gm.override signals.
type OverridePayload struct {
	Phase string `json:"phase"`
}

func decodeStrict(raw json.RawMessage, target any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(target)
}

func validateEmptyPayload(raw json.RawMessage) error {
	var payload struct{}
	return decodeStrict(raw, &payload)
}

func validateCrateRevealedPayload(raw json.RawMessage) error {
	var payload CrateRevealedPayload
	if err := decodeStrict(raw, &payload); err != nil {
		return err
	}
	if payload.Remaining == nil {
		return errors.New("remaining is required")
	}
	if *payload.Remaining < 0 {
		return fmt.Errorf("remaining must not be negative, got %d", *payload.Remaining)
	}
	return nil
}

func validateMemberDiedPayload(raw json.RawMessage) error {
	var payload MemberDiedPayload
	if err := decodeStrict(raw, &payload); err != nil {
		return err
	}
	if strings.TrimSpace(payload.MemberID) == "" {
		return errors.New("member id is required")
	}
	return nil
}

func validateBossDefeatedPayload(raw json.RawMessage) error {
	var payload BossDefeatedPayload
	if err := decodeStrict(raw, &payload); err != nil {
		return err
	}
	_, err := ParseBoss(payload.Boss)
	return err
}

func validateOverridePayload(raw json.RawMessage) error {
	var payload OverridePayload
	if err := decodeStrict(raw, &payload); err != nil {
		return err
	}
	_, err := progress.ParsePhase(payload.Phase)
	return err
}
