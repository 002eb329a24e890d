package signal

import (
	"fmt"
	"strings"
)

// Boss identifies a boss encounter tracked independently of the run phase.
type Boss string

const (
	BossMeathook          Boss = "meathook"
	BossSalramm           Boss = "salramm"
	BossEpoch             Boss = "epoch"
	BossMalganis          Boss = "malganis"
	BossInfiniteCorruptor Boss = "infinite_corruptor"
)

// Bosses lists every boss encounter.
func Bosses() []Boss {
	return []Boss{BossMeathook, BossSalramm, BossEpoch, BossMalganis, BossInfiniteCorruptor}
}

// ParseBoss validates a boss name.
func ParseBoss(value string) (Boss, error) {
	trimmed := Boss(strings.ToLower(strings.TrimSpace(value)))
	if trimmed == "" {
		return "", fmt.Errorf("boss is required")
	}
	for _, b := range Bosses() {
		if b == trimmed {
			return b, nil
		}
	}
	return "", fmt.Errorf("boss %q is not supported", value)
}

// Key names a read-only fact exposed by a running instance.
type Key string

const (
	// KeyProgress is the current phase ordinal.
	KeyProgress Key = "progress"
	// KeyGMRecall counts recall requests served.
	KeyGMRecall Key = "gm.recall"
	// KeyGMOverride is the ordinal of the last overridden target phase, 0 if none.
	KeyGMOverride Key = "gm.override"
)

const bossKeyPrefix = "boss."

// BossKey returns the query key for a boss defeated flag.
func BossKey(b Boss) Key {
	return Key(bossKeyPrefix + string(b))
}

// ParseKey validates a query key. Boss keys return the boss they name.
func ParseKey(value string) (Key, Boss, error) {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	switch Key(trimmed) {
	case KeyProgress, KeyGMRecall, KeyGMOverride:
		return Key(trimmed), "", nil
	}
	if name, ok := strings.CutPrefix(trimmed, bossKeyPrefix); ok {
		boss, err := ParseBoss(name)
		if err != nil {
			return "", "", err
		}
		return BossKey(boss), boss, nil
	}
	return "", "", fmt.Errorf("query key %q is not supported", value)
}
