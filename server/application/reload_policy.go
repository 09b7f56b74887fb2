package application

import (
	"errors"
	"fmt"
)

// ReloadPolicy は装填カウントダウンの減算経路を選びます。
type ReloadPolicy uint8

const (
	// ReloadManual は Reload アクションのみで減算します。
	ReloadManual ReloadPolicy = iota
	// ReloadAutomatic はターン終了時に自動で減算し、Reload アクションは何もしません。
	ReloadAutomatic
	// ReloadStacking は両方の経路で減算します。
	ReloadStacking
)

var ErrUnknownReloadPolicy = errors.New("unknown reload policy")

var reloadPolicyNames = [...]string{
	ReloadManual:    "manual",
	ReloadAutomatic: "automatic",
	ReloadStacking:  "stacking",
}

func (r ReloadPolicy) String() string {
	if int(r) < len(reloadPolicyNames) {
		return reloadPolicyNames[r]
	}
	return fmt.Sprintf("reload_policy(%d)", uint8(r))
}

// ParseReloadPolicy は名前から ReloadPolicy を返します。
func ParseReloadPolicy(s string) (ReloadPolicy, error) {
	for i, name := range reloadPolicyNames {
		if name == s {
			return ReloadPolicy(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownReloadPolicy, s)
}

func (r ReloadPolicy) actionReloads() bool {
	return r == ReloadManual || r == ReloadStacking
}

func (r ReloadPolicy) passiveReloads() bool {
	return r == ReloadAutomatic || r == ReloadStacking
}
