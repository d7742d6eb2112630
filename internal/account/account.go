// Package account models the Account record (spec.md §3) and the account
// file's external interface (spec.md §6): a comment-tolerant JSON array, or
// an object with an "accounts" array, of per-account credentials.
package account

import (
	"encoding/json"

	"github.com/kestrelops/rewardsbot/internal/config"
	"github.com/kestrelops/rewardsbot/internal/errtax"
)

// Proxy is an account's optional upstream proxy.
type Proxy struct {
	Scheme string `json:"scheme,omitempty"`
	Host   string `json:"host"`
	Port   int    `json:"port"`
	User   string `json:"user,omitempty"`
	Pass   string `json:"pass,omitempty"`
}

// Account is the unit the orchestrator runs the pipeline for (spec.md §3).
// Mutated only by the Config Loader and the Account-Disabler; lifetime is
// the process.
type Account struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	TOTPSeed      string `json:"totp,omitempty"`
	Proxy         *Proxy `json:"proxy,omitempty"`
	RecoveryEmail string `json:"recoveryEmail,omitempty"`
	PhoneNumber   string `json:"phoneNumber,omitempty"`
	Enabled       bool   `json:"enabled"`
}

// wireAccount mirrors Account but keeps Enabled as *bool so LoadFile can
// tell "field absent" (defaults to active) from an explicit "enabled":false.
type wireAccount struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	TOTPSeed      string `json:"totp,omitempty"`
	Proxy         *Proxy `json:"proxy,omitempty"`
	RecoveryEmail string `json:"recoveryEmail,omitempty"`
	PhoneNumber   string `json:"phoneNumber,omitempty"`
	Enabled       *bool  `json:"enabled,omitempty"`
}

func (w wireAccount) resolve() Account {
	enabled := true
	if w.Enabled != nil {
		enabled = *w.Enabled
	}
	return Account{
		Email: w.Email, Password: w.Password, TOTPSeed: w.TOTPSeed,
		Proxy: w.Proxy, RecoveryEmail: w.RecoveryEmail, PhoneNumber: w.PhoneNumber,
		Enabled: enabled,
	}
}

// rawFile matches the external interface's {"accounts": [...]} shape.
type rawFile struct {
	Accounts []wireAccount `json:"accounts"`
}

// LoadFile parses the account file's comment-tolerant JSON, accepting
// either a top-level array or an {"accounts": [...]} object.
func LoadFile(raw []byte) ([]Account, error) {
	normalized := config.Normalize(raw)

	var arr []wireAccount
	if err := json.Unmarshal(normalized, &arr); err == nil {
		return resolveAll(arr), nil
	}

	var wrapped rawFile
	if err := json.Unmarshal(normalized, &wrapped); err != nil {
		return nil, errtax.ConfigError("parse account file", err)
	}
	return resolveAll(wrapped.Accounts), nil
}

func resolveAll(wire []wireAccount) []Account {
	out := make([]Account, len(wire))
	for i, w := range wire {
		out[i] = w.resolve()
	}
	return out
}
