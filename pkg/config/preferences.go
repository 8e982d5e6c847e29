/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: preferences.go
Description: Mutable user preferences for the CrashGuard engine. A small JSON-backed
store for the handful of values the user can change at runtime: the global
always-accept override, the contact email included in reports, and the opt-out flag.
*/

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// preferenceValues is the persisted preference document.
type preferenceValues struct {
	AlwaysAccept bool   `json:"always_accept"`
	UserEmail    string `json:"user_email"`
	Disabled     bool   `json:"disabled"`
}

// Preferences is a concurrency-safe view over the preference file. An empty
// path yields an in-memory instance, which is what tests and headless hosts
// without persistent preferences use.
type Preferences struct {
	path   string
	mu     sync.RWMutex
	values preferenceValues
}

// LoadPreferences reads the preference file, tolerating a missing one.
func LoadPreferences(path string) (*Preferences, error) {
	p := &Preferences{path: path}
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read preferences: %w", err)
	}
	if err := json.Unmarshal(data, &p.values); err != nil {
		return nil, fmt.Errorf("failed to parse preferences: %w", err)
	}
	return p, nil
}

// save persists the current values. Callers hold the write lock.
func (p *Preferences) save() error {
	if p.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(p.values, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0700); err != nil {
		return fmt.Errorf("failed to create preferences directory: %w", err)
	}
	if err := os.WriteFile(p.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	return nil
}

// AlwaysAccept reports whether the user granted blanket send approval.
// When set, approval gating is bypassed for every report.
func (p *Preferences) AlwaysAccept() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.values.AlwaysAccept
}

// SetAlwaysAccept records the blanket approval decision.
func (p *Preferences) SetAlwaysAccept(accept bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values.AlwaysAccept = accept
	return p.save()
}

// UserEmail returns the contact address included in reports, if any.
func (p *Preferences) UserEmail() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.values.UserEmail
}

// SetUserEmail records the contact address.
func (p *Preferences) SetUserEmail(email string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values.UserEmail = email
	return p.save()
}

// Disabled reports whether the user opted out of crash reporting.
func (p *Preferences) Disabled() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.values.Disabled
}

// SetDisabled records the opt-out decision.
func (p *Preferences) SetDisabled(disabled bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values.Disabled = disabled
	return p.save()
}
