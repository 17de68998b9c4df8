// Package completion guarantees a record carries every canonical field.
package completion

import (
	"fmt"
	"strings"

	"github.com/ternarybob/relatio/internal/models"
	"github.com/ternarybob/relatio/internal/schemas"
)

// Policy decides which existing values count as missing
type Policy string

const (
	// PolicyFalsy treats null, empty or blank strings, zero, false and empty
	// collections as missing
	PolicyFalsy Policy = "falsy"
	// PolicyMissing replaces only absent keys and null values, keeping
	// legitimate zero and false readings
	PolicyMissing Policy = "missing"
)

// ParsePolicy converts a configuration string; empty selects PolicyFalsy
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyFalsy:
		return PolicyFalsy, nil
	case PolicyMissing:
		return PolicyMissing, nil
	}
	return "", fmt.Errorf("unknown completion policy %q (want falsy or missing)", s)
}

// Completer fills canonical fields with a placeholder
type Completer struct {
	placeholder string
	policy      Policy
	fields      []string
}

// NewCompleter creates a completer; a blank placeholder uses the default sentinel
func NewCompleter(placeholder string, policy Policy) *Completer {
	placeholder = strings.TrimSpace(placeholder)
	if placeholder == "" {
		placeholder = schemas.DefaultPlaceholder
	}
	if policy == "" {
		policy = PolicyFalsy
	}
	return &Completer{
		placeholder: placeholder,
		policy:      policy,
		fields:      schemas.CanonicalFields(),
	}
}

// Placeholder returns the sentinel written into unfilled fields
func (c *Completer) Placeholder() string { return c.placeholder }

// Policy returns the active policy
func (c *Completer) Policy() Policy { return c.policy }

// Complete mutates rec so every canonical field is present with a usable
// value and returns the keys it filled. Non-canonical keys are left alone.
// Running it again on its own output fills nothing.
func (c *Completer) Complete(rec *models.Record) []string {
	var filled []string
	for _, key := range c.fields {
		v, ok := rec.Get(key)
		if ok && !c.isMissing(v) {
			continue
		}
		rec.Set(key, models.String(c.placeholder))
		filled = append(filled, key)
	}
	return filled
}

// IsComplete reports whether Complete would leave rec unchanged
func (c *Completer) IsComplete(rec *models.Record) bool {
	for _, key := range c.fields {
		v, ok := rec.Get(key)
		if !ok || c.isMissing(v) {
			return false
		}
	}
	return true
}

func (c *Completer) isMissing(v models.Value) bool {
	if v.IsNull() {
		return true
	}
	if c.policy == PolicyMissing {
		return false
	}
	if v.Kind() == models.KindString {
		return strings.TrimSpace(v.Text()) == ""
	}
	return !v.Truthy()
}
