package upsert

import (
	"fmt"
	"strings"
)

// Mode selects how a row is written.
type Mode string

const (
	// ModeCompare looks the key up and updates only when a column differs.
	ModeCompare Mode = "compare"
	// ModeAlways looks the key up and updates whenever it matches.
	ModeAlways Mode = "always"
	// ModeInsert inserts without looking up. Meant for freshly created tables.
	ModeInsert Mode = "insert"
	// ModeMerge issues one MERGE / ON CONFLICT statement per row.
	ModeMerge Mode = "merge"
)

// Modes lists every accepted mode.
var Modes = []Mode{ModeCompare, ModeAlways, ModeInsert, ModeMerge}

// ParseMode accepts a mode name case-insensitively. "" means ModeCompare.
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ModeCompare, nil
	}
	for _, m := range Modes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown upsert mode %q (want compare, always, insert or merge)", s)
}
