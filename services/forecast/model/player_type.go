// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PlayerType is a player position. The numeric values match the FPL API
// element_type field.
type PlayerType int

const (
	GKP PlayerType = iota + 1
	DEF
	MID
	FWD
	MNG
)

// PlayerTypes lists the playing positions in squad order.
var PlayerTypes = []PlayerType{GKP, DEF, MID, FWD}

var playerTypeNames = map[PlayerType]string{
	GKP: "GKP",
	DEF: "DEF",
	MID: "MID",
	FWD: "FWD",
	MNG: "MNG",
}

// String returns the position abbreviation.
func (t PlayerType) String() string {
	if name, ok := playerTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("PlayerType(%d)", int(t))
}

// Valid reports whether t is a known position.
func (t PlayerType) Valid() bool {
	_, ok := playerTypeNames[t]
	return ok
}

// ParsePlayerType parses an abbreviation such as "MID", case-insensitively.
func ParsePlayerType(s string) (PlayerType, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for t, name := range playerTypeNames {
		if name == upper {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown player type %q", s)
}

// MarshalJSON encodes the type as its abbreviation.
func (t PlayerType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON accepts an abbreviation such as "MID" or the API's
// numeric element_type.
func (t *PlayerType) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		parsed, err := ParsePlayerType(name)
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("player type: %w", err)
	}
	if !PlayerType(n).Valid() {
		return fmt.Errorf("unknown player type %d", n)
	}
	*t = PlayerType(n)
	return nil
}

// CleanSheetPoints is the score for keeping a clean sheet.
func (t PlayerType) CleanSheetPoints() float64 {
	switch t {
	case GKP, DEF:
		return 4
	case MID:
		return 1
	default:
		return 0
	}
}

// GoalPoints is the score for one goal.
func (t PlayerType) GoalPoints() float64 {
	switch t {
	case GKP, DEF:
		return 6
	case MID:
		return 5
	case FWD:
		return 4
	default:
		return 0
	}
}

// AssistPoints is the score for one assist.
func (t PlayerType) AssistPoints() float64 {
	return 3
}

// DCPoints weights one unit of defensive contribution.
func (t PlayerType) DCPoints() float64 {
	switch t {
	case DEF:
		return .1 / 10
	case MID, FWD:
		return .1 / 12
	default:
		return 0
	}
}
