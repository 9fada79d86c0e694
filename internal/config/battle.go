package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// BattleConfig is the checked-in ruleset shared by every match in a
// benchmark version. Loaded once, passed around by pointer, never mutated.
type BattleConfig struct {
	Battlefield struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"battlefield"`
	NumberOfRounds          int     `json:"numberOfRounds"`
	GunCoolingRate          float64 `json:"gunCoolingRate"`
	MaxInactivityTurns      int     `json:"maxInactivityTurns"`
	TurnTimeout             int     `json:"turnTimeout"`
	ReadyTimeout            int     `json:"readyTimeout"`
	TurnsPerSecond          int     `json:"turnsPerSecond"`
	MinNumberOfParticipants int     `json:"minNumberOfParticipants"`
}

func LoadBattleConfig(path string) (*BattleConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading battle config %s: %w", path, err)
	}
	var bc BattleConfig
	if err := json.Unmarshal(data, &bc); err != nil {
		return nil, fmt.Errorf("parsing battle config %s: %w", path, err)
	}
	if bc.Battlefield.Width == 0 {
		bc.Battlefield.Width = 800
	}
	if bc.Battlefield.Height == 0 {
		bc.Battlefield.Height = 600
	}
	if bc.NumberOfRounds == 0 {
		bc.NumberOfRounds = 10
	}
	if bc.GunCoolingRate == 0 {
		bc.GunCoolingRate = 0.1
	}
	if bc.MaxInactivityTurns == 0 {
		bc.MaxInactivityTurns = 450
	}
	if bc.TurnTimeout == 0 {
		bc.TurnTimeout = 40
	}
	if bc.ReadyTimeout == 0 {
		bc.ReadyTimeout = 10000
	}
	if bc.TurnsPerSecond == 0 {
		bc.TurnsPerSecond = 60
	}
	return &bc, nil
}
