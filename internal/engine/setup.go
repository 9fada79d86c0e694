package engine

import "github.com/signalnine/tankbench/internal/config"

// GameSetup is the wire-level game setup sent with StartGame. Every rule
// field is locked so bots cannot renegotiate the benchmark ruleset.
type GameSetup struct {
	GameType                         string  `json:"gameType"`
	ArenaWidth                       int     `json:"arenaWidth"`
	IsArenaWidthLocked               bool    `json:"isArenaWidthLocked"`
	ArenaHeight                      int     `json:"arenaHeight"`
	IsArenaHeightLocked              bool    `json:"isArenaHeightLocked"`
	MinNumberOfParticipants          int     `json:"minNumberOfParticipants"`
	IsMinNumberOfParticipantsLocked  bool    `json:"isMinNumberOfParticipantsLocked"`
	MaxNumberOfParticipants          int     `json:"maxNumberOfParticipants"`
	IsMaxNumberOfParticipantsLocked  bool    `json:"isMaxNumberOfParticipantsLocked"`
	NumberOfRounds                   int     `json:"numberOfRounds"`
	IsNumberOfRoundsLocked           bool    `json:"isNumberOfRoundsLocked"`
	GunCoolingRate                   float64 `json:"gunCoolingRate"`
	IsGunCoolingRateLocked           bool    `json:"isGunCoolingRateLocked"`
	MaxInactivityTurns               int     `json:"maxInactivityTurns"`
	IsMaxInactivityTurnsLocked       bool    `json:"isMaxInactivityTurnsLocked"`
	TurnTimeout                      int     `json:"turnTimeout"`
	IsTurnTimeoutLocked              bool    `json:"isTurnTimeoutLocked"`
	ReadyTimeout                     int     `json:"readyTimeout"`
	IsReadyTimeoutLocked             bool    `json:"isReadyTimeoutLocked"`
	DefaultTurnsPerSecond            int     `json:"defaultTurnsPerSecond"`
	Seed                             *int    `json:"seed,omitempty"`
}

// NewGameSetup builds a locked setup from the shared battle config.
func NewGameSetup(bc *config.BattleConfig, gameType string, participants int) GameSetup {
	minParticipants := bc.MinNumberOfParticipants
	if minParticipants == 0 {
		minParticipants = participants
	}
	if minParticipants > participants {
		minParticipants = participants
	}
	return GameSetup{
		GameType:                        gameType,
		ArenaWidth:                      bc.Battlefield.Width,
		IsArenaWidthLocked:              true,
		ArenaHeight:                     bc.Battlefield.Height,
		IsArenaHeightLocked:             true,
		MinNumberOfParticipants:         minParticipants,
		IsMinNumberOfParticipantsLocked: true,
		MaxNumberOfParticipants:         participants,
		NumberOfRounds:                  bc.NumberOfRounds,
		IsNumberOfRoundsLocked:          true,
		GunCoolingRate:                  bc.GunCoolingRate,
		IsGunCoolingRateLocked:          true,
		MaxInactivityTurns:              bc.MaxInactivityTurns,
		IsMaxInactivityTurnsLocked:      true,
		TurnTimeout:                     bc.TurnTimeout,
		IsTurnTimeoutLocked:             true,
		ReadyTimeout:                    bc.ReadyTimeout,
		IsReadyTimeoutLocked:            true,
		DefaultTurnsPerSecond:           bc.TurnsPerSecond,
	}
}
