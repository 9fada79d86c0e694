package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// BotResult is one participant's aggregate result as reported by the
// server at game end (and, when emitted, at round end).
type BotResult struct {
	Name              string  `json:"name"`
	Rank              int     `json:"rank"`
	TotalScore        float64 `json:"totalScore"`
	Survival          float64 `json:"survival"`
	LastSurvivorBonus float64 `json:"lastSurvivorBonus"`
	BulletDamage      float64 `json:"bulletDamage"`
	BulletDamageBonus float64 `json:"bulletDamageBonus"`
	RamDamage         float64 `json:"ramDamage"`
	RamDamageBonus    float64 `json:"ramDamageBonus"`
}

// Outcome is everything the controller observed for one battle.
type Outcome struct {
	// Results is the game-level aggregate, one entry per surviving
	// participant record.
	Results []BotResult
	// RoundResults holds per-round result snapshots keyed by round number
	// when the server emits them; may be sparse or empty.
	RoundResults map[int][]BotResult
	// Rounds is the number of rounds the server reported at game end.
	Rounds int
	// Turns counts ticks observed across the battle.
	Turns int
	// Stopped is set when the controller cut the game short (dry runs).
	Stopped bool
}

// LobbyTimeoutError reports bots that never joined the lobby within the
// connection window.
type LobbyTimeoutError struct {
	Missing []string
}

func (e *LobbyTimeoutError) Error() string {
	return fmt.Sprintf("bots did not connect in time: %s", strings.Join(e.Missing, ", "))
}

// ControllerOpts configures one controller session.
type ControllerOpts struct {
	URL            string
	Secret         string
	Expected       []string
	Setup          GameSetup
	Seed           int
	ConnectTimeout time.Duration
	// StopAfterTurns ends the game early once this many ticks have been
	// observed. Zero means run to completion. Used by the dry run to
	// confirm the bot advances turns without playing a full battle.
	StopAfterTurns int
	Logger         zerolog.Logger
}

type message struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Bots      []lobbyBot  `json:"bots,omitempty"`
	Results   []BotResult `json:"results,omitempty"`
	Round     int         `json:"roundNumber,omitempty"`
	Turn      int         `json:"turnNumber,omitempty"`
	NumRounds int         `json:"numberOfRounds,omitempty"`
}

type lobbyBot struct {
	Name string `json:"name"`
	Host string `json:"host"`
	Port int    `json:"port"`
}

type botAddress struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// RunController drives one battle: handshake, wait for the expected bots
// to join, start the game with the seeded setup, and collect results until
// the game ends or ctx expires.
func RunController(ctx context.Context, opts ControllerOpts) (*Outcome, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, opts.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing server %s: %w", opts.URL, err)
	}
	defer conn.Close()

	// Close the socket when ctx expires so blocked reads unblock.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	read := func() (*message, error) {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decoding server message: %w", err)
		}
		return &msg, nil
	}

	hello, err := read()
	if err != nil {
		return nil, fmt.Errorf("reading server handshake: %w", err)
	}
	if hello.Type != "ServerHandshake" {
		return nil, fmt.Errorf("unexpected first message %q", hello.Type)
	}
	handshake := map[string]any{
		"type":      "ControllerHandshake",
		"sessionId": hello.SessionID,
		"name":      "tankbench-controller",
		"version":   "1.0",
		"author":    "tankbench",
	}
	if opts.Secret != "" {
		handshake["secret"] = opts.Secret
	}
	if err := conn.WriteJSON(handshake); err != nil {
		return nil, fmt.Errorf("sending controller handshake: %w", err)
	}

	// Lobby phase: all expected bots must appear within the connection
	// window.
	joined := map[string]lobbyBot{}
	connectTimeout := opts.ConnectTimeout
	if connectTimeout == 0 {
		connectTimeout = 10 * time.Second
	}
	lobbyDeadline := time.Now().Add(connectTimeout)
	for !allJoined(opts.Expected, joined) {
		conn.SetReadDeadline(lobbyDeadline)
		msg, err := read()
		if err != nil {
			return nil, &LobbyTimeoutError{Missing: missing(opts.Expected, joined)}
		}
		if msg.Type == "BotListUpdate" {
			for _, b := range msg.Bots {
				joined[b.Name] = b
			}
		}
	}
	conn.SetReadDeadline(time.Time{})

	addresses := make([]botAddress, 0, len(opts.Expected))
	for _, name := range opts.Expected {
		b := joined[name]
		addresses = append(addresses, botAddress{Host: b.Host, Port: b.Port})
	}
	setup := opts.Setup
	seed := opts.Seed
	setup.Seed = &seed
	start := map[string]any{
		"type":         "StartGame",
		"botAddresses": addresses,
		"gameSetup":    setup,
	}
	if err := conn.WriteJSON(start); err != nil {
		return nil, fmt.Errorf("sending StartGame: %w", err)
	}
	opts.Logger.Debug().Int("seed", opts.Seed).Strs("bots", opts.Expected).Msg("game started")

	out := &Outcome{RoundResults: map[int][]BotResult{}}
	for {
		msg, err := read()
		if err != nil {
			return out, fmt.Errorf("reading game events: %w", err)
		}
		switch msg.Type {
		case "TickEventForObserver":
			out.Turns++
			if opts.StopAfterTurns > 0 && out.Turns >= opts.StopAfterTurns {
				conn.WriteJSON(map[string]any{"type": "StopGame"})
				out.Stopped = true
				return out, nil
			}
		case "RoundEndedEventForObserver":
			if len(msg.Results) > 0 {
				out.RoundResults[msg.Round] = rankResults(msg.Results)
			}
		case "GameEndedEventForObserver":
			out.Results = rankResults(msg.Results)
			out.Rounds = msg.NumRounds
			return out, nil
		case "GameAbortedEvent":
			return out, fmt.Errorf("server aborted the game")
		}
	}
}

// rankResults assigns dense ranks by descending total score when the
// server did not set them.
func rankResults(results []BotResult) []BotResult {
	ranked := make([]BotResult, len(results))
	copy(ranked, results)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].TotalScore > ranked[j].TotalScore
	})
	for i := range ranked {
		if ranked[i].Rank == 0 {
			ranked[i].Rank = i + 1
		}
	}
	return ranked
}

func allJoined(expected []string, joined map[string]lobbyBot) bool {
	for _, name := range expected {
		if _, ok := joined[name]; !ok {
			return false
		}
	}
	return true
}

func missing(expected []string, joined map[string]lobbyBot) []string {
	var out []string
	for _, name := range expected {
		if _, ok := joined[name]; !ok {
			out = append(out, name)
		}
	}
	return out
}
