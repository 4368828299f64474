package gsi

import (
	"bytes"
	"encoding/json"

	"github.com/lixenwraith/killsound/state"
)

// Document is the subset of a game-state update the listener consumes
type Document struct {
	Map    json.RawMessage `json:"map"`
	Player *Player         `json:"player"`
	Auth   *Auth           `json:"auth"`
}

// Player is the observed player section
type Player struct {
	SteamID string       `json:"steamid"`
	Name    string       `json:"name"`
	State   *PlayerState `json:"state"`
}

// PlayerState carries the per-round counters
type PlayerState struct {
	RoundKills   uint `json:"round_kills"`
	RoundKillsHS uint `json:"round_killhs"`
}

// Auth is the token block configured in the game's cfg file
type Auth struct {
	Token string `json:"token"`
}

// complete reports whether the sections needed for evaluation are present
func (d *Document) complete() bool {
	if len(d.Map) == 0 || bytes.Equal(d.Map, []byte("null")) {
		return false
	}
	return d.Player != nil && d.Player.State != nil
}

// Snapshot extracts the tracker input
func (d *Document) Snapshot() state.Snapshot {
	return state.Snapshot{
		Identity:      d.Player.SteamID,
		Kills:         d.Player.State.RoundKills,
		HeadshotKills: d.Player.State.RoundKillsHS,
	}
}

// token returns the supplied auth token, empty if absent
func (d *Document) token() string {
	if d.Auth == nil {
		return ""
	}
	return d.Auth.Token
}
