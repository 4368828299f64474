package audio

import (
	"errors"

	"github.com/lixenwraith/killsound/constant"
)

// BackendType identifies the audio backend
type BackendType int

const (
	BackendPulse BackendType = iota
	BackendPipeWire
	BackendALSA
	BackendSoX
	BackendFFplay
	BackendOSS
	BackendSpeaker // in-process output through beep/oto
)

var backendNames = [...]string{
	BackendPulse:    "pulse",
	BackendPipeWire: "pipewire",
	BackendALSA:     "alsa",
	BackendSoX:      "sox",
	BackendFFplay:   "ffplay",
	BackendOSS:      "oss",
	BackendSpeaker:  "speaker",
}

func (t BackendType) String() string {
	if t < 0 || int(t) >= len(backendNames) {
		return "unknown"
	}
	return backendNames[t]
}

// BackendConfig describes an output backend
type BackendConfig struct {
	Type BackendType
	Name string
	Path string
	Args []string
}

// DefaultDevice is the name every backend accepts
const DefaultDevice = constant.DefaultDevice

// Sentinel errors
var (
	ErrNoAudioBackend = errors.New("no compatible audio backend found")
	ErrPipeClosed     = errors.New("audio pipe closed")
	ErrDeviceClosed   = errors.New("audio device closed")
)
