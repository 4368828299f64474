package audio

import (
	"bufio"
	"bytes"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// lookPath and runCommand are replaced in tests
var (
	lookPath   = exec.LookPath
	runCommand = func(name string, args ...string) ([]byte, error) {
		return exec.Command(name, args...).Output()
	}
)

// DetectBackend searches for available audio backends
// Priority: pacat > pw-cat > aplay > play (sox) > ffplay > OSS > in-process speaker
func DetectBackend() (*BackendConfig, error) {
	// PulseAudio/PipeWire (works on Linux and FreeBSD with pulse installed)
	if path, err := lookPath("pacat"); err == nil {
		return &BackendConfig{
			Type: BackendPulse,
			Name: "pacat",
			Path: path,
			Args: []string{
				"--raw",
				"--format=s16le",
				"--rate=44100",
				"--channels=2",
				"--latency-msec=50",
				"--playback",
			},
		}, nil
	}

	// PipeWire native
	if path, err := lookPath("pw-cat"); err == nil {
		return &BackendConfig{
			Type: BackendPipeWire,
			Name: "pw-cat",
			Path: path,
			Args: []string{
				"--playback",
				"--format=s16",
				"--rate=44100",
				"--channels=2",
				"--latency=50ms",
				"-",
			},
		}, nil
	}

	// ALSA (Linux)
	if path, err := lookPath("aplay"); err == nil {
		return &BackendConfig{
			Type: BackendALSA,
			Name: "aplay",
			Path: path,
			Args: []string{
				"-t", "raw",
				"-f", "S16_LE",
				"-r", "44100",
				"-c", "2",
				"-q",
			},
		}, nil
	}

	// SoX (cross-platform)
	if path, err := lookPath("play"); err == nil {
		return &BackendConfig{
			Type: BackendSoX,
			Name: "sox",
			Path: path,
			Args: []string{
				"-t", "raw",
				"-e", "signed",
				"-b", "16",
				"-c", "2",
				"-r", "44100",
				"-",
				"-d",
				"-q",
			},
		}, nil
	}

	// FFplay (heavyweight fallback)
	if path, err := lookPath("ffplay"); err == nil {
		return &BackendConfig{
			Type: BackendFFplay,
			Name: "ffplay",
			Path: path,
			Args: []string{
				"-nodisp",
				"-autoexit",
				"-f", "s16le",
				"-ac", "2",
				"-ar", "44100",
				"-probesize", "32",
				"-analyzeduration", "0",
				"-i", "pipe:0",
				"-loglevel", "quiet",
			},
		}, nil
	}

	// FreeBSD OSS (direct device write, no exec needed)
	if runtime.GOOS == "freebsd" {
		if _, err := os.Stat("/dev/dsp"); err == nil {
			return &BackendConfig{
				Type: BackendOSS,
				Name: "oss",
				Path: "/dev/dsp",
			}, nil
		}
	}

	// Native output through the OS audio API, default device only
	return &BackendConfig{
		Type: BackendSpeaker,
		Name: "speaker",
	}, nil
}

// ListDevices returns output device names known to the backend
// "default" is always first
func ListDevices(b *BackendConfig) ([]string, error) {
	devices := []string{DefaultDevice}

	switch b.Type {
	case BackendPulse, BackendPipeWire:
		if _, err := lookPath("pactl"); err != nil {
			return devices, nil
		}
		out, err := runCommand("pactl", "list", "short", "sinks")
		if err != nil {
			return nil, err
		}
		return append(devices, parsePactlSinks(out)...), nil

	case BackendALSA:
		out, err := runCommand(b.Path, "-L")
		if err != nil {
			return nil, err
		}
		return append(devices, parseAplayList(out)...), nil
	}

	return devices, nil
}

// parsePactlSinks extracts sink names from `pactl list short sinks`
// Line format: index<TAB>name<TAB>driver<TAB>spec<TAB>state
func parsePactlSinks(out []byte) []string {
	var names []string
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		fields := strings.Split(sc.Text(), "\t")
		if len(fields) < 2 || fields[1] == "" {
			continue
		}
		names = append(names, fields[1])
	}
	return names
}

// parseAplayList extracts PCM names from `aplay -L`
// Names start at column 0, descriptions are indented
func parseAplayList(out []byte) []string {
	var names []string
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		if line == "" || line[0] == ' ' || line[0] == '\t' {
			continue
		}
		name := strings.TrimSpace(line)
		if name == DefaultDevice || name == "null" {
			continue
		}
		names = append(names, name)
	}
	return names
}

// deviceArgs returns extra arguments selecting a named device
func deviceArgs(b *BackendConfig, device string) []string {
	if device == "" || device == DefaultDevice {
		return nil
	}
	switch b.Type {
	case BackendPulse:
		return []string{"--device=" + device}
	case BackendPipeWire:
		return []string{"--target=" + device}
	case BackendALSA:
		return []string{"-D", device}
	}
	return nil
}
