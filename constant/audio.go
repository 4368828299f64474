package constant

import "time"

// Audio Hardware Settings
const (
	AudioSampleRate    = 44100
	AudioChannels      = 2
	AudioBitDepth      = 16
	AudioBytesPerFrame = AudioChannels * (AudioBitDepth / 8) // 4 bytes
)

// Audio Engine Timing
const (
	// AudioBufferDuration determines latency and mixer tick rate
	AudioBufferDuration = 50 * time.Millisecond

	// AudioBufferSamples is frames per mixer tick at 44.1kHz
	AudioBufferSamples = (AudioSampleRate * 50) / 1000 // 2205

	// AudioSpeakerBuffer is the in-process speaker buffer length
	AudioSpeakerBuffer = 100 * time.Millisecond

	// AudioQueueSize bounds job streams waiting to join the render loop
	AudioQueueSize = 32

	// AudioResampleQuality is passed to beep.Resample (1 fast .. 6 best)
	AudioResampleQuality = 4
)

// Playback
const (
	// DefaultMaxJobs caps concurrently in-flight playback jobs
	DefaultMaxJobs = 16
)
