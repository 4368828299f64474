package constant

import "time"

// Listener defaults
const (
	DefaultListenAddr = "127.0.0.1:3000"

	// RequestTimeout bounds one inbound state document, independent of playback
	RequestTimeout = 10 * time.Second

	// ReadHeaderTimeout limits how long the server waits for request headers
	ReadHeaderTimeout = 5 * time.Second

	// ShutdownTimeout limits graceful shutdown of the listener and in-flight jobs
	ShutdownTimeout = 5 * time.Second

	// MaxDocumentBytes caps an inbound state document
	MaxDocumentBytes = 1 << 20
)

// Script sandbox limits
const (
	ScriptCallTimeout = time.Second
)

// Preset storage
const (
	DefaultSoundsDir = "sounds"
	DefaultDevice    = "default"
	VariantSeparator = "_v_"
	DescriptorJSON   = "info.json"
	DescriptorTOML   = "info.toml"
	ScriptLua        = "script.lua"
	ScriptJS         = "script.js"
	ScriptEntryPoint = "get_sounds"
	AssetExtension   = ".wav"
	AssetCommon      = "common"
	AssetCommonHS    = "common_headshot"
	AssetHeadshot    = "headshot"
)
