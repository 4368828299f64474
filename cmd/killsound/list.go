package main

import (
	"fmt"
	"io"

	"github.com/lixenwraith/killsound/audio"
	"github.com/lixenwraith/killsound/preset"
)

// listDevices prints the detected backend and its output devices
func listDevices(w io.Writer) error {
	backend, err := audio.DetectBackend()
	if err != nil {
		return err
	}

	devices, err := audio.ListDevices(backend)
	if err != nil {
		return fmt.Errorf("list devices on %s: %w", backend.Name, err)
	}

	fmt.Fprintf(w, "Output devices (%s):\n", backend.Name)
	for _, d := range devices {
		fmt.Fprintf(w, "  %s\n", d)
	}
	return nil
}

// listPresets prints every master preset with its variants
func listPresets(w io.Writer, root string) error {
	entries, err := preset.List(root)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "Available presets:")
	for _, e := range entries {
		fmt.Fprintf(w, "  %s\n", e)
	}
	return nil
}
