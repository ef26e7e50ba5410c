// SPDX-License-Identifier: MIT
/*
Package device discovers output devices through PortAudio. The embedded
engine runs at the sample rate of the selected output device.
*/
package device

import (
	"context"
	"fmt"
	"io"
	"time"

	"dspctl/internal/config"
	applog "dspctl/internal/log"

	"github.com/gordonklaus/portaudio"
)

// Device represents an audio device.
type Device struct {
	ID                int
	Name              string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
	DefaultOutput     bool
}

// Initialize sets up the PortAudio subsystem.
// This must be called before any device query and paired with a Terminate() call.
func Initialize() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return nil
}

// Terminate cleanly shuts down the PortAudio subsystem.
func Terminate() error {
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

// Refresh re-initializes PortAudio, which enumerates devices only on
// initialization.
func Refresh() error {
	if err := Terminate(); err != nil {
		return err
	}
	return Initialize()
}

// Replaced in tests.
var (
	paDevicesFunc       = portaudio.Devices
	paDefaultOutputFunc = portaudio.DefaultOutputDevice
)

// HostDevices returns every device PortAudio reports. PortAudio must be
// initialized.
func HostDevices() ([]Device, error) {
	infos, err := paDevicesFunc()
	if err != nil {
		return nil, err
	}
	def, _ := paDefaultOutputFunc()
	return toDevices(infos, def), nil
}

func toDevices(infos []*portaudio.DeviceInfo, def *portaudio.DeviceInfo) []Device {
	devices := make([]Device, len(infos))
	for i, info := range infos {
		devices[i] = Device{
			ID:                i,
			Name:              info.Name,
			MaxInputChannels:  info.MaxInputChannels,
			MaxOutputChannels: info.MaxOutputChannels,
			DefaultSampleRate: info.DefaultSampleRate,
			DefaultOutput:     def != nil && info.Name == def.Name,
		}
	}
	return devices
}

// Output picks the output device for id. config.MinDeviceID selects the
// system default.
func Output(devices []Device, id int) (Device, error) {
	if id == config.MinDeviceID {
		for _, d := range devices {
			if d.DefaultOutput {
				return d, nil
			}
		}
		return Device{}, fmt.Errorf("no default output device")
	}
	if id < 0 || id >= len(devices) {
		return Device{}, fmt.Errorf("invalid device ID: %d", id)
	}
	if devices[id].MaxOutputChannels == 0 {
		return Device{}, fmt.Errorf("device %d (%s) has no outputs", id, devices[id].Name)
	}
	return devices[id], nil
}

// OutputSampleRate returns the default rate of output device id, or
// fallback when it cannot be determined.
func OutputSampleRate(id int, fallback float64) float64 {
	devices, err := HostDevices()
	if err != nil {
		applog.Warnf("device: %v, using %.0f Hz", err, fallback)
		return fallback
	}
	d, err := Output(devices, id)
	if err != nil || d.DefaultSampleRate <= 0 {
		applog.Warnf("device: no usable output (%v), using %.0f Hz", err, fallback)
		return fallback
	}
	return d.DefaultSampleRate
}

// ListDevices prints information about all available audio devices.
func ListDevices(w io.Writer, devices []Device) {
	fmt.Fprintf(w, "\nAvailable Audio Devices\n\n")
	for _, d := range devices {
		deviceType := ""
		if d.MaxInputChannels > 0 && d.MaxOutputChannels > 0 {
			deviceType = "Input/Output"
		} else if d.MaxInputChannels > 0 {
			deviceType = "Input"
		} else if d.MaxOutputChannels > 0 {
			deviceType = "Output"
		}
		marker := ""
		if d.DefaultOutput {
			marker = " *"
		}
		fmt.Fprintf(w, "[%d] %s (%s)%s\n", d.ID, d.Name, deviceType, marker)
		fmt.Fprintf(w, "    Input channels: %d, Output channels: %d\n", d.MaxInputChannels, d.MaxOutputChannels)
		fmt.Fprintf(w, "    Default sample rate: %.0f Hz\n\n", d.DefaultSampleRate)
	}
}

// WatchSampleRate polls rate every interval and calls onChange whenever it
// differs from the last known value, starting at current, until ctx is done.
func WatchSampleRate(ctx context.Context, interval time.Duration, current float64, rate func() float64, onChange func(float64)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	last := current
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if r := rate(); r != last && r > 0 {
				applog.Infof("device: output rate changed %.0f -> %.0f Hz", last, r)
				last = r
				onChange(r)
			}
		}
	}
}
