package config

import (
	"fmt"

	"github.com/ardnew/usbmidi/pkg"
	"github.com/ardnew/usbmidi/route"
	"github.com/ardnew/usbmidi/synth/beatstep"
	"github.com/ardnew/usbmidi/synth/dw6000"
)

// Filter types.
const (
	FilterChannel         = "channel"
	FilterNoteRange       = "note-range"
	FilterTranspose       = "transpose"
	FilterOverrideChannel = "override-channel"
	FilterDropRealtime    = "drop-realtime"
	FilterCable           = "cable"
	FilterDestination     = "destination"
	FilterDW6000Dump      = "sysex-dw6000-dump"
	FilterBeatStepParam   = "beatstep-param"
)

// Filter declares one route filter. Channels are numbered 1-16.
type Filter struct {
	Type      string  `json:"type"`
	Channels  []uint8 `json:"channels,omitempty"`
	Channel   uint8   `json:"channel,omitempty"`
	MinNote   uint8   `json:"minNote,omitempty"`
	MaxNote   uint8   `json:"maxNote,omitempty"`
	Semitones int     `json:"semitones,omitempty"`
	Cable     uint8   `json:"cable,omitempty"`
	Interface string  `json:"interface,omitempty"`
}

func channel(ch uint8) (uint8, error) {
	if ch < 1 || ch > 16 {
		return 0, fmt.Errorf("channel %d (must be 1-16): %w", ch, pkg.ErrInvalidParameter)
	}
	return ch - 1, nil
}

// Build returns the route filter the declaration describes.
func (f Filter) Build() (route.Filter, error) {
	switch f.Type {
	case FilterChannel:
		if len(f.Channels) == 0 {
			return nil, fmt.Errorf("%s: no channels: %w", f.Type, pkg.ErrInvalidParameter)
		}
		chs := make([]uint8, 0, len(f.Channels))
		for _, c := range f.Channels {
			ch, err := channel(c)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", f.Type, err)
			}
			chs = append(chs, ch)
		}
		return route.Channels(chs...), nil

	case FilterNoteRange:
		if f.MinNote > 127 || f.MaxNote > 127 || f.MinNote > f.MaxNote {
			return nil, fmt.Errorf("%s: invalid range %d-%d: %w",
				f.Type, f.MinNote, f.MaxNote, pkg.ErrInvalidParameter)
		}
		return route.NoteRange(f.MinNote, f.MaxNote), nil

	case FilterTranspose:
		if f.Semitones < -127 || f.Semitones > 127 {
			return nil, fmt.Errorf("%s: %d semitones (must be -127 to 127): %w",
				f.Type, f.Semitones, pkg.ErrInvalidParameter)
		}
		return route.Transpose(f.Semitones), nil

	case FilterOverrideChannel:
		ch, err := channel(f.Channel)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Type, err)
		}
		return route.OverrideChannel(ch), nil

	case FilterDropRealtime:
		return route.DropRealtime(), nil

	case FilterCable:
		if f.Cable > 15 {
			return nil, fmt.Errorf("%s: cable %d: %w", f.Type, f.Cable, pkg.ErrInvalidParameter)
		}
		return route.SetCable(f.Cable), nil

	case FilterDestination:
		iface, err := route.ParseInterface(f.Interface)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Type, err)
		}
		return route.Destination(iface), nil

	case FilterDW6000Dump:
		return dw6000.CaptureDump(), nil

	case FilterBeatStepParam:
		return beatstep.CaptureParam(), nil
	}
	return nil, fmt.Errorf("filter type %q: %w", f.Type, pkg.ErrInvalidParameter)
}
