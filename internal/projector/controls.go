package projector

import (
	"fmt"
	"strconv"
)

// Kind classifies a control by the kind of value it accepts.
type Kind string

// Control kinds.
const (
	// KindToggle flips a boolean setting; the command token toggles it.
	KindToggle Kind = "toggle"

	// KindSelect sets one of an enumerated list of values.
	KindSelect Kind = "select"

	// KindNumber sets an integer within a range.
	KindNumber Kind = "number"

	// KindButton triggers a one-shot action with no state key.
	KindButton Kind = "button"
)

// Option is one selectable value of a KindSelect control.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Control describes one controllable projector setting.
//
// The coordinator treats these as opaque identifiers: StateKey is only
// used to read from the state map and Command/Param only to build
// request bodies. Semantics live in the firmware.
type Control struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	StateKey string   `json:"state_key,omitempty"`
	Kind     Kind     `json:"kind"`
	Command  string   `json:"-"` // toggle/button token; body is token=token
	Param    string   `json:"-"` // select/number form key; body is key=value
	Options  []Option `json:"options,omitempty"`
	Min      int      `json:"min,omitempty"`
	Max      int      `json:"max,omitempty"`
	Step     int      `json:"step,omitempty"`
	Unit     string   `json:"unit,omitempty"`
}

// Body builds the form body for sending this control to the device.
// Toggles and buttons ignore value; selects and numbers require one.
func (c Control) Body(value string) string {
	switch c.Kind {
	case KindToggle, KindButton:
		return c.Command + "=" + c.Command
	default:
		return c.Param + "=" + value
	}
}

// NormalizeValue validates a requested value against the control's
// metadata. Select values must be a listed option. Number values are
// clamped into [Min, Max] rather than rejected, matching the projector's
// own on-screen behaviour. Toggles and buttons accept an empty value only.
func (c Control) NormalizeValue(value string) (string, error) {
	switch c.Kind {
	case KindToggle, KindButton:
		if value != "" {
			return "", fmt.Errorf("%w: %s takes no value", ErrInvalidValue, c.ID)
		}
		return "", nil

	case KindSelect:
		for _, opt := range c.Options {
			if opt.Value == value {
				return value, nil
			}
		}
		return "", fmt.Errorf("%w: %q is not an option of %s", ErrInvalidValue, value, c.ID)

	case KindNumber:
		n, err := strconv.Atoi(value)
		if err != nil {
			return "", fmt.Errorf("%w: %s expects an integer", ErrInvalidValue, c.ID)
		}
		if n < c.Min {
			n = c.Min
		}
		if n > c.Max {
			n = c.Max
		}
		return strconv.Itoa(n), nil

	default:
		return "", fmt.Errorf("%w: %s has unknown kind", ErrInvalidValue, c.ID)
	}
}

// Controls is the static table of controllable settings exposed by the
// UHD laser firmware. Order matches the on-device menu grouping.
var Controls = []Control{
	// Toggles
	{ID: "av_mute", Name: "AV Mute", StateKey: "F15", Kind: KindToggle, Command: "avmute"},
	{ID: "freeze", Name: "Freeze", StateKey: "F0", Kind: KindToggle, Command: "freeze"},
	{ID: "info_hide", Name: "Information Hide", StateKey: "F10", Kind: KindToggle, Command: "infohide"},
	{ID: "high_altitude", Name: "High Altitude", StateKey: "O", Kind: KindToggle, Command: "altitude"},
	{ID: "keypad_lock", Name: "Keypad Lock", StateKey: "F12", Kind: KindToggle, Command: "keypad"},
	{ID: "display_mode_lock", Name: "Display Mode Lock", StateKey: "F11", Kind: KindToggle, Command: "dismdlocked"},
	{ID: "direct_power_on", Name: "Direct Power On", StateKey: "F7", Kind: KindToggle, Command: "directpwon"},
	{ID: "trigger_12v", Name: "12V Trigger", StateKey: "F14", Kind: KindToggle, Command: "12vtrigger"},
	{ID: "signal_power_on", Name: "Signal Power On", StateKey: "F21", Kind: KindToggle, Command: "signalpwon"},
	{ID: "warping", Name: "Warping", StateKey: "F22", Kind: KindToggle, Command: "warping"},
	{ID: "sync_3d_invert", Name: "3D Sync Invert", StateKey: "T", Kind: KindToggle, Command: "3Dsync"},
	{ID: "speaker_enable", Name: "Internal Speaker", StateKey: "F", Kind: KindToggle, Command: "speaker"},
	{ID: "mute_audio", Name: "Audio Mute", StateKey: "j", Kind: KindToggle, Command: "mute"},
	{ID: "dynamic_black", Name: "Dynamic Black", StateKey: "F18", Kind: KindToggle, Command: "dynamic"},
	{ID: "always_on", Name: "Always On", StateKey: "F13", Kind: KindToggle, Command: "alwayson"},

	// Selects
	{ID: "input_source", Name: "Input Source", StateKey: "a", Kind: KindSelect, Param: "source", Options: []Option{
		{"0", "HDMI1"}, {"1", "HDMI2"}, {"2", "HDBaseT"}, {"3", "VGA 1"}, {"4", "VGA 2"},
	}},
	{ID: "audio_input", Name: "Audio Input", StateKey: "F6", Kind: KindSelect, Param: "audio", Options: []Option{
		{"0", "Default"}, {"1", "Audio1"}, {"2", "Audio2"},
	}},
	{ID: "mode_3d", Name: "3D Mode", StateKey: "w", Kind: KindSelect, Param: "3dmode", Options: []Option{
		{"1", "Off"}, {"2", "On"},
	}},
	{ID: "mode_3d_to_2d", Name: "3D to 2D", StateKey: "F17", Kind: KindSelect, Param: "3dto2d", Options: []Option{
		{"0", "3D"}, {"1", "L"}, {"2", "R"},
	}},
	{ID: "mode_3d_format", Name: "3D Format", StateKey: "E", Kind: KindSelect, Param: "3dformat", Options: []Option{
		{"0", "Auto"}, {"1", "SBS"}, {"2", "Top and Bottom"}, {"3", "Frame Sequential"}, {"4", "Frame Packing"},
	}},
	{ID: "picture_mode", Name: "Picture Mode", StateKey: "b", Kind: KindSelect, Param: "dismode", Options: []Option{
		{"0", "Vivid"}, {"1", "HDR"}, {"2", "HLG"}, {"3", "Cinema"}, {"4", "Game"},
		{"5", "Golf SIM."}, {"6", "Reference"}, {"7", "Bright"}, {"8", "DICOM SIM."},
		{"9", "3D"}, {"10", "ISF Day"}, {"11", "ISF Night"}, {"12", "ISF 3D"},
	}},
	{ID: "color_space", Name: "Color Space", StateKey: "F1", Kind: KindSelect, Param: "colorsp", Options: []Option{
		{"0", "Auto"}, {"2", "RGB (0~255)"}, {"3", "RGB (16~235)"}, {"4", "YUV"},
	}},
	{ID: "gamma", Name: "Gamma", StateKey: "C", Kind: KindSelect, Param: "Degamma", Options: []Option{
		{"4", "Film"}, {"6", "Graphics"}, {"5", "1.8"}, {"9", "2.0"}, {"7", "2.2"}, {"10", "2.4"},
	}},
	{ID: "color_temperature", Name: "Color Temperature", StateKey: "D", Kind: KindSelect, Param: "colortmp", Options: []Option{
		{"0", "Warm"}, {"1", "Standard"}, {"2", "Cool"}, {"3", "Cold"},
	}},
	{ID: "aspect_ratio", Name: "Aspect Ratio", StateKey: "L", Kind: KindSelect, Param: "aspect0", Options: []Option{
		{"0", "4:3"}, {"1", "16:9"}, {"8", "Full"}, {"3", "21:9"}, {"4", "32:9"},
		{"5", "LBX"}, {"6", "Native"}, {"7", "Auto"},
	}},
	// Screen Type (F20) intentionally absent: UHD laser units report
	// invalid values for it.
	{ID: "projection_mode", Name: "Projection Mode", StateKey: "t", Kind: KindSelect, Param: "projection", Options: []Option{
		{"0", "Front"}, {"1", "Front Ceiling"}, {"2", "Rear"}, {"3", "Rear Ceiling"},
	}},
	{ID: "background_color", Name: "Background Color", StateKey: "F2", Kind: KindSelect, Param: "background", Options: []Option{
		{"0", "None"}, {"1", "Blue"}, {"2", "Red"}, {"3", "Green"}, {"4", "Grey"}, {"5", "Logo"},
	}},
	{ID: "wall_color", Name: "Wall Color", StateKey: "F3", Kind: KindSelect, Param: "wall", Options: []Option{
		{"0", "Off"}, {"1", "Blackboard"}, {"2", "Light Yellow"}, {"3", "Light Green"},
		{"4", "Light Blue"}, {"5", "Pink"}, {"6", "Grey"},
	}},
	{ID: "startup_logo", Name: "Startup Logo", StateKey: "o", Kind: KindSelect, Param: "logo", Options: []Option{
		{"0", "Default"}, {"1", "Neutral"}, {"6", "Custom Logo"},
	}},
	{ID: "power_mode", Name: "Power Mode", StateKey: "F16", Kind: KindSelect, Param: "pwmode", Options: []Option{
		{"1", "Eco"}, {"0", "Active"}, {"3", "Active(20min)"}, {"2", "Communication"}, {"4", "Communication(20min)"},
	}},
	{ID: "light_source_mode", Name: "Light Source Mode", StateKey: "l", Kind: KindSelect, Param: "lampmd", Options: []Option{
		{"1", "Eco"}, {"2", "Power100"}, {"3", "Power95"}, {"4", "Power90"}, {"5", "Power85"},
		{"6", "Power80"}, {"7", "Power75"}, {"8", "Power70"}, {"9", "Power65"}, {"10", "Power60"},
		{"11", "Power55"}, {"12", "Power50"},
	}},

	// Numbers
	{ID: "volume", Name: "Volume", StateKey: "m", Kind: KindNumber, Param: "vol", Min: 0, Max: 100, Step: 1, Unit: "%"},
	{ID: "mic_volume", Name: "Mic Volume", StateKey: "z", Kind: KindNumber, Param: "mic", Min: 0, Max: 100, Step: 1, Unit: "%"},
	{ID: "brightness", Name: "Brightness", StateKey: "c", Kind: KindNumber, Param: "bright", Min: -50, Max: 50, Step: 1},
	{ID: "contrast", Name: "Contrast", StateKey: "d", Kind: KindNumber, Param: "contrast", Min: -50, Max: 50, Step: 1},
	{ID: "sharpness", Name: "Sharpness", StateKey: "f", Kind: KindNumber, Param: "Sharp", Min: 1, Max: 15, Step: 1},
	{ID: "phase", Name: "Phase", StateKey: "A", Kind: KindNumber, Param: "Phase", Min: -63, Max: 63, Step: 1},
	{ID: "brilliant_color", Name: "Brilliant Color", StateKey: "F4", Kind: KindNumber, Param: "brill", Min: 1, Max: 10, Step: 1},
	{ID: "zoom_value", Name: "Zoom Value", StateKey: "r", Kind: KindNumber, Param: "zoom", Min: -5, Max: 20, Step: 1},
	{ID: "h_keystone", Name: "Horizontal Keystone", StateKey: "J", Kind: KindNumber, Param: "hkeys", Min: -30, Max: 30, Step: 1},
	{ID: "v_keystone", Name: "Vertical Keystone", StateKey: "K", Kind: KindNumber, Param: "vkeys", Min: -30, Max: 30, Step: 1},
	{ID: "h_shift", Name: "Horizontal Shift", StateKey: "M", Kind: KindNumber, Param: "hpos", Min: -100, Max: 100, Step: 1},
	{ID: "v_shift", Name: "Vertical Shift", StateKey: "N", Kind: KindNumber, Param: "vpos", Min: -100, Max: 100, Step: 1},
	{ID: "sleep_timer", Name: "Sleep Timer", StateKey: "F5", Kind: KindNumber, Param: "sleep", Min: 0, Max: 990, Step: 30, Unit: "min"},
	{ID: "projector_id", Name: "Projector ID", StateKey: "F8", Kind: KindNumber, Param: "projid", Min: 0, Max: 99, Step: 1},
	{ID: "remote_code", Name: "Remote Code", StateKey: "F9", Kind: KindNumber, Param: "remote", Min: 0, Max: 99, Step: 1},

	// Buttons
	{ID: "resync", Name: "Resync", Kind: KindButton, Command: "resync"},
	{ID: "reset", Name: "Reset", Kind: KindButton, Command: "reset"},
	{ID: "logo_capture", Name: "Logo Capture", Kind: KindButton, Command: "logocapture"},
	{ID: "corner_reset", Name: "Four Corners Reset", Kind: KindButton, Command: "cornerreset"},
}

// controlIndex maps control IDs to table entries.
var controlIndex = buildControlIndex()

func buildControlIndex() map[string]Control {
	idx := make(map[string]Control, len(Controls))
	for _, c := range Controls {
		idx[c.ID] = c
	}
	return idx
}

// ControlByID returns the control with the given ID.
// Returns ErrUnknownControl if the ID is not in the table.
func ControlByID(id string) (Control, error) {
	c, ok := controlIndex[id]
	if !ok {
		return Control{}, fmt.Errorf("%w: %q", ErrUnknownControl, id)
	}
	return c, nil
}
