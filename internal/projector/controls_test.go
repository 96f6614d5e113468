package projector

import (
	"errors"
	"testing"
)

func TestControlTableIntegrity(t *testing.T) {
	seen := map[string]bool{}
	var toggles, selects, numbers, buttons int

	for _, c := range Controls {
		if c.ID == "" {
			t.Fatal("control with empty ID")
		}
		if seen[c.ID] {
			t.Fatalf("duplicate control ID %q", c.ID)
		}
		seen[c.ID] = true

		switch c.Kind {
		case KindToggle:
			toggles++
			if c.Command == "" || c.StateKey == "" {
				t.Errorf("toggle %s missing command or state key", c.ID)
			}
		case KindSelect:
			selects++
			if c.Param == "" || len(c.Options) == 0 {
				t.Errorf("select %s missing param or options", c.ID)
			}
		case KindNumber:
			numbers++
			if c.Param == "" || c.Min >= c.Max {
				t.Errorf("number %s has bad param or range", c.ID)
			}
		case KindButton:
			buttons++
			if c.Command == "" || c.StateKey != "" {
				t.Errorf("button %s malformed", c.ID)
			}
		default:
			t.Errorf("control %s has unknown kind %q", c.ID, c.Kind)
		}
	}

	if toggles != 15 || selects != 16 || numbers != 15 || buttons != 4 {
		t.Errorf("table shape = %d toggles, %d selects, %d numbers, %d buttons; want 15/16/15/4",
			toggles, selects, numbers, buttons)
	}
}

func TestControlByID(t *testing.T) {
	c, err := ControlByID("volume")
	if err != nil {
		t.Fatalf("ControlByID(volume) error: %v", err)
	}
	if c.StateKey != "m" || c.Param != "vol" || c.Kind != KindNumber {
		t.Errorf("volume control = %+v", c)
	}

	if _, err := ControlByID("nonsense"); !errors.Is(err, ErrUnknownControl) {
		t.Errorf("ControlByID(nonsense) error = %v, want ErrUnknownControl", err)
	}
}

func TestControlBody(t *testing.T) {
	tests := []struct {
		id    string
		value string
		want  string
	}{
		{"av_mute", "", "avmute=avmute"},
		{"resync", "", "resync=resync"},
		{"input_source", "1", "source=1"},
		{"volume", "50", "vol=50"},
	}
	for _, tt := range tests {
		c, err := ControlByID(tt.id)
		if err != nil {
			t.Fatalf("ControlByID(%s): %v", tt.id, err)
		}
		if got := c.Body(tt.value); got != tt.want {
			t.Errorf("Body(%s, %q) = %q, want %q", tt.id, tt.value, got, tt.want)
		}
	}
}

func TestNormalizeValue(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		value   string
		want    string
		wantErr bool
	}{
		{name: "number in range", id: "volume", value: "42", want: "42"},
		{name: "number clamped high", id: "volume", value: "150", want: "100"},
		{name: "number clamped low", id: "brightness", value: "-90", want: "-50"},
		{name: "number not integer", id: "volume", value: "loud", wantErr: true},
		{name: "select valid option", id: "input_source", value: "2", want: "2"},
		{name: "select invalid option", id: "input_source", value: "9", wantErr: true},
		{name: "toggle no value", id: "av_mute", value: "", want: ""},
		{name: "toggle rejects value", id: "av_mute", value: "1", wantErr: true},
		{name: "button no value", id: "reset", value: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := ControlByID(tt.id)
			if err != nil {
				t.Fatalf("ControlByID(%s): %v", tt.id, err)
			}
			got, err := c.NormalizeValue(tt.value)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidValue) {
					t.Fatalf("NormalizeValue() error = %v, want ErrInvalidValue", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeValue() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("NormalizeValue(%q) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}
