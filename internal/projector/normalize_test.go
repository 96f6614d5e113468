package projector

import (
	"errors"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    map[string]string
		wantErr error
	}{
		{
			name:  "unquoted keys",
			input: `{pw:"1",a:"0",m:"50"}`,
			want:  map[string]string{"pw": "1", "a": "0", "m": "50"},
		},
		{
			name:  "valid json passes through",
			input: `{"pw":"0","b":"3"}`,
			want:  map[string]string{"pw": "0", "b": "3"},
		},
		{
			name:  "html wrapped payload",
			input: `<html><body>{pw:"2",a:"1"}</body></html>`,
			want:  map[string]string{"pw": "2", "a": "1"},
		},
		{
			name:  "numeric and bool values stringified",
			input: `{m:50,F15:true}`,
			want:  map[string]string{"m": "50", "F15": "true"},
		},
		{
			name:  "whitespace around keys",
			input: `{ pw : "1", a : "2" }`,
			want:  map[string]string{"pw": "1", "a": "2"},
		},
		{
			name:    "no braces",
			input:   "total garbage",
			wantErr: ErrMalformedResponse,
		},
		{
			name:    "empty response",
			input:   "",
			wantErr: ErrMalformedResponse,
		},
		{
			name:    "truncated json",
			input:   `{pw:"1",a:`,
			wantErr: ErrMalformedResponse,
		},
		{
			name:    "nested object rejected",
			input:   `{pw:"1",sub:{a:"2"}}`,
			wantErr: ErrMalformedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Normalize() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize() unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Normalize() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("Normalize()[%q] = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestLooksLikeLoginPage(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"login form", `<html><form>Login: <input name="password"></form></html>`, true},
		{"case insensitive", `LOGIN PASSWORD`, true},
		{"state payload", `{pw:"1"}`, false},
		{"login without password", `login page`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := looksLikeLoginPage(tt.input); got != tt.want {
				t.Errorf("looksLikeLoginPage(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestPowerFromRaw(t *testing.T) {
	tests := []struct {
		raw  string
		want PowerState
	}{
		{"0", PowerStandby},
		{"1", PowerOn},
		{"2", PowerWarming},
		{"3", PowerCooling},
		{"", PowerUnknown},
		{"255", PowerUnknown},
	}
	for _, tt := range tests {
		if got := PowerFromRaw(tt.raw); got != tt.want {
			t.Errorf("PowerFromRaw(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}
