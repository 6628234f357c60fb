package checklist

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/spetr/tobedo/pkg/types"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Item
	}{
		{
			name:  "plain lines",
			input: "Buy milk\nBuy eggs",
			want:  []Item{{"Buy milk", false}, {"Buy eggs", false}},
		},
		{
			name:  "bullets and blanks",
			input: "- Buy milk\n\n  * Buy eggs  \n+ Clean house\n• Walk dog",
			want:  []Item{{"Buy milk", false}, {"Buy eggs", false}, {"Clean house", false}, {"Walk dog", false}},
		},
		{
			name:  "numbered",
			input: "1. first\n2) second",
			want:  []Item{{"first", false}, {"second", false}},
		},
		{
			name:  "checkboxes",
			input: "- [x] Buy milk\n- [ ] Buy eggs\n[X] Clean house",
			want:  []Item{{"Buy milk", true}, {"Buy eggs", false}, {"Clean house", true}},
		},
		{
			name:  "duplicate keeps first position and last flag",
			input: "- [ ] a\n- [ ] b\n- [x] a",
			want:  []Item{{"a", true}, {"b", false}},
		},
		{
			name:  "markers only",
			input: "-\n[ ]\n   ",
			want:  []Item{},
		},
		{
			name:  "bare bullets and numbers",
			input: "*\n+\n•\n1.\n2)\n- \n- [x]",
			want:  []Item{},
		},
		{
			name:  "marker glued to text is kept",
			input: "-5 degrees\n1.5 litres",
			want:  []Item{{"-5 degrees", false}, {"1.5 litres", false}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.input).Items()
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}
}

func TestRender(t *testing.T) {
	items := []Item{{"Buy milk", true}, {"Buy eggs", false}}
	want := "- [x] Buy milk\n- [ ] Buy eggs"
	if got := Render(items); got != want {
		t.Errorf("Render = %q, want %q", got, want)
	}
	if got := Render(nil); got != "" {
		t.Errorf("Render(nil) = %q, want empty", got)
	}
}

func TestRenderParseRoundTrip(t *testing.T) {
	s := NewState()
	s.Set("Buy milk", true)
	s.Set("Buy eggs", false)
	s.Set("- nested dash", false)
	s.Set("Write code", true)

	got := Parse(s.String()).Items()
	if diff := cmp.Diff(s.Items(), got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeDecodePreservesOrder(t *testing.T) {
	s := NewState()
	s.Set("zeta", false)
	s.Set("alpha", true)
	s.Set("mid", false)

	data, err := Encode(s)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if want := `{"zeta":false,"alpha":true,"mid":false}`; string(data) != want {
		t.Errorf("Encode = %s, want %s", data, want)
	}

	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if diff := cmp.Diff(s.Items(), decoded.Items()); diff != "" {
		t.Errorf("decode mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeMalformed(t *testing.T) {
	inputs := []string{
		"",
		"not json",
		"[true, false]",
		`"text"`,
		"null",
		`{"Buy milk": "yes"}`,
		`{"Buy milk": 1}`,
		`{"Buy milk": true`,
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			if _, err := Decode([]byte(in)); !errors.Is(err, types.ErrDataFormat) {
				t.Errorf("Decode(%q) err = %v, want ErrDataFormat", in, err)
			}
		})
	}
}

func TestDecodeEmptyObject(t *testing.T) {
	s, err := Decode([]byte(" {} "))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Len())
	}
}

func TestToggle(t *testing.T) {
	s := Parse("a\nb")

	done, err := s.Toggle(1)
	if err != nil {
		t.Fatalf("Toggle failed: %v", err)
	}
	if !done {
		t.Error("Toggle(1) = false, want true")
	}
	if got, _ := s.Get("b"); !got {
		t.Error("item b not completed after toggle")
	}

	done, _ = s.Toggle(1)
	if done {
		t.Error("second Toggle(1) = true, want false")
	}

	for _, idx := range []int{-1, 2} {
		if _, err := s.Toggle(idx); !errors.Is(err, types.ErrInvalidInput) {
			t.Errorf("Toggle(%d) err = %v, want ErrInvalidInput", idx, err)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		state   string
		wantErr bool
	}{
		{"parsed items", `{"Buy milk":true,"- nested":false,"[x] literal":false}`, false},
		{"empty", `{}`, false},
		{"leading space", `{" padded":false}`, true},
		{"trailing space", `{"padded ":false}`, true},
		{"newline", `{"line\nbreak":false}`, true},
		{"blank", `{"":false}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Decode([]byte(tt.state))
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			err = s.Validate()
			if tt.wantErr && !errors.Is(err, types.ErrDataFormat) {
				t.Errorf("Validate() = %v, want ErrDataFormat", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
		})
	}
}

func TestParsedStateValidates(t *testing.T) {
	input := "- - nested\n[ ] [x] literal\n  1. spaced  \n• dot"
	s := Parse(input)
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate() = %v for parsed %q", err, input)
	}
	if diff := cmp.Diff(s.Items(), Parse(s.String()).Items()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}
