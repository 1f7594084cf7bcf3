package profile

import (
	"testing"
)

func TestParseNumbers(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []float64
		wantErr bool
	}{
		{"single", "1.5", []float64{1.5}, false},
		{"list", "1, 2.25,-3", []float64{1, 2.25, -3}, false},
		{"invalid", "1,x", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseNumbers(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseNumbers(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("parseNumbers(%q) = %v, want %v", tt.input, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("value %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
			if s := formatNumbers(got); len(tt.want) == 3 && s != "1,2.25,-3" {
				t.Errorf("formatNumbers = %q", s)
			}
		})
	}
}

func TestParseScalars(t *testing.T) {
	if v, err := parseInt(""); err != nil || v != 0 {
		t.Errorf("parseInt(\"\") = %d, %v", v, err)
	}
	if _, err := parseInt("4294967296"); err == nil {
		t.Error("parseInt accepted a value outside int32")
	}
	if v, err := parseInt("-2147483648"); err != nil || v != -2147483648 {
		t.Errorf("parseInt(min int32) = %d, %v", v, err)
	}
	if v, err := parseBool("true"); err != nil || !v {
		t.Errorf("parseBool(true) = %v, %v", v, err)
	}
	if _, err := parseNumber("abc"); err == nil {
		t.Error("parseNumber accepted abc")
	}
}
