package services

import "testing"

func TestCronSpecAt(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "07:30", want: "30 7 * * *"},
		{in: "16:00", want: "0 16 * * *"},
		{in: "9:05", want: "5 9 * * *"},
		{in: "00:00", want: "0 0 * * *"},
		{in: "23:59", want: "59 23 * * *"},
		{in: "0730", wantErr: true},
		{in: "", wantErr: true},
		{in: "07:30:00", wantErr: true},
		{in: "seven:30", wantErr: true},
		{in: "07:sixty", wantErr: true},
		{in: "24:00", wantErr: true},
		{in: "07:60", wantErr: true},
	}

	for _, tt := range tests {
		got, err := cronSpecAt(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("cronSpecAt(%q): expected error, got %q", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("cronSpecAt(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("cronSpecAt(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
