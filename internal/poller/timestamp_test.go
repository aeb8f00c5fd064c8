package poller

import "testing"

func TestNormalizeTimestamp(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "afternoon sample",
			input: "08/25/26 14:30:05",
			want:  "25-08-2026 02:30:05 PM",
		},
		{
			name:  "morning sample",
			input: "01/02/26 09:05:00",
			want:  "02-01-2026 09:05:00 AM",
		},
		{
			name:  "midnight",
			input: "01/01/06 00:00:00",
			want:  "01-01-2006 12:00:00 AM",
		},
		{
			name:  "noon",
			input: "06/15/26 12:00:00",
			want:  "15-06-2026 12:00:00 PM",
		},
		{
			name:  "last second of year",
			input: "12/31/30 23:59:59",
			want:  "31-12-2030 11:59:59 PM",
		},
		{
			name:  "empty is identity",
			input: "",
			want:  "",
		},
		{
			name:  "garbage is identity",
			input: "not a timestamp",
			want:  "not a timestamp",
		},
		{
			name:  "iso format is identity",
			input: "2026-08-25 14:30:05",
			want:  "2026-08-25 14:30:05",
		},
		{
			name:  "out of range fields are identity",
			input: "13/40/26 99:99:99",
			want:  "13/40/26 99:99:99",
		},
		{
			name:  "missing time is identity",
			input: "08/25/26",
			want:  "08/25/26",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeTimestamp(tt.input); got != tt.want {
				t.Errorf("NormalizeTimestamp(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeTimestamp_Deterministic(t *testing.T) {
	input := "08/25/26 14:30:05"
	first := NormalizeTimestamp(input)
	second := NormalizeTimestamp(input)
	if first != second {
		t.Errorf("normalization not deterministic: %q vs %q", first, second)
	}
	if first == input {
		t.Errorf("matching input should convert to a distinct display form, got %q", first)
	}
}
