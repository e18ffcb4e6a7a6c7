package ocr

import "testing"

func TestCleanExtractedText(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			"clean lines survive",
			"BERLIN 1989\n9 NOVEMBER",
			"BERLIN 1989 9 NOVEMBER",
		},
		{
			"noise lines dropped",
			"|\n~~~ ---- ~~~\nCHECKPOINT CHARLIE\n..| |..",
			"CHECKPOINT CHARLIE",
		},
		{
			"single characters dropped",
			"a\nb\nACTUAL TEXT",
			"ACTUAL TEXT",
		},
		{
			"whitespace collapsed",
			"  EAST   BERLIN  \n\n  WEST  BERLIN ",
			"EAST BERLIN WEST BERLIN",
		},
		{
			"all noise",
			"|||\n---\n..",
			"",
		},
		{
			"empty",
			"",
			"",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := cleanExtractedText(tc.in); got != tc.want {
				t.Errorf("cleanExtractedText(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
