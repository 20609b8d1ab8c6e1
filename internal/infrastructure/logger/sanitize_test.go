package logger

import "testing"

func TestSanitizeForLog(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain string unchanged", "movie-2019.mkv", "movie-2019.mkv"},
		{"path unchanged", "/data/transcodes/abc_720p.mp4", "/data/transcodes/abc_720p.mp4"},
		{"empty string", "", ""},
		{"newline escaped", "line1\nline2", "line1\\nline2"},
		{"CRLF escaped", "line1\r\nline2", "line1\\r\\nline2"},
		{"tab escaped", "col1\tcol2", "col1\\tcol2"},
		{"null byte escaped", "before\x00after", "before\\x00after"},
		{"ANSI escape escaped", "text\x1b[31mred\x1b[0m", "text\\x1b[31mred\\x1b[0m"},
		{"bell escaped", "alert\x07bell", "alert\\x07bell"},
		{"DEL escaped", "delete\x7fchar", "delete\\x7fchar"},
		{"unicode preserved", "café 中文 👋", "café 中文 👋"},
		{
			"fake log entry injection",
			"file.mkv\nERROR: fake entry",
			"file.mkv\\nERROR: fake entry",
		},
		{
			"encoder stderr with escape sequences",
			"frame= 100\rframe= 200\x1b[2K",
			"frame= 100\\rframe= 200\\x1b[2K",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := SanitizeForLog(tt.input); result != tt.expected {
				t.Errorf("SanitizeForLog(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestSanitizeForLog_AllControlChars(t *testing.T) {
	for i := 0; i < 32; i++ {
		input := string(rune(i))
		if result := SanitizeForLog(input); result == input {
			t.Errorf("control char %d (0x%02x) was not escaped", i, i)
		}
	}
	if result := SanitizeForLog(string(rune(127))); result != "\\x7f" {
		t.Errorf("DEL not escaped: got %q", result)
	}
}
