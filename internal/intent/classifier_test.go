package intent

import "testing"

func TestClassify(t *testing.T) {
	cases := []struct {
		name    string
		message string
		want    Intent
	}{
		{"slash command", "/image a cat on a skateboard", ImageGen},
		{"slash command upper", "/IMAGE a cat", ImageGen},
		{"image of phrase", "can you make an image of the northern lights?", ImageGen},
		{"draw phrase", "please draw me a castle", ImageGen},
		{"show me an image", "SHOW ME AN IMAGE of a fox", ImageGen},
		{"latest keyword", "what is the latest on the election?", WebSearch},
		{"news keyword", "any news about the launch?", WebSearch},
		{"today keyword", "what happened today in markets", WebSearch},
		{"url token", "summarize https://example.com/post", WebSearch},
		{"www token", "open www.example.com for me", WebSearch},
		{"plain question", "what did I tell you about my sister?", Text},
		{"empty", "", Text},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.message); got != tc.want {
				t.Fatalf("Classify(%q) = %q, want %q", tc.message, got, tc.want)
			}
		})
	}
}

func TestClassifyImageBeatsWebCues(t *testing.T) {
	// Image rules have priority even when web keywords appear in the same
	// message.
	got := Classify("draw the latest iPhone")
	if got != ImageGen {
		t.Fatalf("Classify() = %q, want %q", got, ImageGen)
	}
}

func TestStripImageCommand(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"/image a red balloon", "a red balloon"},
		{"image of a red balloon", "a red balloon"},
		{"draw a red balloon", "a red balloon"},
		{"  /image   spaced out  ", "spaced out"},
		{"a red balloon", "a red balloon"},
	}
	for _, tc := range cases {
		if got := StripImageCommand(tc.in); got != tc.want {
			t.Fatalf("StripImageCommand(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
