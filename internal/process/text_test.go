package process

import "testing"

func TestExtractText(t *testing.T) {
	tests := []struct {
		name     string
		fragment string
		want     string
	}{
		{
			name:     "paragraphs become lines",
			fragment: "<p>One.</p><p>Two.</p>",
			want:     "One.\nTwo.",
		},
		{
			name:     "whitespace collapses",
			fragment: "<p>spread   out\n\ttext</p>",
			want:     "spread out text",
		},
		{
			name:     "inline markup joins",
			fragment: "<p>one <em>two</em> three</p>",
			want:     "one two three",
		},
		{
			name:     "script and style skipped",
			fragment: "<p>visible</p><script>var hidden = 1;</script><style>.x{}</style>",
			want:     "visible",
		},
		{
			name:     "headings break lines",
			fragment: "<h2>Head</h2>body text",
			want:     "Head\nbody text",
		},
		{
			name:     "empty elements produce nothing",
			fragment: "<div><p>  </p><br/></div>",
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractText(tt.fragment); got != tt.want {
				t.Errorf("ExtractText() = %q, want %q", got, tt.want)
			}
		})
	}
}
