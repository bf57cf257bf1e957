package capture

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintDeterministic(t *testing.T) {
	a := &Snapshot{Frames: []FrameContent{
		{ID: "https://read.example.com/book", HTML: "<html>page</html>"},
		{ID: "frame_inner", HTML: "<div>content</div>"},
	}}
	b := &Snapshot{Frames: []FrameContent{
		{ID: "https://read.example.com/book", HTML: "<html>page</html>"},
		{ID: "frame_inner", HTML: "<div>content</div>"},
	}}

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.Len(t, a.Fingerprint(), 64)
}

func TestFingerprintChangesWithContent(t *testing.T) {
	a := &Snapshot{Frames: []FrameContent{{ID: "main", HTML: "<html>page 1</html>"}}}
	b := &Snapshot{Frames: []FrameContent{{ID: "main", HTML: "<html>page 2</html>"}}}

	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

func TestFingerprintIsOrderSensitive(t *testing.T) {
	a := &Snapshot{Frames: []FrameContent{{HTML: "first"}, {HTML: "second"}}}
	b := &Snapshot{Frames: []FrameContent{{HTML: "second"}, {HTML: "first"}}}

	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

func TestSanitizeFrameID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://read.amazon.com/kindle-library", "https_read.amazon.com_kindle-library"},
		{"https://a.example.com/b/c/d.html", "https_a.example.com_b_c_d.html"},
		{"frame_8F1A2B", "frame_8F1A2B"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeFrameID(tt.in), "input %q", tt.in)
	}
}

func TestWriteHTMLFilenames(t *testing.T) {
	dir := t.TempDir()
	snap := &Snapshot{Frames: []FrameContent{
		{ID: "https://read.example.com/book", HTML: "<html>outer</html>"},
		{ID: "frame_ABC", HTML: "<html>inner</html>"},
	}}

	require.NoError(t, snap.WriteHTML(dir, 12))

	outer, err := os.ReadFile(filepath.Join(dir, "page_0012_https_read.example.com_book.html"))
	require.NoError(t, err)
	assert.Equal(t, "<html>outer</html>", string(outer))

	inner, err := os.ReadFile(filepath.Join(dir, "page_0012_frame_ABC.html"))
	require.NoError(t, err)
	assert.Equal(t, "<html>inner</html>", string(inner))
}
