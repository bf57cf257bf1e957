package capture

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/ztrue/tracerr"
)

// FrameContent is one frame's rendered markup at capture time.
type FrameContent struct {
	ID   string // frame URL, or a synthetic name when the URL is blank
	HTML string
}

// Snapshot holds the rendered markup of every frame on the page at one
// instant, in frame-tree order. The order is stable within a snapshot so
// that fingerprints of consecutive snapshots are comparable.
type Snapshot struct {
	Frames []FrameContent
}

// Fingerprint returns a SHA-256 digest over the concatenated frame markup in
// enumeration order. Identical markup always yields an identical digest.
func (s *Snapshot) Fingerprint() string {
	h := sha256.New()
	for _, f := range s.Frames {
		h.Write([]byte(f.HTML))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// SanitizeFrameID makes a frame identifier safe to embed in a filename.
func SanitizeFrameID(id string) string {
	id = strings.ReplaceAll(id, "://", "_")
	return strings.ReplaceAll(id, "/", "_")
}

// WriteHTML persists every frame of the snapshot under dir, one file per
// frame, named by the page index and the sanitized frame identifier.
func (s *Snapshot) WriteHTML(dir string, pageIndex int) error {
	for _, f := range s.Frames {
		name := fmt.Sprintf("page_%04d_%s.html", pageIndex, SanitizeFrameID(f.ID))
		if err := os.WriteFile(filepath.Join(dir, name), []byte(f.HTML), 0644); err != nil {
			return tracerr.Wrap(err)
		}
	}
	return nil
}

// CaptureSnapshot reads the markup of every frame currently attached to the
// page. A frame whose content cannot be read (detached mid-capture, blocked
// by the browser) is skipped, so a single bad frame never aborts the
// snapshot.
func CaptureSnapshot(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		tree, err := page.GetFrameTree().Do(ctx)
		if err != nil {
			return err
		}
		for _, frame := range flattenFrameTree(tree) {
			html, err := frameHTML(ctx, frame.ID)
			if err != nil {
				continue
			}
			id := frame.URL
			if id == "" {
				id = "frame_" + string(frame.ID)
			}
			snap.Frames = append(snap.Frames, FrameContent{ID: id, HTML: html})
		}
		return nil
	}))
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	return snap, nil
}

// flattenFrameTree walks the frame tree depth-first, parent before children.
func flattenFrameTree(tree *page.FrameTree) []*cdp.Frame {
	frames := []*cdp.Frame{tree.Frame}
	for _, child := range tree.ChildFrames {
		frames = append(frames, flattenFrameTree(child)...)
	}
	return frames
}

// frameHTML evaluates the frame's full document markup inside an isolated
// world, which also works for cross-origin reader frames.
func frameHTML(ctx context.Context, frameID cdp.FrameID) (string, error) {
	world, err := page.CreateIsolatedWorld(frameID).Do(ctx)
	if err != nil {
		return "", err
	}
	obj, exc, err := runtime.Evaluate("document.documentElement.outerHTML").
		WithContextID(world).Do(ctx)
	if err != nil {
		return "", err
	}
	if exc != nil {
		return "", exc
	}
	var html string
	if err := json.Unmarshal(obj.Value, &html); err != nil {
		return "", err
	}
	return html, nil
}
