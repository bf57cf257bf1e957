package capture

import (
	"context"
	"time"

	"github.com/ztrue/tracerr"
)

// PageSource is the slice of a browser session the loop needs: read the
// current page, move to the next one.
type PageSource interface {
	Snapshot() (*Snapshot, error)
	TurnPage() error
}

// Loop pages forward through the reader until the content stops changing or
// the page limit is reached. It is the sequential driver of the session; the
// image interceptor runs independently of it.
type Loop struct {
	Source        PageSource
	HTMLDir       string // where frame markup is written; empty disables
	MaxPages      int
	Delay         time.Duration // wait after each page turn
	StopUnchanged int           // consecutive unchanged snapshots before stopping

	// OnPage, when set, is called after each captured page index.
	OnPage func(pageIndex int)
}

// Result summarizes a finished capture run.
type Result struct {
	PagesCaptured int
	PageTurns     int
	Stalled       bool // the unchanged threshold stopped the loop
}

// Run drives the capture loop. The first snapshot is compared against an
// empty sentinel fingerprint, so it always counts as changed and at least
// one page turn happens before any stop decision is possible.
func (l *Loop) Run(ctx context.Context) (*Result, error) {
	res := &Result{}
	unchanged := 0
	lastFingerprint := ""

	for pageIndex := 1; pageIndex <= l.MaxPages; pageIndex++ {
		snap, err := l.Source.Snapshot()
		if err != nil {
			return nil, tracerr.Wrap(err)
		}
		if l.HTMLDir != "" {
			if err := snap.WriteHTML(l.HTMLDir, pageIndex); err != nil {
				return nil, err
			}
		}
		res.PagesCaptured = pageIndex

		fingerprint := snap.Fingerprint()
		if fingerprint == lastFingerprint {
			unchanged++
		} else {
			unchanged = 0
			lastFingerprint = fingerprint
		}

		if l.OnPage != nil {
			l.OnPage(pageIndex)
		}

		if unchanged >= l.StopUnchanged {
			res.Stalled = true
			return res, nil
		}

		if pageIndex == l.MaxPages {
			break
		}
		if err := l.Source.TurnPage(); err != nil {
			return nil, tracerr.Wrap(err)
		}
		res.PageTurns++

		select {
		case <-ctx.Done():
			return res, tracerr.Wrap(ctx.Err())
		case <-time.After(l.Delay):
		}
	}
	return res, nil
}
