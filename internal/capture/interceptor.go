package capture

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ztrue/tracerr"
	"golang.org/x/sync/errgroup"
)

// pendingResponse holds what is needed to fetch a body once the browser
// reports the load finished.
type pendingResponse struct {
	url         string
	contentType string
}

// Interceptor watches every network response on the session and persists
// unique image payloads through an ImageStore. It fires whenever the browser
// fetches something and is not synchronized to page turns.
type Interceptor struct {
	store *ImageStore
	group *errgroup.Group
	save  func(ctx context.Context, id network.RequestID, resp pendingResponse) error

	mu      sync.Mutex
	pending map[network.RequestID]pendingResponse
}

// NewInterceptor wraps store. Save tasks are never limited: group.Go must
// not block inside the event callback, or a slow body read would stall
// response dispatch and the page loop with it.
func NewInterceptor(store *ImageStore) *Interceptor {
	in := &Interceptor{
		store:   store,
		group:   &errgroup.Group{},
		pending: make(map[network.RequestID]pendingResponse),
	}
	in.save = in.saveBody
	return in
}

// Attach registers the interceptor on a chromedp target context. Response
// bodies are only retrievable after loadingFinished, so image responses are
// remembered on responseReceived and fetched on the finish event.
func (in *Interceptor) Attach(ctx context.Context) {
	chromedp.ListenTarget(ctx, func(ev interface{}) {
		in.handleEvent(ctx, ev)
	})
}

// handleEvent routes a single CDP network event. Non-image responses never
// enter the pending map; a failed load clears its entry so the finish event
// for another request cannot pick it up.
func (in *Interceptor) handleEvent(ctx context.Context, ev interface{}) {
	switch ev := ev.(type) {
	case *network.EventResponseReceived:
		if ev.Type != network.ResourceTypeImage {
			return
		}
		contentType := responseContentType(ev.Response)
		if !strings.HasPrefix(contentType, "image/") {
			return
		}
		in.mu.Lock()
		in.pending[ev.RequestID] = pendingResponse{
			url:         ev.Response.URL,
			contentType: contentType,
		}
		in.mu.Unlock()

	case *network.EventLoadingFinished:
		in.mu.Lock()
		resp, ok := in.pending[ev.RequestID]
		if ok {
			delete(in.pending, ev.RequestID)
		}
		in.mu.Unlock()
		if !ok {
			return
		}
		requestID := ev.RequestID
		in.group.Go(func() error {
			if err := in.save(ctx, requestID, resp); err != nil {
				// a failed body read ends only this task; the session
				// and the page loop keep going
				fmt.Fprintf(os.Stderr, "image capture failed for %s: %v\n", resp.url, err)
			}
			return nil
		})

	case *network.EventLoadingFailed:
		in.mu.Lock()
		delete(in.pending, ev.RequestID)
		in.mu.Unlock()
	}
}

// saveBody pulls the response body over CDP and hands it to the store.
func (in *Interceptor) saveBody(ctx context.Context, id network.RequestID, resp pendingResponse) error {
	c := chromedp.FromContext(ctx)
	body, err := network.GetResponseBody(id).Do(cdp.WithExecutor(ctx, c.Target))
	if err != nil {
		return tracerr.Wrap(err)
	}
	if len(body) == 0 {
		return nil
	}
	_, err = in.store.Save(body, resp.contentType, resp.url)
	return err
}

// Wait blocks until every in-flight save task has finished. Call it before
// closing the session so late image bodies still land on disk.
func (in *Interceptor) Wait() error {
	return in.group.Wait()
}

// responseContentType returns the declared content type, preferring the
// header over the browser-sniffed mime type.
func responseContentType(resp *network.Response) string {
	for key, value := range resp.Headers {
		if strings.EqualFold(key, "content-type") {
			if s, ok := value.(string); ok {
				return s
			}
		}
	}
	return resp.MimeType
}
