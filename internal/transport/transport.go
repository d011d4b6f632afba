// Package transport performs persistence operations over the aio
// subsystems. Operations on http(s) urls go to the network subsystem,
// echo:// urls to the echo subsystem and plain paths of the form
// /collection[/id] to the record store. Completion callbacks run on the
// system loop goroutine.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"

	"github.com/google/uuid"
	"github.com/resonatehq/syncevents/internal/aio"
	"github.com/resonatehq/syncevents/internal/kernel/bus"
	"github.com/resonatehq/syncevents/internal/kernel/metadata"
	"github.com/resonatehq/syncevents/internal/kernel/t_aio"
	"github.com/resonatehq/syncevents/pkg/persist"
)

var ErrUnsupportedUrl = errors.New("no subsystem serves url")

// StatusError is the error a completed operation fails with when the
// remote end answered with an error status.
type StatusError struct {
	Code int
	Body []byte
	Err  error
}

func (e *StatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("status %d: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("status %d", e.Code)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// Code returns the status carried by err, or 0 when err carries none.
func Code(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code
	}
	return 0
}

type Transport struct {
	aio   aio.AIO
	kinds map[t_aio.Kind]bool
}

// New returns a transport enqueuing on a. Only urls served by one of kinds
// are accepted.
func New(a aio.AIO, kinds ...t_aio.Kind) *Transport {
	t := &Transport{
		aio:   a,
		kinds: map[t_aio.Kind]bool{},
	}
	for _, kind := range kinds {
		t.kinds[kind] = true
	}
	return t
}

type handle struct {
	id     string
	cancel context.CancelFunc
}

func (h *handle) Abort() {
	h.cancel()
}

func (h *handle) String() string {
	return fmt.Sprintf("Handle(id=%s)", h.id)
}

type completer func(*t_aio.Completion) (any, int, error)

func (t *Transport) Sync(ctx context.Context, method persist.Method, target persist.Target, opts *persist.Options) (persist.Handle, error) {
	if opts == nil {
		opts = &persist.Options{}
	}

	rawUrl := opts.URL
	if rawUrl == "" {
		rawUrl = target.URL()
	}

	ctx, cancel := context.WithCancel(ctx)
	h := &handle{id: uuid.NewString(), cancel: cancel}

	settings := &persist.Settings{
		Method: method,
		Verb:   method.Verb(),
		URL:    rawUrl,
		Header: opts.Header,
		Body:   opts.Body,
	}

	if opts.BeforeSend != nil && !opts.BeforeSend(h, settings) {
		slog.Debug("transport:vetoed", "handle", h, "method", method, "url", settings.URL)
		cancel()
		return nil, nil
	}

	submission, complete, err := t.submission(settings)
	if err != nil {
		cancel()
		return nil, err
	}

	t.aio.Enqueue(&bus.SQE[t_aio.Submission, t_aio.Completion]{
		Metadata:   metadata.New(h.id),
		Submission: submission,
		Ctx:        ctx,
		Callback: func(c *t_aio.Completion, err error) {
			defer cancel()

			// the submission may have completed after it was aborted
			if err == nil && ctx.Err() != nil {
				err = ctx.Err()
			}

			var data any
			var code int
			if err == nil {
				data, code, err = complete(c)
			}

			if err != nil {
				if opts.Error != nil {
					opts.Error(h, status(err), err)
				}
				return
			}

			if opts.Success != nil {
				opts.Success(data, code, h)
			}
		},
	})

	return h, nil
}

func (t *Transport) submission(s *persist.Settings) (*t_aio.Submission, completer, error) {
	u, err := url.Parse(s.URL)
	if err != nil {
		return nil, nil, err
	}

	var kind t_aio.Kind
	switch u.Scheme {
	case "http", "https":
		kind = t_aio.Network
	case "echo":
		kind = t_aio.Echo
	case "":
		kind = t_aio.Store
	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedUrl, s.URL)
	}

	if !t.kinds[kind] {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedUrl, s.URL)
	}

	switch kind {
	case t_aio.Network:
		return networkSubmission(s)
	case t_aio.Echo:
		return echoSubmission(s)
	default:
		return storeSubmission(s, u.Path)
	}
}

func networkSubmission(s *persist.Settings) (*t_aio.Submission, completer, error) {
	headers := map[string]string{"Accept": "application/json"}

	var body []byte
	if s.Body != nil {
		var err error
		if body, err = json.Marshal(s.Body); err != nil {
			return nil, nil, err
		}
		headers["Content-Type"] = "application/json"
	}

	for key, value := range s.Header {
		headers[key] = value
	}

	submission := &t_aio.Submission{
		Kind: t_aio.Network,
		Network: &t_aio.NetworkSubmission{
			Kind: t_aio.Http,
			Http: &t_aio.HttpRequest{
				Headers: headers,
				Method:  s.Verb,
				Url:     s.URL,
				Body:    body,
			},
		},
	}

	return submission, func(c *t_aio.Completion) (any, int, error) {
		res := c.Network.Http
		if res.StatusCode >= 400 {
			return nil, 0, &StatusError{Code: res.StatusCode, Body: res.Body}
		}

		data, err := decode(res.Body)
		if err != nil {
			return nil, 0, err
		}
		return data, res.StatusCode, nil
	}, nil
}

func echoSubmission(s *persist.Settings) (*t_aio.Submission, completer, error) {
	var body []byte
	if s.Body != nil {
		var err error
		if body, err = json.Marshal(s.Body); err != nil {
			return nil, nil, err
		}
	}

	submission := &t_aio.Submission{
		Kind: t_aio.Echo,
		Echo: &t_aio.EchoSubmission{Data: body},
	}

	return submission, func(c *t_aio.Completion) (any, int, error) {
		data, err := decode(c.Echo.Data)
		if err != nil {
			return nil, 0, err
		}
		return data, 200, nil
	}, nil
}

// ParseError reports a response body that is not valid json.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid response body: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func decode(body []byte) (any, error) {
	if len(body) == 0 {
		return nil, nil
	}

	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, &ParseError{Err: err}
	}
	return data, nil
}

func status(err error) string {
	var netErr net.Error
	var parseErr *ParseError

	switch {
	case errors.Is(err, context.Canceled):
		return persist.StatusAbort
	case errors.Is(err, context.DeadlineExceeded):
		return persist.StatusTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return persist.StatusTimeout
	case errors.As(err, &parseErr):
		return persist.StatusParse
	default:
		return persist.StatusError
	}
}
