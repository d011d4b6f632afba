package network

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/resonatehq/syncevents/internal/aio"
	"github.com/resonatehq/syncevents/internal/kernel/bus"
	"github.com/resonatehq/syncevents/internal/kernel/t_aio"
	"github.com/resonatehq/syncevents/internal/util"
)

type Config struct {
	Timeout time.Duration `flag:"timeout" desc:"network request timeout" default:"10s"`
}

type Network struct {
	config *Config
}

type NetworkDevice struct {
	client *http.Client
}

func New(config *Config) aio.Subsystem {
	return &Network{
		config: config,
	}
}

func (n *Network) String() string {
	return "network"
}

func (n *Network) Start() error {
	return nil
}

func (n *Network) Stop() error {
	return nil
}

func (n *Network) NewWorker(int) aio.Worker {
	return &NetworkDevice{
		client: &http.Client{
			Timeout: n.config.Timeout,
		},
	}
}

func (d *NetworkDevice) Process(sqes []*bus.SQE[t_aio.Submission, t_aio.Completion]) []*bus.CQE[t_aio.Submission, t_aio.Completion] {
	cqes := make([]*bus.CQE[t_aio.Submission, t_aio.Completion], len(sqes))

	for i, sqe := range sqes {
		util.Assert(sqe.Submission.Network != nil, "submission must not be nil")

		switch sqe.Submission.Network.Kind {
		case t_aio.Http:
			cqe := &bus.CQE[t_aio.Submission, t_aio.Completion]{
				Callback: sqe.Callback,
			}

			res, err := d.httpRequest(sqe.Context(), sqe.Submission.Network.Http)
			if err != nil {
				cqe.Error = err
			} else {
				cqe.Completion = &t_aio.Completion{
					Kind: t_aio.Network,
					Network: &t_aio.NetworkCompletion{
						Kind: t_aio.Http,
						Http: res,
					},
				}
			}

			cqes[i] = cqe
		default:
			panic("invalid network submission")
		}
	}

	return cqes
}

func (d *NetworkDevice) httpRequest(ctx context.Context, r *t_aio.HttpRequest) (*t_aio.HttpResponse, error) {
	req, err := http.NewRequestWithContext(ctx, r.Method, r.Url, bytes.NewBuffer(r.Body))
	if err != nil {
		return nil, err
	}

	for key, value := range r.Headers {
		req.Header.Set(key, value)
	}

	res, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer util.DeferAndLog(res.Body.Close)

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	return &t_aio.HttpResponse{
		StatusCode: res.StatusCode,
		Header:     res.Header,
		Body:       body,
	}, nil
}
