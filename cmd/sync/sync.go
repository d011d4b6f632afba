package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/resonatehq/syncevents/cmd/config"
	"github.com/resonatehq/syncevents/cmd/util"
	"github.com/resonatehq/syncevents/pkg/events"
	"github.com/resonatehq/syncevents/pkg/lifecycle"
	"github.com/resonatehq/syncevents/pkg/model"
	"github.com/resonatehq/syncevents/pkg/persist"
	"github.com/resonatehq/syncevents/pkg/xhr"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var example = `# Read a record over http
syncevents sync read http://localhost:8001/records/books/1

# Create a record in the local store
syncevents sync create /books --data '{"title": "dune"}'

# Echo a body back with a custom event type
syncevents sync update echo://books/1 --data '{"title": "dune"}' --event rename`

func NewCmd() *cobra.Command {
	var (
		cfg     = &config.Config{}
		vip     = viper.New()
		data    string
		headers map[string]string
		event   string
	)

	cmd := &cobra.Command{
		Use:     "sync <method> <url>",
		Short:   "Issue one tracked operation and print its events",
		Example: example,
		Args:    cobra.ExactArgs(2),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return config.Load(cmd, vip, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			method, err := persist.ParseMethod(args[0])
			if err != nil {
				return err
			}

			var body any
			if data != "" {
				if err := json.Unmarshal([]byte(data), &body); err != nil {
					return fmt.Errorf("invalid data: %w", err)
				}
			}

			rt, err := util.Start(cfg, prometheus.NewRegistry())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			opts := &persist.Options{
				Body:   body,
				Header: headers,
				Event:  event,
			}

			err = Sync(ctx, cmd.OutOrStdout(), rt.Dispatcher, method, args[1], opts)
			if stopErr := rt.Stop(); err == nil {
				err = stopErr
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&data, "data", "d", "", "json request body")
	cmd.Flags().StringToStringVarP(&headers, "header", "H", map[string]string{}, "request headers")
	cmd.Flags().StringVarP(&event, "event", "e", "", "event type published instead of the method")

	cobra.CheckErr(config.Bind(cmd, vip, cfg))
	cmd.Flags().SortFlags = false

	return cmd
}

// Sync issues one operation against url through hook, writes every event it
// produces to w and returns once both trackers have drained. An operation
// that ends in error is reported on w, not returned.
func Sync(ctx context.Context, w io.Writer, hook persist.Transport, method persist.Method, url string, opts *persist.Options) error {
	names := xhr.CurrentNames()
	target := model.New(url, hook)

	// one signal per tracker
	drained := make(chan struct{}, 2)
	target.Once(names.Drained(), func(events.Event) {
		fmt.Fprintf(w, "drained %s\n", names.Drained())
		drained <- struct{}{}
	})
	target.Once(lifecycle.Drained, func(events.Event) {
		fmt.Fprintf(w, "drained %s\n", lifecycle.Drained)
		drained <- struct{}{}
	})

	events.Subscribe(target, names.Topic(""), func(topic events.Topic, c *xhr.Context) {
		fmt.Fprintf(w, "%s %s\n", topic, c.Options().URL)

		prefix := names.EventName
		c.On(xhr.BeforeSend, func(events.Event) {
			fmt.Fprintf(w, "%s:%s\n", prefix, xhr.BeforeSend)
		})
		events.Subscribe(c, xhr.AfterSend, func(_ events.Topic, r *xhr.Response) {
			fmt.Fprintf(w, "%s:%s %d\n", prefix, xhr.AfterSend, r.Code)
		})
		events.Subscribe(c, xhr.Success, func(_ events.Topic, r *xhr.Result) {
			fmt.Fprintf(w, "%s:%s %d %s\n", prefix, xhr.Success, r.Code, encode(r.Data))
		})
		events.Subscribe(c, xhr.Error, func(_ events.Topic, r *xhr.Result) {
			fmt.Fprintf(w, "%s:%s %s %v\n", prefix, xhr.Error, r.Status, r.Err)
		})
		c.On(xhr.Complete, func(events.Event) {
			fmt.Fprintf(w, "%s:%s\n", prefix, xhr.Complete)
		})
	})

	events.Subscribe(target, lifecycle.Topic(""), func(topic events.Topic, t *lifecycle.Tracker) {
		fmt.Fprintf(w, "%s %s\n", topic, t.Options().URL)

		for _, e := range []events.Topic{lifecycle.Success, lifecycle.Error, lifecycle.Complete} {
			events.Subscribe(t, e, func(events.Topic, *lifecycle.Outcome) {
				fmt.Fprintf(w, "%s:%s\n", lifecycle.Kind, e)
			})
		}
	})

	h, err := hook.Sync(ctx, method, target, opts)
	if err != nil {
		return err
	}
	if h == nil {
		fmt.Fprintln(w, "operation prevented")
		return nil
	}

	for n := 0; n < 2; {
		select {
		case <-drained:
			n++
		case <-ctx.Done():
			h.Abort()
			ctx = context.Background()
		}
	}

	return nil
}

func encode(data any) string {
	if data == nil {
		return "null"
	}

	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Sprint(data)
	}
	return string(b)
}
