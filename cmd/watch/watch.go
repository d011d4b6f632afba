package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/resonatehq/syncevents/cmd/config"
	"github.com/resonatehq/syncevents/cmd/util"
	"github.com/resonatehq/syncevents/internal/observe"
	internalUtil "github.com/resonatehq/syncevents/internal/util"
	"github.com/resonatehq/syncevents/pkg/events"
	"github.com/resonatehq/syncevents/pkg/model"
	"github.com/resonatehq/syncevents/pkg/persist"
	"github.com/resonatehq/syncevents/pkg/xhr"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var example = `# Re-fetch a record every ten seconds
syncevents watch http://localhost:8001/records/books/1 --schedule "*/10 * * * * *"

# Fetch a collection of the local store three times, once a minute
syncevents watch /books --collection --schedule "@every 1m" --count 3`

func NewCmd() *cobra.Command {
	var (
		cfg        = &config.Config{}
		vip        = viper.New()
		schedule   string
		collection bool
		count      int
	)

	cmd := &cobra.Command{
		Use:     "watch <url>",
		Short:   "Fetch a target on a cron schedule",
		Example: example,
		Args:    cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return config.Load(cmd, vip, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			sched, err := internalUtil.ParseCron(schedule)
			if err != nil {
				return fmt.Errorf("invalid schedule: %w", err)
			}

			rt, err := util.Start(cfg, prometheus.NewRegistry())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var target persist.Fetcher
			if collection {
				target = model.NewCollection(args[0], rt.Dispatcher)
			} else {
				root, id := split(args[0])
				target = model.New(root, rt.Dispatcher, model.WithID(id))
			}

			err = Watch(ctx, cmd.OutOrStdout(), rt.Observer, target, sched, count)
			if stopErr := rt.Stop(); err == nil {
				err = stopErr
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&schedule, "schedule", "s", "@every 30s", "cron schedule of the fetches")
	cmd.Flags().BoolVar(&collection, "collection", false, "fetch the url as a collection")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "stop after this many fetches, 0 watches until interrupted")

	cobra.CheckErr(config.Bind(cmd, vip, cfg))
	cmd.Flags().SortFlags = false

	return cmd
}

// Watch loads target once through xhr.WhenFetched, then fetches it again on
// every occurrence of sched. A fetch still in flight when the next
// occurrence arrives is not repeated. Every result is written to w.
func Watch(ctx context.Context, w io.Writer, observer *observe.Observer, target persist.Fetcher, sched cron.Schedule, count int) error {
	sub := observer.Watch(target)
	defer target.Off(sub)

	report := func(persist.Target) {
		fmt.Fprintf(w, "fetched %s %s\n", target.URL(), snapshot(target))
	}
	fail := func(err error) {
		fmt.Fprintf(w, "failed %s %v\n", target.URL(), err)
	}

	// settled is signaled once per fetch, successful or not
	settled := make(chan struct{}, 1)
	done := func() {
		select {
		case settled <- struct{}{}:
		default:
		}
	}

	err := xhr.WhenFetched(ctx, target,
		func(t persist.Target) { report(t); done() },
		func(err error) { fail(err); done() },
	)
	if err != nil {
		return err
	}

	fetches := 0
	for {
		select {
		case <-settled:
			fetches++
			if count > 0 && fetches >= count {
				return nil
			}
		case <-ctx.Done():
			return nil
		}

		next := sched.Next(time.Now())
		select {
		case <-time.After(time.Until(next)):
		case <-ctx.Done():
			return nil
		}

		// a fetch issued elsewhere settles through the drain of target
		drain := target.(interface {
			Once(events.Topic, events.Handler) *events.Subscription
		}).Once(xhr.CurrentNames().Drained(), func(events.Event) { done() })
		if loading(target) {
			slog.Debug("fetch in flight, skipping", "url", target.URL())
			continue
		}
		target.Off(drain)

		_, err := target.Fetch(ctx, &persist.Options{
			Success: func(any, int, persist.Handle) { report(target); done() },
			Error:   func(_ persist.Handle, _ string, err error) { fail(err); done() },
		})
		if err != nil {
			return err
		}
	}
}

// split separates the last path segment of url, the id of the model, from
// its collection root.
func split(url string) (string, string) {
	i := strings.LastIndex(url, "/")
	if i <= 0 || strings.HasSuffix(url[:i], "/") {
		return url, ""
	}
	return url[:i], url[i+1:]
}

func loading(target persist.Target) bool {
	for _, op := range xhr.IsLoading(target) {
		if op.Method() == persist.Read {
			return true
		}
	}
	return false
}

func snapshot(target persist.Target) string {
	var v any
	switch t := target.(type) {
	case *model.Model:
		v = t.Attributes()
	case *model.Collection:
		records := []map[string]any{}
		for _, m := range t.Models() {
			records = append(records, m.Attributes())
		}
		v = records
	}

	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
