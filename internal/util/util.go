package util

import (
	"cmp"
	"log/slog"
	"sort"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

func Assert(cond bool, msg string) {
	ignoreAsserts := viper.GetBool("ignore-asserts")
	if !ignoreAsserts && !cond {
		panic(msg)
	}
}

func OrderedRange[K cmp.Ordered, V any](m map[K]V) []V {
	sorted := make([]V, len(m))
	for i, key := range orderedRangeSort(m) {
		sorted[i] = m[key]
	}

	return sorted
}

func orderedRangeSort[K cmp.Ordered, V any](m map[K]V) []K {
	keys := make([]K, len(m))

	i := 0
	for key := range m { // nosemgrep: range-over-map
		keys[i] = key
		i++
	}

	sort.SliceStable(keys, func(i, j int) bool {
		return keys[i] < keys[j]
	})

	for i := 0; i < len(keys)-1; i++ {
		Assert(keys[i] <= keys[i+1], "slice not sorted")
	}

	return keys
}

// ParseCron accepts five or six field expressions, the sixth being seconds,
// and the @every family of descriptors.
func ParseCron(cronExp string) (cron.Schedule, error) {
	return cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor).Parse(cronExp)
}

// SplitPath splits a record path of the form /collection[/id] into its parts.
func SplitPath(path string) (string, string) {
	path = strings.Trim(path, "/")
	collection, id, _ := strings.Cut(path, "/")
	return collection, id
}

func DeferAndLog(f func() error) {
	if err := f(); err != nil {
		slog.Warn("defer failed", "err", err)
	}
}

func ToPointer[T any](val T) *T {
	return &val
}
