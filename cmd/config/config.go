package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/resonatehq/syncevents/internal/aio"
	"github.com/resonatehq/syncevents/internal/app/auth"
	"github.com/resonatehq/syncevents/internal/app/plugins/pubsub"
	"github.com/resonatehq/syncevents/internal/app/plugins/sqs"
	"github.com/resonatehq/syncevents/internal/app/subsystems/aio/echo"
	"github.com/resonatehq/syncevents/internal/app/subsystems/aio/network"
	"github.com/resonatehq/syncevents/internal/app/subsystems/aio/store/postgres"
	"github.com/resonatehq/syncevents/internal/app/subsystems/aio/store/sqlite"
	"github.com/resonatehq/syncevents/internal/app/subsystems/api/http"
	"github.com/resonatehq/syncevents/internal/kernel/system"
	"github.com/resonatehq/syncevents/internal/kernel/t_aio"
	"github.com/resonatehq/syncevents/internal/metrics"
	"github.com/resonatehq/syncevents/pkg/log"
	"github.com/resonatehq/syncevents/pkg/xhr"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var ErrMultipleStores = errors.New("only one store can be enabled")

// Config is shared by every command that issues operations.
type Config struct {
	System   system.Config `flag:"system"`
	AIO      AIO           `flag:"aio"`
	Xhr      xhr.Names     `flag:"xhr"`
	LogLevel  string        `validate:"oneof=debug info warn error off"`
	LogFormat string        `validate:"omitempty,oneof=text json"`
}

type ServeConfig struct {
	Config      `mapstructure:",squash"`
	API         API         `flag:"api"`
	Auth        auth.Config `flag:"auth"`
	Plugins     Plugins     `flag:"plugins"`
	MetricsPort int         `flag:"metrics-port" desc:"prometheus metrics server port" default:"9090" validate:"gte=0,lte=65535"`
}

type AIO struct {
	Size       int           `flag:"size" desc:"completion buffered channel size" default:"1000" validate:"gt=0"`
	Subsystems AIOSubsystems `flag:"-"`
}

type AIOSubsystems struct {
	Echo          EnabledSubsystem[struct{}]         `flag:"echo"`
	Network       EnabledSubsystem[network.Config]   `flag:"network"`
	StoreSqlite   EnabledSubsystem[sqlite.Config]    `flag:"store-sqlite"`
	StorePostgres DisabledSubsystem[postgres.Config] `flag:"store-postgres"`
}

type EnabledSubsystem[T any] struct {
	Enabled   bool                `flag:"enable" desc:"enable subsystem" default:"true"`
	Subsystem aio.SubsystemConfig `flag:"-"`
	Config    T                   `flag:"-"`
}

type DisabledSubsystem[T any] struct {
	Enabled   bool                `flag:"enable" desc:"enable subsystem" default:"false"`
	Subsystem aio.SubsystemConfig `flag:"-"`
	Config    T                   `flag:"-"`
}

type API struct {
	Http http.Config `flag:"http"`
}

type Plugins struct {
	Sqs    DisabledPlugin[sqs.Config]    `flag:"sqs"`
	Pubsub DisabledPlugin[pubsub.Config] `flag:"pubsub"`
}

type DisabledPlugin[T any] struct {
	Enabled bool `flag:"enable" desc:"enable plugin" default:"false"`
	Config  T    `flag:"-"`
}

// Sink is an enabled plugin together with the address every record is
// sent to.
type Sink struct {
	Plugin aio.Plugin
	Addr   []byte
}

func (c *Config) Validate() error {
	if c.AIO.Subsystems.StoreSqlite.Enabled && c.AIO.Subsystems.StorePostgres.Enabled {
		return ErrMultipleStores
	}
	return nil
}

// Instantiate adds the enabled subsystems to a and returns the kinds they
// serve.
func (s *AIOSubsystems) Instantiate(a aio.AIO) ([]t_aio.Kind, error) {
	kinds := []t_aio.Kind{}

	if s.Echo.Enabled {
		a.AddSubsystem(t_aio.Echo, echo.New(), &s.Echo.Subsystem)
		kinds = append(kinds, t_aio.Echo)
	}
	if s.Network.Enabled {
		a.AddSubsystem(t_aio.Network, network.New(&s.Network.Config), &s.Network.Subsystem)
		kinds = append(kinds, t_aio.Network)
	}

	subsystem, config, err := s.instantiateStore()
	if err != nil {
		return nil, err
	}
	if subsystem != nil {
		a.AddSubsystem(t_aio.Store, subsystem, config)
		kinds = append(kinds, t_aio.Store)
	}

	return kinds, nil
}

func (s *AIOSubsystems) instantiateStore() (aio.Subsystem, *aio.SubsystemConfig, error) {
	if s.StorePostgres.Enabled {
		store, err := postgres.New(&s.StorePostgres.Config, s.StorePostgres.Subsystem.Workers)
		return store, &s.StorePostgres.Subsystem, err
	} else if s.StoreSqlite.Enabled {
		store, err := sqlite.New(&s.StoreSqlite.Config)
		return store, &s.StoreSqlite.Subsystem, err
	}

	slog.Warn("no store enabled, record urls will be rejected")
	return nil, nil, nil
}

func (p *Plugins) Instantiate(metrics *metrics.Metrics) ([]*Sink, error) {
	sinks := []*Sink{}

	if p.Sqs.Enabled {
		plugin, err := sqs.New(metrics, &p.Sqs.Config)
		if err != nil {
			return nil, err
		}
		addr, err := p.Sqs.Config.Addr()
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, &Sink{Plugin: plugin, Addr: addr})
	}
	if p.Pubsub.Enabled {
		plugin, err := pubsub.New(metrics, &p.Pubsub.Config)
		if err != nil {
			return nil, err
		}
		addr, err := p.Pubsub.Config.Addr()
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, &Sink{Plugin: plugin, Addr: addr})
	}

	return sinks, nil
}

// Bind registers a flag for every tagged field of cfg on cmd and binds it to
// the matching key of vip.
func Bind(cmd *cobra.Command, vip *viper.Viper, cfg any) error {
	return bind(cmd, vip, cfg, "", "")
}

// Load reads the config file and the environment into vip, then decodes and
// validates cfg. The default logger is installed from the resulting level.
func Load(cmd *cobra.Command, vip *viper.Viper, cfg any) error {
	if file, _ := cmd.Flags().GetString("config"); file != "" {
		vip.SetConfigFile(file)
	} else {
		vip.SetConfigName("syncevents")
		vip.AddConfigPath(".")
		vip.AddConfigPath("$HOME")
	}

	vip.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	vip.AutomaticEnv()

	if err := vip.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}

	if flag := cmd.Flags().Lookup("log-level"); flag != nil {
		_ = vip.BindPFlag("LogLevel", flag)
	}
	if flag := cmd.Flags().Lookup("log-format"); flag != nil {
		_ = vip.BindPFlag("LogFormat", flag)
	}

	hooks := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := vip.Unmarshal(cfg, viper.DecodeHook(hooks)); err != nil {
		return err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return err
	}
	if v, ok := cfg.(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return err
		}
	}

	logger, err := log.New(os.Stderr, vip.GetString("LogLevel"), vip.GetString("LogFormat"))
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	return nil
}

// Helper functions

func bind(cmd *cobra.Command, vip *viper.Viper, cfg any, fPrefix string, kPrefix string) error {
	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)

		// squashed structs share the prefixes of their parent
		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			if err := bind(cmd, vip, v.Field(i).Addr().Interface(), fPrefix, kPrefix); err != nil {
				return err
			}
			continue
		}

		flag := field.Tag.Get("flag")
		if flag == "" {
			continue
		}

		desc := field.Tag.Get("desc")
		value := field.Tag.Get("default")

		var n string
		if fPrefix == "" {
			n = flag
		} else if flag == "-" {
			n = fPrefix
		} else {
			n = fmt.Sprintf("%s-%s", fPrefix, flag)
		}

		name := field.Name
		if tag, _, _ := strings.Cut(field.Tag.Get("mapstructure"), ","); tag != "" {
			name = tag
		}

		var k string
		if kPrefix == "" {
			k = name
		} else {
			k = fmt.Sprintf("%s.%s", kPrefix, name)
		}

		switch field.Type.Kind() {
		case reflect.String:
			cmd.Flags().String(n, value, desc)
		case reflect.Bool:
			cmd.Flags().Bool(n, value == "true", desc)
		case reflect.Int:
			v, _ := strconv.Atoi(value)
			cmd.Flags().Int(n, v, desc)
		case reflect.Int64:
			if field.Type == reflect.TypeOf(time.Duration(0)) {
				v, _ := time.ParseDuration(value)
				cmd.Flags().Duration(n, v, desc)
			} else {
				v, _ := strconv.ParseInt(value, 10, 64)
				cmd.Flags().Int64(n, v, desc)
			}
		case reflect.Float64:
			v, _ := strconv.ParseFloat(value, 64)
			cmd.Flags().Float64(n, v, desc)
		case reflect.Slice:
			if field.Type != reflect.TypeOf([]string{}) {
				return fmt.Errorf("unsupported slice type: %s", field.Type)
			}
			var v []string
			if value != "" {
				v = strings.Split(value, ",")
			}
			cmd.Flags().StringSlice(n, v, desc)
		case reflect.Map:
			if field.Type != reflect.TypeOf(map[string]string{}) {
				return fmt.Errorf("unsupported map type: %s", field.Type)
			}
			if value == "" {
				value = "{}"
			}
			var v map[string]string
			if err := json.Unmarshal([]byte(value), &v); err != nil {
				return err
			}
			cmd.Flags().StringToString(n, v, desc)
		case reflect.Struct:
			if err := bind(cmd, vip, v.Field(i).Addr().Interface(), n, k); err != nil {
				return err
			}
			continue
		default:
			return fmt.Errorf("unsupported type: %s", field.Type.Kind())
		}

		_ = vip.BindPFlag(k, cmd.Flags().Lookup(n))
	}

	return nil
}
