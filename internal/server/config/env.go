package config

import (
	"fmt"
	"reflect"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/dmitrijs2005/gophaccounts/internal/timex"
)

// parseEnv overlays Config with environment variables named in the struct
// tags. Unset variables leave the current value untouched. Durations accept
// the "7d" and bare-seconds forms as well as Go duration strings.
func parseEnv(config *Config) error {
	opts := env.Options{
		FuncMap: map[reflect.Type]env.ParserFunc{
			reflect.TypeOf(time.Duration(0)): func(v string) (interface{}, error) {
				return timex.ParseDuration(v)
			},
		},
	}
	if err := env.ParseWithOptions(config, opts); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	return nil
}
