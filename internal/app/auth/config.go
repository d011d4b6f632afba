package auth

import "time"

type Config struct {
	// Provider is one of basic or jwt, defaults to basic when credentials
	// are configured and to no authentication otherwise
	Provider string            `flag:"provider" desc:"auth provider, one of basic or jwt" validate:"omitempty,oneof=basic jwt"`
	Basic    map[string]string `flag:"basic" desc:"basic auth username=password pairs"`
	JWT      JWTConfig         `flag:"jwt"`
}

type JWTConfig struct {
	Algorithm string        `flag:"algorithm" desc:"jwt signing algorithm" default:"HS256"`
	Audience  []string      `flag:"audience" desc:"accepted jwt audiences"`
	Issuer    string        `flag:"issuer" desc:"required jwt issuer"`
	Key       string        `flag:"key" desc:"jwt verification key or shared secret"`
	KeyFile   string        `flag:"key-file" desc:"path to the jwt verification key"`
	ClockSkew time.Duration `flag:"clock-skew" desc:"tolerated clock skew when validating jwt time claims" default:"30s"`
}
