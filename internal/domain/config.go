package domain

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete downpay configuration.
// Values are read from DOWNPAY_* environment variables by internal/config.
type Config struct {
	Server     ServerConfig     `envPrefix:"SERVER_"`
	Repository RepositoryConfig `envPrefix:"DB_"`
	Cache      CacheConfig      `envPrefix:"CACHE_"`
	Engine     EngineConfig     `envPrefix:"ENGINE_"`
	EventBus   EventBusConfig   `envPrefix:"BUS_"`

	Logging LoggingConfig `envPrefix:"LOG_"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `env:"HOST" envDefault:"0.0.0.0"`
	Port           int           `env:"PORT" envDefault:"8080"`
	ReadTimeout    time.Duration `env:"READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout   time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	AllowedOrigins []string      `env:"ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
}

// EngineConfig controls rule evaluation.
type EngineConfig struct {
	// TieBreak settles equal-priority matches on the same policy:
	// "first_match" (table order) or "most_conservative" (highest percentages).
	TieBreak TieBreak `env:"TIE_BREAK" envDefault:"first_match"`

	// MaxWorkers bounds concurrent quote evaluations in a batch.
	MaxWorkers int `env:"MAX_WORKERS" envDefault:"10"`

	// Defaults apply to bound fields no matching rule sets.
	Defaults BoundDefaults `envPrefix:"DEFAULT_"`
}

// BoundDefaults are the system values for unset installment bounds.
type BoundDefaults struct {
	InstallmentCountMin     int `env:"INSTALLMENT_COUNT_MIN" envDefault:"1"`
	InstallmentCountMax     int `env:"INSTALLMENT_COUNT_MAX" envDefault:"12"`
	InstallmentCountDefault int `env:"INSTALLMENT_COUNT" envDefault:"12"`
	DaysToFirstDueDate      int `env:"DAYS_TO_FIRST_DUE_DATE" envDefault:"0"`
	MonthsToFirstDueDate    int `env:"MONTHS_TO_FIRST_DUE_DATE" envDefault:"1"`
}

// TieBreak selects among equal-priority rules competing for a policy.
type TieBreak string

const (
	TieBreakFirstMatch       TieBreak = "first_match"
	TieBreakMostConservative TieBreak = "most_conservative"
)

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`  // debug, info, warn, error
	Format string `env:"FORMAT" envDefault:"json"` // json, text
}

// DefaultBoundDefaults mirrors the envDefault values above for callers
// that build an engine without loading configuration.
func DefaultBoundDefaults() BoundDefaults {
	return BoundDefaults{
		InstallmentCountMin:     1,
		InstallmentCountMax:     12,
		InstallmentCountDefault: 12,
		DaysToFirstDueDate:      0,
		MonthsToFirstDueDate:    1,
	}
}

// Complete fills installment counts left at zero from fallback. Due-date
// offsets are kept as given since zero is a valid offset.
func (d BoundDefaults) Complete(fallback BoundDefaults) BoundDefaults {
	if d.InstallmentCountMin == 0 {
		d.InstallmentCountMin = fallback.InstallmentCountMin
	}
	if d.InstallmentCountMax == 0 {
		d.InstallmentCountMax = fallback.InstallmentCountMax
	}
	if d.InstallmentCountDefault == 0 {
		d.InstallmentCountDefault = fallback.InstallmentCountDefault
	}
	return d
}

// Validate checks that the defaults form a consistent installment range.
func (d BoundDefaults) Validate() error {
	var errs []error
	if d.InstallmentCountMin > d.InstallmentCountMax {
		errs = append(errs, fmt.Errorf("default installment min %d exceeds max %d", d.InstallmentCountMin, d.InstallmentCountMax))
	} else if d.InstallmentCountDefault < d.InstallmentCountMin || d.InstallmentCountDefault > d.InstallmentCountMax {
		errs = append(errs, fmt.Errorf("default installment count %d outside [%d, %d]", d.InstallmentCountDefault, d.InstallmentCountMin, d.InstallmentCountMax))
	}
	if d.DaysToFirstDueDate < 0 || d.MonthsToFirstDueDate < 0 {
		errs = append(errs, errors.New("default due date offsets must not be negative"))
	}
	return errors.Join(errs...)
}
