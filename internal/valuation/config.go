package valuation

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/contactkeval/option-pricing/internal/data"
	"github.com/contactkeval/option-pricing/internal/logger"
)

// Model selects which engines run.
type Model string

const (
	ModelBlackScholes Model = "black_scholes"
	ModelMonteCarlo   Model = "monte_carlo"
	ModelBoth         Model = "both"
)

const (
	DefaultDaysToMaturity = 365
	DefaultHistoryDays    = 365
	DefaultSimulations    = 10000
	DefaultSamplePaths    = 50
	DefaultReportDir      = "./out"
)

const dateLayout = "2006-01-02"

// ErrInvalidConfig wraps every config validation failure.
var ErrInvalidConfig = errors.New("invalid config")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config describes one valuation request.
type Config struct {
	Ticker         string             `json:"ticker" validate:"required,max=32"`                                    // e.g. "AAPL"
	AsOf           string             `json:"as_of,omitempty" validate:"omitempty,datetime=2006-01-02"`             // valuation date, default today
	DateMatchType  data.DateMatchType `json:"date_match_type,omitempty" validate:"omitempty,oneof=exact higher lower nearest"`
	HistoryDays    int                `json:"history_days,omitempty" validate:"gte=0"`                              // calendar days of bars to fetch
	StrikeRule     string             `json:"strike_rule,omitempty"`                                                // ATM, ATM:+5%, ABS:300, {SPOT}*1.1
	StrikeInterval float64            `json:"strike_interval,omitempty" validate:"gte=0"`                           // strike grid, 0 = no rounding
	Expiry         string             `json:"expiry,omitempty" validate:"omitempty,datetime=2006-01-02"`            // exercise date
	DaysToMaturity int                `json:"days_to_maturity,omitempty" validate:"gte=0"`                          // used when expiry is empty
	RiskFreeRate   float64            `json:"risk_free_rate"`                                                       // decimal, 0.10 = 10%
	Volatility     float64            `json:"volatility,omitempty" validate:"gte=0"`                                // decimal, 0 = historical
	Model          Model              `json:"model,omitempty" validate:"omitempty,oneof=black_scholes monte_carlo both"`
	Simulations    int                `json:"num_simulations,omitempty" validate:"gte=0"`
	Steps          int                `json:"steps,omitempty" validate:"gte=0"`        // time steps per path, default 1
	SamplePaths    int                `json:"sample_paths,omitempty" validate:"gte=0"` // trajectories kept for plotting
	Seed           *uint64            `json:"seed,omitempty"`                          // nil = fresh randomness per run
	Workers        int                `json:"workers,omitempty" validate:"gte=0"`      // 0 = GOMAXPROCS
	Greeks         bool               `json:"greeks,omitempty"`
	ReportDir      string             `json:"report_dir,omitempty"`
	Verbosity      int                `json:"verbosity,omitempty"` // 0=errors,1=info,2=debug,3=trace
}

// LoadConfig reads and validates a JSON config file.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Validate checks field constraints. Cross-field rules: expiry and
// days_to_maturity are mutually exclusive.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s(%s)", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Expiry != "" && c.DaysToMaturity != 0 {
		return fmt.Errorf("%w: set expiry or days_to_maturity, not both", ErrInvalidConfig)
	}
	return nil
}

// applyDefaults fills unset fields.
func (c *Config) applyDefaults() {
	if c.Model == "" {
		c.Model = ModelBoth
	}
	if c.DateMatchType == "" {
		c.DateMatchType = data.MatchLower
	}
	if c.HistoryDays == 0 {
		c.HistoryDays = DefaultHistoryDays
	}
	if c.Expiry == "" && c.DaysToMaturity == 0 {
		c.DaysToMaturity = DefaultDaysToMaturity
	}
	if c.Simulations == 0 {
		c.Simulations = DefaultSimulations
	}
	if c.Steps == 0 {
		c.Steps = 1
	}
	if c.SamplePaths == 0 {
		c.SamplePaths = DefaultSamplePaths
	}
	if c.ReportDir == "" {
		c.ReportDir = DefaultReportDir
	}
	if c.Verbosity < int(logger.Error) || c.Verbosity > int(logger.Trace) {
		c.Verbosity = int(logger.Info)
	}
}

func (c *Config) runsBlackScholes() bool { return c.Model == ModelBlackScholes || c.Model == ModelBoth }
func (c *Config) runsMonteCarlo() bool { return c.Model == ModelMonteCarlo || c.Model == ModelBoth }

// asOfDate is the valuation date, today when unset.
func (c *Config) asOfDate(now time.Time) (time.Time, error) {
	if c.AsOf == "" {
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	return time.Parse(dateLayout, c.AsOf)
}

// daysToMaturity counts calendar days from asOf to the expiry, or returns the
// configured day count. The result may be <= 0; pricing rejects it.
func (c *Config) daysToMaturity(asOf time.Time) (int, error) {
	if c.Expiry == "" {
		return c.DaysToMaturity, nil
	}
	exp, err := time.Parse(dateLayout, c.Expiry)
	if err != nil {
		return 0, fmt.Errorf("%w: expiry: %v", ErrInvalidConfig, err)
	}
	return int(exp.Sub(asOf).Hours() / 24), nil
}
