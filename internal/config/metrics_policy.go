package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// CLVMode selects how per-customer lifetime spend is derived from membership records.
type CLVMode string

const (
	// CLVModeMembershipSum adds totalSpend across every membership a customer holds.
	CLVModeMembershipSum CLVMode = "membership_sum"
	// CLVModeCustomerMax counts a customer's cumulative totalSpend once.
	CLVModeCustomerMax CLVMode = "customer_max"
)

// NewReference selects the instant the new-business window is measured from.
type NewReference string

const (
	NewReferenceSnapshotDate NewReference = "snapshot_date"
	NewReferenceWallClock    NewReference = "wall_clock"
)

// MetricsPolicy holds the tunable computation rules. It is reloaded without restart.
type MetricsPolicy struct {
	CLV       CLVPolicy       `mapstructure:"clv" json:"clv"`
	Movements MovementsPolicy `mapstructure:"movements" json:"movements"`
	Retention RetentionPolicy `mapstructure:"retention" json:"retention"`
}

type CLVPolicy struct {
	Mode CLVMode `mapstructure:"mode" json:"mode"`
}

type MovementsPolicy struct {
	NewReference  NewReference `mapstructure:"new_reference" json:"new_reference"`
	NewWindowDays int          `mapstructure:"new_window_days" json:"new_window_days"`
}

type RetentionPolicy struct {
	Days int `mapstructure:"days" json:"days"`
}

func DefaultMetricsPolicy() MetricsPolicy {
	return MetricsPolicy{
		CLV:       CLVPolicy{Mode: CLVModeMembershipSum},
		Movements: MovementsPolicy{NewReference: NewReferenceSnapshotDate, NewWindowDays: 30},
		Retention: RetentionPolicy{Days: 365},
	}
}

// MetricsPolicyHolder serves the current policy to readers on the capture path.
type MetricsPolicyHolder struct {
	current atomic.Value // holds MetricsPolicy
}

// NewStaticMetricsPolicyHolder returns a holder that never reloads.
func NewStaticMetricsPolicyHolder(policy MetricsPolicy) *MetricsPolicyHolder {
	holder := &MetricsPolicyHolder{}
	holder.current.Store(policy)
	return holder
}

func NewMetricsPolicyHolder(cfg Config, log *zap.Logger) (*MetricsPolicyHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.metrics_policy")

	v := viper.New()
	if path := strings.TrimSpace(cfg.MetricsPolicyPath); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("metrics")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/revlens")
		v.AddConfigPath(filepath.Join(".", "config"))
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("REVLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultMetricsPolicy()
	v.SetDefault("clv.mode", string(defaults.CLV.Mode))
	v.SetDefault("movements.new_reference", string(defaults.Movements.NewReference))
	v.SetDefault("movements.new_window_days", defaults.Movements.NewWindowDays)
	v.SetDefault("retention.days", defaults.Retention.Days)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read metrics policy: %w", err)
		}
		fileLoaded = false
	}

	policy, err := decodeMetricsPolicy(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticMetricsPolicyHolder(policy)
	log.Info("metrics policy loaded",
		zap.Bool("from_file", fileLoaded),
		zap.String("clv_mode", string(policy.CLV.Mode)),
		zap.String("new_reference", string(policy.Movements.NewReference)),
		zap.Int("new_window_days", policy.Movements.NewWindowDays),
		zap.Int("retention_days", policy.Retention.Days),
	)

	if fileLoaded {
		v.OnConfigChange(func(e fsnotify.Event) {
			updated, err := decodeMetricsPolicy(v)
			if err != nil {
				log.Warn("metrics policy reload ignored", zap.String("file", e.Name), zap.Error(err))
				return
			}
			holder.current.Store(updated)
			log.Info("metrics policy reloaded", zap.String("file", e.Name))
		})
		v.WatchConfig()
	}

	return holder, nil
}

func (h *MetricsPolicyHolder) Get() MetricsPolicy {
	if h == nil {
		return DefaultMetricsPolicy()
	}
	policy, ok := h.current.Load().(MetricsPolicy)
	if !ok {
		return DefaultMetricsPolicy()
	}
	return policy
}

func decodeMetricsPolicy(v *viper.Viper) (MetricsPolicy, error) {
	var policy MetricsPolicy
	if err := v.Unmarshal(&policy); err != nil {
		return MetricsPolicy{}, fmt.Errorf("decode metrics policy: %w", err)
	}
	policy.CLV.Mode = CLVMode(strings.ToLower(strings.TrimSpace(string(policy.CLV.Mode))))
	policy.Movements.NewReference = NewReference(strings.ToLower(strings.TrimSpace(string(policy.Movements.NewReference))))
	if err := validateMetricsPolicy(policy); err != nil {
		return MetricsPolicy{}, err
	}
	return policy, nil
}

func validateMetricsPolicy(policy MetricsPolicy) error {
	switch policy.CLV.Mode {
	case CLVModeMembershipSum, CLVModeCustomerMax:
	default:
		return fmt.Errorf("clv.mode %q is not supported", policy.CLV.Mode)
	}
	switch policy.Movements.NewReference {
	case NewReferenceSnapshotDate, NewReferenceWallClock:
	default:
		return fmt.Errorf("movements.new_reference %q is not supported", policy.Movements.NewReference)
	}
	if policy.Movements.NewWindowDays <= 0 {
		return errors.New("movements.new_window_days must be positive")
	}
	if policy.Retention.Days <= 0 {
		return errors.New("retention.days must be positive")
	}
	return nil
}
