package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// MergeConfig holds the tunable knobs of the merge pipeline. It lives in
// lettermill.yml so operators can adjust throttling without a restart.
type MergeConfig struct {
	// ThrottleMillis is the fixed delay between consecutive row sends.
	ThrottleMillis int `mapstructure:"throttleMillis"`
	// SubscriberBuffer is the channel depth per progress subscriber.
	SubscriberBuffer int `mapstructure:"subscriberBuffer"`
	// SendRatePerMinute / SendBurst drive the per-user run rate limiter.
	SendRatePerMinute float64 `mapstructure:"sendRatePerMinute"`
	SendBurst         int     `mapstructure:"sendBurst"`
}

func DefaultMergeConfig() MergeConfig {
	return MergeConfig{
		ThrottleMillis:    1000,
		SubscriberBuffer:  16,
		SendRatePerMinute: 2,
		SendBurst:         3,
	}
}

func (c MergeConfig) Throttle() time.Duration {
	return time.Duration(c.ThrottleMillis) * time.Millisecond
}

// MergeConfigHolder exposes the current MergeConfig and hot-reloads it
// when the config file changes on disk.
type MergeConfigHolder struct {
	current atomic.Value // holds MergeConfig
}

func NewMergeConfigHolder(log *zap.Logger) (*MergeConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("lettermill")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/lettermill/config")
	v.AddConfigPath("/etc/lettermill")
	v.AddConfigPath(".")

	v.SetEnvPrefix("LETTERMILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultMergeConfig()
	v.SetDefault("merge.throttleMillis", defaults.ThrottleMillis)
	v.SetDefault("merge.subscriberBuffer", defaults.SubscriberBuffer)
	v.SetDefault("merge.sendRatePerMinute", defaults.SendRatePerMinute)
	v.SetDefault("merge.sendBurst", defaults.SendBurst)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg MergeConfig
	if err := v.UnmarshalKey("merge", &cfg); err != nil {
		return nil, err
	}
	if err := validateMergeConfig(cfg); err != nil {
		return nil, err
	}

	holder := &MergeConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var next MergeConfig
		if err := v.UnmarshalKey("merge", &next); err != nil {
			log.Error("merge config reload failed", zap.String("file", e.Name), zap.Error(err))
			return
		}
		if err := validateMergeConfig(next); err != nil {
			log.Warn("merge config reload rejected", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(next)
		log.Info("merge config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

// NewStaticMergeConfigHolder returns a holder pinned to cfg, with no
// file watching.
func NewStaticMergeConfigHolder(cfg MergeConfig) *MergeConfigHolder {
	holder := &MergeConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

// Current returns the active merge configuration.
func (h *MergeConfigHolder) Current() MergeConfig {
	if h == nil {
		return DefaultMergeConfig()
	}
	if cfg, ok := h.current.Load().(MergeConfig); ok {
		return cfg
	}
	return DefaultMergeConfig()
}

func validateMergeConfig(cfg MergeConfig) error {
	if cfg.ThrottleMillis < 0 {
		return errors.New("merge.throttleMillis must not be negative")
	}
	if cfg.SubscriberBuffer <= 0 {
		return errors.New("merge.subscriberBuffer must be positive")
	}
	if cfg.SendRatePerMinute <= 0 {
		return errors.New("merge.sendRatePerMinute must be positive")
	}
	if cfg.SendBurst <= 0 {
		return errors.New("merge.sendBurst must be positive")
	}
	return nil
}
