package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"journey-animator/internal/clock"
)

// FileConfig is the optional YAML configuration named by ANIMATION_CONFIG.
type FileConfig struct {
	Window struct {
		Start   string `yaml:"start" validate:"omitempty,clock"`
		End     string `yaml:"end" validate:"omitempty,clock"`
		StepSec int    `yaml:"stepSec" validate:"gte=0"`
	} `yaml:"window"`
	Output struct {
		Dir      string `yaml:"dir"`
		Basename string `yaml:"basename" validate:"omitempty,excludesall=/\\"`
	} `yaml:"output"`
	Network struct {
		DSN string `yaml:"dsn"`
	} `yaml:"network"`
	Streaming struct {
		NATSURL string `yaml:"natsURL" validate:"omitempty,url"`
		AMQPURL string `yaml:"amqpURL" validate:"omitempty,url"`
	} `yaml:"streaming"`
}

// LoadFile reads and validates a YAML configuration file.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	v := validator.New()
	if err := v.RegisterValidation("clock", validateClock); err != nil {
		return nil, err
	}
	if err := v.Struct(&fc); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return &fc, nil
}

func validateClock(fl validator.FieldLevel) bool {
	_, err := clock.Parse(fl.Field().String())
	return err == nil
}
