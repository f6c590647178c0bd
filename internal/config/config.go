// Package config defines the data structures related to configuration and
// includes functions for loading and validating the config.
package config

import (
	"fmt"

	"github.com/mlavoie/rentwise/internal/montecarlo"
	"github.com/mlavoie/rentwise/internal/optimizer"
	"github.com/mlavoie/rentwise/internal/params"
	"github.com/spf13/viper"
)

// Configuration holds all configuration for rentwise: the base parameter
// tree plus optional analysis directives and runtime settings.
type Configuration struct {
	Parameters   params.ParameterTree `yaml:"parameters" mapstructure:"parameters"`
	Optimization *optimizer.Config    `yaml:"optimization,omitempty" mapstructure:"optimization"`
	MonteCarlo   *montecarlo.Config   `yaml:"monteCarlo,omitempty" mapstructure:"monteCarlo"`
	Logging      LoggingConfig        `yaml:"logging,omitempty" mapstructure:"logging"`
	Output       OutputConfig         `yaml:"output,omitempty" mapstructure:"output"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty" mapstructure:"level"`           // debug, info, warn, error
	Format     string `yaml:"format,omitempty" mapstructure:"format"`         // json, console
	OutputFile string `yaml:"outputFile,omitempty" mapstructure:"outputFile"` // optional file output
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format string `yaml:"format,omitempty" mapstructure:"format"` // pretty, csv
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there.
func LoadConfiguration(configPath string) (*Configuration, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yml")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file, %s", err)
	}

	var configuration Configuration
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %s", err)
	}

	return &configuration, nil
}

// Validate checks the hard invariants: range bounds on every parameter and
// well-formed analysis directives. The engine assumes a tree that passed
// this gate.
func (c *Configuration) Validate() error {
	if err := c.Parameters.Validate(); err != nil {
		return err
	}
	if c.Optimization != nil {
		if err := c.Optimization.Validate(); err != nil {
			return fmt.Errorf("optimization: %w", err)
		}
	}
	if c.MonteCarlo != nil {
		if err := c.MonteCarlo.Validate(); err != nil {
			return fmt.Errorf("monteCarlo: %w", err)
		}
	}
	return nil
}

// ValidateConfiguration performs advisory validation and returns warnings.
// Warnings never block a run; they flag scenarios that compute but rarely
// make sense.
func (c *Configuration) ValidateConfiguration() []string {
	var warnings []string
	tree := &c.Parameters

	purchasePrice := tree.Property.PurchasePrice.Effective()
	downPayment := tree.Financing.DownPayment.Effective()
	if purchasePrice <= 0 {
		warnings = append(warnings, "purchase price is not positive; price-derived KPIs will be zero-guarded")
	}
	if downPayment > purchasePrice {
		warnings = append(warnings, fmt.Sprintf("down payment %.2f exceeds purchase price %.2f; loan amount will be negative", downPayment, purchasePrice))
	}
	if occupancy := tree.Revenue.OccupancyRate.Effective(); occupancy > 100 {
		warnings = append(warnings, fmt.Sprintf("occupancy rate %.2f%% exceeds 100%%", occupancy))
	}
	if days := tree.Revenue.DaysPerYear.Effective(); days > 366 {
		warnings = append(warnings, fmt.Sprintf("days per year %.0f exceeds a calendar year", days))
	}
	for i, line := range tree.Expenses {
		if line.Name == "" {
			warnings = append(warnings, fmt.Sprintf("expense line %d has no name", i))
		}
		if line.Category == "" {
			warnings = append(warnings, fmt.Sprintf("expense line %d (%s) has no category; it will be reported under Other", i, line.Name))
		}
	}

	return warnings
}
