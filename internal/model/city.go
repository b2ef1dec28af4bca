// Package model defines the core data types shared across the ETL pipeline.
package model

// City identifies a fetch target. Cities come from configuration and are
// immutable for the duration of a run.
type City struct {
	Name      string  `yaml:"name" mapstructure:"name" json:"name"`
	Latitude  float64 `yaml:"latitude" mapstructure:"latitude" json:"latitude"`
	Longitude float64 `yaml:"longitude" mapstructure:"longitude" json:"longitude"`
}
