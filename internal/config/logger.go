package config

import (
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger builds the JSON logrus logger shared by the whole process.
func NewLogger(cfg *Config) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
		log.WithField("log_level", cfg.LogLevel).Warn("Unknown log level, falling back to info")
	}
	log.SetLevel(level)
	return log
}
