package config

import (
	"os"

	"github.com/sirupsen/logrus"
)

var (
	logg *logrus.Logger
)

func GetLogger() *logrus.Logger {
	return logg
}

func init() {
	logg = logrus.New()
	logg.SetFormatter(&logrus.JSONFormatter{})
	logg.SetLevel(logLevelFromEnv())
	logg.SetOutput(os.Stdout)
}

func logLevelFromEnv() logrus.Level {
	raw := os.Getenv("LOG_LEVEL")
	if raw == "" {
		return logrus.ErrorLevel
	}
	level, err := logrus.ParseLevel(raw)
	if err != nil {
		return logrus.ErrorLevel
	}
	return level
}

func LogError(logger *logrus.Logger, moduleName string, funcName string, context string, data any, err error) {
	if data != nil {
		logger.WithFields(logrus.Fields{
			"module":   moduleName,
			"funcName": funcName,
			"context":  context,
			"data":     data,
		}).Error(err.Error())
	} else {
		logger.WithFields(logrus.Fields{
			"module":   moduleName,
			"funcName": funcName,
			"context":  context,
		}).Error(err.Error())
	}
}
