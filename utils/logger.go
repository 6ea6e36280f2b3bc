package utils

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var (
	InfoLogger  *logrus.Logger
	ErrorLogger *logrus.Logger
)

func init() {
	// Usable before InitLogger, e.g. from tests that skip it.
	InitLogger()
}

func InitLogger() {
	InfoLogger = logrus.New()
	ErrorLogger = logrus.New()

	InfoLogger.SetOutput(os.Stdout)
	ErrorLogger.SetOutput(os.Stderr)

	SetLogFormat(os.Getenv("LOG_FORMAT"))

	InfoLogger.SetLevel(logrus.InfoLevel)
	ErrorLogger.SetLevel(logrus.WarnLevel)
}

// SetLogFormat switches both loggers between "text" and "json".
func SetLogFormat(format string) {
	var f logrus.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	if strings.EqualFold(format, "json") {
		f = &logrus.JSONFormatter{}
	}
	InfoLogger.SetFormatter(f)
	ErrorLogger.SetFormatter(f)
}
