package utils

import (
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// SetupLogger 配置全局 logrus
// format: json / text
func SetupLogger(level, format string) {
	log.SetOutput(os.Stdout)

	if strings.EqualFold(format, "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
		log.WithField("level", level).Warn("[Logger] 日志级别无效，使用 info")
	}
	log.SetLevel(lvl)
}
