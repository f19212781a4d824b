package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

var (
	globalLogger Logger
	loggerOnce   sync.Once
	loggerMu     sync.RWMutex
)

// SetGlobalLogger 设置进程级日志记录器，nil 时恢复为 info 级控制台输出
func SetGlobalLogger(l Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if l == nil {
		globalLogger = NewConsoleLogger(LevelInfo)
	} else {
		globalLogger = l
	}
}

func GetGlobalLogger() Logger {
	loggerOnce.Do(func() {
		loggerMu.Lock()
		if globalLogger == nil {
			globalLogger = NewConsoleLogger(LevelInfo)
		}
		loggerMu.Unlock()
	})
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return globalLogger
}

func Debug(format string, args ...interface{}) { GetGlobalLogger().Debug(format, args...) }
func Info(format string, args ...interface{})  { GetGlobalLogger().Info(format, args...) }
func Warn(format string, args ...interface{})  { GetGlobalLogger().Warn(format, args...) }
func Error(format string, args ...interface{}) { GetGlobalLogger().Error(format, args...) }

// Level 文本日志记录器的级别阈值
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelTags = [...]string{"[DEBUG] ", "[INFO] ", "[WARN] ", "[ERROR] "}

// TextLogger 以 "[LEVEL] " 前缀写入标准库 log.Logger，低于阈值的消息丢弃
type TextLogger struct {
	min    Level
	logger *log.Logger
	fields string
}

// NewConsoleLogger 输出到标准错误
func NewConsoleLogger(min Level) *TextLogger {
	return &TextLogger{min: min, logger: log.New(os.Stderr, "", log.LstdFlags)}
}

// NewWriterLogger 输出到 w
func NewWriterLogger(w io.Writer, min Level) *TextLogger {
	return &TextLogger{min: min, logger: log.New(w, "", 0)}
}

func (l *TextLogger) output(lv Level, format string, args ...interface{}) {
	if lv < l.min {
		return
	}
	l.logger.Printf(levelTags[lv]+l.fields+format, args...)
}

func (l *TextLogger) Debug(format string, args ...interface{}) { l.output(LevelDebug, format, args...) }
func (l *TextLogger) Info(format string, args ...interface{})  { l.output(LevelInfo, format, args...) }
func (l *TextLogger) Warn(format string, args ...interface{})  { l.output(LevelWarn, format, args...) }
func (l *TextLogger) Error(format string, args ...interface{}) { l.output(LevelError, format, args...) }

// WithField 字段以 key=value 形式写在消息前
func (l *TextLogger) WithField(key string, value interface{}) Logger {
	// 字段文本可能含有 %，先转义
	f := escapePercent(fmt.Sprintf("%s=%v ", key, value))
	return &TextLogger{min: l.min, logger: l.logger, fields: l.fields + f}
}

func escapePercent(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' {
			out = append(out, '%')
		}
		out = append(out, s[i])
	}
	return string(out)
}

// MultiLogger 同时写入多个记录器
type MultiLogger struct{ loggers []Logger }

func NewMultiLogger(loggers ...Logger) *MultiLogger { return &MultiLogger{loggers: loggers} }

func (l *MultiLogger) Debug(format string, args ...interface{}) {
	for _, lg := range l.loggers {
		lg.Debug(format, args...)
	}
}
func (l *MultiLogger) Info(format string, args ...interface{}) {
	for _, lg := range l.loggers {
		lg.Info(format, args...)
	}
}
func (l *MultiLogger) Warn(format string, args ...interface{}) {
	for _, lg := range l.loggers {
		lg.Warn(format, args...)
	}
}
func (l *MultiLogger) Error(format string, args ...interface{}) {
	for _, lg := range l.loggers {
		lg.Error(format, args...)
	}
}

func (l *MultiLogger) WithField(key string, value interface{}) Logger {
	children := make([]Logger, len(l.loggers))
	for i, lg := range l.loggers {
		children[i] = With(lg, key, value)
	}
	return &MultiLogger{loggers: children}
}
