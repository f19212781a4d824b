package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	nested "github.com/antonfisher/nested-logrus-formatter"
	"github.com/sirupsen/logrus"
)

// FieldLogger 支持附加结构化字段的日志记录器
type FieldLogger interface {
	Logger
	WithField(key string, value interface{}) Logger
}

// With 为 l 附加字段，l 不支持字段时原样返回
func With(l Logger, key string, value interface{}) Logger {
	if fl, ok := l.(FieldLogger); ok {
		return fl.WithField(key, value)
	}
	return l
}

// LogrusLogger 基于 logrus 的日志记录器，输出格式为 nested-logrus-formatter
type LogrusLogger struct {
	entry *logrus.Entry
	file  *os.File
}

// LogrusOptions LogrusLogger 构造参数
type LogrusOptions struct {
	// Level debug|info|warn|error，为空时为 info
	Level string
	// File 日志文件路径，为空时只输出到标准错误
	File string
	// Quiet 为 true 时不输出到标准错误
	Quiet bool
}

// NewLogrusLogger 创建 LogrusLogger
// 输入: opts - 级别与输出文件
// 输出: *LogrusLogger, error - 级别非法或文件无法打开时返回错误
func NewLogrusLogger(opts LogrusOptions) (*LogrusLogger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	l := logrus.New()
	l.SetFormatter(&nested.Formatter{
		HideKeys:        false,
		ShowFullLevel:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
		FieldsOrder:     []string{"run", "layer", "tile"},
	})
	l.SetLevel(level)

	var writers []io.Writer
	if !opts.Quiet {
		writers = append(writers, os.Stderr)
	}
	var file *os.File
	if opts.File != "" {
		file, err = os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, fmt.Errorf("无法打开日志文件 %s: %w", opts.File, err)
		}
		writers = append(writers, file)
	}
	switch len(writers) {
	case 0:
		l.SetOutput(io.Discard)
	case 1:
		l.SetOutput(writers[0])
	default:
		// 同时写文件和屏幕
		l.SetOutput(io.MultiWriter(writers...))
	}
	return &LogrusLogger{entry: logrus.NewEntry(l), file: file}, nil
}

// NewLogrusLoggerWithWriter 输出到任意 writer，主要用于测试
func NewLogrusLoggerWithWriter(w io.Writer, level string) (*LogrusLogger, error) {
	lv, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	l := logrus.New()
	l.SetFormatter(&nested.Formatter{NoColors: true, ShowFullLevel: true, FieldsOrder: []string{"run", "layer", "tile"}})
	l.SetOutput(w)
	l.SetLevel(lv)
	return &LogrusLogger{entry: logrus.NewEntry(l)}, nil
}

// ParseLevel 解析日志级别，空串视为 info
func ParseLevel(s string) (logrus.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return logrus.InfoLevel, nil
	case "debug":
		return logrus.DebugLevel, nil
	case "info":
		return logrus.InfoLevel, nil
	case "warn", "warning":
		return logrus.WarnLevel, nil
	case "error":
		return logrus.ErrorLevel, nil
	}
	return logrus.InfoLevel, fmt.Errorf("未知的日志级别: %q", s)
}

func (l *LogrusLogger) Debug(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *LogrusLogger) Info(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *LogrusLogger) Warn(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *LogrusLogger) Error(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

// WithField 返回带字段的子记录器，与父记录器共享输出
func (l *LogrusLogger) WithField(key string, value interface{}) Logger {
	return &LogrusLogger{entry: l.entry.WithField(key, value)}
}

// Close 关闭日志文件（子记录器不持有文件）
func (l *LogrusLogger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
