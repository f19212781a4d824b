package logger

// Logger printf 风格的分级日志接口，流水线各阶段都只依赖它
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// NopLogger 丢弃全部消息，测试中常用
type NopLogger struct{}

func (l *NopLogger) Debug(format string, args ...interface{}) {}
func (l *NopLogger) Info(format string, args ...interface{})  {}
func (l *NopLogger) Warn(format string, args ...interface{})  {}
func (l *NopLogger) Error(format string, args ...interface{}) {}

var (
	_ Logger      = (*NopLogger)(nil)
	_ FieldLogger = (*TextLogger)(nil)
	_ FieldLogger = (*MultiLogger)(nil)
	_ FieldLogger = (*LogrusLogger)(nil)
)
