package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestTextLoggerLevelAndFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf, LevelInfo)
	l.Debug("不应出现")
	l.Info("瓦片 %d", 7)
	child := l.WithField("tile", "0123")
	child.Warn("100%% 透明")

	out := buf.String()
	if strings.Contains(out, "不应出现") {
		t.Errorf("debug 消息未被过滤: %q", out)
	}
	if !strings.Contains(out, "[INFO] 瓦片 7") {
		t.Errorf("缺少 info 消息: %q", out)
	}
	if !strings.Contains(out, "[WARN] tile=0123 100% 透明") {
		t.Errorf("字段输出错误: %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want logrus.Level
		err  bool
	}{
		{"", logrus.InfoLevel, false},
		{"debug", logrus.DebugLevel, false},
		{"WARN", logrus.WarnLevel, false},
		{"error", logrus.ErrorLevel, false},
		{"verbose", logrus.InfoLevel, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.err {
			t.Errorf("ParseLevel(%q) err = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, 期望 %v", tt.in, got, tt.want)
		}
	}
}

func TestLogrusLoggerWithField(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewLogrusLoggerWithWriter(&buf, "info")
	if err != nil {
		t.Fatalf("创建失败: %v", err)
	}
	l.Debug("隐藏")
	With(l, "layer", "roads").Info("完成 %d 个瓦片", 3)

	out := buf.String()
	if strings.Contains(out, "隐藏") {
		t.Errorf("debug 消息未被过滤: %q", out)
	}
	if !strings.Contains(out, "完成 3 个瓦片") || !strings.Contains(out, "roads") {
		t.Errorf("输出缺少消息或字段: %q", out)
	}
}

func TestMultiLoggerFanOut(t *testing.T) {
	var a, b bytes.Buffer
	m := NewMultiLogger(NewWriterLogger(&a, LevelDebug), NewWriterLogger(&b, LevelError), &NopLogger{})
	With(m, "run", "x").Error("失败")
	m.Info("信息")
	if !strings.Contains(a.String(), "run=x 失败") || !strings.Contains(a.String(), "信息") {
		t.Errorf("a 输出错误: %q", a.String())
	}
	if !strings.Contains(b.String(), "失败") || strings.Contains(b.String(), "信息") {
		t.Errorf("b 输出错误: %q", b.String())
	}
}

func TestGlobalLogger(t *testing.T) {
	var buf bytes.Buffer
	SetGlobalLogger(NewWriterLogger(&buf, LevelDebug))
	defer SetGlobalLogger(nil)
	Debug("全局 %s", "ok")
	if !strings.Contains(buf.String(), "全局 ok") {
		t.Errorf("全局记录器未生效: %q", buf.String())
	}
}
