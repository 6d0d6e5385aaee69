package rpcclient

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap/zapcore"
)

// syslogPriority maps a zap level to the syslog priority values
// pam_syslog understands (security/pam_ext.h uses the same LOG_*
// numbering as <syslog.h>).
func syslogPriority(lvl zapcore.Level) int {
	switch {
	case lvl >= zapcore.DPanicLevel:
		return 2 // LOG_CRIT
	case lvl >= zapcore.ErrorLevel:
		return 3 // LOG_ERR
	case lvl >= zapcore.WarnLevel:
		return 4 // LOG_WARNING
	case lvl >= zapcore.InfoLevel:
		return 6 // LOG_INFO
	default:
		return 7 // LOG_DEBUG
	}
}

// SyslogCore is a zapcore.Core that forwards every entry over the SYSLOG
// RPC primitive instead of writing to a local file descriptor — the
// child has no direct syslog access of its own, so every log line has to
// reach the system log through the parent, the same path
// childhost.reportException uses for a trapped policy exception.
type SyslogCore struct {
	client *Client
	level  zapcore.LevelEnabler
	fields []zapcore.Field
}

// NewSyslogCore builds a Core that reports entries at level and above
// through client's Syslog RPC.
func NewSyslogCore(client *Client, level zapcore.LevelEnabler) *SyslogCore {
	return &SyslogCore{client: client, level: level}
}

func (c *SyslogCore) Enabled(lvl zapcore.Level) bool {
	return c.level.Enabled(lvl)
}

func (c *SyslogCore) With(fields []zapcore.Field) zapcore.Core {
	combined := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	combined = append(combined, c.fields...)
	combined = append(combined, fields...)
	return &SyslogCore{client: c.client, level: c.level, fields: combined}
}

func (c *SyslogCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *SyslogCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}

	keys := make([]string, 0, len(enc.Fields))
	for k := range enc.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	line := "pam-policy-bridge: " + ent.Message
	for _, k := range keys {
		line += fmt.Sprintf(" %s=%v", k, enc.Fields[k])
	}
	return c.client.Syslog(context.Background(), syslogPriority(ent.Level), line)
}

func (c *SyslogCore) Sync() error {
	return nil
}
