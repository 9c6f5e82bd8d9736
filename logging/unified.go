package logging

import (
	"context"
	"fmt"
	"regexp"
	"runtime"

	"github.com/sirupsen/logrus"
)

var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// UnifiedLogger creates log entries that are rendered both as styled
// user-facing output and as structured log records.
type UnifiedLogger struct {
	component  string
	pretty     *PrettyLogger
	structured *logrus.Entry
}

// NewUnifiedLogger creates a new unified logger for a specific component.
func NewUnifiedLogger(component string) *UnifiedLogger {
	return newUnifiedLogger(component, NewLogger(component))
}

func newUnifiedLogger(component string, structured *logrus.Entry) *UnifiedLogger {
	// Caller fields are filled in by logStructured so they point at the call
	// site rather than this wrapper.
	structured.Logger.SetReportCaller(false)
	return &UnifiedLogger{
		component:  component,
		pretty:     NewPrettyLogger(),
		structured: structured,
	}
}

func (u *UnifiedLogger) entry(msg string, level logrus.Level, icon string, fields logrus.Fields) *LogEntry {
	if fields == nil {
		fields = logrus.Fields{}
	}
	return &LogEntry{logger: u, msg: msg, level: level, fields: fields, icon: icon}
}

// Debug returns a LogEntry at DEBUG level.
func (u *UnifiedLogger) Debug(msg string) *LogEntry {
	return u.entry(msg, logrus.DebugLevel, "", nil)
}

// Info returns a LogEntry at INFO level.
func (u *UnifiedLogger) Info(msg string) *LogEntry {
	return u.entry(msg, logrus.InfoLevel, "", nil)
}

// Warn returns a LogEntry at WARN level.
func (u *UnifiedLogger) Warn(msg string) *LogEntry {
	return u.entry(msg, logrus.WarnLevel, IconWarning, nil)
}

// Error returns a LogEntry at ERROR level.
func (u *UnifiedLogger) Error(msg string) *LogEntry {
	return u.entry(msg, logrus.ErrorLevel, IconError, nil)
}

// Success is logged at INFO level with status=success.
func (u *UnifiedLogger) Success(msg string) *LogEntry {
	return u.entry(msg, logrus.InfoLevel, IconSuccess, logrus.Fields{"status": "success"})
}

// Status is logged at INFO level with status=info.
func (u *UnifiedLogger) Status(msg string) *LogEntry {
	return u.entry(msg, logrus.InfoLevel, IconInfo, logrus.Fields{"status": "info"})
}

// LogEntry accumulates options before writing to both outputs.
// Call Log(ctx) to write it.
type LogEntry struct {
	logger     *UnifiedLogger
	msg        string
	level      logrus.Level
	fields     logrus.Fields
	icon       string
	prettyMsg  string
	prettyOnly bool
	structOnly bool
	noIcon     bool
	err        error
}

// Field adds a structured field.
func (e *LogEntry) Field(key string, value interface{}) *LogEntry {
	e.fields[key] = value
	return e
}

// Err attaches an error, recorded as the "error" field.
func (e *LogEntry) Err(err error) *LogEntry {
	if err != nil {
		e.err = err
		e.fields["error"] = err.Error()
	}
	return e
}

// Icon overrides the default icon.
func (e *LogEntry) Icon(icon string) *LogEntry {
	e.icon = icon
	return e
}

// NoIcon suppresses the icon in pretty output.
func (e *LogEntry) NoIcon() *LogEntry {
	e.noIcon = true
	return e
}

// Pretty sets a custom styled string for user-facing output. The plain
// message is still used for the structured record.
func (e *LogEntry) Pretty(styled string) *LogEntry {
	e.prettyMsg = styled
	return e
}

// PrettyOnly skips structured output.
func (e *LogEntry) PrettyOnly() *LogEntry {
	e.prettyOnly = true
	return e
}

// StructuredOnly skips pretty output.
func (e *LogEntry) StructuredOnly() *LogEntry {
	e.structOnly = true
	return e
}

// Log writes the entry.
func (e *LogEntry) Log(ctx context.Context) {
	prettyOutput := e.computePrettyOutput()

	if !e.structOnly {
		fmt.Fprintln(GetWriter(ctx), prettyOutput)
	}
	if !e.prettyOnly {
		e.logStructured(prettyOutput)
	}
}

func (e *LogEntry) computePrettyOutput() string {
	if e.prettyMsg != "" {
		return e.prettyMsg
	}

	output := e.msg
	if !e.noIcon {
		icon := e.icon
		if icon == "" {
			icon = IconBullet
		}
		output = icon + " " + e.msg
	}

	if e.err != nil {
		output += ": " + e.err.Error()
	}

	styles := e.logger.pretty.Styles()
	switch {
	case e.level == logrus.WarnLevel:
		return styles.Warning.Render(output)
	case e.level == logrus.ErrorLevel:
		return styles.Error.Render(output)
	case e.level == logrus.DebugLevel:
		return styles.Muted.Render(output)
	case e.icon == IconSuccess:
		return styles.Success.Render(output)
	case e.icon == IconInfo:
		return styles.Info.Render(output)
	}
	return output
}

func (e *LogEntry) logStructured(prettyOutput string) {
	// 0=logStructured, 1=Log, 2=call site
	if pc, file, line, ok := runtime.Caller(2); ok {
		funcName := ""
		if fn := runtime.FuncForPC(pc); fn != nil {
			funcName = fn.Name()
		}
		e.fields["file"] = fmt.Sprintf("%s:%d", file, line)
		e.fields["func"] = funcName
	}

	e.fields["pretty_text"] = ansiRegex.ReplaceAllString(prettyOutput, "")

	e.logger.structured.WithFields(e.fields).Log(e.level, e.msg)
}

// Component returns the component name for this logger.
func (u *UnifiedLogger) Component() string {
	return u.component
}

// WithStructured returns the underlying logrus entry.
func (u *UnifiedLogger) WithStructured() *logrus.Entry {
	return u.structured
}

// WithPretty returns the underlying PrettyLogger.
func (u *UnifiedLogger) WithPretty() *PrettyLogger {
	return u.pretty
}
