package logging

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// impl fans entries out to its appenders. Subloggers start with the parent's appenders and level.
type impl struct {
	name  string
	level *AtomicLevel
	inUTC bool

	appenders []Appender
}

func (imp *impl) AddAppender(appender Appender) {
	imp.appenders = append(imp.appenders, appender)
}

func (imp *impl) SetLevel(level Level) {
	imp.level.Set(level)
}

func (imp *impl) GetLevel() Level {
	return imp.level.Get()
}

func (imp *impl) Sublogger(subname string) Logger {
	name := subname
	if imp.name != "" {
		name = imp.name + "." + subname
	}
	return &impl{
		name:      name,
		level:     NewAtomicLevelAt(imp.level.Get()),
		inUTC:     imp.inUTC,
		appenders: append([]Appender(nil), imp.appenders...),
	}
}

func (imp *impl) Sync() error {
	var err error
	for _, appender := range imp.appenders {
		err = multierr.Append(err, appender.Sync())
	}
	return err
}

// entry stamps a new entry with the caller four frames up, which is the code that called one of
// the exported logging methods.
func (imp *impl) entry(level Level, msg string) zapcore.Entry {
	ts := time.Now()
	if imp.inUTC {
		ts = ts.UTC()
	}
	return zapcore.Entry{
		Level:      level.AsZap(),
		Time:       ts,
		LoggerName: imp.name,
		Message:    msg,
		Caller:     caller(4),
	}
}

func (imp *impl) write(entry zapcore.Entry, fields []zapcore.Field) {
	for _, appender := range imp.appenders {
		if err := appender.Write(entry, fields); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

func (imp *impl) logArgs(level Level, args []interface{}) {
	if level < imp.level.Get() {
		return
	}
	imp.write(imp.entry(level, fmt.Sprint(args...)), nil)
}

func (imp *impl) logf(level Level, template string, args []interface{}) {
	if level < imp.level.Get() {
		return
	}
	imp.write(imp.entry(level, fmt.Sprintf(template, args...)), nil)
}

func (imp *impl) logw(level Level, msg string, keysAndValues []interface{}) {
	if level < imp.level.Get() {
		return
	}
	imp.write(imp.entry(level, msg), fields(keysAndValues))
}

// fields pairs up alternating keys and values. A trailing key without a value is kept with an
// error in its place.
func fields(keysAndValues []interface{}) []zapcore.Field {
	out := make([]zapcore.Field, 0, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		if i+1 == len(keysAndValues) {
			out = append(out, zap.Any(key, errors.New("unpaired log key")))
			break
		}
		out = append(out, zap.Any(key, keysAndValues[i+1]))
	}
	return out
}

func (imp *impl) Debug(args ...interface{}) { imp.logArgs(DEBUG, args) }
func (imp *impl) Debugf(template string, args ...interface{}) { imp.logf(DEBUG, template, args) }
func (imp *impl) Debugw(msg string, kv ...interface{}) { imp.logw(DEBUG, msg, kv) }
func (imp *impl) Info(args ...interface{}) { imp.logArgs(INFO, args) }
func (imp *impl) Infof(template string, args ...interface{}) { imp.logf(INFO, template, args) }
func (imp *impl) Infow(msg string, kv ...interface{}) { imp.logw(INFO, msg, kv) }
func (imp *impl) Warn(args ...interface{}) { imp.logArgs(WARN, args) }
func (imp *impl) Warnf(template string, args ...interface{}) { imp.logf(WARN, template, args) }
func (imp *impl) Warnw(msg string, kv ...interface{}) { imp.logw(WARN, msg, kv) }
func (imp *impl) Error(args ...interface{}) { imp.logArgs(ERROR, args) }
func (imp *impl) Errorf(template string, args ...interface{}) { imp.logf(ERROR, template, args) }
func (imp *impl) Errorw(msg string, kv ...interface{}) { imp.logw(ERROR, msg, kv) }

// caller reports the frame skip levels up from itself, e.g. "logging/impl_test.go:36".
func caller(skip int) zapcore.EntryCaller {
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return zapcore.EntryCaller{}
	}
	ec := zapcore.EntryCaller{Defined: true, PC: pc, File: file, Line: line}
	if fn := runtime.FuncForPC(pc); fn != nil {
		ec.Function = fn.Name()
	}
	return ec
}
