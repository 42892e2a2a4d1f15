package observability

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/riskibarqy/fantasy-auction/internal/config"
	"github.com/riskibarqy/fantasy-auction/internal/platform/logging"
	"github.com/uptrace/uptrace-go/uptrace"
	otellog "go.opentelemetry.io/otel/log"
	otelglobal "go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap/zapcore"
)

const (
	logScope      = "fantasy-auction/internal/platform/logging"
	maxValueDepth = 3
)

// InitUptrace installs the global OpenTelemetry providers for Uptrace. With
// log export on, the returned logger also ships every entry as an OTel record.
func InitUptrace(cfg config.Config, logger *logging.Logger) (*logging.Logger, func(context.Context) error, error) {
	if logger == nil {
		logger = logging.Default()
	}
	noop := func(context.Context) error { return nil }

	switch {
	case !cfg.UptraceEnabled:
		logger.Info("uptrace disabled", "reason", "UPTRACE_ENABLED=false")
		return logger, noop, nil
	case strings.TrimSpace(cfg.UptraceDSN) == "":
		logger.Info("uptrace disabled", "reason", "UPTRACE_DSN empty")
		return logger, noop, nil
	}

	uptrace.ConfigureOpentelemetry(
		uptrace.WithDSN(cfg.UptraceDSN),
		uptrace.WithServiceName(cfg.ServiceName),
		uptrace.WithServiceVersion(cfg.ServiceVersion),
		uptrace.WithDeploymentEnvironment(cfg.AppEnv),
		uptrace.WithLoggingEnabled(cfg.UptraceLogsEnabled),
	)
	if cfg.UptraceLogsEnabled {
		logger = logger.Tee(newOTelCore(cfg.ServiceVersion, cfg.LogLevel))
	}

	logger.Info("uptrace enabled",
		"service", cfg.ServiceName,
		"version", cfg.ServiceVersion,
		"env", cfg.AppEnv,
		"logs", cfg.UptraceLogsEnabled,
	)
	return logger, uptrace.Shutdown, nil
}

// otelCore is a zapcore.Core that emits entries to the global OTel logger.
type otelCore struct {
	zapcore.LevelEnabler
	emitter otellog.Logger
	fields  []zapcore.Field
}

func newOTelCore(version string, level zapcore.LevelEnabler) *otelCore {
	return &otelCore{
		LevelEnabler: level,
		emitter:      otelglobal.Logger(logScope, otellog.WithInstrumentationVersion(version)),
	}
}

func (c *otelCore) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	clone.fields = append(append([]zapcore.Field(nil), c.fields...), fields...)
	return &clone
}

func (c *otelCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(entry.Level) {
		return checked
	}
	return checked.AddCore(entry, c)
}

func (c *otelCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	kv := encodeFields(c.fields, fields)
	if isHealthProbe(entry.Message, kv) {
		return nil
	}

	ctx := context.Background()
	severity := severityOf(entry.Level)
	if !c.emitter.Enabled(ctx, otellog.EnabledParameters{Severity: severity, EventName: entry.Message}) {
		return nil
	}

	var record otellog.Record
	record.SetTimestamp(entry.Time)
	record.SetObservedTimestamp(time.Now().UTC())
	record.SetSeverity(severity)
	record.SetSeverityText(entry.Level.CapitalString())
	record.SetEventName(entry.Message)
	record.SetBody(otellog.StringValue(entry.Message))
	record.AddAttributes(attributesOf(kv)...)
	c.emitter.Emit(ctx, record)
	return nil
}

func (c *otelCore) Sync() error { return nil }

// encodeFields resolves zap fields to plain values keyed by field name.
func encodeFields(groups ...[]zapcore.Field) map[string]any {
	enc := zapcore.NewMapObjectEncoder()
	for _, fields := range groups {
		for _, f := range fields {
			f.AddTo(enc)
		}
	}
	return enc.Fields
}

// isHealthProbe drops request logs for the liveness endpoint.
func isHealthProbe(msg string, kv map[string]any) bool {
	path, _ := kv["path"].(string)
	return msg == "http request" && path == "/healthz"
}

func attributesOf(kv map[string]any) []otellog.KeyValue {
	return attributesAt(kv, 0)
}

func severityOf(level zapcore.Level) otellog.Severity {
	switch level {
	case zapcore.DebugLevel:
		return otellog.SeverityDebug
	case zapcore.InfoLevel:
		return otellog.SeverityInfo
	case zapcore.WarnLevel:
		return otellog.SeverityWarn
	case zapcore.ErrorLevel:
		return otellog.SeverityError
	default:
		if level < zapcore.DebugLevel {
			return otellog.SeverityDebug
		}
		return otellog.SeverityFatal
	}
}

// logValue converts what zap's map encoder produces into an OTel value.
// Anything reflected is rendered as JSON.
func logValue(v any, depth int) otellog.Value {
	switch x := v.(type) {
	case nil:
		return otellog.Value{}
	case string:
		return otellog.StringValue(x)
	case bool:
		return otellog.BoolValue(x)
	case int:
		return otellog.IntValue(x)
	case int32:
		return otellog.Int64Value(int64(x))
	case int64:
		return otellog.Int64Value(x)
	case uint32:
		return otellog.Int64Value(int64(x))
	case float32:
		return otellog.Float64Value(float64(x))
	case float64:
		return otellog.Float64Value(x)
	case []byte:
		return otellog.BytesValue(append([]byte(nil), x...))
	case time.Time:
		return otellog.StringValue(x.UTC().Format(time.RFC3339Nano))
	case time.Duration:
		return otellog.StringValue(x.String())
	case error:
		return otellog.StringValue(x.Error())
	case fmt.Stringer:
		return otellog.StringValue(x.String())
	}

	if depth < maxValueDepth {
		switch x := v.(type) {
		case []any:
			items := make([]otellog.Value, len(x))
			for i, item := range x {
				items[i] = logValue(item, depth+1)
			}
			return otellog.SliceValue(items...)
		case map[string]any:
			return otellog.MapValue(attributesAt(x, depth+1)...)
		}
	}

	if raw, err := sonic.MarshalString(v); err == nil {
		return otellog.StringValue(raw)
	}
	return otellog.StringValue(fmt.Sprint(v))
}

func attributesAt(kv map[string]any, depth int) []otellog.KeyValue {
	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]otellog.KeyValue, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, otellog.KeyValue{Key: k, Value: logValue(kv[k], depth)})
	}
	return attrs
}
