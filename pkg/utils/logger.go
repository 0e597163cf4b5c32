package utils

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger - обёртка над zap.Logger с доменными хелперами коллектора
type Logger struct {
	*zap.Logger
	sugar *zap.SugaredLogger
}

// LogConfig - настройки логирования
type LogConfig struct {
	Level       string // debug, info, warn, error
	Format      string // json, text
	Output      string // stdout, stderr или путь к файлу
	Development bool
}

var (
	globalLogger *Logger
	globalMu     sync.RWMutex
)

// InitLogger создаёт логгер по конфигурации
//
// Пустые поля заполняются значениями по умолчанию: info, json, stdout.
// Если файл недоступен для записи, вывод уходит в stderr.
func InitLogger(cfg LogConfig) *Logger {
	if cfg.Format == "" {
		cfg.Format = "json"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.MessageKey = "message"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeDuration = zapcore.MillisDurationEncoder

	var encoder zapcore.Encoder
	if cfg.Format == "text" {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		if cfg.Development {
			encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, openOutput(cfg.Output), zap.NewAtomicLevelAt(parseLevel(cfg.Level)))

	opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)}
	if cfg.Development {
		opts = append(opts, zap.Development())
	}

	z := zap.New(core, opts...)
	return &Logger{Logger: z, sugar: z.Sugar()}
}

func openOutput(output string) zapcore.WriteSyncer {
	switch output {
	case "stdout":
		return zapcore.Lock(os.Stdout)
	case "stderr":
		return zapcore.Lock(os.Stderr)
	}

	f, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return zapcore.Lock(os.Stderr)
	}
	return zapcore.AddSync(f)
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// ============================================================
// Глобальный логгер
// ============================================================

// InitGlobalLogger создаёт логгер и делает его глобальным
func InitGlobalLogger(cfg LogConfig) *Logger {
	l := InitLogger(cfg)
	SetGlobalLogger(l)
	return l
}

// SetGlobalLogger заменяет глобальный логгер
func SetGlobalLogger(l *Logger) {
	globalMu.Lock()
	globalLogger = l
	globalMu.Unlock()
}

// GetGlobalLogger возвращает глобальный логгер, создавая его при первом обращении
func GetGlobalLogger() *Logger {
	globalMu.RLock()
	l := globalLogger
	globalMu.RUnlock()
	if l != nil {
		return l
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		globalLogger = InitLogger(LogConfig{})
	}
	return globalLogger
}

// L - короткий алиас GetGlobalLogger
func L() *Logger {
	return GetGlobalLogger()
}

// ============================================================
// Методы Logger
// ============================================================

// With возвращает дочерний логгер с полями
func (l *Logger) With(fields ...zap.Field) *Logger {
	z := l.Logger.With(fields...)
	return &Logger{Logger: z, sugar: z.Sugar()}
}

// WithComponent - логгер подсистемы (orchestrator, worker, bridge...)
func (l *Logger) WithComponent(name string) *Logger {
	return l.With(Component(name))
}

// WithAccount - логгер конкретного торгового счёта
func (l *Logger) WithAccount(accountID, login, server string) *Logger {
	return l.With(AccountID(accountID), Login(login), Server(server))
}

// WithWorker - логгер слота пула
func (l *Logger) WithWorker(slot int) *Logger {
	return l.With(WorkerSlot(slot))
}

// WithCycle - логгер цикла сбора
func (l *Logger) WithCycle(cycleID string) *Logger {
	return l.With(CycleID(cycleID))
}

// Sugar возвращает SugaredLogger
func (l *Logger) Sugar() *zap.SugaredLogger {
	return l.sugar
}

// ============================================================
// Глобальные функции логирования
// ============================================================

func Debug(msg string, fields ...zap.Field) { L().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { L().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { L().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { L().Error(msg, fields...) }

func Debugf(template string, args ...interface{}) { L().sugar.Debugf(template, args...) }
func Infof(template string, args ...interface{})  { L().sugar.Infof(template, args...) }
func Warnf(template string, args ...interface{})  { L().sugar.Warnf(template, args...) }
func Errorf(template string, args ...interface{}) { L().sugar.Errorf(template, args...) }

// ============================================================
// Конструкторы полей
// ============================================================

func AccountID(id string) zap.Field     { return zap.String("account_id", id) }
func Login(login string) zap.Field      { return zap.String("login", login) }
func Server(server string) zap.Field    { return zap.String("server", server) }
func Status(status string) zap.Field    { return zap.String("status", status) }
func WorkerSlot(slot int) zap.Field     { return zap.Int("worker", slot) }
func CycleID(id string) zap.Field       { return zap.String("cycle_id", id) }
func Component(name string) zap.Field   { return zap.String("component", name) }
func Endpoint(url string) zap.Field     { return zap.String("endpoint", url) }
func Latency(ms float64) zap.Field      { return zap.Float64("latency_ms", ms) }
func Count(key string, n int) zap.Field { return zap.Int(key, n) }

// Field - поле структурированного лога
type Field = zap.Field

// Переэкспорт стандартных конструкторов zap
var (
	String   = zap.String
	Int      = zap.Int
	Int64    = zap.Int64
	Float64  = zap.Float64
	Bool     = zap.Bool
	Err      = zap.Error
	Any      = zap.Any
	Duration = zap.Duration
	Time     = zap.Time
)

// fieldsToInterface раскладывает поля в пары ключ/значение для sugar-логгера
func fieldsToInterface(fields []zap.Field) []interface{} {
	out := make([]interface{}, 0, len(fields)*2)
	for _, f := range fields {
		out = append(out, f.Key)
		switch f.Type {
		case zapcore.StringType:
			out = append(out, f.String)
		case zapcore.Int64Type, zapcore.Int32Type, zapcore.Int16Type, zapcore.Int8Type:
			out = append(out, f.Integer)
		case zapcore.BoolType:
			out = append(out, f.Integer == 1)
		default:
			out = append(out, f.Interface)
		}
	}
	return out
}

// Infow логирует через sugar с полями zap
func (l *Logger) Infow(msg string, fields ...zap.Field) {
	l.sugar.Infow(msg, fieldsToInterface(fields)...)
}
