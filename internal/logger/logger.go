// Package logger предоставляет логирование с префиксом сервиса и асинхронной записью,
// чтобы не блокировать основное приложение. Поддерживается логирование времени выполнения функций.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/diode"
)

const asyncBufferSize = 8192

var (
	prefix string
	debug  bool
	base   zerolog.Logger
	writer diode.Writer
	once   sync.Once
)

func initLogger() {
	zerolog.TimeFieldFormat = time.RFC3339
	if !levelSet {
		debug = isDebug(os.Getenv("LOG_LEVEL"))
	}

	var out io.Writer = os.Stdout
	if os.Getenv("APP_ENV") != "production" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	}
	// Буфер полон — не блокируем, теряем лог
	writer = diode.NewWriter(out, asyncBufferSize, 10*time.Millisecond, func(missed int) {
		fmt.Fprintf(os.Stderr, "logger: dropped %d messages\n", missed)
	})
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	base = zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

var levelSet bool

func isDebug(level string) bool {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "trace":
		return true
	}
	return false
}

// SetLevel задаёт уровень из конфигурации; вызывать до первой записи в лог.
func SetLevel(level string) {
	debug = isDebug(level)
	levelSet = true
}

// SetPrefix задаёт префикс для всех последующих логов (например "api", "push").
func SetPrefix(p string) {
	prefix = p
}

func get() *zerolog.Logger {
	once.Do(initLogger)
	return &base
}

func event(e *zerolog.Event) *zerolog.Event {
	if prefix != "" {
		e = e.Str("service", prefix)
	}
	return e
}

// Info пишет в log с префиксом (асинхронно).
func Info(v ...any) {
	event(get().Info()).Msg(fmt.Sprint(v...))
}

// Infof форматирует и пишет с префиксом (асинхронно).
func Infof(format string, v ...any) {
	event(get().Info()).Msgf(format, v...)
}

// Debugf пишет только при LOG_LEVEL=debug.
func Debugf(format string, v ...any) {
	event(get().Debug()).Msgf(format, v...)
}

// Error пишет ошибку с префиксом (асинхронно).
func Error(v ...any) {
	event(get().Error()).Msg(fmt.Sprint(v...))
}

// Errorf форматирует ошибку с префиксом (асинхронно).
func Errorf(format string, v ...any) {
	event(get().Error()).Msgf(format, v...)
}

// LogDuration логирует имя функции и время выполнения в миллисекундах (асинхронно).
// При LOG_LEVEL=info логирует только вызовы дольше 100ms; при LOG_LEVEL=debug — все.
func LogDuration(fn string, start time.Time) {
	elapsed := time.Since(start)
	l := get()
	if debug || elapsed >= 100*time.Millisecond {
		event(l.Info()).Str("fn", fn).Int64("duration_ms", elapsed.Milliseconds()).Send()
	}
}

// DeferLogDuration возвращает функцию для вызова в defer: defer logger.DeferLogDuration("HandlerName", time.Now())().
func DeferLogDuration(fn string, start time.Time) func() {
	return func() { LogDuration(fn, start) }
}

// Flush дописывает буфер; вызывается при остановке сервиса.
func Flush() {
	once.Do(initLogger)
	_ = writer.Close()
}
