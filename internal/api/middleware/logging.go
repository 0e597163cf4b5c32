package middleware

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"

	"collector/pkg/utils"
)

// responseWriter захватывает статус и размер ответа
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// Hijack нужен для апгрейда до WebSocket
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

// Logging - middleware для логирования HTTP запросов
//
// Пишет метод, путь, статус, длительность, адрес клиента и размер ответа.
// Успешные запросы логируются на уровне debug, ошибки сервера - warn.
func Logging(log *utils.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = utils.L()
	}
	log = log.WithComponent("http")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)
			fields := []utils.Field{
				utils.String("method", r.Method),
				utils.Endpoint(r.URL.Path),
				utils.Int("status", wrapped.statusCode),
				utils.Latency(float64(duration.Microseconds()) / 1000),
				utils.String("remote_addr", r.RemoteAddr),
				utils.Int64("bytes", wrapped.written),
			}

			if wrapped.statusCode >= http.StatusInternalServerError {
				log.Warn("http request failed", fields...)
				return
			}
			log.Debug("http request", fields...)
		})
	}
}
