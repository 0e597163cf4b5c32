package terminal

import (
	"context"
	"net"
	"net/http"
	"time"
)

// HTTPClientConfig содержит настройки HTTP клиента моста терминала
type HTTPClientConfig struct {
	ConnectTimeout time.Duration // таймаут установки TCP соединения
	ReadTimeout    time.Duration // таймаут ожидания заголовков ответа
	TotalTimeout   time.Duration // общий таймаут как fallback

	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
	KeepAliveInterval   time.Duration
}

// DefaultHTTPClientConfig возвращает конфигурацию по умолчанию
//
// Мост слушает на localhost, соединений мало, но логин и выгрузка истории
// могут занимать десятки секунд. Реальные пределы задаются контекстом
// каждого вызова, TotalTimeout лишь страхует от зависания.
func DefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{
		ConnectTimeout: 3 * time.Second,
		ReadTimeout:    60 * time.Second,
		TotalTimeout:   90 * time.Second,

		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     90 * time.Second,
		KeepAliveInterval:   30 * time.Second,
	}
}

// NewHTTPClient создаёт HTTP клиент для одного моста
func NewHTTPClient(config HTTPClientConfig) *http.Client {
	dialer := &net.Dialer{
		Timeout:   config.ConnectTimeout,
		KeepAlive: config.KeepAliveInterval,
	}

	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			// Не ждём соединения дольше, чем позволяет контекст вызова
			if deadline, ok := ctx.Deadline(); ok {
				if timeout := time.Until(deadline); timeout < config.ConnectTimeout {
					d := &net.Dialer{Timeout: timeout, KeepAlive: config.KeepAliveInterval}
					return d.DialContext(ctx, network, addr)
				}
			}
			return dialer.DialContext(ctx, network, addr)
		},

		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		IdleConnTimeout:       config.IdleConnTimeout,
		ResponseHeaderTimeout: config.ReadTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   config.TotalTimeout,
	}
}
