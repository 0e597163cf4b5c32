package websocket

import (
	"sync"
	"sync/atomic"

	jsoniter "github.com/json-iterator/go"

	"collector/internal/models"
	"collector/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// broadcastBufferSize - ёмкость очереди рассылки
const broadcastBufferSize = 256

// Hub управляет всеми активными WebSocket соединениями
//
// Рассылает операторам исходы сборов и итоги циклов. Рассылка никогда
// не блокирует вызывающего: при переполненной очереди сообщение
// отбрасывается и учитывается в DroppedMessages.
//
// Использование:
// 1. Создать hub: hub := NewHub(log)
// 2. Запустить в горутине: go hub.Run()
// 3. Передать оркестратору как Notifier
type Hub struct {
	// Зарегистрированные клиенты
	clients map[*Client]bool

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once

	// Origin-проверка для апгрейда соединений
	origins *OriginChecker

	dropped atomic.Int64
	count   atomic.Int32

	log *utils.Logger
}

// NewHub создает новый Hub. allowedOrigins пустой или "*" разрешает всех.
func NewHub(log *utils.Logger, allowedOrigins ...string) *Hub {
	if log == nil {
		log = utils.L()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, broadcastBufferSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		origins:    NewOriginChecker(allowedOrigins),
		log:        log.WithComponent("websocket"),
	}
}

// Run запускает главный цикл Hub
//
// Должен запускаться в отдельной горутине: go hub.Run()
// Завершается после Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.count.Store(0)
			return

		case client := <-h.register:
			h.clients[client] = true
			h.count.Store(int32(len(h.clients)))
			h.log.Debug("client connected", utils.Count("clients", len(h.clients)))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.count.Store(int32(len(h.clients)))
			h.log.Debug("client disconnected", utils.Count("clients", len(h.clients)))

		case message := <-h.broadcast:
			var slow int
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// клиент не успевает читать - отключаем
					delete(h.clients, client)
					close(client.send)
					slow++
				}
			}
			if slow > 0 {
				h.count.Store(int32(len(h.clients)))
				h.log.Warn("removed slow clients",
					utils.Count("removed", slow),
					utils.Count("clients", len(h.clients)),
				)
			}
		}
	}
}

// Stop останавливает Hub и закрывает все соединения. Повторный вызов безопасен.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Broadcast сериализует сообщение и ставит его в очередь рассылки
func (h *Hub) Broadcast(message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		h.log.Error("failed to marshal broadcast message", utils.Err(err))
		return
	}
	h.BroadcastRaw(data)
}

// BroadcastRaw ставит в очередь уже сериализованное сообщение
func (h *Hub) BroadcastRaw(data []byte) {
	select {
	case <-h.done:
		return
	default:
	}

	select {
	case h.broadcast <- data:
	default:
		h.dropped.Add(1)
	}
}

// AccountUpdated рассылает исход сбора счёта
func (h *Hub) AccountUpdated(o *models.CollectionOutcome) {
	h.Broadcast(NewAccountUpdateMessage(o))
}

// CycleCompleted рассылает итог цикла
func (h *Hub) CycleCompleted(r *models.CycleReport) {
	h.Broadcast(NewCycleReportMessage(r))
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// DroppedMessages возвращает число сообщений, отброшенных из-за переполнения
func (h *Hub) DroppedMessages() int64 {
	return h.dropped.Load()
}
