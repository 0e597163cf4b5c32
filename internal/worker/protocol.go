package worker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"

	"collector/internal/models"
	"collector/pkg/utils"
)

// Протокол родитель <-> дочерний процесс: по одному JSON-объекту на строку.
// Родитель пишет Request в stdin воркера, воркер отвечает Response в stdout.
// Логи воркера идут в stderr и в протокол не попадают.

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxLineSize ограничивает размер одного сообщения
const maxLineSize = 1 << 20

// ErrProtocol - нарушение протокола воркера
var ErrProtocol = errors.New("worker protocol error")

// Request - задание на сбор
type Request struct {
	Seq uint64               `json:"seq"`
	Job models.CollectionJob `json:"job"`
}

// Response - исход сбора
type Response struct {
	Seq     uint64                    `json:"seq"`
	Outcome *models.CollectionOutcome `json:"outcome"`
}

// Collector - то, что выполняет сбор внутри процесса воркера
type Collector interface {
	Collect(ctx context.Context, job models.CollectionJob) *models.CollectionOutcome
}

// writeMessage пишет сообщение одной строкой
func writeMessage(w io.Writer, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrProtocol, err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return err
	}
	return nil
}

// readMessage читает следующую строку и декодирует её в v
func readMessage(sc *bufio.Scanner, v interface{}) error {
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return err
		}
		return io.EOF
	}
	if err := json.Unmarshal(sc.Bytes(), v); err != nil {
		return fmt.Errorf("%w: decode: %w", ErrProtocol, err)
	}
	return nil
}

func newScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return sc
}

// Serve - цикл дочернего процесса: читает задания до EOF или отмены ctx
//
// Задания выполняются строго по одному. Ответ несёт тот же Seq, что и запрос.
func Serve(ctx context.Context, r io.Reader, w io.Writer, c Collector, slot int, log *utils.Logger) error {
	if log == nil {
		log = utils.L()
	}
	log = log.WithWorker(slot)
	sc := newScanner(r)

	log.Info("worker ready")
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		var req Request
		if err := readMessage(sc, &req); err != nil {
			if errors.Is(err, io.EOF) {
				log.Info("input closed, worker exiting")
				return nil
			}
			return err
		}

		out := c.Collect(ctx, req.Job)
		out.Worker = slot

		if err := writeMessage(w, &Response{Seq: req.Seq, Outcome: out}); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}
}
