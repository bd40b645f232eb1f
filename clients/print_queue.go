package clients

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/yousufaayman/barcode-manage-cpc-sub000/models"
	"go.uber.org/zap"
)

// labelsPerMessage keeps each message well under the SQS 256 KiB limit.
const labelsPerMessage = 200

// MessageBatchSender is the queue the print workers consume.
type MessageBatchSender interface {
	SendMessageBatch(ctx context.Context, messages []string) error
}

// PrintQueue dispatches label jobs as queue messages with the same JSON
// body the print service accepts over HTTP. Large jobs are split so every
// message carries the full copy count and printer name.
type PrintQueue struct {
	queue  MessageBatchSender
	logger *zap.Logger
}

func NewPrintQueue(queue MessageBatchSender, logger *zap.Logger) *PrintQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PrintQueue{queue: queue, logger: logger}
}

func (q *PrintQueue) Dispatch(ctx context.Context, req models.PrintRequest) error {
	if len(req.Barcodes) == 0 {
		return nil
	}

	var messages []string
	for start := 0; start < len(req.Barcodes); start += labelsPerMessage {
		part := req
		part.Barcodes = req.Barcodes[start:min(start+labelsPerMessage, len(req.Barcodes))]
		body, err := json.Marshal(part)
		if err != nil {
			return fmt.Errorf("encode print job: %w", err)
		}
		messages = append(messages, string(body))
	}

	if err := q.queue.SendMessageBatch(ctx, messages); err != nil {
		return fmt.Errorf("queue print job: %w", err)
	}
	q.logger.Debug("print job queued", zap.Int("messages", len(messages)), zap.String("printer", req.PrinterName))
	return nil
}
