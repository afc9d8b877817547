// 文件: pkg/journal/writer.go
// 流水写入器
//
// 消费 Kafka 流水事件, 批量落 MySQL:
// - 缓冲满或定时触发刷盘
// - event_id 唯一索引 + DoNothing 保证幂等

package journal

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stex.com/pkg/kafka"
)

// Record 流水表
type Record struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	EventID   int64  `gorm:"uniqueIndex;not null"`
	AccountID string `gorm:"size:64;index;not null"`
	Symbol    string `gorm:"size:32"`
	Change    string `gorm:"size:16;not null"`
	Amount    int64  `gorm:"not null"`
	BizID     int64  `gorm:"not null"`
	CreatedAt int64  `gorm:"not null"`
}

func (Record) TableName() string { return "journal_records" }

type WriterConfig struct {
	Brokers       []string
	GroupID       string
	BatchSize     int
	FlushInterval time.Duration
}

func DefaultWriterConfig(brokers []string) WriterConfig {
	return WriterConfig{
		Brokers:       brokers,
		GroupID:       "journal_writer",
		BatchSize:     100,
		FlushInterval: 500 * time.Millisecond,
	}
}

// Writer 批量写入器
type Writer struct {
	db       *gorm.DB
	consumer *kafka.Consumer

	buffer   []*JournalEvent
	bufferMu sync.Mutex
	cfg      WriterConfig
	flushCh  chan struct{}

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewWriter(cfg WriterConfig, db *gorm.DB) (*Writer, error) {
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("migrate journal records: %w", err)
	}

	w := &Writer{
		db:      db,
		buffer:  make([]*JournalEvent, 0, cfg.BatchSize),
		cfg:     cfg,
		flushCh: make(chan struct{}, 1),
	}

	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers: cfg.Brokers,
		GroupID: cfg.GroupID,
		Topics:  []string{TopicJournalEvents},
	}, w.handle)
	if err != nil {
		return nil, err
	}
	w.consumer = consumer
	return w, nil
}

func (w *Writer) handle(topic string, key, value []byte) error {
	ev, err := Decode(value)
	if err != nil {
		return err
	}

	w.bufferMu.Lock()
	w.buffer = append(w.buffer, ev)
	full := len(w.buffer) >= w.cfg.BatchSize
	w.bufferMu.Unlock()

	if full {
		select {
		case w.flushCh <- struct{}{}:
		default:
		}
	}
	return nil
}

func (w *Writer) flush() {
	w.bufferMu.Lock()
	events := w.buffer
	w.buffer = make([]*JournalEvent, 0, w.cfg.BatchSize)
	w.bufferMu.Unlock()

	if len(events) == 0 {
		return
	}

	records := make([]*Record, 0, len(events))
	for _, ev := range events {
		records = append(records, &Record{
			EventID:   ev.EventID,
			AccountID: ev.AccountID,
			Symbol:    ev.Symbol,
			Change:    ev.Change,
			Amount:    ev.Amount,
			BizID:     ev.BizID,
			CreatedAt: ev.CreatedAt,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 重复消费时 event_id 冲突, 静默跳过
	err := w.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoNothing: true,
		}).
		Create(&records).Error
	if err != nil {
		log.Printf("[Journal] batch insert failed: count=%d, err=%v", len(records), err)
	}
}

// Start 启动消费和定时刷盘
func (w *Writer) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.consumer.Start(ctx); err != nil && ctx.Err() == nil {
			log.Printf("[Journal] consumer stopped: %v", err)
		}
	}()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.cfg.FlushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				w.flush()
				return
			case <-ticker.C:
				w.flush()
			case <-w.flushCh:
				w.flush()
			}
		}
	}()
}

func (w *Writer) Stop() error {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	return w.consumer.Close()
}
