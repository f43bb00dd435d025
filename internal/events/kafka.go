package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"edgesim/internal/common"
	"edgesim/internal/machine"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// messageWriter kafka.Writer 中用到的部分
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher 将资源变更事件发布到 Kafka
//
// 写入是异步的，失败只记录日志，不影响 Allocate/Release。
type KafkaPublisher struct {
	writer  messageWriter
	topic   string
	timeout time.Duration
	logger  *zap.Logger
}

// NewKafkaPublisher 根据配置创建发布者
func NewKafkaPublisher(config common.KafkaConfig) (*KafkaPublisher, error) {
	if !config.Enabled() {
		return nil, common.NewValidationError("events.kafka.brokers", "cannot be empty", config.Brokers)
	}
	if config.Topic == "" {
		return nil, common.NewValidationError("events.kafka.topic", "cannot be empty", config.Topic)
	}

	logger := common.ComponentLogger("kafka-publisher")
	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.Hash{},
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("Failed to publish transitions",
					zap.Int("count", len(messages)),
					zap.Error(err))
			}
		},
	}

	return newKafkaPublisher(writer, config.Topic, logger), nil
}

func newKafkaPublisher(writer messageWriter, topic string, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer:  writer,
		topic:   topic,
		timeout: 5 * time.Second,
		logger:  logger,
	}
}

// ObserveTransition 编码并提交一条事件
func (p *KafkaPublisher) ObserveTransition(t machine.Transition) {
	msg, err := encodeTransition(t)
	if err != nil {
		p.logger.Error("Failed to encode transition",
			zap.Int("machine_id", t.MachineID),
			zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to write transition",
			zap.String("topic", p.topic),
			zap.Int("machine_id", t.MachineID),
			zap.Error(err))
	}
}

// Close 刷新缓冲并关闭连接
func (p *KafkaPublisher) Close() error {
	p.logger.Info("Closing kafka publisher", zap.String("topic", p.topic))
	return p.writer.Close()
}

// encodeTransition 以机器标识为键编码事件，保证同一机器的事件进入同一分区
func encodeTransition(t machine.Transition) (kafka.Message, error) {
	value, err := json.Marshal(t)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(strconv.Itoa(t.MachineID)),
		Value: value,
		Time:  time.Now(),
	}, nil
}
