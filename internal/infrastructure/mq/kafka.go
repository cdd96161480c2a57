package mq

import (
	"context"
	"log"

	"sicbosettle/internal/config"

	"github.com/IBM/sarama"
)

// Producer Kafka 同步生产者，OutboxSender 经由它把通知事件推出去
type Producer struct {
	producer sarama.SyncProducer
}

// InitProducer 初始化 Kafka 生产者
func InitProducer(cfg *config.KafkaConfig) *Producer {
	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll // 等待所有副本确认
	kafkaConfig.Producer.Retry.Max = 3                    // 重试次数
	kafkaConfig.Producer.Return.Successes = true          // 返回成功消息

	producer, err := sarama.NewSyncProducer(cfg.Brokers, kafkaConfig)
	if err != nil {
		log.Fatalf("创建 Kafka 生产者失败: %v", err)
	}

	log.Println("Kafka 生产者创建成功")
	return &Producer{producer: producer}
}

// SendMessage 发送消息到 Kafka
func (p *Producer) SendMessage(topic, key, value string) error {
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.StringEncoder(value),
	}

	_, _, err := p.producer.SendMessage(msg)
	return err
}

// Close 关闭生产者
func (p *Producer) Close() {
	if p.producer != nil {
		p.producer.Close()
	}
}

// ============================================================================
// 消费者：结算任务输入
// ============================================================================

// MessageHandler 单条消息的业务处理函数
// 返回 error 不会阻止位移提交：任务入队本身幂等，失败靠下一条消息
// 或人工补录兜底，避免一条坏消息卡死整个分区
type MessageHandler func(ctx context.Context, key, value []byte) error

// ConsumerGroup 包装 sarama 消费组，循环消费结算任务输入
type ConsumerGroup struct {
	group   sarama.ConsumerGroup
	topics  []string
	handler MessageHandler
}

// InitConsumerGroup 初始化消费组
func InitConsumerGroup(cfg *config.KafkaConfig, groupID string, topics []string, handler MessageHandler) *ConsumerGroup {
	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	kafkaConfig.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(cfg.Brokers, groupID, kafkaConfig)
	if err != nil {
		log.Fatalf("创建 Kafka 消费组失败: %v", err)
	}

	log.Printf("Kafka 消费组创建成功: group=%s, topics=%v", groupID, topics)
	return &ConsumerGroup{group: group, topics: topics, handler: handler}
}

// Start 启动消费循环，直到 ctx 取消
func (c *ConsumerGroup) Start(ctx context.Context) {
	for {
		if err := c.group.Consume(ctx, c.topics, &groupHandler{handler: c.handler}); err != nil {
			log.Printf("[Kafka] 消费异常: %v", err)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// Close 关闭消费组
func (c *ConsumerGroup) Close() {
	if c.group != nil {
		c.group.Close()
	}
}

type groupHandler struct {
	handler MessageHandler
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		if err := h.handler(session.Context(), msg.Key, msg.Value); err != nil {
			log.Printf("[Kafka] 消息处理失败: topic=%s, partition=%d, offset=%d, err=%v",
				msg.Topic, msg.Partition, msg.Offset, err)
		}
		session.MarkMessage(msg, "")
	}
	return nil
}
