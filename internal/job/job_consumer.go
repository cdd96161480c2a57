package job

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"sicbosettle/internal/service"
)

// JobInput 外部队列投递的结算任务输入
type JobInput struct {
	RoundID string `json:"round_id"`
	TableID int64  `json:"table_id"`
}

// JobConsumer 把 Kafka 上的结算任务输入转为任务表里的一条任务
// 消息投递语义为至少一次：入队按 round_id 幂等，重复消息落不出第二条任务
type JobConsumer struct {
	jobService *service.JobService
}

func NewJobConsumer(jobService *service.JobService) *JobConsumer {
	return &JobConsumer{jobService: jobService}
}

// Handle 处理一条任务输入消息
// 作为 mq.MessageHandler 挂到消费组上
func (c *JobConsumer) Handle(ctx context.Context, key, value []byte) error {
	var input JobInput
	if err := json.Unmarshal(value, &input); err != nil {
		// 畸形消息：记录后放行位移，不能卡死分区
		log.Printf("[JobConsumer] 消息解析失败: key=%s, err=%v", string(key), err)
		return fmt.Errorf("%w: %v", service.ErrInvalidJobInput, err)
	}

	if err := c.jobService.Enqueue(ctx, input.RoundID, input.TableID); err != nil {
		log.Printf("[JobConsumer] 任务入队失败: roundID=%s, err=%v", input.RoundID, err)
		return err
	}

	log.Printf("[JobConsumer] 任务已入队: roundID=%s, tableID=%d", input.RoundID, input.TableID)
	return nil
}
