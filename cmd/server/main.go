package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sicbosettle/internal/config"
	"sicbosettle/internal/handler"
	"sicbosettle/internal/infrastructure/cache"
	"sicbosettle/internal/infrastructure/database"
	"sicbosettle/internal/infrastructure/mq"
	"sicbosettle/internal/job"
	"sicbosettle/internal/service"
	"sicbosettle/pkg/clock"
	"sicbosettle/pkg/idgen"
)

func main() {
	// 加载配置
	cfg := config.LoadConfig("config/config.yaml")

	// 初始化 ID 生成器
	idgen.Init(1)

	// 初始化 MySQL
	db := database.InitMySQL(&cfg.MySQL)

	// 初始化 Redis
	redisClient := cache.InitRedis(&cfg.Redis)

	// 初始化 Kafka 生产者
	producer := mq.InitProducer(&cfg.Kafka)
	defer producer.Close()

	clk := clock.New()

	// 创建上下文（用于优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 任务输入：Kafka 消费组
	jobService := service.NewJobService(db, cfg, clk)
	jobConsumer := job.NewJobConsumer(jobService)
	consumerGroup := mq.InitConsumerGroup(&cfg.Kafka, cfg.Kafka.ConsumerGroup,
		[]string{cfg.Kafka.Topic.SettleJob}, jobConsumer.Handle)
	defer consumerGroup.Close()
	go consumerGroup.Start(ctx)

	// 启动后台任务
	settleWorker := job.NewSettleWorker(db, redisClient, cfg, clk)
	go settleWorker.Start(ctx)

	outboxSender := job.NewOutboxSender(db, producer, cfg)
	go outboxSender.Start(ctx)

	// 设置路由
	router := handler.SetupRouter(db, cfg, clk)

	// 启动 HTTP 服务
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// 在 goroutine 中启动服务器
	go func() {
		log.Printf("服务启动，监听端口: %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("服务启动失败: %v", err)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务...")

	// 取消上下文，停止后台任务
	cancel()

	// 关闭 HTTP 服务（等待最多5秒）
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("服务关闭异常: %v", err)
	}

	log.Println("服务已关闭")
}
