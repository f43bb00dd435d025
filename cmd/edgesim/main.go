package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"edgesim/internal/common"
	"edgesim/internal/dag"
	"edgesim/internal/events"
	"edgesim/internal/machine"
	"edgesim/internal/server"

	"go.uber.org/zap"
)

func main() {
	var (
		configFile  = flag.String("config", "", "Configuration file path")
		development = flag.Bool("dev", false, "Enable development mode")
	)
	flag.Parse()

	// 加载配置文件
	config, err := common.LoadConfig(*configFile)
	if err != nil {
		panic(err)
	}
	if *development {
		config.Log.Development = true
	}

	// 初始化日志系统
	if err := common.InitLoggerFromConfig(config); err != nil {
		panic(err)
	}
	defer common.Sync()

	logger := common.ComponentLogger("edgesim")
	logger.Info("Starting edge simulation core",
		zap.String("config_file", *configFile),
		zap.Bool("development", config.Log.Development))

	// 资源变更事件，Allocate/Release 由嵌入本核心的调度引擎发起
	journal := events.NewJournal()
	observers := events.Fanout{journal}

	var publisher *events.KafkaPublisher
	if config.Events.Kafka.Enabled() {
		publisher, err = events.NewKafkaPublisher(config.Events.Kafka)
		if err != nil {
			logger.Fatal("Failed to create Kafka publisher", zap.Error(err))
		}
		observers = append(observers, publisher)
		logger.Info("Publishing machine transitions to Kafka",
			zap.Strings("brokers", config.Events.Kafka.Brokers),
			zap.String("topic", config.Events.Kafka.Topic))
	}

	// 注册机器
	registry := machine.NewRegistry(observers)
	if err := registry.AddAll(config.Cluster.Machines); err != nil {
		logger.Fatal("Failed to register machines", zap.Error(err))
	}
	logger.Info("Cluster ready", zap.Int("machines", registry.Len()))

	// 创建 DAG 生成器并生成一张预热图
	generator := dag.NewGenerator(config.Generator.Seed,
		dag.WithMaxReconcileAttempts(config.Generator.MaxReconcileAttempts),
		dag.WithMaxVertices(config.Generator.MaxVertices))
	params := dag.Params{
		N:      config.Generator.N,
		MaxOut: config.Generator.MaxOut,
		Alpha:  config.Generator.Alpha,
		Beta:   config.Generator.Beta,
		Mode:   dag.Mode(config.Generator.Mode),
	}
	if graph, err := generator.Generate(params); err != nil {
		logger.Warn("Warm-up DAG generation failed", zap.Error(err))
	} else {
		logger.Info("Warm-up DAG generated",
			zap.Int("vertices", graph.Len()),
			zap.Int("layers", len(graph.Layers)),
			zap.Int("edges", len(graph.Edges)),
			zap.String("mode", string(graph.Params.Mode)))
	}

	// 启动 HTTP 服务
	var httpServer *server.HTTPServer
	if config.Server.Enabled {
		httpServer = server.NewHTTPServer(registry, generator, common.ComponentLogger("http-server"))
		if err := httpServer.Start(config.Server.Address, config.Server.Port); err != nil {
			logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}

	// 优雅关闭处理
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("Received shutdown signal")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if httpServer != nil {
		if err := httpServer.Stop(ctx); err != nil {
			logger.Error("Error stopping HTTP server", zap.Error(err))
		}
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("Error closing Kafka publisher", zap.Error(err))
		}
	}

	logger.Info("Edge simulation core exited gracefully")
}
