package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"star_trade/config"
	"star_trade/contract"
	"star_trade/dao"
	"star_trade/handler"
	"star_trade/model"
	"star_trade/service"
	"star_trade/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func main() {
	// 1. 初始化配置
	if err := config.InitConfig(); err != nil {
		zap.L().Fatal("初始化配置失败", zap.Error(err))
	}
	cfg := config.GlobalConfig

	// 2. 初始化日志
	if err := utils.InitLogger(); err != nil {
		zap.L().Fatal("初始化日志失败", zap.Error(err))
	}
	defer utils.Logger.Sync()

	// 3. 初始化MySQL（星体投影/成交记录）
	db, err := gorm.Open(mysql.Open(cfg.MySQLDSN), &gorm.Config{})
	if err != nil {
		utils.Logger.Fatal("连接MySQL失败", zap.Error(err))
	}

	// 自动迁移表结构（开发环境）
	if err := db.AutoMigrate(&model.StarAsset{}, &model.SaleRecord{}); err != nil {
		utils.Logger.Fatal("迁移表结构失败", zap.Error(err))
	}

	// 4. 初始化事件流水库
	if err := dao.InitMySQL(cfg.EventDSN); err != nil {
		utils.Logger.Fatal("连接事件流水库失败", zap.Error(err))
	}
	defer dao.CloseMySQL()

	// 5. 初始化Redis（元数据与星体锁）
	if err := utils.InitRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB); err != nil {
		utils.Logger.Fatal("初始化Redis失败", zap.Error(err))
	}
	defer utils.RedisClient.Close()

	// 6. 初始化RabbitMQ
	if err := utils.InitRabbitMQ(cfg.RabbitMQURL); err != nil {
		utils.Logger.Fatal("初始化RabbitMQ失败", zap.Error(err))
	}
	defer utils.CloseRabbitMQ()

	// 7. 初始化注册表与拍卖引擎
	access, err := contract.NewRoleAccess(cfg.CEOAddr, cfg.CFOAddr, cfg.COOAddr)
	if err != nil {
		utils.Logger.Fatal("初始化角色失败", zap.Error(err))
	}
	hub := service.NewEventHub()
	registry, err := contract.NewRegistry(cfg.RegistryAddr, access,
		contract.WithNotifier(hub),
		contract.WithMetadataResolver(dao.NewRedisMetadata(utils.RedisClient)))
	if err != nil {
		utils.Logger.Fatal("初始化注册表失败", zap.Error(err))
	}
	auction, err := contract.NewClockAuction(registry, cfg.AuctionAddr, cfg.AuctionCutBps, contract.NewVault(),
		contract.WithAuctionNotifier(hub),
		contract.WithSaleStats(contract.NewSaleStats(), nil))
	if err != nil {
		utils.Logger.Fatal("初始化拍卖引擎失败", zap.Error(err))
	}
	market := service.NewMarket(registry, auction, access, utils.RedsyncLocker{Expire: cfg.LockExpire}, service.MarketConfig{
		Gen0StartingPrice:   cfg.Gen0StartingPrice,
		Gen0AuctionDuration: cfg.Gen0AuctionDuration,
	})

	// 8. 订阅通知：MySQL投影与MQ转发
	tradeService := service.NewTradeService(db, cfg.RegistryAddr)
	if err := hub.Subscribe("projection", func(ev model.Event) error {
		return tradeService.Project(context.Background(), ev)
	}); err != nil {
		utils.Logger.Fatal("订阅投影失败", zap.Error(err))
	}
	if err := hub.Subscribe("amqp", func(ev model.Event) error {
		return utils.PublishEvent(context.Background(), ev)
	}); err != nil {
		utils.Logger.Fatal("订阅MQ转发失败", zap.Error(err))
	}

	// 9. 启动RabbitMQ消费者（事件流水与链上镜像）
	var mirror service.Mirror
	if cfg.MirrorEnabled() {
		chainMirror, err := contract.NewChainMirror(cfg.ChainRPCUrl, cfg.StarContractAddr, cfg.ChainOperatorKey)
		if err != nil {
			utils.Logger.Fatal("初始化链上镜像失败", zap.Error(err))
		}
		defer chainMirror.Close()
		mirror = chainMirror
	}
	consumer := service.NewEventConsumer(dao.SaveEvent, dao.NewEventLog, mirror)
	if err := utils.ConsumeEvents(consumer.Handle); err != nil {
		utils.Logger.Fatal("启动消费者失败", zap.Error(err))
	}

	// 10. 初始化Gin引擎
	r := gin.Default()
	auth := handler.SignatureAuth(handler.SignatureConfig{
		Domain: cfg.RegistryAddr,
		Nonces: dao.NewRedisNonceStore(utils.RedisClient),
		Window: cfg.SignWindow,
	})
	handler.RegisterRoutes(r, market, tradeService, dao.ListEvents, auth)

	srv := &http.Server{
		Addr:    cfg.ServerPort,
		Handler: r,
	}

	// 11. 启动服务（优雅关闭）
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Logger.Fatal("启动服务失败", zap.Error(err))
		}
	}()
	utils.Logger.Info("服务已启动", zap.String("port", cfg.ServerPort))

	// 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	utils.Logger.Info("服务正在关闭...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		utils.Logger.Error("服务关闭失败", zap.Error(err))
	}
	// 等待已入队的通知处理完毕
	hub.Close()
	hub.Wait()
}
