package main

import (
	"time"

	"app/internal/config"
	"app/internal/domain/model"
	"app/internal/handler"
	"app/internal/infra/db"
	"app/internal/infra/notify"
	"app/internal/infra/payment"
	infraRepo "app/internal/infra/repository"
	"app/internal/server"
	"app/internal/usecase"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type realClock struct{}

func (c *realClock) Now() time.Time {
	return time.Now()
}

func main() {
	// .envは無ければ環境変数だけで動く
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	//DB接続
	gormDB, err := db.Connect(cfg)
	if err != nil {
		logger.Fatal("db connect failed", zap.Error(err))
	}
	if err := gormDB.AutoMigrate(
		&model.User{},
		&model.Product{},
		&model.Cart{},
		&model.CartItem{},
		&model.Order{},
		&model.OrderItem{},
		&model.OTPEntry{},
		&model.InventoryChangeLog{},
	); err != nil {
		logger.Fatal("migrate failed", zap.Error(err))
	}

	tx := infraRepo.NewTxManagerGorm(gormDB, cfg.StoreTimeout)
	clock := &realClock{}

	//ゲートウェイはプロセスで1つ
	gateway := payment.NewGatewayClient(cfg, logger)

	var sender usecase.OTPSender
	if cfg.SMTPHost != "" {
		sender = notify.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.MailUsername, cfg.MailPassword, cfg.MailFrom)
	} else {
		sender = notify.NewLogSender(logger)
	}

	//Usecase生成
	otpUC := usecase.NewOTPUsecase(tx, sender, clock, logger)
	orderUC := usecase.NewOrderUsecase(tx, otpUC, logger)
	paymentUC := usecase.NewPaymentUsecase(tx, gateway, logger)
	inventoryUC := usecase.NewInventoryUsecase(tx, logger)
	productUC := usecase.NewProductUsecase(tx)
	cartUC := usecase.NewCartUsecase(tx)
	userUC := usecase.NewUserUsecase(tx)
	adminOrderUC := usecase.NewAdminOrderUsecase(tx, logger)

	//Server起動
	e := server.New(logger)
	handler.NewUserHandler(userUC).RegisterRoutes(e)
	handler.NewProductHandler(productUC, inventoryUC).RegisterRoutes(e)
	handler.NewCartHandler(cartUC).RegisterRoutes(e)
	handler.NewOrderHandler(orderUC, otpUC).RegisterRoutes(e)
	handler.NewPaymentHandler(paymentUC).RegisterRoutes(e)
	handler.NewAdminOrderHandler(adminOrderUC).RegisterRoutes(e)

	addr := ":" + cfg.Port
	logger.Info("listening", zap.String("addr", addr))
	if err := e.Start(addr); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
