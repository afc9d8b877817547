// 文件: cmd/exchanged/main.go
// 交易服务进程
//
// 启动顺序: MySQL 账本 -> 撮合核心 -> 调度器 -> TCP 服务.
// NATS / Kafka / Redis 都是可选旁路, 地址为空就不接

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"stex.com/pkg/dispatch"
	"stex.com/pkg/events"
	"stex.com/pkg/exchange"
	"stex.com/pkg/journal"
	"stex.com/pkg/kafka"
	"stex.com/pkg/ledger"
	"stex.com/pkg/market"
	"stex.com/pkg/nats"
	"stex.com/pkg/server"
)

func main() {
	var (
		addr     = flag.String("addr", ":12345", "监听地址")
		dsn      = flag.String("dsn", envOr("EXCHANGE_DSN", "root:@tcp(127.0.0.1:3306)/exchange?charset=utf8mb4&parseTime=True"), "MySQL DSN")
		workers  = flag.Int("workers", dispatch.DefaultConfig().Workers, "每批请求的并发工作协程数")
		nodeID   = flag.Int64("node", 1, "snowflake 节点号")
		natsURL  = flag.String("nats", os.Getenv("EXCHANGE_NATS"), "NATS 地址 (空=不发事件)")
		brokers  = flag.String("kafka", os.Getenv("EXCHANGE_KAFKA"), "Kafka brokers, 逗号分隔 (空=不记流水)")
		redis    = flag.String("redis", os.Getenv("EXCHANGE_REDIS"), "Redis 地址 (空=不写行情)")
		seedFile = flag.String("seed", "", "初始账户文件 (JSON, 可选)")
	)
	flag.Parse()

	log.SetFlags(log.Ltime | log.Lmicroseconds)

	if err := exchange.InitSnowflake(*nodeID); err != nil {
		log.Fatalf("[Main] init snowflake: %v", err)
	}

	// 账本
	db, err := gorm.Open(mysql.Open(*dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Fatalf("[Main] open mysql: %v", err)
	}
	store := ledger.NewMySQLStore(db)
	if err := store.AutoMigrate(); err != nil {
		log.Fatalf("[Main] migrate: %v", err)
	}

	ex := exchange.New(store)

	// 事件旁路
	if *natsURL != "" {
		conn, err := nats.Connect(*natsURL)
		if err != nil {
			log.Fatalf("[Main] connect nats: %v", err)
		}
		defer conn.Close()
		events.NewEmitter(conn).Attach(ex)
		if err := events.NewAuditor(conn).Start(); err != nil {
			log.Fatalf("[Main] start auditor: %v", err)
		}
		log.Printf("[Main] NATS events enabled: %s", *natsURL)
	}

	if *brokers != "" {
		producer, err := kafka.NewProducer(kafka.DefaultProducerConfig(splitCSV(*brokers)))
		if err != nil {
			log.Fatalf("[Main] create kafka producer: %v", err)
		}
		defer producer.Close()
		journal.NewPublisher(producer).Attach(ex)

		writer, err := journal.NewWriter(journal.DefaultWriterConfig(splitCSV(*brokers)), db)
		if err != nil {
			log.Fatalf("[Main] create journal writer: %v", err)
		}
		writer.Start()
		defer writer.Stop()
		log.Printf("[Main] Kafka journal enabled: %s", *brokers)
	}

	if *redis != "" {
		tape := market.NewTape(*redis)
		defer tape.Close()
		tape.Attach(ex)
		log.Printf("[Main] Redis market tape enabled: %s", *redis)
	}

	if *seedFile != "" {
		if err := seedAccounts(context.Background(), store, *seedFile); err != nil {
			log.Fatalf("[Main] seed accounts: %v", err)
		}
	}

	// 调度与服务
	d := dispatch.New(ex, dispatch.Config{Workers: *workers})
	srv := server.New(server.Config{Addr: *addr}, d)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Start(ctx); err != nil {
		log.Fatalf("[Main] start server: %v", err)
	}
	log.Printf("[Main] listening on %s", *addr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[Main] shutting down...")
	srv.Stop()
}

// seedAccount 初始账户
type seedAccount struct {
	AccountID string           `json:"account_id"`
	Balance   string           `json:"balance"` // 十进制, 如 "1000.00"
	Positions map[string]int64 `json:"positions"`
}

// seedAccounts 从 JSON 文件建初始账户, 已存在的跳过
func seedAccounts(ctx context.Context, store ledger.Store, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var accounts []seedAccount
	if err := json.Unmarshal(data, &accounts); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}

	for _, acct := range accounts {
		balance, err := ledger.ParsePrice(acct.Balance)
		if err != nil {
			return fmt.Errorf("account %s: bad balance %q", acct.AccountID, acct.Balance)
		}
		err = store.InTx(ctx, func(tx ledger.Store) error {
			if err := tx.CreateAccount(ctx, acct.AccountID, balance); err != nil {
				return err
			}
			for symbol, qty := range acct.Positions {
				if err := tx.AddShares(ctx, acct.AccountID, symbol, qty); err != nil {
					return err
				}
			}
			return nil
		})
		if errors.Is(err, ledger.ErrAccountExists) {
			log.Printf("[Main] seed: account %s exists, skipped", acct.AccountID)
			continue
		}
		if err != nil {
			return err
		}
		log.Printf("[Main] seed: account %s created", acct.AccountID)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
