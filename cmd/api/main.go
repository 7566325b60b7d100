package main

import (
	"log"
	"os"

	"Guild_Roster/internal/model"
	"Guild_Roster/internal/pkg"
	"Guild_Roster/internal/repository/mysql"
	"Guild_Roster/internal/repository/redis"
	"Guild_Roster/internal/router"
	"Guild_Roster/internal/service"
	"Guild_Roster/internal/ws"
)

func main() {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "user:password@tcp(127.0.0.1:3306)/roster?charset=utf8mb4&parseTime=True"
	}
	if err := mysql.InitDB(dsn); err != nil {
		panic(err)
	}

	// 连接redis
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "127.0.0.1:6379"
	}
	if err := redis.Init(redis.Config{Addr: redisAddr}); err != nil {
		panic(err)
	}
	defer redis.Close()

	// 自动建表（开发阶段 OK）
	mysql.DB.AutoMigrate(
		&model.User{},
		&model.Roster{},
		&model.RosterRole{},
		&model.Rank{},
		&model.Member{},
		&model.MemberPermission{},
		&model.MemberAnswer{},
		&model.UserRole{},
		&model.MirrorRecord{},
	)

	// 外部平台连接：先建好再起服务，连接生命周期与请求处理分离
	var mirror *service.MirrorService
	if token := os.Getenv("DISCORD_TOKEN"); token != "" {
		chat, err := pkg.NewDiscordClient(pkg.DiscordConfig{Token: token})
		if err != nil {
			panic(err)
		}
		if err = chat.Open(); err != nil {
			panic(err)
		}
		defer chat.Close()
		mirror = service.NewMirrorService(chat)
	} else {
		log.Println("DISCORD_TOKEN empty, mirror sync disabled")
		mirror = service.NewMirrorService(nil)
	}

	// 审计事件流是旁路，不配 broker 就整条关掉
	var producer *pkg.KafkaProducer
	if brokers, topic := pkg.KafkaConfigFromEnv(); len(brokers) > 0 {
		producer = pkg.NewKafkaProducer(brokers, topic)
		defer producer.Close()
	} else {
		log.Println("KAFKA_BROKERS empty, event stream disabled")
	}

	hub := ws.NewHub()

	emailCfg := pkg.SMTPConfig{
		Host:     "smtp.example.com",
		Port:     587,
		Username: "no-reply@example.com",
		Password: "password",
		From:     "NoReply <no-reply@example.com>",
	}

	r := router.InitRouter(router.Deps{
		Hub:      hub,
		Mirror:   mirror,
		Bcast:    service.NewBroadcastService(hub, producer),
		EmailCfg: emailCfg,
	})
	if err := r.Run(":8080"); err != nil {
		return
	}
}
