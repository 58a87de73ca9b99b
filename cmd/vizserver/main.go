package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/viper"

	"github.com/johnnygreco/viz-inspect/internal/api"
	"github.com/johnnygreco/viz-inspect/internal/app"
)

func main() {
	cfgFile := flag.String("config", "config.yaml", "Path to config file")
	flag.Parse()
	if *cfgFile != "" {
		viper.SetConfigFile(*cfgFile)
	}

	/* ---------- core ---------- */
	a := &app.App{}
	if err := a.Init(); err != nil {
		log.Fatalf("init: %v", err)
	}

	/* ---------- HTTP layer ---------- */
	a.SetWebRouter(api.SetupRouter(a))
	go func() {
		if err := a.Run(); err != nil {
			log.Fatalf("http: %v", err)
		}
	}()

	/* ---------- graceful shutdown ---------- */
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutdown")

	_ = a.Close()
}
