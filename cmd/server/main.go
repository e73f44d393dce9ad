package main

import (
	"context"
	"log"

	"github.com/verdalabs/wellspring/internal/server"
	"github.com/verdalabs/wellspring/internal/server/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := server.NewApp(cfg)

	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)

}
