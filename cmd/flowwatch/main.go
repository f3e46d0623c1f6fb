package main

import (
	"context"
	"flag"
	"log"

	"github.com/mfreeman451/flowwatch/pkg/config"
	"github.com/mfreeman451/flowwatch/pkg/core"
	"github.com/mfreeman451/flowwatch/pkg/lifecycle"
)

// cmd/flowwatch/main.go

func main() {
	configPath := flag.String("config", "/etc/flowwatch/core.json", "Path to config file")
	flag.Parse()

	var cfg config.CoreConfig
	if err := config.LoadAndValidate(*configPath, &cfg); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()

	server, err := core.NewServer(ctx, &cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	opts := &lifecycle.ServerOptions{
		GrpcAddr:    cfg.GrpcAddr,
		ServiceName: "flowwatch-core",
		Service:     server,
		Security:    cfg.Security,
	}

	if err := lifecycle.RunServer(ctx, opts); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
