package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/arkdb/pagestore/pfconfig"
	"github.com/arkdb/pagestore/sgbd"
)

func main() {
	cfgPath := flag.String("config", "config.txt", "path to config file")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(2)
	}
	defer logger.Sync()
	log := logger.Sugar()

	cfg, err := pfconfig.Load(*cfgPath, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(2)
	}

	s, err := sgbd.NewSGBD(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize pagestore: %v\n", err)
		os.Exit(2)
	}
	if err := s.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "runtime error: %v\n", err)
		os.Exit(2)
	}
}
