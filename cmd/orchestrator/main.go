// Copyright (C) 2026 AntiEcoSys
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/DrPechenyshka/AE/pkg/logging"
	"github.com/DrPechenyshka/AE/services/orchestrator"
)

func main() {
	level := logging.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		level = logging.LevelDebug
	}
	logger := logging.New(logging.Config{
		Level:   level,
		LogDir:  os.Getenv("LOG_DIR"),
		Service: "orchestrator",
		JSON:    true,
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	cfg := orchestrator.ConfigFromEnv()

	svc, err := orchestrator.New(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to initialize the orchestrator: %v", err)
	}

	if err := svc.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
