// Package main - marketpulse CLI
// 감성-가격 효과 파이프라인 CLI
//
// 사용법:
//
//	go run ./cmd/marketpulse run
//	go run ./cmd/marketpulse report --min-score 0.8
//	go run ./cmd/marketpulse status
//	go run ./cmd/marketpulse backfill --days 7 AAPL MSFT
package main

import (
	"os"

	"github.com/wonny/marketpulse/cmd/marketpulse/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
