// Package main boots the e-commerce stream simulator.
package main

import (
	"os"

	"github.com/fairyhunter13/ecommerce-stream-simulator/internal/obs"
)

func main() {
	obs.InitLogger()
	if err := newRootCommand().Execute(); err != nil {
		obs.Logger.Error("command_failed", "error", err.Error())
		os.Exit(1)
	}
}
