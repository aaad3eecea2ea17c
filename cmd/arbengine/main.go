// Command arbengine runs the Solana DEX-aggregator arbitrage engine: scan,
// decide, trigger, and execute across Jupiter and OpenOcean (§1-§9).
//
// Bootstrap is grounded on the sandwich watcher's cobra-root +
// viper/godotenv main.go split.
package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fallback, _ := zap.NewProduction()
		if fallback != nil {
			fallback.Sugar().Errorw("command failed", "error", err)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
