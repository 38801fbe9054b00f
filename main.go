package main

import (
	"os"
	_ "time/tzdata"

	"github.com/StockHamster/market-calendar/internal/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
