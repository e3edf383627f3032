package main

import (
	"os"

	_ "github.com/tanpawarit/ali-stylist-agent/pkg/logger/autoload"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
