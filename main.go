package main

import (
	"fmt"
	"os"

	"github.com/pwhiting/Translate/cmd"
	"github.com/pwhiting/Translate/logger"
)

func main() {
	defer logger.Sync()
	if err := cmd.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
