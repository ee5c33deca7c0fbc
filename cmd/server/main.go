// cmd/server/main.go
package main

import (
	"fmt"
	"os"
)

// @title Cyton Service API
// @version 1.0.0
// @description Control service for OpenBCI Cyton boards: streaming, impedance, radio and time sync

// @host localhost:8090
// @BasePath /api/v1
func main() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
