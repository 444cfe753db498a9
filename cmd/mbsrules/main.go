// Package main provides the mbsrules command line tool for preparing catalogs
// and checking candidates and selections offline.
package main

import (
	"fmt"
	"os"
)

const (
	Version = "0.1.0"
	appName = "mbsrules"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
