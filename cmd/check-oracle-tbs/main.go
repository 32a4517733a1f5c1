// Package main is the entry point for check-oracle-tbs.
package main

import (
	"os"
)

func main() {
	os.Exit(Execute())
}
