// The main package for the contract-fetcher executable.
package main

import (
	"github.com/contractwatch/contract-fetcher/cmd"
)

func main() {
	cmd.Execute()
}
