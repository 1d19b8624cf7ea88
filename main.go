// main is the entry point of the vegchange CLI.
package main

import (
	"os"

	"github.com/huangsam/vegchange/cmd"
	"github.com/huangsam/vegchange/internal/contract"
	"github.com/huangsam/vegchange/internal/iocache"
)

func main() {
	cmd.SetCacheManager(iocache.Manager)
	err := cmd.Execute()

	if stopErr := cmd.StopProfiling(); stopErr != nil {
		contract.LogWarn("Failed to stop profiling", stopErr)
	}
	iocache.CloseStores()

	if err != nil {
		contract.LogWarn("Command failed", err)
		os.Exit(1)
	}
}
