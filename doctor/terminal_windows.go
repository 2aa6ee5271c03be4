//go:build windows

package doctor

import (
	"fmt"
	"os"
	"os/signal"
)

// resetTerminal is a no-op; the Windows console has no raw mode to
// recover from.
func resetTerminal() {}

func setupInterruptHandler() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	go func() {
		<-sigs
		fmt.Println("\nDiagnostics interrupted")
		os.Exit(1)
	}()
}
