// Package shutdown handles fatal teardown: registered cleanups run in
// reverse order so the MQTT availability topic and the settings database are
// left in a consistent state before exit.
package shutdown

import (
	"os"
	"sync"

	"github.com/rs/zerolog/log"
)

var (
	mu       sync.Mutex
	cleanups []func()
)

// Register adds a cleanup to run on shutdown. Cleanups run last-in first-out.
func Register(fn func()) {
	mu.Lock()
	defer mu.Unlock()
	cleanups = append(cleanups, fn)
}

func runCleanups() {
	mu.Lock()
	fns := make([]func(), len(cleanups))
	copy(fns, cleanups)
	mu.Unlock()

	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}

func Shutdown() {
	runCleanups()
	log.Info().Msg("Shutdown complete")
	os.Exit(0)
}

func ShutdownWithError(err error, msg string) {
	log.Error().Err(err).Msg(msg)
	runCleanups()
	os.Exit(1)
}
