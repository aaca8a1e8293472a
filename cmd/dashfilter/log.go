package main

import (
	"fmt"
	"os"

	"github.com/btcsuite/btclog"
)

// Loggers per subsystem. They all write to stderr through one backend.
var (
	backendLog = btclog.NewBackend(os.Stderr)

	log     = backendLog.Logger("DFLT")
	httpLog = backendLog.Logger("HTTP")
	engnLog = backendLog.Logger("ENGN")
)

var subsystemLoggers = map[string]btclog.Logger{
	"DFLT": log,
	"HTTP": httpLog,
	"ENGN": engnLog,
}

// setLogLevels sets the level of every subsystem logger.
func setLogLevels(level string) error {
	lvl, ok := btclog.LevelFromString(level)
	if !ok {
		return fmt.Errorf("invalid log level %q", level)
	}
	for _, logger := range subsystemLoggers {
		logger.SetLevel(lvl)
	}
	return nil
}
