package utils

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
)

// IsFlagGiven reports whether the flag was set on the command line, so that
// a config file value does not override it. Call after flag.Parse.
func IsFlagGiven(name string) bool {
	given := false
	flag.Visit(func(f *flag.Flag) {
		given = given || f.Name == name
	})
	return given
}

// GetSystemKillChan is notified on ctrl+c and SIGTERM.
func GetSystemKillChan() <-chan os.Signal {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	return c
}
