package internal

import (
	"fmt"
	"time"
)

type Config struct {
	Host            string        `env:"HOST,required=true"`
	Port            int           `env:"PORT,required=true"`
	LogLevel        string        `env:"LOG_LEVEL,required=true"`
	BadgerFilepath  string        `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath   string        `env:"BLUGE_FILEPATH,required=true"`
	PushTimeout     time.Duration `env:"PUSH_TIMEOUT,default=5s"`
	SweepInterval   time.Duration `env:"SWEEP_INTERVAL,default=30s"`
	StatsInterval   time.Duration `env:"STATS_INTERVAL,default=15s"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	CharReplacement string        `env:"CHARACTER_REPLACEMENT,default=*"`
	DebugPort       int           `env:"DEBUG_PORT,default=8081"`
}

// CharacterRune enforces the single-rune replacement character.
func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
