package main

import (
	"flag"
	"time"
)

// config gathers every engine-wide tunable the REPL's composition root
// needs, with defaults matching the core packages' own defaults.
type config struct {
	dbRoot        string
	database      string
	bufferPoolCap int
	lockTimeout   time.Duration
}

func defaultConfig() config {
	return config{
		dbRoot:        "databases",
		database:      "default",
		bufferPoolCap: 256,
		lockTimeout:   5 * time.Second,
	}
}

func parseFlags() config {
	cfg := defaultConfig()
	flag.StringVar(&cfg.dbRoot, "dbroot", cfg.dbRoot, "directory holding all databases")
	flag.StringVar(&cfg.database, "db", cfg.database, "database to open, created if missing")
	flag.IntVar(&cfg.bufferPoolCap, "bufferpool", cfg.bufferPoolCap, "buffer pool capacity in pages")
	flag.DurationVar(&cfg.lockTimeout, "locktimeout", cfg.lockTimeout, "lock wait timeout before abort")
	flag.Parse()
	return cfg
}
