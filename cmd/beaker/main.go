// Command beaker is the CLI front end for a single beaker pipeline: the
// demo word/fruit/sentence graph declared in pipeline.go, wired against a
// durable SQLite store and the optional NATS/Neo4j integrations configured
// through BEAKER_-prefixed environment variables.
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	cfg := loadConfig()

	a, err := newApp(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer a.Close()

	root := newRootCmd(a)
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
