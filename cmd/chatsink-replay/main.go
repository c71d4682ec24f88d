// chatsink-replay replays a directory of JSON payload dumps into a store
// without starting any listeners. Useful for seeding a fresh database from
// historical webhook captures.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"chatsink/internal/backfill"
	"chatsink/pkg/ingest"
	"chatsink/pkg/logger"
	"chatsink/pkg/store"
)

func main() {
	dir := flag.String("dir", "", "Directory of *.json payload files to replay")
	db := flag.String("db", "./.database", "Pebble DB path")
	flag.Parse()

	if *dir == "" {
		fmt.Fprintln(os.Stderr, "usage: chatsink-replay -dir <payloads> [-db <path>]")
		os.Exit(2)
	}

	logger.Init()

	if err := store.Open(*db); err != nil {
		log.Fatalf("failed to open pebble at %s: %v", *db, err)
	}
	defer func() { _ = store.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// no broadcaster: replay is storage-only
	st, err := backfill.RunOnce(ctx, &ingest.Processor{}, *dir)
	if err != nil {
		log.Fatalf("replay failed: %v", err)
	}
	fmt.Printf("replayed %d files: %d applied, %d dropped, %d skipped, %d failed\n",
		st.Files, st.Applied, st.Dropped, st.Skipped, st.Failed)
	if st.Failed > 0 {
		os.Exit(1)
	}
}
