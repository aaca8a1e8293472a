package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rpmchale/dash-table/internal/engine"
	"github.com/rpmchale/dash-table/internal/server"
	"github.com/rpmchale/dash-table/internal/storage"
)

func cmdServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	port := fs.Int("port", 8088, "HTTP port to listen on")
	dataDir := fs.String("data", "data", "directory to store snapshots and the WAL")
	checkpoint := fs.Duration("checkpoint", time.Minute, "interval between snapshot checkpoints (0 disables)")
	opts := addCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	compiler, err := opts.setup()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	// 1. Open the store: snapshots, then WAL replay
	reader, err := storage.NewSnapshotReader()
	if err != nil {
		log.Errorf("Failed to create reader: %v", err)
		return 1
	}
	writer, err := storage.NewSnapshotWriter()
	if err != nil {
		log.Errorf("Failed to create writer: %v", err)
		return 1
	}
	store, err := engine.OpenStore(engine.StoreConfig{
		DataDir:       *dataDir,
		Compiler:      compiler,
		ReadSnapshot:  reader.ReadSnapshot,
		WriteSnapshot: writer.WriteSnapshot,
		Logger:        engnLog,
	})
	if err != nil {
		log.Errorf("Failed to open store: %v", err)
		return 1
	}
	log.Infof("Store opened. Data: %s, Rows: %d", *dataDir, store.Table().Len())

	done := make(chan struct{})
	store.Table().StartStatsTicker(1*time.Second, done)
	if *checkpoint > 0 {
		go store.RunCheckpointer(*checkpoint, done)
	}

	// 2. Start HTTP Server in a goroutine
	srv := server.NewFilterServer(store, httpLog)
	addr := fmt.Sprintf(":%d", *port)
	errc := make(chan error, 1)
	go func() {
		errc <- srv.Start(addr)
	}()

	// 3. Graceful Shutdown Hook
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	status := 0
	select {
	case sig := <-quit:
		log.Infof("Received signal: %v. Shutting down...", sig)
	case err := <-errc:
		log.Errorf("Server stopped: %v", err)
		status = 1
	}
	close(done)

	// Create a context with timeout for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("Server shutdown error: %v", err)
	}

	log.Info("Writing final checkpoint...")
	if err := store.Close(); err != nil {
		log.Errorf("Final checkpoint failed: %v", err)
		return 1
	}

	log.Infof("Served %d requests. Exited gracefully.", srv.Requests())
	return status
}
