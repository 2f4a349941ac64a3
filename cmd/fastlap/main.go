package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jtodevs/fastlap/api"
	"github.com/jtodevs/fastlap/internal/session"
	"github.com/jtodevs/fastlap/internal/version"
)

var (
	listen      = flag.String("listen", ":8080", "listen address")
	dbPath      = flag.String("db", "fastlap.db", "sqlite database path (use :memory: for an ephemeral session)")
	showVersion = flag.Bool("version", false, "print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		log.Printf("fastlap %s (%s, built %s)", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	sess, err := session.New(*dbPath)
	if err != nil {
		log.Fatalf("failed to open session: %v", err)
	}
	defer sess.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mux := api.NewServer(sess).ServeMux()
	server := &http.Server{
		Addr:    *listen,
		Handler: mux,
	}

	go func() {
		log.Printf("fastlap %s listening on %s", version.Version, *listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
