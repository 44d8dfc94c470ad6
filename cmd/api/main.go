package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"vaultgraph.org/internal/authz"
	"vaultgraph.org/internal/cache"
	"vaultgraph.org/internal/evaluate"
	"vaultgraph.org/internal/httpapi"
	"vaultgraph.org/internal/obs"
	"vaultgraph.org/internal/schema"
	"vaultgraph.org/internal/store/pg"
	"vaultgraph.org/internal/stream"
	"vaultgraph.org/internal/trust"
	"vaultgraph.org/internal/tuple"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	addr := envOr("VAULTGRAPH_ADDR", ":8080")
	grpcAddr := os.Getenv("VAULTGRAPH_GRPC_ADDR")

	// Stores: postgres when a DSN is configured, in-memory otherwise.
	var (
		trustStore trust.Store
		tupleStore tuple.Store
		readyProbe httpapi.ReadyProbe
	)
	if dsn := os.Getenv("VAULTGRAPH_PG_DSN"); dsn != "" {
		store, err := pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer store.Close()
		trustStore = store
		tupleStore = store
		readyProbe = httpapi.ReadyProbe{DB: store.DB()}
	} else {
		trustStore = trust.NewMemoryStore()
		tupleStore = tuple.NewMemoryStore()
	}

	// Permission schema; without one every permission is a direct relation.
	var sch *schema.Schema
	if path := os.Getenv("VAULTGRAPH_SCHEMA"); path != "" {
		var err error
		sch, err = schema.Load(path)
		if err != nil {
			log.Fatalf("load schema: %v", err)
		}
	}

	dir := trust.NewDirectory(trustStore, cache.New(), tupleStore,
		trust.WithCertificateTTL(envDuration("VAULTGRAPH_CERT_TTL", trust.DefaultCertTTL)),
		trust.WithStatusTTL(envDuration("VAULTGRAPH_STATUS_TTL", trust.DefaultStatusTTL)),
	)

	eval := evaluate.New(tupleStore, sch,
		evaluate.WithMaxDepth(envInt("VAULTGRAPH_MAX_DEPTH", 25)))

	events := stream.New()
	svc := authz.NewService(eval, tupleStore, authz.WithEvents(events))

	var verifierOpts []authz.VerifierOption
	if issuer := os.Getenv("VAULTGRAPH_ISSUER"); issuer != "" {
		verifierOpts = append(verifierOpts, authz.WithIssuer(issuer))
	}
	if aud := os.Getenv("VAULTGRAPH_AUDIENCE"); aud != "" {
		verifierOpts = append(verifierOpts, authz.WithAudience(aud))
	}
	verifier := authz.NewVerifier(dir, verifierOpts...)

	api := httpapi.New(svc, verifier, version,
		httpapi.WithEvents(events),
		httpapi.WithReadyProbe(readyProbe),
	)

	handler := api.Handler()
	if burst := envInt("VAULTGRAPH_RATE_BURST", 0); burst > 0 {
		handler = httpapi.RateLimit(handler, burst, envInt("VAULTGRAPH_RATE_PER_SECOND", burst))
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting vaultgraph-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	var grpcHealth *httpapi.GRPCHealthServer
	if grpcAddr != "" {
		lis, err := net.Listen("tcp", grpcAddr)
		if err != nil {
			log.Fatalf("grpc listen: %v", err)
		}
		grpcHealth = httpapi.NewGRPCHealthServer()
		grpcHealth.SetServing(true)
		go func() {
			if err := grpcHealth.Serve(lis); err != nil {
				log.Fatalf("grpc serve: %v", err)
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if grpcHealth != nil {
		grpcHealth.Stop()
	}
	log.Println("Stopped")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("%s: %v", key, err)
	}
	return d
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("%s: %v", key, err)
	}
	return n
}
