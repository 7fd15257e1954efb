package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Stands in for whisper-server, llama-server and the classifier server. It
// accepts the subset of their flags the loaders pass.
func main() {
	var model, host, port string
	flag.StringVar(&model, "m", "", "model path")
	flag.StringVar(&model, "model", "", "model path")
	flag.StringVar(&host, "host", "127.0.0.1", "host")
	flag.StringVar(&port, "port", "0", "port")
	flag.Int("c", 0, "context size")
	flag.Int("ngl", 0, "gpu layers")
	flag.Int("b", 0, "batch")
	flag.Int("t", 0, "threads")
	flag.Bool("ng", false, "no gpu")
	flag.String("device", "", "device")
	flag.Int("batch-size", 0, "batch size")
	flag.Parse()

	if os.Getenv("FAKE_MODEL_SERVER_FAIL") != "" {
		fmt.Fprintln(os.Stderr, "error: failed to load model", model)
		os.Exit(3)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/inference", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"language": "en",
			"segments": []map[string]any{
				{"start": 0.0, "end": 1.5, "text": " hello from " + model},
			},
		})
	})
	mux.HandleFunc("/v1/completions", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"text": "- a point", "finish_reason": "stop"}},
		})
	})
	mux.HandleFunc("/v1/classify", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"label": 2})
	})

	srv := &http.Server{Addr: host + ":" + port, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Wait for SIGTERM then shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	<-sigCh
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
