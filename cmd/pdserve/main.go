package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pdscreen/pdscreen"
	"github.com/pdscreen/pdscreen/deep"
	"github.com/pdscreen/pdscreen/logging"
	"github.com/pdscreen/pdscreen/server"
	"github.com/pdscreen/pdscreen/store"
)

const shutdownTimeout = 15 * time.Second

var (
	// Flags
	addr      = flag.String("addr", ":"+getEnv("PORT", "8080"), "Listen address")
	modelsDir = flag.String("models", store.DefaultDir, "Directory of the trained drawing models")
	dataDir   = flag.String("data", pdscreen.DefaultDataDir, "Dataset root used when the models need training")
	modelPath = flag.String("model", deep.DefaultModelPath, "ONNX handwriting model (optional)")
	metaPath  = flag.String("meta", deep.DefaultMetadataPath, "Handwriting model metadata")
	ortLib    = flag.String("ortlib", os.Getenv("ONNXRUNTIME_LIB"), "Path to the onnxruntime shared library")
)

func main() {
	log.SetFlags(0)
	flag.Parse()

	logger, err := logging.NewProductionLogger()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	models := store.New(*modelsDir)
	drawings := pdscreen.NewDrawingAnalyzer(models, pdscreen.NewTrainer(*dataDir, models, logger), logger)

	var handwriting server.HandwritingAnalyzer
	model, err := deep.Load(deep.Config{
		ModelPath:         *modelPath,
		MetadataPath:      *metaPath,
		SharedLibraryPath: *ortLib,
		ImageSize:         pdscreen.HandwritingSize,
	})
	if err != nil {
		logger.Warn("handwriting model unavailable", zap.String("model", *modelPath), zap.Error(err))
	} else {
		defer model.Close()
		handwriting = pdscreen.NewHandwritingAnalyzer(model, logger)
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              *addr,
		Handler:           server.New(drawings, handwriting, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("upload server listening", zap.String("addr", *addr))
	fmt.Fprintf(os.Stderr, "Open http://<this-machine>%s on your phone to upload a drawing\n", *addr)
	if err := serveHTTPServer(srv, shutdownTimeout, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

// serveHTTPServerWithOptions serves until the server fails or a shutdown
// signal arrives, then drains in-flight requests within shutdownTimeout.
func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	sigCh := signalCh
	if sigCh == nil {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(ch)
		sigCh = ch
	}

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
