package cmd

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"

	"github.com/bsm/openmetrics"
	"github.com/bsm/openmetrics/omhttp"
)

var (
	flagDebug       = flag.Bool("debug", false, "Set log level to debug")
	flagMetricsHTTP = flag.String("metricsHTTP", "", "Address of a http server serving metrics under /metrics")
)

// CommonInit parses flags, sets up JSON logging and, if requested, serves the
// openmetrics default registry over HTTP.
func CommonInit(ctx context.Context) {
	flag.Parse()

	logLevel := slog.LevelInfo
	if *flagDebug {
		logLevel = slog.LevelDebug
	}
	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(h))

	// Metrics HTTP endpoint
	if *flagMetricsHTTP != `` {
		mux := http.NewServeMux()
		mux.Handle("/metrics", omhttp.NewHandler(openmetrics.DefaultRegistry()))

		var lc net.ListenConfig
		ln, err := lc.Listen(ctx, "tcp", *flagMetricsHTTP)
		if err != nil {
			slog.Error("Listen on http failed", slog.String("addr", *flagMetricsHTTP))
			os.Exit(1)
		}

		srv := &http.Server{Handler: mux}
		go func() {
			err := srv.Serve(ln)
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("http server failed", slog.Any("err", err))
				os.Exit(1)
			}
		}()
	}
}
