// Command graphwrite loads vertex and edge inserts from JSON lines and sends
// them to a graph write service in batches.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dd0wney/cluso-graphwriter/pkg/config"
	"github.com/dd0wney/cluso-graphwriter/pkg/logging"
	"github.com/dd0wney/cluso-graphwriter/pkg/metrics"
	"github.com/dd0wney/cluso-graphwriter/pkg/transport"
	"github.com/dd0wney/cluso-graphwriter/pkg/wire"
	"github.com/dd0wney/cluso-graphwriter/pkg/writebatch"
	"github.com/dd0wney/cluso-graphwriter/pkg/writeclient"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	input := flag.String("input", "-", "JSON-lines input file (- for stdin)")
	address := flag.String("address", "", "Write service address (overrides config)")
	clientID := flag.String("client-id", "", "Client id sent with each batch (overrides config)")
	batchSize := flag.Int("batch-size", 0, "Records per batch (overrides config)")
	dryRun := flag.Bool("dry-run", false, "Print the batch as JSON instead of sending it")
	flag.Parse()

	if err := run(*configPath, *input, *address, *clientID, *batchSize, *dryRun); err != nil {
		fmt.Fprintf(os.Stderr, "graphwrite: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, input, address, clientID string, batchSize int, dryRun bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if address != "" {
		cfg.Address = address
	}
	if clientID != "" {
		cfg.ClientID = clientID
	}
	if batchSize > 0 {
		cfg.MaxBatchSize = batchSize
	}

	logger := logging.NewJSONLogger(os.Stderr, cfg.Level())
	logging.SetDefaultLogger(logger)

	in, err := openInput(input)
	if err != nil {
		return err
	}
	defer in.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if dryRun {
		return printBatch(ctx, in, os.Stdout, cfg.ClientID)
	}
	return send(ctx, cfg, logger, in)
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" || path == "" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	return f, nil
}

// printBatch accumulates the whole input into one batch and writes its JSON
// encoding to out.
func printBatch(ctx context.Context, in io.Reader, out io.Writer, clientID string) error {
	b := writebatch.NewBuilder()
	if _, err := loadMutations(ctx, in, builderSink{b: b}); err != nil {
		return err
	}

	data, err := wire.JSONCodec{Indent: true}.Marshal(b.AsRequest(clientID))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

func send(ctx context.Context, cfg *config.Config, logger logging.Logger, in io.Reader) error {
	factory, err := transport.NewSocketFactory(cfg.Transport)
	if err != nil {
		return err
	}
	reg := metrics.NewRegistry()

	client, err := writeclient.NewClient(factory, cfg.ClientConfig(logger, reg))
	if err != nil {
		return err
	}
	if err := client.Start(); err != nil {
		return err
	}

	writer := writeclient.NewWriter(client, cfg.WriterConfig(logger, reg))
	timer := logging.StartTimer(logger, "load", logging.ClientID(cfg.ClientID))

	stats, loadErr := loadMutations(ctx, in, writer)

	closeCtx, cancel := context.WithTimeout(context.Background(), cfg.SendTimeout*time.Duration(cfg.MaxRetries+1)+time.Second)
	defer cancel()
	closeErr := writer.Close(closeCtx)

	if loadErr != nil {
		timer.EndError(loadErr)
		return loadErr
	}
	if closeErr != nil {
		timer.EndError(closeErr)
		return closeErr
	}

	logger.Info("load finished",
		logging.ClientID(cfg.ClientID),
		logging.Int("vertices", stats.Vertices),
		logging.Int("edges", stats.Edges),
		logging.Latency(timer.Elapsed()))
	return nil
}
