// Command netlogger-emit streams stdin lines to a netlogger collector, one
// record per line, with the severity guessed from the text.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/tinytelemetry/netlogger/internal/client"
	"github.com/tinytelemetry/netlogger/internal/logparse"
	"github.com/tinytelemetry/netlogger/internal/logsource"
)

type emitConfig struct {
	Addr           string
	Thread         string
	File           string
	ConnectTimeout time.Duration
	Retries        int
	MaxLineSize    int
}

func main() {
	var cfg emitConfig
	fs := pflag.NewFlagSet("netlogger-emit", pflag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", "127.0.0.1:1234", "collector address")
	fs.StringVar(&cfg.Thread, "thread", "stdin", "thread name sent with every record")
	fs.StringVar(&cfg.File, "file", "stdin", "file name sent with every record")
	fs.DurationVar(&cfg.ConnectTimeout, "connect-timeout", client.DefaultConnectTimeout, "timeout of one connection attempt")
	fs.IntVar(&cfg.Retries, "retries", client.DefaultRetries, "extra connection attempts, 1s apart")
	fs.IntVar(&cfg.MaxLineSize, "max-line-size", logsource.DefaultStdinMaxLineSize, "longest accepted input line in bytes")
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := emit(ctx, cfg, logsource.NewStdinSource(ctx, logsource.StdinConfig{MaxLineSize: cfg.MaxLineSize})); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// emit sends every line of src until the input ends, ctx is cancelled or the
// collector goes away.
func emit(ctx context.Context, cfg emitConfig, src logsource.LineSource) error {
	defer src.Stop()

	retries := cfg.Retries
	if retries == 0 {
		retries = -1
	}
	c, err := client.Dial(ctx, cfg.Addr, client.Config{
		ConnectTimeout: cfg.ConnectTimeout,
		Retries:        retries,
		Thread:         cfg.Thread,
	})
	if err != nil {
		return err
	}
	defer c.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.Done():
			return errors.New("collector closed the connection")
		case line, ok := <-src.Lines():
			if !ok {
				return nil
			}
			sev := logparse.ExtractSeverityFromText(line.Text)
			if err := c.Log(sev, cfg.File, line.Number, line.Text); err != nil {
				return fmt.Errorf("send line %d: %w", line.Number, err)
			}
		}
	}
}
