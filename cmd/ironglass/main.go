// Command ironglass runs the single-symbol matching core over a CSV
// order stream, emitting a line-oriented lifecycle event log to stdout.
package main

import (
	"errors"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"ironglass/internal/eventlog"
	"ironglass/internal/ingest"
	"ironglass/internal/matcher"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

func newRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ironglass <orders.csv>",
		Short: "Run the single-symbol limit order matching core over a CSV order stream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], os.Stdout)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

// run wires ingest -> matcher -> eventlog for a single pass over the CSV
// file at path, writing the emitted event log to w.
func run(path string, w io.Writer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if iv, ok := r.(*matcher.InvariantViolation); ok {
				err = iv
				return
			}
			panic(r)
		}
	}()

	f, openErr := os.Open(path)
	if openErr != nil {
		return openErr
	}
	defer f.Close()

	reader, readerErr := ingest.NewReader(f)
	if readerErr != nil {
		return readerErr
	}

	sink := eventlog.NewLineWriter(w)
	m := matcher.New(sink)

	for {
		o, nextErr := reader.Next()
		if errors.Is(nextErr, io.EOF) {
			break
		}
		if nextErr != nil {
			sink.Flush()
			return nextErr
		}
		m.Accept(o)
	}

	m.Shutdown()
	return sink.Flush()
}

// exitCode maps the error taxonomy onto process exit codes: 1 for an
// input error at the ingest boundary, 2 for an internal fatal invariant
// violation.
func exitCode(err error) int {
	var iv *matcher.InvariantViolation
	if errors.As(err, &iv) {
		log.Error().Err(err).Msg("fatal invariant violation")
		return 2
	}
	var rowErr *ingest.RowError
	if errors.As(err, &rowErr) {
		log.Error().Err(err).Int("row", rowErr.Row).Msg("malformed input row")
		return 1
	}
	log.Error().Err(err).Msg("run failed")
	return 1
}
