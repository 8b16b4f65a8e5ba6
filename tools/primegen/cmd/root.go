// Package cmd holds the primegen command.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"os/signal"
	"runtime"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gostdlib/primegen/goroutines"
	"github.com/gostdlib/primegen/goroutines/limited"
	"github.com/gostdlib/primegen/goroutines/pooled"
	"github.com/gostdlib/primegen/search"
	"github.com/gostdlib/primegen/verify"
)

const (
	poolLimited = "limited"
	poolPooled  = "pooled"
)

const usage = `Usage: primegen <bits> [count] [flags]
	- bits - the number of bits of the prime number, this must be multiple of 8, and at least 32 bits.
	- count - the number of prime numbers to generate, defaults to 1`

// argError is a problem with the command line that is reported on stdout.
type argError struct {
	msg string
}

func (a argError) Error() string {
	return a.msg
}

// Execute runs the primegen command with os.Args and returns the exit code.
// An interrupt cancels the search.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return run(ctx, os.Args[1:], os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)

	if err := root.ExecuteContext(ctx); err != nil {
		var ae argError
		if errors.As(err, &ae) {
			fmt.Fprintln(stdout, ae.msg)
		} else {
			fmt.Fprintln(stderr, "Error:", err)
		}
		return 1
	}
	return 0
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	v := viper.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "primegen <bits> [count]",
		Short: "Generate probable primes of a given bit length",
		Long: `primegen searches for probable primes with as many workers as there are CPUs.
Every worker draws random candidates of the requested length and tests them with
Miller-Rabin. The first "count" primes found are printed, numbered from 1.

` + usage + `

Every flag can also be set with an environment variable, PRIMEGEN_WORKERS for --workers,
or in a config file passed with --config.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 || len(args) > 2 {
				return argError{msg: usage}
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := parseArgs(args)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(v, cmd, cfgFile)
			if err != nil {
				return err
			}
			return generate(cmd.Context(), req, cfg, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	cmd.Flags().StringVar(&cfgFile, "config", "", "A config file (yaml, json or toml) holding flag values")
	cmd.Flags().Int("workers", runtime.GOMAXPROCS(0), "The number of workers searching at once")
	cmd.Flags().Int("rounds", 10, "The number of Miller-Rabin rounds per candidate")
	cmd.Flags().String("pool", poolLimited, "The goroutine pool the workers run on, limited or pooled")
	cmd.Flags().String("format", formatText, "The output format, text, json or csv")
	cmd.Flags().Bool("distinct", true, "Never print the same prime twice")
	cmd.Flags().Bool("verify", false, "Double check every prime with math/big before finishing")
	cmd.Flags().BoolP("verbose", "v", false, "Log debug information to stderr")

	return cmd
}

// request is what the positional arguments asked for.
type request struct {
	bits  int
	count int
}

func parseArgs(args []string) (request, error) {
	req := request{count: 1}

	var err error
	req.bits, err = parseInt(args[0])
	if err != nil {
		return request{}, err
	}
	if req.bits < 32 || req.bits%8 != 0 {
		return request{}, argError{msg: fmt.Sprintf("bits must be a multiple of 8 and at least 32, got %d\n%s", req.bits, usage)}
	}

	if len(args) == 2 {
		req.count, err = parseInt(args[1])
		if err != nil {
			return request{}, err
		}
		if req.count < 1 {
			return request{}, argError{msg: fmt.Sprintf("count must be at least 1, got %d\n%s", req.count, usage)}
		}
	}
	return req, nil
}

func parseInt(s string) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, argError{msg: fmt.Sprintf("Unable to parse '%s'", s)}
	}
	return i, nil
}

func newLogger(w io.Writer, verbose bool) *zap.Logger {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), level))
}

func newPool(cfg config) (goroutines.Pool, error) {
	if cfg.Pool == poolPooled {
		return pooled.New("primegen", cfg.Workers)
	}
	return limited.New("primegen", cfg.Workers)
}

// generate runs the search and prints what it finds.
func generate(ctx context.Context, req request, cfg config, stdout, stderr io.Writer) error {
	logger := newLogger(stderr, cfg.Verbose)
	defer logger.Sync()

	pr, err := newPrinter(cfg.Format, stdout)
	if err != nil {
		return err
	}

	pool, err := newPool(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	options := []search.Option{
		search.WithWorkers(cfg.Workers),
		search.WithRounds(cfg.Rounds),
		search.WithPool(pool),
		search.WithLogger(logger),
	}
	if cfg.Distinct {
		options = append(options, search.WithDistinct())
	}

	if err := pr.header(req.bits); err != nil {
		return err
	}

	var found []*big.Int
	emit := func(ctx context.Context, p search.AcceptedPrime) error {
		if cfg.Verify {
			found = append(found, p.Value)
		}
		return pr.prime(p)
	}

	stats, err := search.FindPrimes(ctx, req.bits/8, req.count, emit, options...)
	if err != nil {
		return err
	}

	if cfg.Verify {
		if err := verify.Primes(ctx, found, verify.WithPool(pool)); err != nil {
			return err
		}
		logger.Info("verified primes", zap.Int("count", len(found)))
	}
	return pr.footer(stats.Elapsed)
}
