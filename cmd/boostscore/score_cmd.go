package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rushteam/boostscore/core"
	"github.com/rushteam/boostscore/feature"
	"github.com/rushteam/boostscore/loader"
	"github.com/rushteam/boostscore/scorer"
)

const (
	formatSparse = "sparse"
	formatJSONL  = "jsonl"
)

type scoreCmdConfig struct {
	modelInput string
	indexInput string
	input      string
	format     string
	workers    int
	timeout    time.Duration
}

func scoreCmd(rootConfig *rootCmdConfig) *cobra.Command {
	config := &scoreCmdConfig{}
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score instances read from a file or stdin",
		Long: `Score every instance of the input and print one probability per line, in input order.
Input is either sparse lines ("label slot:value ...", requires --index) or JSON lines of feature maps.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Validate(); err != nil {
				return err
			}
			return config.run(cmd.Context(), rootConfig, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVarP(&(config.modelInput), "model", "m", "", "path or http(s) URL of the XGBoost JSON model dump (required)")
	cmd.Flags().StringVarP(&(config.indexInput), "index", "x", "", "path or http(s) URL of the feature index JSON object (required for sparse input)")
	cmd.Flags().StringVarP(&(config.input), "input", "i", "-", "input file, - for stdin")
	cmd.Flags().StringVarP(&(config.format), "format", "f", formatSparse, "input format: sparse or jsonl")
	cmd.Flags().IntVarP(&(config.workers), "workers", "w", 1, "number of concurrent workers for jsonl input")
	cmd.Flags().DurationVar(&(config.timeout), "timeout", 10*time.Second, "timeout for loading remote model and index")
	return cmd
}

func (c *scoreCmdConfig) Validate() error {
	if c.modelInput == "" {
		return fmt.Errorf("required model flag was not set")
	}
	switch c.format {
	case formatSparse:
		if c.indexInput == "" {
			return fmt.Errorf("sparse input requires the index flag")
		}
	case formatJSONL:
	default:
		return fmt.Errorf("unsupported format %q (supported: [jsonl sparse])", c.format)
	}
	return nil
}

func (c *scoreCmdConfig) run(ctx context.Context, root *rootCmdConfig, stdin io.Reader, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log := root.logger(stderr)

	sc, err := c.buildScorer(ctx, log)
	if err != nil {
		return err
	}
	log.Debug("scorer ready", "trees", sc.Ensemble().Len(), "sparse", sc.CanTranslate())

	in := stdin
	if c.input != "-" {
		f, err := os.Open(filepath.Clean(c.input))
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		in = f
	}

	w := bufio.NewWriter(stdout)
	defer w.Flush()

	if c.format == formatSparse {
		return sc.ScoreStream(ctx, in, func(_ int, score float64) error {
			return writeScore(w, score)
		})
	}

	batch, err := readJSONL(in)
	if err != nil {
		return err
	}
	scores, err := sc.ScoreMany(ctx, batch)
	if err != nil {
		return err
	}
	for _, s := range scores {
		if err := writeScore(w, s); err != nil {
			return err
		}
	}
	return nil
}

func (c *scoreCmdConfig) buildScorer(ctx context.Context, log *slog.Logger) (*scorer.Scorer, error) {
	loadCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ens, err := loader.LoadEnsemble(loadCtx, loaderFor(c.modelInput, c.timeout), c.modelInput)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	opts := []scorer.Option{scorer.WithWorkers(c.workers), scorer.WithLogger(log)}
	if c.indexInput != "" {
		idx, err := loader.LoadIndex(loadCtx, loaderFor(c.indexInput, c.timeout), c.indexInput)
		if err != nil {
			return nil, fmt.Errorf("load feature index: %w", err)
		}
		opts = append(opts, scorer.WithFeatureIndex(idx))
	}
	return scorer.New(ens, opts...)
}

func loaderFor(ref string, timeout time.Duration) loader.Loader {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return loader.NewHTTPLoader(timeout)
	}
	return loader.NewFileLoader("")
}

// readJSONL 每行一个 JSON 对象（特征名 → 值），空行跳过；值为 null 的特征视为缺失。
func readJSONL(r io.Reader) ([]feature.Vector, error) {
	var out []feature.Vector
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		fv, err := feature.DecodeVector([]byte(text))
		if err != nil {
			return nil, core.Wrap(core.ModuleService, core.ErrorCodeInvalidInput, err, "line %d", line)
		}
		out = append(out, fv)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return out, nil
}

func writeScore(w io.Writer, score float64) error {
	_, err := io.WriteString(w, strconv.FormatFloat(score, 'g', -1, 64)+"\n")
	return err
}
