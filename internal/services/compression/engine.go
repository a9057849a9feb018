package compression

import (
	"bufio"
	"context"
	"image"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"shrinkbot/internal/domain/compression"
	"shrinkbot/internal/metrics"
	"shrinkbot/pkg/errors"
	"shrinkbot/pkg/logger"
)

// Config tunes the quality search
type Config struct {
	TempDir     string // empty means os.TempDir()
	QualityStep int
	MinQuality  int
}

// DefaultConfig returns the stock search parameters: step 5, floor 5
func DefaultConfig() Config {
	return Config{QualityStep: 5, MinQuality: 5}
}

// Engine searches downward over encoder quality until the output fits the target size
type Engine struct {
	codec   compression.Codec
	tempDir string
	step    int
	floor   int
	log     *logger.Logger
}

// NewEngine creates a compression engine
func NewEngine(codec compression.Codec, cfg Config, log *logger.Logger) *Engine {
	if cfg.QualityStep <= 0 {
		cfg.QualityStep = DefaultConfig().QualityStep
	}
	if cfg.MinQuality <= 0 {
		cfg.MinQuality = DefaultConfig().MinQuality
	}

	return &Engine{
		codec:   codec,
		tempDir: cfg.TempDir,
		step:    cfg.QualityStep,
		floor:   cfg.MinQuality,
		log:     log.With("component", "compression_engine"),
	}
}

// Compress encodes req.Source at decreasing quality and returns the first result within the target,
// or the last one tried when none fits. The caller owns Result.Output and must Release it.
func (e *Engine) Compress(ctx context.Context, req compression.Request) (*compression.Result, error) {
	start := time.Now()

	res, err := e.compress(ctx, req)

	if err != nil {
		metrics.RecordCompression(time.Since(start), 0, 0, false, err)
		return nil, err
	}
	metrics.RecordCompression(time.Since(start), res.Iterations, res.Ratio(), res.TargetMet, nil)
	return res, nil
}

func (e *Engine) compress(ctx context.Context, req compression.Request) (*compression.Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	log := e.log.With("run_id", runID)

	img, err := e.codec.Decode(ctx, req.Source)
	if err != nil {
		return nil, errors.WithKind(errors.Wrap(err, "failed to decode image"), errors.ErrCodec)
	}

	file, err := os.CreateTemp(e.tempDir, "shrinkbot-"+runID+"-*.jpg")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create temp file")
	}
	path := file.Name()

	result, err := e.search(ctx, log, file, img, req)
	closeErr := file.Close()
	if err == nil && closeErr != nil {
		err = errors.Wrap(closeErr, "failed to close temp file")
	}
	if err != nil {
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			log.Warnw("Failed to remove temp file", "path", path, "error", rmErr)
		}
		return nil, err
	}

	result.Output = compression.NewOutput(path)
	result.OriginalSize = int64(len(req.Source))

	log.Infow("Compression finished",
		"target", humanTarget(req),
		"start_quality", req.StartQuality,
		"final_quality", result.FinalQuality,
		"iterations", result.Iterations,
		"original", humanize.IBytes(uint64(result.OriginalSize)),
		"compressed", humanize.IBytes(uint64(result.FinalSize)),
		"target_met", result.TargetMet,
	)

	return result, nil
}

// search overwrites file with each attempt; the last attempt written is the one returned
func (e *Engine) search(ctx context.Context, log *logger.Logger, file *os.File, img image.Image, req compression.Request) (*compression.Result, error) {
	result := &compression.Result{}

	quality := req.StartQuality
	for {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "compression interrupted")
		}

		size, err := e.encodeTo(ctx, file, img, quality)
		if err != nil {
			return nil, err
		}

		result.Iterations++
		result.FinalQuality = quality
		result.FinalSize = size
		result.TargetMet = compression.ThresholdMet(size, req.TargetSize, req.Unit)

		log.Debugw("Encoded attempt",
			"quality", quality,
			"size", humanize.IBytes(uint64(size)),
			"target_met", result.TargetMet,
		)

		if result.TargetMet {
			return result, nil
		}

		quality -= e.step
		if quality < e.floor {
			return result, nil
		}
	}
}

func (e *Engine) encodeTo(ctx context.Context, file *os.File, img image.Image, quality int) (int64, error) {
	if err := file.Truncate(0); err != nil {
		return 0, errors.Wrap(err, "failed to truncate temp file")
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return 0, errors.Wrap(err, "failed to rewind temp file")
	}

	w := bufio.NewWriter(file)
	if err := e.codec.Encode(ctx, img, quality, w); err != nil {
		return 0, errors.WithKind(errors.Wrapf(err, "failed to encode at quality %d", quality), errors.ErrCodec)
	}
	if err := w.Flush(); err != nil {
		return 0, errors.Wrap(err, "failed to write temp file")
	}

	info, err := file.Stat()
	if err != nil {
		return 0, errors.Wrap(err, "failed to stat temp file")
	}
	if info.Size() == 0 {
		return 0, errors.WithKind(errors.Newf("encoder produced no output at quality %d", quality), errors.ErrCodec)
	}

	return info.Size(), nil
}

func humanTarget(req compression.Request) string {
	return humanize.Comma(int64(req.TargetSize)) + req.Unit.String()
}
