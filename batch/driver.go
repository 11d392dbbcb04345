package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/chaos-io/logoprep/rembg"
	"github.com/chaos-io/logoprep/util"
	"github.com/segmentio/ksuid"
)

// opaqueThreshold 统计主体区域时 alpha 的阈值
const opaqueThreshold = 0.8

type Driver struct {
	jobs       []Job
	out        io.Writer
	errOut     io.Writer
	logger     *slog.Logger
	newRemover rembg.Factory
}

type Option func(*Driver)

func WithOutput(w io.Writer) Option {
	return func(d *Driver) { d.out = w }
}

func WithErrorOutput(w io.Writer) Option {
	return func(d *Driver) { d.errOut = w }
}

func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) { d.logger = l }
}

// WithRemover 替换去背景实现，默认 rembg.DefaultFactory
func WithRemover(f rembg.Factory) Option {
	return func(d *Driver) { d.newRemover = f }
}

// NewDriver 任务列表会被复制，之后对 jobs 的修改不影响 Driver
func NewDriver(jobs []Job, opts ...Option) *Driver {
	d := &Driver{
		jobs:       append([]Job(nil), jobs...),
		out:        os.Stdout,
		errOut:     os.Stderr,
		logger:     slog.Default(),
		newRemover: rembg.DefaultFactory,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run 按顺序处理所有任务，单个任务失败不影响后续任务，也不会返回错误
// ctx 取消后剩余任务记为 Skipped，仍然输出结束信息
func (d *Driver) Run(ctx context.Context) *Report {
	report := &Report{
		RunID:   ksuid.New().String(),
		Results: make([]Result, 0, len(d.jobs)),
	}
	logger := d.logger.With("run_id", report.RunID)
	defer util.Trace(logger, "logo batch")()

	_, _ = fmt.Fprintln(d.out, "Processing logos...")
	_, _ = fmt.Fprintln(d.out)

	for _, job := range d.jobs {
		var res Result
		if err := ctx.Err(); err != nil {
			res = Result{Job: job, Status: Skipped, Err: err}
			_, _ = fmt.Fprintf(d.errOut, "[SKIPPED] %s: %v\n", job.Input, err)
		} else {
			res = d.process(ctx, job)
			d.printResult(res)
		}
		if res.Err != nil {
			res.Reason = res.Err.Error()
		}
		logger.Debug("job finished",
			"input", job.Input,
			"output", job.Output,
			"status", res.Status.String(),
			"width", res.Width,
			"height", res.Height,
			"content", res.Content.String(),
		)
		report.Results = append(report.Results, res)
	}

	_, _ = fmt.Fprintln(d.out)
	_, _ = fmt.Fprintln(d.out, "Done! Refresh the browser.")
	return report
}

func (d *Driver) process(ctx context.Context, job Job) Result {
	res := Result{Job: job, Status: Pending}

	img, format, err := util.Decode(ctx, job.Input)
	if err != nil {
		res.Err = err
		var nf *util.NotFoundError
		if errors.As(err, &nf) {
			res.Status = Skipped
		} else {
			res.Status = Failed
		}
		return res
	}
	d.logger.Debug("decoded input", "input", job.Input, "format", format)

	// img 由本任务独占，交给 Remover 原地处理
	removed, err := d.newRemover(job.KeepOriginalColors).Remove(ctx, img)
	if err != nil {
		res.Err = fmt.Errorf("remove background: %w", err)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			res.Status = Skipped
		} else {
			res.Status = Failed
		}
		return res
	}

	out := rembg.ToNRGBA(removed)
	res.Width, res.Height = out.Bounds().Dx(), out.Bounds().Dy()
	if bbox, err := rembg.AlphaBBox(out, opaqueThreshold); err == nil {
		res.Content = bbox
	}

	if err := util.Encode(out, job.Output); err != nil {
		res.Status = Failed
		res.Err = err
		return res
	}

	res.Status = Succeeded
	return res
}

func (d *Driver) printResult(res Result) {
	switch res.Status {
	case Succeeded:
		_, _ = fmt.Fprintf(d.out, "[OK] %s\n", res.Job.Output)
	case Skipped:
		var nf *util.NotFoundError
		if errors.As(res.Err, &nf) {
			_, _ = fmt.Fprintf(d.errOut, "[SKIPPED] '%s' not found.\n", res.Job.Input)
		} else {
			_, _ = fmt.Fprintf(d.errOut, "[SKIPPED] %s: %v\n", res.Job.Input, res.Err)
		}
	default:
		_, _ = fmt.Fprintf(d.errOut, "[ERROR] %s: %v\n", res.Job.Input, res.Err)
	}
}
