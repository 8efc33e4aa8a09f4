package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"media-toolkit/internal/logging"
	"media-toolkit/internal/planner"
	"media-toolkit/internal/probe"
	"media-toolkit/internal/transcoder"
	"media-toolkit/internal/workers"
)

const pollInterval = 500 * time.Millisecond

type options struct {
	request  planner.Request
	estimate bool
	output   string
	ffmpeg   string
	ffprobe  string
	timeout  time.Duration
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if os.Getenv("LOG_LEVEL") == "" && os.Getenv("DEBUG") == "" {
		logging.SetLevel(logging.LevelWarn)
	}

	prober := probe.New(opts.ffprobe, 0)
	pl := planner.New(planner.Config{})

	if opts.estimate {
		src, err := prober.Probe(ctx, opts.request.SourcePath)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		est, err := pl.Estimate(opts.request, src)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		printEstimate(stdout, est)
		return 0
	}

	if err := compress(ctx, opts, prober, pl, stdout); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func parseArgs(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("compress", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { printUsage(fs) }

	var (
		opts       options
		mode       string
		sizeMB     float64
		preset     string
		resolution string
	)
	fs.StringVar(&mode, "mode", "quality", "compression mode: target-size, quality or resolution")
	fs.Float64Var(&sizeMB, "size", 0, "target size in MB (target-size mode)")
	fs.StringVar(&preset, "preset", string(planner.PresetMedium), "quality preset: low, medium or high")
	fs.StringVar(&resolution, "resolution", "720p", "target resolution (resolution mode)")
	fs.BoolVar(&opts.estimate, "estimate", false, "print a size estimate without encoding")
	fs.StringVar(&opts.output, "o", "", "output path (default: compressed_<input>.mp4 next to the input)")
	fs.StringVar(&opts.ffmpeg, "ffmpeg", envOr("FFMPEG_PATH", "ffmpeg"), "ffmpeg binary")
	fs.StringVar(&opts.ffprobe, "ffprobe", envOr("FFPROBE_PATH", "ffprobe"), "ffprobe binary")
	fs.DurationVar(&opts.timeout, "timeout", transcoder.DefaultTimeout, "encode deadline")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return nil, errors.New("exactly one input file is required")
	}

	m, err := planner.ParseMode(mode)
	if err != nil {
		return nil, err
	}
	req := planner.Request{Mode: m, SourcePath: fs.Arg(0)}
	switch m {
	case planner.ModeTargetSize:
		req.TargetSizeMB = sizeMB
	case planner.ModeQuality:
		req.Preset = planner.Preset(strings.ToLower(preset))
	case planner.ModeResolution:
		req.Preset = planner.Preset(strings.ToLower(preset))
		if req.TargetHeight, err = planner.ParseResolution(resolution); err != nil {
			return nil, err
		}
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	opts.request = req

	if opts.output == "" {
		opts.output = defaultOutput(req.SourcePath)
	}
	return &opts, nil
}

func defaultOutput(src string) string {
	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	return filepath.Join(filepath.Dir(src), "compressed_"+base+".mp4")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// compress encodes the input through a single-slot Manager so that state
// changes can be polled and shown while ffmpeg runs.
func compress(ctx context.Context, opts *options, prober *probe.Prober, pl *planner.Planner, out io.Writer) error {
	scratch, err := os.MkdirTemp("", "compress-")
	if err != nil {
		return fmt.Errorf("creating scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	trans := transcoder.New(transcoder.Config{
		FFmpegPath: opts.ffmpeg,
		WorkDir:    filepath.Join(scratch, "work"),
		OutputDir:  filepath.Join(scratch, "outputs"),
		Timeout:    opts.timeout,
	}, prober, pl)
	manager := transcoder.NewManager(trans, workers.NewLimiter(1))
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = manager.Shutdown(shutdownCtx)
	}()

	id, err := manager.Submit(opts.request, transcoder.SubmitOptions{Filename: filepath.Base(opts.request.SourcePath)})
	if err != nil {
		return err
	}

	res := watch(ctx, manager, id, out)
	if res.Err != nil {
		return res.Err
	}

	if err := moveArtifact(res.ArtifactPath, opts.output); err != nil {
		return err
	}

	orig := res.Probe.FileSizeBytes
	fmt.Fprintf(out, "Wrote %s\n", opts.output)
	fmt.Fprintf(out, "  %s -> %s (%.1f%% smaller) in %s\n",
		formatSize(orig), formatSize(res.OutputSizeBytes),
		100*(1-float64(res.OutputSizeBytes)/float64(orig)), res.Duration.Round(time.Second))
	return nil
}

// watch waits for the job, redrawing a status line when out is a terminal.
// Cancelling ctx cancels the job.
func watch(ctx context.Context, manager *transcoder.Manager, id string, out io.Writer) *transcoder.Result {
	interactive := isTerminal(out)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	done := make(chan *transcoder.Result, 1)
	go func() {
		res, _ := manager.Wait(context.Background(), id)
		done <- res
	}()

	start := time.Now()
	var last transcoder.State
	for {
		select {
		case res := <-done:
			if interactive {
				fmt.Fprint(out, "\r\033[K")
			}
			return res
		case <-ctx.Done():
			_ = manager.Cancel(id)
			ctx = context.Background()
		case <-ticker.C:
			status, ok := manager.Get(id)
			if !ok {
				continue
			}
			switch {
			case interactive:
				fmt.Fprintf(out, "\r\033[K%-12s %s", status.State, time.Since(start).Round(time.Second))
			case status.State != last:
				fmt.Fprintf(out, "%s\n", status.State)
			}
			last = status.State
		}
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// moveArtifact renames src to dst, copying across filesystems.
func moveArtifact(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening artifact: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("writing output: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("writing output: %w", err)
	}
	return os.Remove(src)
}

func printEstimate(out io.Writer, est *planner.Estimate) {
	fmt.Fprintf(out, "Mode:       %s\n", est.Mode)
	fmt.Fprintf(out, "Original:   %.2f MB\n", est.OriginalSizeMB)
	fmt.Fprintf(out, "Estimated:  %.2f MB (%.1f%% smaller)\n", est.EstimatedSizeMB, est.ReductionPercent)
	if est.Heuristic {
		fmt.Fprintln(out, "Estimate is approximate.")
	}
	for _, n := range est.Notes {
		fmt.Fprintf(out, "Note: %s\n", n)
	}
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func printUsage(fs *flag.FlagSet) {
	out := fs.Output()
	fmt.Fprintln(out, "Usage: compress [flags] <input>")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Examples:")
	fmt.Fprintln(out, "  compress -mode target-size -size 25 clip.mov")
	fmt.Fprintln(out, "  compress -mode resolution -resolution 480p -preset low clip.mp4")
	fmt.Fprintln(out, "  compress -estimate -mode quality -preset high clip.mkv")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Flags:")
	fs.PrintDefaults()
}
