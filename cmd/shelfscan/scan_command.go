package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"shelfscan/internal/api"
	"shelfscan/internal/camera"
	"shelfscan/internal/config"
	"shelfscan/internal/frame"
	"shelfscan/internal/imageio"
	"shelfscan/internal/lookup"
	"shelfscan/internal/overlay"
	"shelfscan/internal/session"
)

type fileScan struct {
	File    string             `json:"file"`
	Width   int                `json:"width,omitempty"`
	Height  int                `json:"height,omitempty"`
	Codes   []api.Code         `json:"codes"`
	Results []api.LookupResult `json:"results"`
	Error   string             `json:"error,omitempty"`
}

func newScanCommand(ctx *commandContext) *cobra.Command {
	var (
		asJSON      bool
		useDaemon   bool
		annotateDir string
	)
	cmd := &cobra.Command{
		Use:   "scan <image>...",
		Short: "Decode every barcode in still images and look each one up",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				scans []fileScan
				err   error
			)
			if useDaemon {
				scans, err = scanViaDaemon(cmd.Context(), ctx, args)
			} else {
				scans, err = scanLocally(cmd.Context(), ctx, args, annotateDir)
			}
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, scans)
			}

			stdout := cmd.OutOrStdout()
			failed := 0
			for i, scan := range scans {
				if i > 0 {
					fmt.Fprintln(stdout)
				}
				if scan.Error != "" {
					failed++
					fmt.Fprintf(stdout, "%s: %s\n", scan.File, scan.Error)
					continue
				}
				fmt.Fprintf(stdout, "%s (%dx%d): %s\n", scan.File, scan.Width, scan.Height, formatCount(len(scan.Codes), "code"))
				renderResults(stdout, scan.Results)
			}
			if failed == len(scans) {
				return errors.New("no image could be scanned")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")
	cmd.Flags().BoolVar(&useDaemon, "daemon", false, "Upload images to the running daemon instead of decoding in process")
	cmd.Flags().StringVar(&annotateDir, "annotate", "", "Write annotated PNG copies into this directory")
	return cmd
}

func scanLocally(ctx context.Context, cmdCtx *commandContext, files []string, annotateDir string) ([]fileScan, error) {
	components, err := cmdCtx.components()
	if err != nil {
		return nil, err
	}
	defer components.Close()

	if annotateDir != "" {
		if err := os.MkdirAll(annotateDir, 0o755); err != nil {
			return nil, fmt.Errorf("create annotate directory: %w", err)
		}
	}

	scans := make([]fileScan, 0, len(files))
	for _, path := range files {
		scan := fileScan{File: path, Codes: []api.Code{}, Results: []api.LookupResult{}}
		img, err := imageio.DecodeFile(path)
		if err != nil {
			scan.Error = err.Error()
			scans = append(scans, scan)
			continue
		}
		codes, err := components.Session.SubmitImage(img)
		if err != nil {
			scan.Error = err.Error()
			scans = append(scans, scan)
			continue
		}
		results := components.Session.ResolveCodes(ctx, codes)
		scan.Width, scan.Height = img.Width, img.Height
		scan.Codes = api.FromCodes(codes)
		scan.Results = api.FromResults(results)
		if annotateDir != "" && len(codes) > 0 {
			if err := writeAnnotated(annotateDir, path, overlay.Draw(img, codes)); err != nil {
				scan.Error = err.Error()
			}
		}
		scans = append(scans, scan)
	}
	return scans, nil
}

func writeAnnotated(dir, source string, img *frame.Frame) error {
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	target := filepath.Join(dir, base+".annotated.png")
	var buf bytes.Buffer
	if err := imageio.EncodePNG(&buf, img); err != nil {
		return err
	}
	return os.WriteFile(target, buf.Bytes(), 0o644)
}

func scanViaDaemon(ctx context.Context, cmdCtx *commandContext, files []string) ([]fileScan, error) {
	client, err := cmdCtx.client()
	if err != nil {
		return nil, err
	}
	scans := make([]fileScan, 0, len(files))
	for _, path := range files {
		scan := fileScan{File: path, Codes: []api.Code{}, Results: []api.LookupResult{}}
		data, err := os.ReadFile(path)
		if err != nil {
			scan.Error = err.Error()
			scans = append(scans, scan)
			continue
		}
		resp, err := client.Scan(ctx, data)
		if err != nil {
			if errors.Is(err, api.ErrDaemonUnreachable) {
				return nil, fmt.Errorf("%w (run `shelfscan start` or drop --daemon)", err)
			}
			scan.Error = err.Error()
			scans = append(scans, scan)
			continue
		}
		scan.Width, scan.Height = resp.Width, resp.Height
		scan.Codes, scan.Results = resp.Codes, resp.Results
		scans = append(scans, scan)
	}
	return scans, nil
}

func newReplayCommand(ctx *commandContext) *cobra.Command {
	var (
		fps       int
		frameSkip int
		threshold int
		cooldown  float64
		timeout   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "replay <dir|image>...",
		Short: "Run recorded frames through the live pipeline and print each scan",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			files, err := replayFiles(args)
			if err != nil {
				return err
			}
			components, err := ctx.components()
			if err != nil {
				return err
			}
			defer components.Close()

			if fps <= 0 {
				fps = cfg.Camera.FPS
			}
			source := camera.NewReplayFiles(files, fps, false, ctx.localLogger())
			sess, err := session.New(session.Options{
				Decoder:  components.Decoder,
				Lookup:   components.Lookup,
				Source:   source,
				LockPath: cfg.DeviceLockPath,
				Logger:   ctx.localLogger(),
			})
			if err != nil {
				return err
			}

			settings := replaySettings(cfg, frameSkip, threshold)
			if cmd.Flags().Changed("cooldown") {
				settings.Cooldown = time.Duration(cooldown * float64(time.Second))
			}
			runCtx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			if err := sess.Start(runCtx, session.ModeLive, settings); err != nil {
				return err
			}
			defer sess.Stop()

			results := drainReplay(runCtx, sess, len(files), time.Second/time.Duration(max(fps, 1)), cmd.OutOrStdout())
			return summarizeReplay(cmd.OutOrStdout(), sess.Latest(), results)
		},
	}
	cmd.Flags().IntVar(&fps, "fps", 0, "Frames per second to replay at (0 uses camera.fps)")
	cmd.Flags().IntVar(&frameSkip, "frame-skip", 0, "Decode one frame in N (0 keeps the configured value)")
	cmd.Flags().IntVar(&threshold, "threshold", 0, "Consecutive sightings before a scan is reported (0 keeps the configured value)")
	cmd.Flags().Float64Var(&cooldown, "cooldown", 0, "Seconds before the same code is reported again")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "Give up after this long")
	return cmd
}

func replaySettings(cfg *config.Config, frameSkip, threshold int) session.Settings {
	settings := session.SettingsFromConfig(cfg)
	if frameSkip > 0 {
		settings.FrameSkip = frameSkip
	}
	if threshold > 0 {
		settings.StreakThreshold = threshold
	}
	return settings
}

func replayFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		listed, err := imageio.ListDir(arg)
		if err != nil {
			return nil, err
		}
		files = append(files, listed...)
	}
	if len(files) == 0 {
		return nil, errors.New("no images to replay")
	}
	return files, nil
}

// drainReplay prints lookup results as they resolve and returns once every
// frame was delivered (or delivery stalled) and no lookup is pending.
func drainReplay(ctx context.Context, sess *session.Session, frames int, interval time.Duration, out io.Writer) []lookup.Result {
	const poll = 20 * time.Millisecond
	stall := 2*interval + time.Second

	seen := make(map[string]struct{})
	var results []lookup.Result
	var lastFrames uint64
	lastProgress := time.Now()
	for {
		snap := sess.Latest()
		for i := len(snap.Recent) - 1; i >= 0; i-- {
			res := snap.Recent[i]
			if _, ok := seen[res.Event.ID]; ok {
				continue
			}
			seen[res.Event.ID] = struct{}{}
			results = append(results, res)
			line := fmt.Sprintf("%s %s %s", res.Event.EmittedAt.Format("15:04:05.000"), res.Event.Payload, res.Status)
			if item := res.Event.MatchedItem; item != nil {
				line += fmt.Sprintf(": #%d %s", item.ID, item.Name)
			}
			fmt.Fprintln(out, line)
		}

		if snap.Frames != lastFrames {
			lastFrames = snap.Frames
			lastProgress = time.Now()
		}
		delivered := snap.Frames >= uint64(frames) || time.Since(lastProgress) > stall || snap.Camera != nil
		if delivered && snap.LookupStatus != session.LookupPending {
			return results
		}
		select {
		case <-ctx.Done():
			return results
		case <-time.After(poll):
		}
	}
}

func summarizeReplay(out io.Writer, snap session.Snapshot, results []lookup.Result) error {
	fmt.Fprintf(out, "Replayed %s, reported %s", formatCount(int(snap.Frames), "frame"), formatCount(len(results), "scan"))
	if snap.Dropped > 0 {
		fmt.Fprintf(out, " (%d dropped)", snap.Dropped)
	}
	fmt.Fprintln(out)
	if snap.Camera != nil {
		return fmt.Errorf("%s (%s)", snap.Camera.Message, snap.Camera.Guidance)
	}
	return nil
}
