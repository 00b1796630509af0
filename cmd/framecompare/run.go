package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tendant/framecompare/internal/app"
	"github.com/tendant/framecompare/internal/workflows"
	"github.com/tendant/framecompare/pkg/compare"
)

const defaultInterval = 150

// runOptions are the flags of the run command. Per-track flags are index
// aligned with --source; a single value applies to every track.
type runOptions struct {
	sources        []string
	names          []string
	roles          []string
	sourceVsEncode bool

	trimStart []int
	trimEnd   []int
	padStart  []int
	padEnd    []int

	crops       []string
	resolutions []string

	interval   int
	frames     string
	frameRange string
	picked     string

	upload bool
	show   string
	season int
	public bool
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Extract comparison stills and optionally publish them",
	Example: `  framecompare run -s source.mkv -s encode.mkv --source-vs-encode --interval 200
  framecompare run -s a.mkv -s b.mkv -n BD -n WEB --crop movie-240 --resolution 1080p \
      --frames 1000,2000,3000-3002 --upload --show "Some Movie"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := runOpts.request()
		if err != nil {
			return err
		}
		return execute(cmd, req)
	},
}

func init() {
	f := runCmd.Flags()
	f.StringArrayVarP(&runOpts.sources, "source", "s", nil, "video file or reference (content:, s3:, http(s)://); repeat per track")
	f.StringArrayVarP(&runOpts.names, "name", "n", nil, "display name per track")
	f.StringArrayVar(&runOpts.roles, "role", nil, "reference or candidate per track (default: first is reference)")
	f.BoolVar(&runOpts.sourceVsEncode, "source-vs-encode", false, "name tracks Source, Encode1, ... when no names are given")

	f.IntSliceVar(&runOpts.trimStart, "trim-start", nil, "frames removed from the start, per track")
	f.IntSliceVar(&runOpts.trimEnd, "trim-end", nil, "frames removed from the end, per track")
	f.IntSliceVar(&runOpts.padStart, "pad-start", nil, "blank frames inserted at the start, per track")
	f.IntSliceVar(&runOpts.padEnd, "pad-end", nil, "blank frames appended at the end, per track")

	f.StringArrayVar(&runOpts.crops, "crop", nil, "crop per track: preset, auto, none or left,top,right,bottom")
	f.StringArrayVar(&runOpts.resolutions, "resolution", nil, "target size per track: preset, none or WxH")

	f.IntVar(&runOpts.interval, "interval", defaultInterval, "take a still every N frames")
	f.StringVar(&runOpts.frames, "frames", "", "explicit frames, e.g. 100,200,300-305")
	f.StringVar(&runOpts.frameRange, "range", "", "frames start:end stepped by --interval")
	f.StringVar(&runOpts.picked, "picked", "", "frames picked on the untrimmed timeline, adjusted by trim and pad")

	f.BoolVar(&runOpts.upload, "upload", false, "publish the stills to slow.pics")
	f.StringVar(&runOpts.show, "show", "", "show or movie name used in the collection name")
	f.IntVar(&runOpts.season, "season", 0, "season number for the collection name")
	f.BoolVar(&runOpts.public, "public", false, "make the collection public")

	runCmd.MarkFlagRequired("source")
}

// request turns the flags into a validated compare request
func (o runOptions) request() (compare.Request, error) {
	req := compare.Request{Job: compare.JobCompare}

	names := o.names
	if len(names) == 0 {
		names = compare.DefaultNames(len(o.sources), o.sourceVsEncode)
	}
	if len(names) != len(o.sources) {
		return req, fmt.Errorf("got %d names for %d sources", len(names), len(o.sources))
	}

	for i, src := range o.sources {
		role := compare.RoleCandidate
		if i == 0 {
			role = compare.RoleReference
		}
		if r := pick(o.roles, i, ""); r != "" {
			role = compare.Role(strings.ToLower(r))
		}

		crop, err := compare.ParseCrop(pick(o.crops, i, ""))
		if err != nil {
			return req, err
		}
		res, err := compare.ParseResolution(pick(o.resolutions, i, ""))
		if err != nil {
			return req, err
		}

		req.Tracks = append(req.Tracks, compare.Track{
			Path:       src,
			Name:       names[i],
			Role:       role,
			TrimStart:  pick(o.trimStart, i, 0),
			TrimEnd:    pick(o.trimEnd, i, 0),
			PadStart:   pick(o.padStart, i, 0),
			PadEnd:     pick(o.padEnd, i, 0),
			Crop:       crop,
			Resolution: res,
		})
	}

	frames, err := o.frameSpec()
	if err != nil {
		return req, err
	}
	req.Frames = frames

	if o.upload {
		req.Upload = &compare.UploadOptions{ShowName: o.show, Season: o.season, Public: o.public}
	}

	return req, req.Validate()
}

func (o runOptions) frameSpec() (compare.FrameSpec, error) {
	switch {
	case o.picked != "":
		frames, err := compare.ParseFrameList(o.picked)
		return compare.FrameSpec{Mode: compare.FramesPicked, Frames: frames}, err
	case o.frames != "":
		frames, err := compare.ParseFrameList(o.frames)
		return compare.FrameSpec{Mode: compare.FramesList, Frames: frames}, err
	case o.frameRange != "":
		frames, err := compare.ParseFrameRange(o.frameRange, o.interval)
		return compare.FrameSpec{Mode: compare.FramesList, Frames: frames}, err
	default:
		return compare.FrameSpec{Mode: compare.FramesInterval, Interval: o.interval}, nil
	}
}

// pick returns values[i], the only value when one was given for all tracks, or def
func pick[T any](values []T, i int, def T) T {
	switch {
	case len(values) == 1:
		return values[0]
	case i < len(values):
		return values[i]
	default:
		return def
	}
}

// execute runs one request in this process and prints its outcome
func execute(cmd *cobra.Command, req compare.Request) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	progress := app.Progress{
		Screenshots: newBar("screenshots").update,
		Uploads:     newBar("uploading").update,
	}

	components, err := app.Build(ctx, cfg, log, progress)
	if err != nil {
		return err
	}
	defer components.Close()

	runner := workflows.NewWorkflowRunner(nil)
	components.Register(runner, log, progress)

	job := req.JobOrDefault()
	result, err := runner.Run(&workflows.WorkflowContext{
		Ctx:     ctx,
		Request: req,
		RunID:   workflows.NewRunID(job),
	})
	if result != nil && result.Summary != nil {
		printSummary(cmd, result.Summary)
	}
	return err
}

func printSummary(cmd *cobra.Command, s *workflows.Summary) {
	out := cmd.OutOrStdout()

	if s.Provider != "" {
		fmt.Fprintf(out, "provider:    %s\n", s.Provider)
	}
	if s.Screenshots != nil {
		fmt.Fprintf(out, "screenshots: %d written, %d failed in %s\n", s.Screenshots.Success, s.Screenshots.Errors, s.OutputDir)
	}
	if len(s.Dropped) > 0 {
		fmt.Fprintf(out, "dropped:     %s\n", strings.Join(s.Dropped, ", "))
	}
	for _, i := range s.Issues {
		fmt.Fprintf(out, "  %s\n", i)
	}
	for _, w := range s.Warnings {
		fmt.Fprintf(out, "warning:     %s\n", w)
	}
	if s.Status == workflows.StatusStopped {
		fmt.Fprintln(out, "stopped before completion")
	}
	label := "comparison:"
	if s.Status != workflows.StatusSucceeded && len(s.Collections) > 0 {
		fmt.Fprintf(out, "upload incomplete: %d part(s) were published before the failure\n", len(s.Collections))
		label = "partial:"
	}
	for i, url := range s.URLs() {
		if i == 0 {
			fmt.Fprintf(out, "%-12s %s\n", label, url)
			continue
		}
		fmt.Fprintf(out, "             %s\n", url)
	}
}
