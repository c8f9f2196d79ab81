// chronolog demo binary: synthesizes a small recording, pushes it
// through a chunk store and query cache, and prints what comes back.
// The library itself defines no CLI surface; this is a host application
// used for smoke-testing and exploration.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/c2h5oh/datasize"
	"github.com/spf13/cobra"

	"chronolog/internal/cache"
	"chronolog/internal/chunk"
	"chronolog/internal/data"
	"chronolog/internal/query"
	"chronolog/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "chronolog",
		Short:         "chronolog columnar temporal store demo",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(demoCmd())
	return root
}

func demoCmd() *cobra.Command {
	var (
		numFrames int
		gcTarget  string
		verbose   bool
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Record synthetic point data, query it, print stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

			target, err := datasize.ParseString(gcTarget)
			if err != nil {
				return fmt.Errorf("parsing --gc-target: %w", err)
			}

			return runDemo(cmd, numFrames, int64(target.Bytes()), logger)
		},
	}

	cmd.Flags().IntVar(&numFrames, "frames", 100, "number of frames to record")
	cmd.Flags().StringVar(&gcTarget, "gc-target", "1MB", "byte target for the GC pass")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	return cmd
}

func runDemo(cmd *cobra.Command, numFrames int, gcTarget int64, logger *slog.Logger) error {
	reg := data.NewRegistry()
	data.RegisterExamples(reg)

	st := store.New(store.Config{Logger: logger})
	times := store.NewTimesPerTimeline()
	st.RegisterSubscriber(times)

	caches, err := cache.New(cache.Config{Store: st, Registry: reg, Logger: logger})
	if err != nil {
		return err
	}
	defer caches.Close()

	frame := data.SequenceTimeline("frame")
	entity := data.ParseEntityPath("world/points")
	gen := data.NewRowIDGenerator(nil)

	// One chunk per frame; adjacent frames compact in the store.
	for i := 0; i < numFrames; i++ {
		f := float32(i)
		cells := map[data.ComponentDescriptor][]byte{
			data.PositionsDescriptor: data.MustEncode(data.Position2DCodec,
				data.Position2D{X: f, Y: -f},
				data.Position2D{X: f * 2, Y: f * 2},
			),
			data.ColorsDescriptor: data.MustEncode(data.ColorCodec,
				data.Color(0xff0000ff), data.Color(0x00ff00ff)),
		}
		ch, err := chunk.NewBuilder(entity).
			WithRow(gen.Next(), data.TimePoint{}.With(frame, data.TimeInt(i)), cells).
			Build()
		if err != nil {
			return err
		}
		if _, err := st.InsertChunk(ch); err != nil {
			return err
		}
	}

	// A static label overriding whatever was logged temporally.
	staticChunk, err := chunk.NewBuilder(entity).
		WithRow(gen.Next(), nil, map[data.ComponentDescriptor][]byte{
			data.LabelsDescriptor: data.MustEncode(data.LabelCodec, data.Label("demo points")),
		}).
		Build()
	if err != nil {
		return err
	}
	if _, err := st.InsertChunk(staticChunk); err != nil {
		return err
	}

	mid := data.TimeInt(numFrames / 2)
	view, err := caches.LatestAt(
		query.LatestAtQuery{Timeline: frame.Name, At: mid},
		entity, data.Points2DArchetype,
	)
	if err != nil {
		return err
	}
	cmd.Printf("latest-at frame=%d: time=%d components=%d positions=%v label=%v\n",
		mid, view.Time, len(view.Batches),
		data.As[data.Position2D](view.Batches[data.PositionsDescriptor]),
		data.As[data.Label](view.Batches[data.LabelsDescriptor]),
	)

	count := 0
	for _, err := range caches.Range(
		query.RangeQuery{Timeline: frame.Name, Range: data.NewTimeRange(0, data.TimeInt(numFrames))},
		entity, data.Points2DArchetype,
	) {
		if err != nil {
			return err
		}
		count++
	}
	cmd.Printf("range rows: %d (incl. static)\n", count)
	cmd.Printf("frame times indexed: %d\n", len(times.Times(frame.Name)))

	if events := st.GC(store.GCPolicy{TargetBytes: gcTarget, ProtectLatestN: 1}); len(events) > 0 {
		cmd.Printf("gc evicted %d chunks\n", len(events))
	}

	stats := st.Stats()
	cmd.Printf("store: chunks=%d bytes=%s generation=%d\n",
		stats.Chunks, datasize.ByteSize(stats.TotalBytes).HumanReadable(), stats.Generation)
	return nil
}
