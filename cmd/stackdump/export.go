package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/proto"

	stacktrace "github.com/berrill/StackTrace"
	"github.com/berrill/StackTrace/internal/exporter"
)

var (
	exportFormat string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the aggregated goroutine stacks as a profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		ms := stacktrace.GetAllCallStacks()
		stacktrace.CleanupStackTrace(ms)
		samples := exporter.Flatten(ms)

		out, err := os.Create(exportOutput)
		if err != nil {
			return err
		}
		defer out.Close()

		switch exportFormat {
		case "pprof":
			p, err := exporter.BuildPprofProfile(samples, "threads", "count")
			if err != nil {
				return err
			}
			return exporter.WriteProfileGzip(p, out)
		case "otlp":
			data := exporter.BuildOtlpProfile(samples, func() uint64 { return uint64(time.Now().UnixNano()) })
			raw, err := proto.Marshal(data)
			if err != nil {
				return err
			}
			_, err = out.Write(raw)
			return err
		case "folded":
			return exporter.WriteFoldedStacks(exporter.BuildFoldedStacks(samples), out)
		default:
			return fmt.Errorf("unknown format %q (want pprof, otlp or folded)", exportFormat)
		}
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "pprof", "output format: pprof, otlp or folded")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "stacks.out", "output file")
	rootCmd.AddCommand(exportCmd)
}
