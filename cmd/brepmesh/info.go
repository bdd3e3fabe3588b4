package main

import (
	"context"
	"fmt"
	"math"

	"github.com/chazu/brepmesh/pkg/tessellate"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

var verify bool

var infoCmd = &cobra.Command{
	Use:   "info <script>",
	Short: "Report per-part mesh statistics",
	Long: `Evaluate and mesh a scene script without writing output, then print
the triangle count, mesher status and failures of every part. With --verify
each part is also measured against an implicit model of its primitive.`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

func init() {
	infoCmd.Flags().BoolVar(&verify, "verify", false, "Measure each part's deviation from the implicit surface")
	rootCmd.AddCommand(infoCmd)
}

func countFailed(parts []tessellate.Part) int {
	return lo.CountBy(parts, func(p tessellate.Part) bool { return !p.Report.OK() })
}

func runInfo(cmd *cobra.Command, args []string) error {
	cfg, err := settings(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("verify") {
		cfg.Verify = verify
	}
	src, err := readScript(args[0])
	if err != nil {
		return err
	}

	res, err := newSession(cfg, newLogger()).Run(context.Background(), src)
	if err != nil {
		return err
	}
	if err := scriptErrors(res); err != nil {
		return err
	}
	for _, w := range res.Warnings {
		fmt.Printf("Warning: %s\n", w.Message)
	}

	fmt.Printf("Script: %s\n", args[0])
	fmt.Printf("Deflection: %g (relative: %v), angle: %g rad\n", cfg.Mesh.Deflection, cfg.Mesh.Relative, cfg.Mesh.Angle)
	fmt.Printf("Parts: %d\n\n", len(res.Parts))

	for _, p := range res.Parts {
		r := p.Report
		fmt.Printf("%s\n", p.Name)
		fmt.Printf("  Status:    %s\n", r.Status)
		fmt.Printf("  Faces:     %d, edges: %d\n", r.Faces, r.Edges)
		fmt.Printf("  Triangles: %d, vertices: %d\n", p.Mesh.TriangleCount(), p.Mesh.VertexCount())
		if len(r.Truncated) > 0 {
			fmt.Printf("  Truncated: %d entities hit a point limit\n", len(r.Truncated))
		}
		if !math.IsNaN(p.Deviation) {
			fmt.Printf("  Deviation: %.6f\n", p.Deviation)
		}
		for _, f := range r.Failures {
			fmt.Printf("  Failed %s %s: %v\n", f.Kind, f.Entity, f.Err)
		}
	}

	fmt.Printf("\nTotal: %d triangles, %d part(s) with failures, %v\n", res.Triangles(), countFailed(res.Parts), res.Duration)
	if cfg.Verify {
		worst := lo.MaxBy(res.Parts, func(a, b tessellate.Part) bool { return a.Deviation > b.Deviation })
		if len(res.Parts) > 0 {
			fmt.Printf("Worst deviation: %.6f (%s)\n", worst.Deviation, worst.Name)
		}
	}
	return nil
}
