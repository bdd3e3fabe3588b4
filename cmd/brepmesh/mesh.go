package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/chazu/brepmesh/pkg/kernel"
	"github.com/spf13/cobra"
)

var outputPath string

var meshCmd = &cobra.Command{
	Use:   "mesh <script>",
	Short: "Mesh a scene script and write a binary STL",
	Long: `Evaluate a scene script, tessellate every placed primitive and write
all parts into one binary STL file. Entities that fail to mesh are reported
and left out; the remaining parts are still written.`,
	Args: cobra.ExactArgs(1),
	RunE: runMesh,
}

func init() {
	meshCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output STL path (default: script name with .stl)")
	rootCmd.AddCommand(meshCmd)
}

func stlPath(script string) string {
	if outputPath != "" {
		return outputPath
	}
	return strings.TrimSuffix(script, filepath.Ext(script)) + ".stl"
}

func runMesh(cmd *cobra.Command, args []string) error {
	cfg, err := settings(cmd)
	if err != nil {
		return err
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

	out := stlPath(args[0])
	if err := kernel.SaveSTL(out, res.Meshes()...); err != nil {
		return err
	}
	fmt.Printf("Wrote %s: %d parts, %d triangles in %v\n", out, len(res.Parts), res.Triangles(), res.Duration)
	if !res.OK() {
		return fmt.Errorf("%d part(s) have unmeshed entities", countFailed(res.Parts))
	}
	return nil
}
