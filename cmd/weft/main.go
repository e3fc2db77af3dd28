// Package main provides the Weft ML Framework CLI.
package main

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/weft-ml/weft/graph"
	"github.com/weft-ml/weft/trace"
	"github.com/weft-ml/weft/transform"
)

const version = "v0.0.1-dev"

func main() {
	root := &cobra.Command{
		Use:          "weft",
		Short:        "Weft ML Framework - traced, transformable computation graphs for Go",
		SilenceUsage: true,
	}
	root.AddCommand(versionCmd(), demoCmd(), dotCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "Weft ML Framework %s\n", version)
		},
	}
}

// demoFunc is f(x) = x*x + 1, the running example for every
// transformation in the demo and dot commands.
func demoFunc(args []trace.Value) []trace.Value {
	x := args[0]
	return []trace.Value{x.Mul(x).AddScalar(1)}
}

func demoCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Trace, differentiate, batch and compile f(x) = x*x + 1",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			log := hclog.NewNullLogger()
			if verbose {
				log = hclog.New(&hclog.LoggerOptions{Name: "weft", Level: hclog.Debug})
			}

			grad := transform.Jit(transform.Grad(demoFunc), transform.WithLogger(log))
			res, err := grad.Run([]*graph.Literal{graph.Scalar(2, graph.Float64)})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "grad(f)(2.0)        = %g\n", res[0].Item())

			batched := transform.Jit(transform.Vmap(demoFunc), transform.WithLogger(log))
			xs, err := graph.NewLiteral([]float64{1, 2, 3}, graph.Shape{3}, graph.Float64)
			if err != nil {
				return err
			}
			bres, err := batched.Run([]*graph.Literal{xs})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "vmap(f)([1 2 3])    = %v\n", bres[0].Data)

			compiled := transform.Jit(demoFunc, transform.WithLogger(log))
			for i := 0; i < 3; i++ {
				if _, err := compiled.Run([]*graph.Literal{graph.Scalar(2, graph.Float64)}); err != nil {
					return err
				}
			}
			stats := compiled.Stats()
			fmt.Fprintf(out, "jit(f) cache        = %d hits, %d misses, %d entries\n",
				stats.Hits, stats.Misses, stats.Entries)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	return cmd
}

func dotCmd() *cobra.Command {
	var optimized bool
	cmd := &cobra.Command{
		Use:   "dot",
		Short: "Print the demo function's graph in Graphviz format",
		RunE: func(cmd *cobra.Command, _ []string) error {
			g, err := trace.Build(transform.Grad(demoFunc),
				[]trace.ArgSpec{{Shape: graph.Shape{}, DType: graph.Float64}})
			if err != nil {
				return err
			}
			if optimized {
				g = transform.Optimize(g, hclog.NewNullLogger())
			}
			fmt.Fprint(cmd.OutOrStdout(), g.Dot())
			return nil
		},
	}
	cmd.Flags().BoolVar(&optimized, "optimized", false, "run the optimization pipeline first")
	return cmd
}
