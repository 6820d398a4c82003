package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:     "pkit",
	Short:   "Explore pipelinekit command pipelines",
	Version: version,
	Long: `pkit is a CLI front-end for pipelinekit: it registers a handful of
sample command pipelines against a live Bus and lets you dispatch them,
inspect their middleware composition, and replay recorded outcomes.`,
}

func main() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(listCmd, demoCmd, inspectCmd, replayCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the registered demo pipelines",
	Run: func(_ *cobra.Command, _ []string) {
		for _, d := range allDemos() {
			fmt.Printf("  %-10s %s\n", d.Name(), d.Description())
		}
	},
}

var demoCmd = &cobra.Command{
	Use:   "demo <name> <arg>",
	Short: "Dispatch a demo pipeline with the given argument",
	Args:  cobra.ExactArgs(2),
	ValidArgsFunction: func(_ *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) != 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		var names []string
		for _, d := range allDemos() {
			names = append(names, d.Name())
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		d, ok := demoByName(args[0])
		if !ok {
			return fmt.Errorf("unknown demo: %s\n\nRun 'pkit list' to see available demos", args[0])
		}
		out, err := d.Run(cmd.Context(), args[1])
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <name>",
	Short: "Print a demo pipeline's middleware chain",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		d, ok := demoByName(args[0])
		if !ok {
			return fmt.Errorf("unknown demo: %s\n\nRun 'pkit list' to see available demos", args[0])
		}
		fmt.Println(d.Diagram())
		return nil
	},
}

var replayLimit int

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay recorded outcomes from demos dispatched this session",
	RunE: func(_ *cobra.Command, _ []string) error {
		records := sharedRecorder.Recent(replayLimit)
		if len(records) == 0 {
			fmt.Println("no recorded executions; run 'pkit demo <name> <arg>' first")
			return nil
		}
		for _, r := range records {
			status := "ok"
			if !r.Success {
				status = fmt.Sprintf("error: %v", r.Err)
			}
			fmt.Printf("%-10s %-10s %-8s %s\n", r.PipelineName, r.CorrelationID[:8], r.Duration(), status)
		}
		return nil
	},
}

func init() {
	replayCmd.Flags().IntVar(&replayLimit, "limit", 20, "maximum number of records to print")
}
