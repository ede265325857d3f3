package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/annotator/internal/api"
	"github.com/jackzampolin/annotator/internal/llmcall"
)

var (
	callsKind   string
	callsFailed bool
	callsLimit  int
	callsOffset int
)

var callsCmd = &cobra.Command{
	Use:   "calls <log>",
	Short: "List recorded model calls",
	Long: `List prompts and responses recorded by "annotator run --record".

Examples:
  annotator calls calls.jsonl --failed
  annotator calls calls.jsonl --kind ner --limit 5 -o yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, closeFn, err := open(args[0])
		if err != nil {
			return err
		}
		defer closeFn()

		f := llmcall.QueryFilter{
			TaskKind: callsKind,
			Limit:    callsLimit,
			Offset:   callsOffset,
		}
		if callsFailed {
			ok := false
			f.Success = &ok
		}
		calls, err := llmcall.List(r, f)
		if err != nil {
			return err
		}
		if calls == nil {
			calls = []llmcall.Call{}
		}
		return api.Output(calls)
	},
}

func init() {
	callsCmd.Flags().StringVar(&callsKind, "kind", "", "only calls for this task kind")
	callsCmd.Flags().BoolVar(&callsFailed, "failed", false, "only failed calls")
	callsCmd.Flags().IntVar(&callsLimit, "limit", 0, "maximum calls to list (0 = all)")
	callsCmd.Flags().IntVar(&callsOffset, "offset", 0, "matching calls to skip")

	rootCmd.AddCommand(callsCmd)
}
