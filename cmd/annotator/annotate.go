package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/annotator/internal/api"
	"github.com/jackzampolin/annotator/internal/doc"
	"github.com/jackzampolin/annotator/internal/llm"
	"github.com/jackzampolin/annotator/internal/llmcall"
	"github.com/jackzampolin/annotator/internal/pipeline"
)

var (
	batchSize  int
	recordPath string
)

var promptCmd = &cobra.Command{
	Use:   "prompt <docs>",
	Short: "Render one prompt per document",
	Long: `Render the task prompt for each document without calling a model.

Documents are read from a .jsonl file of {"text": ...} records, a plain
text file (one document) or "-" for JSONL on stdin.

Examples:
  annotator prompt docs.jsonl
  annotator prompt --task news-ner article.txt -o yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := cfgMgr.Get()
		a, err := buildAnnotator(cfg)
		if err != nil {
			return err
		}
		docs, err := readDocs(args[0], doc.TokenizerFor(a.Config().Lang))
		if err != nil {
			return err
		}
		prompts, err := a.GeneratePrompts(cmd.Context(), docs)
		if err != nil {
			return err
		}
		return api.Output(prompts)
	},
}

var parseCmd = &cobra.Command{
	Use:   "parse <docs> <responses>",
	Short: "Parse model responses into annotations",
	Long: `Parse model responses and print the annotated documents.

Responses are read as one JSON string per line and paired with documents
by position. The counts must match.

Examples:
  annotator parse docs.jsonl responses.jsonl`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := cfgMgr.Get()
		a, err := buildAnnotator(cfg)
		if err != nil {
			return err
		}
		docs, err := readDocs(args[0], doc.TokenizerFor(a.Config().Lang))
		if err != nil {
			return err
		}
		responses, err := readResponses(args[1])
		if err != nil {
			return err
		}
		// Entity linking needs its candidates; rendering prompts computes them.
		if _, err := a.GeneratePrompts(cmd.Context(), docs); err != nil {
			return err
		}
		docs, err = a.ParseResponses(cmd.Context(), docs, responses)
		if err != nil {
			return err
		}
		return api.Output(records(docs))
	},
}

var runCmd = &cobra.Command{
	Use:   "run <docs>",
	Short: "Prompt the model and annotate documents",
	Long: `Render prompts, send them to the configured OpenAI-compatible model and
print the annotated documents.

Examples:
  annotator run docs.jsonl
  ANNOTATOR_MODEL_MODEL=gpt-4o annotator run --batch-size 8 docs.jsonl`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := cfgMgr.Get()
		a, err := buildAnnotator(cfg)
		if err != nil {
			return err
		}
		docs, err := readDocs(args[0], doc.TokenizerFor(a.Config().Lang))
		if err != nil {
			return err
		}

		oc := cfg.Model.OpenAIConfig()
		oc.Logger = logger
		client := llm.NewOpenAIClient(oc)
		logger.Info("annotating", "kind", a.Kind(), "docs", len(docs), "model", client.Model())

		var inv llm.Invoker = client
		if recordPath != "" {
			f, err := os.OpenFile(recordPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				return fmt.Errorf("failed to open call log: %w", err)
			}
			defer f.Close()
			prompt := a.Prompt()
			inv = llmcall.NewRecorder(f, logger).Wrap(client, llmcall.RecordOptions{
				TaskKind:   string(a.Kind()),
				PromptKey:  prompt.Key,
				PromptHash: prompt.Hash,
				Model:      client.Model(),
			})
		}

		docs, err = pipeline.Run(cmd.Context(), a, inv, docs, pipeline.RunOptions{
			BatchSize: batchSize,
			Logger:    logger,
		})
		if err != nil {
			return err
		}
		return api.Output(records(docs))
	},
}

func init() {
	runCmd.Flags().IntVar(&batchSize, "batch-size", 0, "shards per model call (0 = all)")
	runCmd.Flags().StringVar(&recordPath, "record", "", "append every prompt and response to this JSONL call log")

	rootCmd.AddCommand(promptCmd, parseCmd, runCmd)
}
