package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/annotator/internal/api"
	"github.com/jackzampolin/annotator/internal/config"
	"github.com/jackzampolin/annotator/internal/doc"
	"github.com/jackzampolin/annotator/internal/pipeline"
	"github.com/jackzampolin/annotator/internal/task"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Long: `Create the annotator home directory and write a default config.yaml.

Examples:
  annotator init
  annotator init --home ./.annotator --force`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := homes.EnsureExists(); err != nil {
			return err
		}
		path := homes.ConfigPath()
		if homes.ConfigExists() && !initForce {
			return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		logger.Info("wrote default config", "path", path)
		return nil
	},
}

var (
	saveTraining string
	saveLabels   []string
	saveN        int
	saveExcludes []string
)

var saveCmd = &cobra.Command{
	Use:   "save <name>",
	Short: "Initialize a task and save its state",
	Long: `Build the configured task, seed it from gold training documents and save
its config and prompt examples under {home}/tasks/<name>.

Label precedence: --label flags, then configured labels, then labels found
in the training documents.

Examples:
  annotator save news-ner --training gold.jsonl --n 3
  annotator save news-ner --label PER --label ORG --exclude prompt_examples`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := *cfgMgr.Get()
		opts := saveOptions{
			Training: saveTraining,
			Labels:   saveLabels,
			N:        saveN,
			Excludes: saveExcludes,
		}
		opts.applyConfig(cfg.Task, cmd.Flags().Changed)

		a, dir, err := saveTask(&cfg, args[0], opts)
		if err != nil {
			return err
		}
		return api.Output(map[string]any{
			"name":   args[0],
			"kind":   a.Kind(),
			"labels": a.Labels(),
			"path":   dir,
		})
	},
}

// saveOptions carries the save flags.
type saveOptions struct {
	Training string
	Labels   []string
	N        int
	Excludes []string
}

// applyConfig fills flags the user did not set from the task config.
func (o *saveOptions) applyConfig(tc config.TaskCfg, changed func(name string) bool) {
	if !changed("training") {
		o.Training = tc.TrainingPath
	}
	if !changed("n") {
		o.N = tc.NPromptExamples
	}
}

// saveTask builds the task, seeds it from the training documents and writes
// it to {home}/tasks/<name>.
func saveTask(cfg *config.Config, name string, opts saveOptions) (pipeline.Annotator, string, error) {
	if err := checkFile("training", opts.Training); err != nil {
		return nil, "", err
	}
	dir, err := homes.TaskDir(name)
	if err != nil {
		return nil, "", err
	}
	a, err := buildAnnotator(cfg)
	if err != nil {
		return nil, "", err
	}

	var examples []doc.Example
	if opts.Training != "" {
		tok := doc.TokenizerFor(a.Config().Lang)
		gold, err := readDocs(opts.Training, tok)
		if err != nil {
			return nil, "", err
		}
		for _, g := range gold {
			examples = append(examples, doc.NewExample(g, tok))
		}
	}
	if err := a.Initialize(func() []doc.Example { return examples }, task.InitOptions{
		NPromptExamples: opts.N,
		Labels:          opts.Labels,
	}); err != nil {
		return nil, "", err
	}

	if err := a.ToDisk(dir, opts.Excludes...); err != nil {
		return nil, "", err
	}
	logger.Info("saved task", "name", name, "path", dir, "kind", a.Kind())
	return a, dir, nil
}

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List saved tasks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := homes.ListTasks()
		if err != nil {
			return err
		}
		if names == nil {
			names = []string{}
		}
		return api.Output(names)
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config")

	saveCmd.Flags().StringVar(&saveTraining, "training", "", "gold documents (.jsonl) to draw prompt examples and labels from (default: task.training_path)")
	saveCmd.Flags().StringSliceVar(&saveLabels, "label", nil, "labels overriding config and training data")
	saveCmd.Flags().IntVar(&saveN, "n", 0, "prompt examples to take from training data, -1 = all (default: task.n_prompt_examples)")
	saveCmd.Flags().StringSliceVar(&saveExcludes, "exclude", nil, "state channels to skip: cfg, prompt_examples")

	rootCmd.AddCommand(initCmd, saveCmd, tasksCmd)
}

// checkFile reports a readable path early so errors name the flag.
func checkFile(flag, path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("--%s: %w", flag, err)
	}
	return nil
}
