package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"ragmill/src/config"
	"ragmill/src/core/chunking"
	"ragmill/src/log"
)

var (
	quickstartDir       string
	quickstartQuestions []string
)

// quickstartCmd represents the quickstart command
var quickstartCmd = &cobra.Command{
	Use:   "quickstart",
	Short: "Load, index and query documents in one run",
	Long: `The quickstart command runs the whole pipeline end to end: it loads the
documents directory, chunks and indexes it, answers a few questions and
prints the pipeline statistics.`,
	RunE: runQuickstart,
}

func init() {
	rootCmd.AddCommand(quickstartCmd)
	quickstartCmd.Flags().StringVar(&quickstartDir, "dir", "", "documents directory (defaults to the configured path)")
	quickstartCmd.Flags().StringArrayVar(&quickstartQuestions, "question", nil, "question to answer (repeatable)")

	settingDefaultConfig()
}

func runQuickstart(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg := config.FromViper()
	fmt.Println("Configuration:")
	fmt.Print(cfg.Display())

	p, _, err := buildPipeline(cfg)
	if err != nil {
		return err
	}

	count, warnings, err := p.LoadDirectory(ctx, quickstartDir)
	if err != nil {
		return fmt.Errorf("failed to load documents: %w", err)
	}
	for _, w := range warnings {
		log.Info("skipped file", "reason", w.Error())
	}
	fmt.Printf("\nLoaded %d documents\n", count)
	if count == 0 {
		fmt.Println("Nothing to index; add .pdf, .txt or .md files to the documents directory.")
		return nil
	}

	chunkCount, err := p.Process(ctx, chunking.Options{})
	if err != nil {
		return fmt.Errorf("failed to process documents: %w", err)
	}
	fmt.Printf("Indexed %d chunks\n\n", chunkCount)

	questions := quickstartQuestions
	if len(questions) == 0 {
		questions = []string{"What are these documents about?"}
	}

	bar := progressbar.NewOptions(len(questions),
		progressbar.OptionSetDescription("Answering"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
	)
	results, err := p.BatchQuery(ctx, questions, 0, -1)
	if err != nil {
		return fmt.Errorf("failed to answer questions: %w", err)
	}
	for _, res := range results {
		bar.Add(1)
		fmt.Printf("Q: %s\n", res.Question)
		if res.Err != nil {
			fmt.Printf("A: (failed: %v)\n\n", res.Err)
			continue
		}
		fmt.Printf("A: %s\n", res.Answer)
		for _, src := range res.Sources {
			fmt.Printf("   source: %s (score %.3f)\n", src.DocumentID, src.Score)
		}
		fmt.Println()
	}

	stats, err := p.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read stats: %w", err)
	}
	fmt.Println("Pipeline statistics:")
	fmt.Printf("  state: %s\n", stats.State)
	fmt.Printf("  documents: %d\n", stats.DocumentsLoaded)
	fmt.Printf("  chunks: %d (avg %.1f chars)\n", stats.ChunksCreated, stats.ChunkingStats.AverageChunkSize)
	fmt.Printf("  vector store: %v\n", stats.VectorStoreStats)
	fmt.Printf("  llm: %s\n", stats.LLMModel)
	return nil
}
