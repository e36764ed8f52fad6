package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"ragmill/src/config"
	"ragmill/src/core/chunking"
	"ragmill/src/core/pipeline"
)

// interactiveCmd represents the interactive command
var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Drive the pipeline from an interactive prompt",
	Long:  `The interactive command opens a prompt for loading, processing and querying documents step by step`,
	RunE:  runInteractive,
}

func init() {
	rootCmd.AddCommand(interactiveCmd)

	settingDefaultConfig()
}

type replCommand struct {
	usage   string
	help    string
	handler func(ctx context.Context, p *pipeline.Pipeline, arg string, in *bufio.Scanner) error
}

var replCommands = map[string]replCommand{
	"load": {
		usage:   "load [dir]",
		help:    "load documents from a directory",
		handler: replLoad,
	},
	"file": {
		usage:   "file <path>",
		help:    "load a single document",
		handler: replFile,
	},
	"process": {
		usage:   "process [recursive|paragraph|sentence]",
		help:    "chunk and index the loaded documents",
		handler: replProcess,
	},
	"query": {
		usage:   "query <question>",
		help:    "answer a question from the indexed documents",
		handler: replQuery,
	},
	"batch": {
		usage:   "batch",
		help:    "answer several questions, one per line, empty line to finish",
		handler: replBatch,
	},
	"stats": {
		usage:   "stats",
		help:    "show pipeline statistics",
		handler: replStats,
	},
	"reset": {
		usage:   "reset",
		help:    "clear documents and the indexed collection",
		handler: replReset,
	},
}

func runInteractive(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg := config.FromViper()
	p, _, err := buildPipeline(cfg)
	if err != nil {
		return err
	}

	fmt.Println("ragmill interactive mode; type 'help' for commands, 'exit' to quit.")
	in := bufio.NewScanner(os.Stdin)
	for {
		fmt.Printf("[%s]> ", p.State())
		if !in.Scan() {
			return in.Err()
		}
		line := strings.TrimSpace(in.Text())
		if line == "" {
			continue
		}

		name, arg, _ := strings.Cut(line, " ")
		switch name {
		case "exit", "quit":
			return nil
		case "help":
			printReplHelp()
			continue
		case "config":
			fmt.Print(cfg.Display())
			continue
		}

		command, ok := replCommands[name]
		if !ok {
			fmt.Printf("unknown command %q; type 'help'\n", name)
			continue
		}
		if err := command.handler(ctx, p, strings.TrimSpace(arg), in); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
}

func printReplHelp() {
	for _, name := range []string{"load", "file", "process", "query", "batch", "stats", "reset"} {
		c := replCommands[name]
		fmt.Printf("  %-45s %s\n", c.usage, c.help)
	}
	fmt.Printf("  %-45s %s\n", "config", "show the configuration (credential masked)")
	fmt.Printf("  %-45s %s\n", "help", "show this help")
	fmt.Printf("  %-45s %s\n", "exit", "leave interactive mode")
}

func replLoad(ctx context.Context, p *pipeline.Pipeline, arg string, _ *bufio.Scanner) error {
	count, warnings, err := p.LoadDirectory(ctx, arg)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		fmt.Printf("warning: %v\n", w)
	}
	fmt.Printf("loaded %d documents\n", count)
	return nil
}

func replFile(ctx context.Context, p *pipeline.Pipeline, arg string, _ *bufio.Scanner) error {
	if arg == "" {
		return fmt.Errorf("usage: file <path>")
	}
	count, warnings, err := p.LoadFile(ctx, arg)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		fmt.Printf("warning: %v\n", w)
	}
	fmt.Printf("loaded %d documents\n", count)
	return nil
}

func replProcess(ctx context.Context, p *pipeline.Pipeline, arg string, _ *bufio.Scanner) error {
	count, err := p.Process(ctx, chunking.Options{Strategy: arg})
	if err != nil {
		return err
	}
	fmt.Printf("indexed %d chunks\n", count)
	return nil
}

func replQuery(ctx context.Context, p *pipeline.Pipeline, arg string, _ *bufio.Scanner) error {
	if arg == "" {
		return fmt.Errorf("usage: query <question>")
	}
	result, err := p.Query(ctx, arg, 0, -1)
	if err != nil {
		return err
	}
	fmt.Println(result.Answer)
	for _, src := range result.Sources {
		fmt.Printf("  source: %s (score %.3f)\n", src.DocumentID, src.Score)
	}
	return nil
}

func replBatch(ctx context.Context, p *pipeline.Pipeline, _ string, in *bufio.Scanner) error {
	var questions []string
	fmt.Println("enter questions, one per line; empty line to run:")
	for {
		fmt.Print("? ")
		if !in.Scan() {
			break
		}
		q := strings.TrimSpace(in.Text())
		if q == "" {
			break
		}
		questions = append(questions, q)
	}
	if len(questions) == 0 {
		return nil
	}

	results, err := p.BatchQuery(ctx, questions, 0, -1)
	if err != nil {
		return err
	}
	for _, res := range results {
		fmt.Printf("Q: %s\n", res.Question)
		if res.Err != nil {
			fmt.Printf("A: (failed: %v)\n", res.Err)
			continue
		}
		fmt.Printf("A: %s\n", res.Answer)
	}
	return nil
}

func replStats(ctx context.Context, p *pipeline.Pipeline, _ string, _ *bufio.Scanner) error {
	stats, err := p.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("state: %s\n", stats.State)
	fmt.Printf("documents: %d\n", stats.DocumentsLoaded)
	fmt.Printf("chunks: %d (avg %.1f chars, %d total chars)\n",
		stats.ChunksCreated, stats.ChunkingStats.AverageChunkSize, stats.ChunkingStats.TotalCharacters)
	fmt.Printf("vector store: %v\n", stats.VectorStoreStats)
	fmt.Printf("llm: %s\n", stats.LLMModel)
	return nil
}

func replReset(ctx context.Context, p *pipeline.Pipeline, _ string, _ *bufio.Scanner) error {
	if err := p.Reset(ctx); err != nil {
		return err
	}
	fmt.Println("pipeline reset")
	return nil
}
