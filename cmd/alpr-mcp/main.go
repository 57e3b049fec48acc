package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ironsheep/alpr-mcp/internal/config"
	"github.com/ironsheep/alpr-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "--version", "-v", "version":
		fmt.Printf("alpr-mcp %s\n", Version)
		fmt.Printf("  Build time: %s\n", BuildTime)
		fmt.Printf("  Git commit: %s\n", GitCommit)
		return
	case "--help", "-h", "help":
		printUsage()
		return
	}

	// Configure logging to stderr (stdout is for MCP protocol)
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Config error: %v", err)
	}
	if cfg.Debug() {
		log.Printf("ALPR MCP Server v%s (built %s, commit %s)", Version, BuildTime, GitCommit)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch command {
	case "serve":
		err = serve(ctx, cfg)
	case "train":
		err = train(ctx, cfg)
	case "recognize":
		err = recognize(ctx, cfg, os.Args[2:])
	default:
		printUsage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s failed: %v", command, err)
	}
}

func printUsage() {
	fmt.Println("alpr-mcp - license plate recognition over MCP")
	fmt.Println()
	fmt.Println("Usage: alpr-mcp [command]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                 Run the MCP server on stdin/stdout (default)")
	fmt.Println("  train                 Train the glyph network on ALPR_DATASET")
	fmt.Println("  recognize <image>...  Print the recognition result for each image")
	fmt.Println("  version, -v           Print version information")
	fmt.Println("  help, -h              Print this help message")
	fmt.Println()
	fmt.Println("Environment variables (also read from .env):")
	fmt.Println("  ALPR_LOG_LEVEL=debug           Enable debug logging")
	fmt.Println("  ALPR_DETECTOR                  darknet, onnx, rekognition or http")
	fmt.Println("  ALPR_CLASSIFIER                network or tesseract")
	fmt.Println("  ALPR_MODEL_PATH                Network checkpoint to load and save")
	fmt.Println("  ALPR_DATASET                   Labeled glyph directory for training")
	fmt.Println()
	fmt.Println("The server communicates via MCP protocol over stdin/stdout.")
}

func serve(ctx context.Context, cfg *config.Config) error {
	p, err := newPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	srv := server.New(p.recognizer, p.info(Version))
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func recognize(ctx context.Context, cfg *config.Config, paths []string) error {
	if len(paths) == 0 {
		return fmt.Errorf("no images given")
	}
	p, err := newPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	for _, path := range paths {
		result, err := p.recognizer.RecognizeFile(ctx, path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := enc.Encode(result); err != nil {
			return err
		}
	}
	return nil
}
