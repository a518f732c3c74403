// cmd/treesync/main.go
package main

import (
	"bufio"
	"context"
	"fmt"
	stlog "log" // Use standard log for fatal errors before logger is ready
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bethropolis/treesync/internal/config"
	"github.com/bethropolis/treesync/internal/document"
	"github.com/bethropolis/treesync/internal/event"
	"github.com/bethropolis/treesync/internal/idle"
	"github.com/bethropolis/treesync/internal/logger"
	"github.com/bethropolis/treesync/internal/parser"
	"github.com/bethropolis/treesync/internal/syncer"
)

const version = "0.1.0"

func main() {
	flags := &config.Flags{}
	args := flags.ParseFlags()

	if flags.Version != nil && *flags.Version {
		fmt.Printf("%s %s\n", config.AppName, version)
		os.Exit(0)
	}
	if len(args) == 0 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] FILE\n", config.AppName)
		os.Exit(2)
	}
	filePath := args[0]

	cfg, err := config.LoadConfig(*flags.ConfigFilePath, flags)
	if err != nil {
		stlog.Fatalf("Failed to load configuration: %v", err)
	}

	// --- Logger Initialization ---
	logWriter := os.Stderr
	if path := cfg.Logger.LogFilePath; path != "" && path != "-" {
		logFile, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			stlog.Fatalf("Failed to open log file '%s': %v", path, err)
		}
		defer logFile.Close()
		logWriter = logFile
	}
	logger.Init(cfg.Logger, logWriter)
	logger.Infof("Starting %s...", config.AppName)

	// --- Document & Grammar ---
	parser.RegisterDefaults()
	lang := parser.GetForFile(filePath)
	if lang == nil {
		logger.Fatalf("No grammar registered for '%s'", filePath)
	}
	logger.Debugf("Detected language: %s", lang.Name)

	doc := document.NewDocument()
	if err := doc.Load(filePath); err != nil {
		logger.Fatalf("Failed to load '%s': %v", filePath, err)
	}

	// --- Engine wiring ---
	events := event.NewManager()
	p := parser.New(lang.TreeSitterLang, cfg.Engine.ChunkSize)
	engine := syncer.NewEngine(doc, p, syncer.Options{
		AsyncBudget: time.Duration(cfg.Engine.AsyncBudgetMicros) * time.Microsecond,
		Idle: idle.NewTimerScheduler(
			time.Duration(cfg.Engine.IdleDelayMillis)*time.Millisecond,
			time.Duration(cfg.Engine.IdleSliceMillis)*time.Millisecond,
		),
		Events: events,
	})
	syncer.Attach(engine, events)
	defer engine.Dispose()

	events.Dispatch(event.TypeDocumentLoaded, event.DocumentLoadedData{
		FilePath: filePath,
		Size:     doc.Len(),
	})

	ctx := context.Background()
	if err := report(ctx, engine, syncer.ModeSync); err != nil {
		logger.Fatalf("Initial parse failed: %v", err)
	}

	// --- Edit loop ---
	// Commands: "replace OFFSET LENGTH TEXT", "parse", "quit".
	fmt.Println("Enter commands (replace OFFSET LENGTH TEXT | parse | quit):")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, " ", 4)
		switch fields[0] {
		case "quit", "q":
			return
		case "parse":
			if err := report(ctx, engine, syncer.ModeAsync); err != nil {
				logger.Errorf("Parse failed: %v", err)
			}
		case "replace":
			if len(fields) < 3 {
				fmt.Println("usage: replace OFFSET LENGTH [TEXT]")
				continue
			}
			offset, err1 := strconv.ParseUint(fields[1], 10, 32)
			length, err2 := strconv.ParseUint(fields[2], 10, 32)
			if err1 != nil || err2 != nil {
				fmt.Println("offset and length must be integers")
				continue
			}
			var text string
			if len(fields) == 4 {
				text = fields[3]
			}
			change, err := doc.Replace(uint32(offset), uint32(length), []byte(text))
			if err != nil {
				logger.Errorf("Replace failed: %v", err)
				continue
			}
			events.Dispatch(event.TypeDocumentChanged, event.DocumentChangedData{Change: change})
			if err := report(ctx, engine, syncer.ModeAsync); err != nil {
				logger.Errorf("Parse failed: %v", err)
			}
		default:
			fmt.Printf("unknown command: %s\n", fields[0])
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Errorf("Input error: %v", err)
	}
}

// report parses and prints the root node span and the parse call count.
func report(ctx context.Context, engine *syncer.Engine, mode syncer.Mode) error {
	start := time.Now()
	tree, err := engine.ParseTree(ctx, mode)
	if err != nil {
		return err
	}
	st, ok := tree.(*parser.SitterTree)
	if !ok || st.RootNode() == nil {
		return fmt.Errorf("unexpected tree %T", tree)
	}
	root := st.RootNode()
	fmt.Printf("root %s [%d-%d) err=%v calls=%d elapsed=%v\n",
		root.Type(), root.StartByte(), root.EndByte(), root.HasError(),
		engine.Calls(), time.Since(start).Round(time.Microsecond))
	return nil
}
