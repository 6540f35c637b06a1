package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pdscreen/pdscreen"
	"github.com/pdscreen/pdscreen/deep"
	"github.com/pdscreen/pdscreen/logging"
	"github.com/pdscreen/pdscreen/utils"
	"golang.org/x/term"
)

const HelpBanner = `
Parkinson's disease screening from handwriting samples.
    Version: %s

Usage: pdhandwriting [flags] <image_path>

  image_path  handwriting sample: a file, an http(s) URL or - for stdin

`

// Version indicates the current build version.
var Version string

var (
	// Flags
	modelPath = flag.String("model", deep.DefaultModelPath, "ONNX model file")
	metaPath  = flag.String("meta", deep.DefaultMetadataPath, "Model metadata file")
	ortLib    = flag.String("ortlib", os.Getenv("ONNXRUNTIME_LIB"), "Path to the onnxruntime shared library")
	verbose   = flag.Bool("v", false, "Verbose logging")
	asJSON    = flag.Bool("json", false, "Print the result as JSON")
)

func main() {
	log.SetFlags(0)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, HelpBanner, Version)
		flag.PrintDefaults()
	}
	flag.Parse()

	if !term.IsTerminal(int(os.Stderr.Fd())) {
		utils.NoColor = true
	}
	if flag.NArg() != 1 {
		flag.Usage()
		fail(errors.New("expected an image path"))
	}
	if err := run(flag.Arg(0)); err != nil {
		fail(err)
	}
}

func run(src string) error {
	logger, err := logging.NewLogger(*verbose)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Resolve the input first so a bad path fails before the runtime is loaded.
	in, err := utils.OpenSource(ctx, src)
	if err != nil {
		return err
	}
	defer in.Close()

	model, err := deep.Load(deep.Config{
		ModelPath:         *modelPath,
		MetadataPath:      *metaPath,
		SharedLibraryPath: *ortLib,
		ImageSize:         pdscreen.HandwritingSize,
	})
	if err != nil {
		return logging.NewOperationError("load model", *modelPath, err)
	}
	defer model.Close()

	analyzer := pdscreen.NewHandwritingAnalyzer(model, logger)
	report, err := analyzer.Analyze(ctx, in, in.Name)
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return report.WriteText(os.Stdout)
}

func fail(err error) {
	log.Fatalln(utils.DecorateText("Error: "+err.Error(), utils.ErrorMessage))
}
