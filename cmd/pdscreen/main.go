package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/pdscreen/pdscreen"
	"github.com/pdscreen/pdscreen/logging"
	"github.com/pdscreen/pdscreen/store"
	"github.com/pdscreen/pdscreen/utils"
	"go.uber.org/zap"
	"golang.org/x/term"
)

const HelpBanner = `
┌─┐┌┬┐┌─┐┌─┐┬─┐┌─┐┌─┐┌┐┌
├─┘ ││└─┐│  ├┬┘├┤ ├┤ │││
┴  ─┴┘└─┘└─┘┴└─└─┘└─┘┘└┘

Parkinson's disease screening from spiral and wave drawings.
    Version: %s

Usage: pdscreen [flags] <image_path> <s|w>

  image_path  drawing to analyse: a file, a directory, an http(s) URL or - for stdin
  s|w         drawing type, spiral or wave

`

// Version indicates the current build version.
var Version string

var (
	// Flags
	modelsDir = flag.String("models", store.DefaultDir, "Directory of the trained models")
	dataDir   = flag.String("data", pdscreen.DefaultDataDir, "Dataset root used when the models need training")
	workers   = flag.Int("conc", runtime.NumCPU(), "Number of images processed concurrently")
	verbose   = flag.Bool("v", false, "Verbose logging")
	asJSON    = flag.Bool("json", false, "Print the report as JSON")
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
	if flag.NArg() != 2 {
		flag.Usage()
		fail(errors.New("expected an image path and a drawing type"))
	}
	if err := run(flag.Arg(0), flag.Arg(1)); err != nil {
		fail(err)
	}
}

func run(src, kind string) error {
	dt, err := pdscreen.ParseDrawingType(kind)
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(*verbose)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	models := store.New(*modelsDir)
	trainer := pdscreen.NewTrainer(*dataDir, models, logger)
	trainer.Workers = *workers
	analyzer := pdscreen.NewDrawingAnalyzer(models, &progressTrainer{trainer: trainer}, logger)

	if src != utils.PipeName && !utils.IsValidUrl(src) {
		fi, err := os.Stat(src)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("image not found: %s: %w", src, os.ErrNotExist)
			}
			return err
		}
		if fi.IsDir() {
			return analyzeDir(ctx, analyzer, src, dt, logger)
		}
		report, err := analyzer.AnalyzeFile(ctx, src, dt)
		if err != nil {
			return err
		}
		return printReport(os.Stdout, report)
	}

	in, err := utils.OpenSource(ctx, src)
	if err != nil {
		return err
	}
	defer in.Close()

	report, err := analyzer.Analyze(ctx, in, in.Name, dt)
	if err != nil {
		return err
	}
	return printReport(os.Stdout, report)
}

// analyzeDir analyses every drawing of a directory, reporting failed images
// without stopping the batch.
func analyzeDir(ctx context.Context, a *pdscreen.DrawingAnalyzer, dir string, dt pdscreen.DrawingType, logger *zap.Logger) error {
	now := time.Now()
	results, err := a.AnalyzeDir(ctx, dir, dt, *workers)
	if err != nil {
		return err
	}

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "%s %s\n",
				utils.DecorateText("✘", utils.ErrorMessage),
				utils.DecorateText(res.Err.Error(), utils.DefaultMessage),
			)
			continue
		}
		if err := printReport(os.Stdout, res.Report); err != nil {
			return err
		}
	}
	logger.Debug("batch finished", zap.Int("images", len(results)), zap.Int("failed", failed))
	fmt.Fprintf(os.Stderr, "\nAnalysed %d images in %s\n", len(results),
		utils.DecorateText(utils.FormatTime(time.Since(now)), utils.SuccessMessage),
	)

	if failed > 0 {
		return fmt.Errorf("%d of %d images could not be analysed", failed, len(results))
	}
	return nil
}

func printReport(w io.Writer, r *pdscreen.DrawingReport) error {
	if *asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	return r.WriteText(w)
}

// progressTrainer shows a spinner while the models are being trained.
type progressTrainer struct {
	trainer *pdscreen.Trainer
}

func (p *progressTrainer) TrainAll(ctx context.Context) error {
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		return p.trainer.TrainAll(ctx)
	}

	spinner := utils.NewSpinner(os.Stderr, fmt.Sprintf("%s %s",
		utils.DecorateText("⚡ PDSCREEN", utils.StatusMessage),
		utils.DecorateText("training models (this may take a while)...", utils.DefaultMessage),
	), 100*time.Millisecond)
	spinner.Start()

	p.trainer.Progress = func(dt pdscreen.DrawingType) {
		spinner.SetMessage(fmt.Sprintf("%s %s",
			utils.DecorateText("⚡ PDSCREEN", utils.StatusMessage),
			utils.DecorateText(fmt.Sprintf("training %s models (this may take a while)...", dt), utils.DefaultMessage),
		))
	}
	defer func() { p.trainer.Progress = nil }()

	err := p.trainer.TrainAll(ctx)
	if err != nil {
		spinner.StopMsg = fmt.Sprintf("%s %s",
			utils.DecorateText("⚡ PDSCREEN", utils.StatusMessage),
			utils.DecorateText("training failed ✘", utils.ErrorMessage),
		)
	} else {
		spinner.StopMsg = fmt.Sprintf("%s %s",
			utils.DecorateText("⚡ PDSCREEN", utils.StatusMessage),
			utils.DecorateText("models trained and saved ✔", utils.SuccessMessage),
		)
	}
	spinner.Stop()
	return err
}

func fail(err error) {
	log.Fatalln(utils.DecorateText("Error: "+err.Error(), utils.ErrorMessage))
}
