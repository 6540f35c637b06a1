package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
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
	"golang.org/x/term"
)

const HelpBanner = `
Trains the spiral and wave drawing models.
    Version: %s

Usage: pdtrain [flags]

Images are read from <data>/<spiral|wave>/<training|testing>/<label>/.

`

// Version indicates the current build version.
var Version string

var (
	// Flags
	modelsDir  = flag.String("models", store.DefaultDir, "Directory the trained models are written to")
	dataDir    = flag.String("data", pdscreen.DefaultDataDir, "Dataset root")
	kind       = flag.String("type", "", "Train only one drawing type (s or w)")
	workers    = flag.Int("conc", runtime.NumCPU(), "Number of concurrent workers")
	estimators = flag.Int("estimators", 0, "Number of trees and boosting rounds (0 keeps the defaults)")
	seed       = flag.Int64("seed", 1, "Random forest seed")
	verbose    = flag.Bool("v", false, "Verbose logging")
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
	if err := run(); err != nil {
		log.Fatalln(utils.DecorateText("Error: "+err.Error(), utils.ErrorMessage))
	}
}

func run() error {
	logger, err := logging.NewLogger(*verbose)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	trainer := pdscreen.NewTrainer(*dataDir, store.New(*modelsDir), logger)
	trainer.Workers = *workers
	trainer.Estimators = *estimators
	trainer.Seed = *seed

	types := pdscreen.DrawingTypes
	if *kind != "" {
		dt, err := pdscreen.ParseDrawingType(*kind)
		if err != nil {
			return err
		}
		types = []pdscreen.DrawingType{dt}
	}

	now := time.Now()
	trained := 0
	for _, dt := range types {
		res, err := trainer.Train(ctx, dt)
		if errors.Is(err, pdscreen.ErrNoTrainingData) && len(types) > 1 {
			fmt.Fprintln(os.Stderr, utils.DecorateText(fmt.Sprintf("No training data found for %s", dt), utils.WarningMessage))
			continue
		}
		if err != nil {
			return err
		}
		trained++
		printResult(res)
	}
	if trained == 0 {
		return fmt.Errorf("%w under %s", pdscreen.ErrNoTrainingData, *dataDir)
	}
	fmt.Fprintf(os.Stderr, "\nTraining time: %s\n", utils.DecorateText(utils.FormatTime(time.Since(now)), utils.SuccessMessage))
	return nil
}

func printResult(res *pdscreen.TrainResult) {
	fmt.Printf("%s models trained and saved (%d training, %d testing images)\n",
		res.Dataset.Title(), res.TrainSamples, res.TestSamples)
	for _, name := range store.ModelNames {
		m, ok := res.Metrics[name]
		if !ok {
			continue
		}
		fmt.Printf("  %-4s accuracy %s  sensitivity %s  specificity %s\n",
			name,
			utils.FormatPercent(m.Accuracy),
			utils.FormatPercent(m.Sensitivity),
			utils.FormatPercent(m.Specificity),
		)
	}
}
