/*
Package pdscreen screens spiral and wave drawings and handwriting samples for
signs of Parkinson's disease.

Two pipelines are provided. The classical one turns a drawing into a binary
200x200 image, describes it with a histogram of oriented gradients and runs a
random forest and a gradient boosted tree ensemble on the descriptor, combining
both into a risk level. The deep one feeds a handwriting sample to a
pre-trained convolutional network exported to ONNX.

The command line tools live under cmd/. To embed the classical pipeline:

	models := store.New(store.DefaultDir)
	trainer := pdscreen.NewTrainer(pdscreen.DefaultDataDir, models, logger)
	analyzer := pdscreen.NewDrawingAnalyzer(models, trainer, logger)

	report, err := analyzer.AnalyzeFile(ctx, "spiral.png", pdscreen.Spiral)
	if err != nil {
		return err
	}
	report.WriteText(os.Stdout)

Models missing from the store are trained once from the dataset directory
before the first prediction.
*/
package pdscreen
