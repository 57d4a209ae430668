package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	salvator "github.com/wimmer-k/Salvator/pkg"
)

// Number of PPAC detectors along the BigRIPS beam line.
const nPPACs = 36

var configuration salvator.Configuration

var (
	logger         = salvator.NewConsoleLogger()
	VerbosityLevel int
)

type inputFiles []string

func (f *inputFiles) String() string {
	return strings.Join(*f, ",")
}

func (f *inputFiles) Set(value string) error {
	*f = append(*f, value)
	return nil
}

func main() {
	if err := run(); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
}

func run() error {
	var filesIn inputFiles
	configFilename := flag.String("config", "", "Configuration file path")
	flag.Var(&filesIn, "i", "Input file, can be repeated (overrides files_in)")
	histOut := flag.String("o", "", "Output ROOT file (overrides hist_out)")
	lastEvent := flag.Int("le", -1, "Last event to process (overrides max_events)")
	verbosity := flag.Int("v", -1, "Verbosity level (overrides verbosity)")
	flag.Parse()

	// Missing .env is fine, credentials can come from the environment
	_ = godotenv.Load(".env")

	var err error
	configuration, err = salvator.LoadConfiguration(*configFilename)
	if err != nil {
		return fmt.Errorf("Error reading configuration file: %w", err)
	}
	if len(filesIn) > 0 {
		configuration.FilesIn = filesIn
	}
	if *histOut != "" {
		configuration.HistOut = *histOut
	}
	if *lastEvent >= 0 {
		configuration.MaxEvents = *lastEvent
	}
	if *verbosity >= 0 {
		configuration.Verbosity = *verbosity
	}
	salvator.SetLogger(logger)

	VerbosityLevel = configuration.Verbosity
	if VerbosityLevel > 0 {
		message := fmt.Sprintf("Reading configuration file: %s", *configFilename)
		logger.Info(message, "main")
		salvator.PrintConfiguration(configuration, logger)
	}
	if len(configuration.FilesIn) == 0 {
		return &salvator.ConfigError{Field: "files_in", Reason: "no input files"}
	}
	if configuration.NumWorkers < 1 {
		return &salvator.ConfigError{Field: "num_workers", Reason: "must be positive"}
	}

	runID := uuid.NewString()
	logger.Info(fmt.Sprintf("Run id: %s", runID), "main")

	table, err := salvator.LoadPositions(configuration)
	if err != nil {
		return fmt.Errorf("Error loading crystal positions: %w", err)
	}
	reco, err := salvator.NewReconstructor(configuration.Reconstruction, table)
	if err != nil {
		return fmt.Errorf("Error setting up reconstruction: %w", err)
	}

	source, err := salvator.NewTreeSource(configuration.FilesIn, configuration.TreeName,
		int64(configuration.Skip), int64(configuration.MaxEvents))
	if err != nil {
		return fmt.Errorf("Error opening input: %w", err)
	}
	evtCount := source.NEntries()
	if VerbosityLevel > 0 {
		logger.Info(fmt.Sprintf("Number of events: %d", evtCount), "main")
	}

	var publisher salvator.Publisher = salvator.NopPublisher{}
	if configuration.NatsURL != "" {
		natsPublisher := salvator.NewNatsPublisher(configuration.NatsSubject)
		if err := natsPublisher.Connect(configuration.NatsURL); err != nil {
			logger.Error(err.Error())
		} else {
			publisher = natsPublisher
		}
	}
	defer publisher.Close()

	var writer *salvator.Writer
	if configuration.HitsOut != "" {
		writer, err = salvator.NewWriter(configuration.HitsOut, runID, configuration.RunNumber,
			configuration.CompressionLevel)
		if err != nil {
			return fmt.Errorf("Error creating %s: %w", configuration.HitsOut, err)
		}
	}
	hists := salvator.NewHistograms(configuration.Reconstruction.NCrystals, nPPACs)
	collector := NewCollector(runID, evtCount, configuration.ProgressEvery, hists, nil, publisher)
	if writer != nil {
		collector.Writer = writer
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	jobs := make(chan salvator.RawEvent, 100)
	results := make(chan WorkerResult, 100)
	startWorkers(configuration.NumWorkers, reco, jobs, results)

	readErr := make(chan error, 1)
	go func() {
		readErr <- sendEventsToWorkers(ctx, source, jobs)
	}()

	fatal := processWorkerResults(results, collector, cancel)
	sourceErr := <-readErr
	var outErr *outputError
	if fatal != nil && !errors.As(fatal, &outErr) {
		// Nothing is written for a run that failed on its configuration.
		if writer != nil {
			writer.Close()
			os.Remove(configuration.HitsOut)
		}
		return fmt.Errorf("Aborting run: %w", fatal)
	}

	var errs []error
	if outErr != nil {
		logger.Error(fmt.Sprintf("Stopping run, histograms are still written: %v", outErr))
		errs = append(errs, outErr)
	}
	if sourceErr != nil {
		errs = append(errs, fmt.Errorf("error reading events: %w", sourceErr))
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := hists.Write(configuration.HistOut); err != nil {
		errs = append(errs, err)
	}
	for name, n := range hists.Unknown() {
		logger.Error(fmt.Sprintf("%d samples sent to unbooked histogram %s", n, name))
	}

	duration := time.Since(start)
	done := collector.Processed + collector.Dropped
	logger.Info(fmt.Sprintf("Total events processed: %d, discarded: %d", collector.Processed, collector.Dropped), "main")
	logger.Info(fmt.Sprintf("Total time: %d ms, %.0f events/s", duration.Milliseconds(),
		float64(done)/duration.Seconds()), "main")
	if collector.Processed > 0 {
		logger.Info(fmt.Sprintf("Mean multiplicity: %.3f, after add-back: %.3f",
			hists.H1("mult").XMean(), hists.H1("multAB").XMean()), "main")
	}
	if ctx.Err() != nil {
		logger.Info("Interrupted, outputs contain the events processed so far", "main")
	}
	return errors.Join(errs...)
}
