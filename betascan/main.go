package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	salvator "github.com/wimmer-k/Salvator/pkg"
)

var configuration salvator.Configuration

var (
	logger         = salvator.NewConsoleLogger()
	VerbosityLevel int
)

func main() {
	configFilename := flag.String("config", "", "Configuration file path")
	betaRange := flag.String("betas", "0.50:0.70:0.005", "Betas to scan, start:stop:step")
	emin := flag.Float64("emin", 0, "Lower edge of the peak window (keV)")
	emax := flag.Float64("emax", 4000, "Upper edge of the peak window (keV)")
	flag.Parse()

	_ = godotenv.Load(".env")

	var err error
	configuration, err = salvator.LoadConfiguration(*configFilename)
	if err != nil {
		message := fmt.Errorf("Error reading configuration file: %w", err)
		logger.Error(message.Error())
		os.Exit(1)
	}
	salvator.SetLogger(logger)

	VerbosityLevel = configuration.Verbosity
	if VerbosityLevel > 0 {
		salvator.PrintConfiguration(configuration, logger)
	}

	betas, err := parseBetas(*betaRange)
	if err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
	if *emin >= *emax {
		logger.Error(fmt.Sprintf("empty energy window [%g, %g]", *emin, *emax))
		os.Exit(1)
	}

	// The scan sets beta itself, the beam value is not used.
	settings := configuration.Reconstruction
	settings.UseBeamBeta = false
	settings.Beta = betas[0]

	table, err := salvator.LoadPositions(configuration)
	if err != nil {
		logger.Error(fmt.Errorf("Error loading crystal positions: %w", err).Error())
		os.Exit(1)
	}
	reco, err := salvator.NewReconstructor(settings, table)
	if err != nil {
		logger.Error(fmt.Errorf("Error setting up reconstruction: %w", err).Error())
		os.Exit(1)
	}

	source, err := salvator.NewTreeSource(configuration.FilesIn, configuration.TreeName,
		int64(configuration.Skip), int64(configuration.MaxEvents))
	if err != nil {
		logger.Error(fmt.Errorf("Error opening input: %w", err).Error())
		os.Exit(1)
	}
	start := time.Now()
	events, err := salvator.Collect(source)
	if err != nil && !errors.Is(err, salvator.ErrStop) {
		logger.Error(fmt.Errorf("Error reading events: %w", err).Error())
		os.Exit(1)
	}
	logger.Info(fmt.Sprintf("Read %d events in %d ms", len(events), time.Since(start).Milliseconds()), "main")

	points, err := scan(reco, events, betas, *emin, *emax)
	if err != nil {
		logger.Error(fmt.Errorf("Scan aborted: %w", err).Error())
		os.Exit(1)
	}
	for _, p := range points {
		fmt.Printf("beta %.4f\tentries %d\tmean %.2f\tsigma %.2f\n", p.Beta, p.Entries, p.Mean, p.StdDev)
	}

	best, ok := narrowest(points)
	if !ok {
		logger.Error(fmt.Sprintf("no entries in [%g, %g] for any beta", *emin, *emax))
		os.Exit(1)
	}
	fmt.Printf("Narrowest peak at beta %.4f: mean %.2f keV, sigma %.2f keV\n", best.Beta, best.Mean, best.StdDev)
	fmt.Printf("Total time: %d ms\n", time.Since(start).Milliseconds())
}
