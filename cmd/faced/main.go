package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/logs"
	"github.com/esimov/facefind"
	"github.com/esimov/facefind/config"
	"github.com/esimov/facefind/server"
)

func main() {
	cfg := config.Default()

	parser := argparse.NewParser("faced", "Face detection HTTP service")
	addr := parser.String("l", "listen", &argparse.Options{Help: "Listen address (overrides FACED_ADDR)", Default: ""})
	cascadeFile := parser.String("c", "cascade", &argparse.Options{Help: "Cascade classifier, bundled facefinder if unset (overrides FACED_CASCADE)", Default: ""})
	uploadDir := parser.String("u", "uploads", &argparse.Options{Help: "Upload directory (overrides FACED_UPLOAD_DIR)", Default: ""})
	noUploads := parser.Flag("", "nosave", &argparse.Options{Help: "Do not keep uploaded images", Default: false})
	if err := parser.Parse(os.Args); err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, err := logs.NewLog()
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	exit := func(format string, args ...any) {
		logger.Criticalf(format, args...)
		logger.Close()
		os.Exit(1)
	}

	if err := cfg.LoadEnv(); err != nil {
		exit("Error reading environment: %v", err)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *cascadeFile != "" {
		cfg.CascadeFile = *cascadeFile
	}
	if *uploadDir != "" {
		cfg.UploadDir = *uploadDir
	}
	if *noUploads {
		cfg.UploadDir = ""
	}
	if err := cfg.Validate(); err != nil {
		exit("Invalid configuration: %v", err)
	}

	cascade, err := cfg.LoadCascade()
	if err != nil {
		exit("Error loading cascade: %v", err)
	}
	name := cfg.CascadeFile
	if name == "" {
		name = "facefinder (bundled)"
	}
	logger.Infof("Loaded cascade %v (%v trees of depth %v)", name, cascade.Trees, cascade.Depth)

	detector, err := facefind.NewDetector(cascade, cfg.DetectionParams())
	if err != nil {
		exit("Error creating detector: %v", err)
	}

	srv, err := server.NewServer(logger, cfg, cfg.NewProcessor(detector))
	if err != nil {
		exit("Error creating server: %v", err)
	}
	srv.ListenForKillSignals()

	if err := srv.ListenHTTP(); err != nil && err != http.ErrServerClosed {
		exit("Error listening: %v", err)
	}
	err = <-srv.ShutdownComplete
	logger.Close()
	if err != nil {
		os.Exit(1)
	}
}
