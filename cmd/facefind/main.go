package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/logs"
	"github.com/esimov/facefind"
	"github.com/esimov/facefind/utils"
)

const HelpBanner = `
┌─┐┌─┐┌─┐┌─┐┌─┐┬┌┐┌┌┬┐
├┤ ├─┤│  ├┤ ├┤ ││││ ││
└  ┴ ┴└─┘└─┘└  ┴┘└┘─┴┘

Face detection for still images.
    Version: %s

`

// pipeName is the file name that indicates stdin/stdout is being used.
const pipeName = "-"

// Version indicates the current build version.
var Version string

func main() {
	parser := argparse.NewParser("facefind", fmt.Sprintf(HelpBanner, Version))
	source := parser.String("i", "in", &argparse.Options{Help: "Source image, directory, URL or - for stdin", Required: true})
	destination := parser.String("o", "out", &argparse.Options{Help: "Annotated output image or directory, - for stdout", Default: ""})
	cascadeFile := parser.String("c", "cascade", &argparse.Options{Help: "Cascade classifier, bundled facefinder if empty", Default: ""})
	baseSize := parser.Int("", "base", &argparse.Options{Help: "Base window size of the cascade", Default: facefind.DefaultBaseSize})
	scaleFactor := parser.Float("", "scale", &argparse.Options{Help: "Window scale factor", Default: facefind.DefaultScaleFactor})
	minNeighbors := parser.Int("", "neighbors", &argparse.Options{Help: "Minimum neighbors of a face, 0 to disable grouping", Default: facefind.DefaultMinNeighbors})
	minSize := parser.Int("", "minsize", &argparse.Options{Help: "Minimum face size, 0 for the cascade base size", Default: 0})
	maxSize := parser.Int("", "maxsize", &argparse.Options{Help: "Maximum face size, 0 for the image size", Default: 0})
	shiftFactor := parser.Float("", "shift", &argparse.Options{Help: "Window shift as a fraction of its size", Default: facefind.DefaultShiftFactor})
	style := parser.String("s", "style", &argparse.Options{Help: "Annotation style: outline or blur", Default: string(facefind.Outline)})
	maxPixels := parser.Int("", "maxpixels", &argparse.Options{Help: "Skip images larger than this many pixels, 0 for no limit", Default: facefind.DefaultMaxPixels})
	workers := parser.Int("", "conc", &argparse.Options{Help: "Number of files to process concurrently", Default: runtime.NumCPU()})
	if err := parser.Parse(os.Args); err != nil {
		fmt.Fprint(os.Stderr, parser.Usage(err))
		os.Exit(1)
	}

	logger, err := logs.NewLog()
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	fail := func(msg string, err error) {
		logger.Errorf("%s %s",
			utils.DecorateText(msg, utils.ErrorMessage),
			utils.DecorateText(err.Error(), utils.DefaultMessage),
		)
		logger.Close()
		os.Exit(1)
	}

	annotation, err := facefind.ParseStyle(*style)
	if err != nil {
		fail("Invalid style:", err)
	}
	var cascade *facefind.Cascade
	if *cascadeFile == "" {
		cascade, err = facefind.LoadCascade(facefind.Facefinder, *baseSize)
	} else {
		cascade, err = facefind.LoadCascadeFile(*cascadeFile, *baseSize)
	}
	if err != nil {
		fail("Failed to load the cascade:", err)
	}
	detector, err := facefind.NewDetector(cascade, facefind.Params{
		ScaleFactor:  *scaleFactor,
		MinNeighbors: *minNeighbors,
		MinSize:      *minSize,
		MaxSize:      *maxSize,
		ShiftFactor:  *shiftFactor,
	})
	if err != nil {
		fail("Invalid detection parameters:", err)
	}

	proc := facefind.NewProcessor(detector)
	proc.MaxPixels = *maxPixels
	err = proc.Execute(&facefind.Ops{
		Src:      *source,
		Dst:      *destination,
		PipeName: pipeName,
		Workers:  *workers,
		Style:    annotation,
		Log:      logger,
	})
	if err != nil {
		fail("Face detection failed:", err)
	}
}
