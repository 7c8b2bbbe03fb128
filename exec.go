package facefind

import (
	"encoding/json"
	"fmt"
	"image"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/disintegration/imaging"
	"github.com/esimov/facefind/utils"
	"github.com/pkg/errors"
	"golang.org/x/term"
)

// maxWorkers sets the maximum number of concurrently running workers.
const maxWorkers = 20

// validExtensions lists the image files picked up when walking a directory.
var validExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".gif", ".tif", ".tiff", ".webp"}

// Ops describes a command line detection run.
// Src is a file, a directory, a URL or PipeName for stdin.
// Dst is optional. When set, an annotated copy of every image is written
// there: a file (or PipeName for stdout) for a single image, a directory otherwise.
type Ops struct {
	Src, Dst, PipeName string
	Workers            int
	Style              Style
	Log                logs.Log

	// Report receives one JSON line per image. Defaults to stdout, or to
	// stderr when the annotated image itself is written to stdout.
	Report io.Writer
}

// Report is the JSON line printed for every processed image.
type Report struct {
	File  string `json:"file"`
	Boxes []Box  `json:"boxes"`
	Count int    `json:"count"`
}

// result holds the outcome of a single file processed by a worker.
type result struct {
	path string
	res  *Result
	err  error
}

// Execute runs the detection over the source described by op.
// Directories are processed concurrently by a bounded pool of workers.
// Per image failures are logged and counted; the returned error summarizes them.
func (p *Processor) Execute(op *Ops) error {
	if op.Report == nil {
		op.Report = os.Stdout
		if op.Dst != "" && op.Dst == op.PipeName {
			op.Report = os.Stderr
		}
	}
	if op.Style == "" {
		op.Style = Outline
	}
	if op.Log == nil {
		l, err := logs.NewLog()
		if err != nil {
			return err
		}
		op.Log = l
	}

	src := op.Src
	name := op.Src

	// Check if source path is a local image or URL.
	if utils.IsValidUrl(op.Src) {
		f, err := utils.DownloadImage(op.Src)
		if err != nil {
			return errors.Wrap(err, "failed to load the source image")
		}
		defer os.Remove(f.Name())
		f.Close()
		src = f.Name()
	}

	var (
		fs  os.FileInfo
		err error
	)
	// Check if the source is a pipe name or a regular file.
	if src == op.PipeName {
		fs, err = os.Stdin.Stat()
	} else {
		fs, err = os.Stat(src)
	}
	if err != nil {
		return errors.Wrap(err, "failed to load the source image")
	}

	now := time.Now()
	enc := json.NewEncoder(op.Report)

	switch mode := fs.Mode(); {
	case mode.IsDir():
		if op.Dst != "" {
			if err := os.MkdirAll(op.Dst, 0755); err != nil {
				return errors.Wrap(err, "unable to create the destination directory")
			}
		}
		failed, total := op.runPool(p, src, enc)
		op.logf(utils.SuccessMessage, "%d image(s) processed in %s", total, utils.FormatTime(time.Since(now)))
		if failed > 0 {
			return fmt.Errorf("%d of %d image(s) failed", failed, total)
		}

	case mode.IsRegular() || mode&os.ModeNamedPipe != 0: // check for regular files or pipe names
		if op.Dst != "" && op.Dst != op.PipeName {
			if _, err := imaging.FormatFromFilename(op.Dst); err != nil {
				return errors.Wrapf(ErrInvalidParameters, "%v file type not supported", filepath.Ext(op.Dst))
			}
		}

		spinner := utils.NewSpinner(os.Stderr, fmt.Sprintf("%s %s",
			utils.DecorateText("⚡ FACEFIND", utils.StatusMessage),
			utils.DecorateText("⇢ detecting faces...", utils.DefaultMessage),
		), time.Millisecond*80, true)

		if term.IsTerminal(int(os.Stderr.Fd())) {
			stop := op.restoreOnSignal(spinner)
			defer stop()
			spinner.Start()
		}
		res, err := op.process(p, src, op.Dst)
		spinner.Stop()
		if err != nil {
			return err
		}
		if err := enc.Encode(Report{File: name, Boxes: res.Boxes, Count: res.Count}); err != nil {
			return errors.Wrap(err, "could not write the report")
		}
		op.logf(utils.SuccessMessage, "%d face(s) found in %s", res.Count, utils.FormatTime(time.Since(now)))

	default:
		return errors.Errorf("unsupported source %v", src)
	}
	return nil
}

// runPool walks the source directory and feeds its images to the workers.
// Reports are written from this goroutine only.
func (op *Ops) runPool(p *Processor, root string, enc *json.Encoder) (failed, total int) {
	// Limit the concurrently running workers to maxWorkers.
	workers := op.Workers
	if workers <= 0 || workers > maxWorkers {
		workers = runtime.NumCPU()
	}

	ch := make(chan result)
	done := make(chan interface{})
	defer close(done)

	paths, errc := walkDir(done, root, validExtensions)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			op.consumer(p, root, ch, done, paths)
		}()
	}

	// Close the channel after the values are consumed.
	go func() {
		defer close(ch)
		wg.Wait()
	}()

	for r := range ch {
		total++
		if r.err != nil {
			failed++
			op.Log.Warnf("Failed to process %v: %v", r.path, r.err)
			continue
		}
		if err := enc.Encode(Report{File: r.path, Boxes: r.res.Boxes, Count: r.res.Count}); err != nil {
			op.Log.Errorf("Failed to write the report for %v: %v", r.path, err)
		}
	}

	if err := <-errc; err != nil {
		op.Log.Errorf("Directory walk failed: %v", err)
	}
	return failed, total
}

// consumer reads the path names from the paths channel and runs the detection against each image.
// Annotated copies mirror the source tree under Dst.
func (op *Ops) consumer(
	p *Processor,
	root string,
	res chan<- result,
	done <-chan interface{},
	paths <-chan string,
) {
	for src := range paths {
		var (
			r   *Result
			err error
		)
		dst := ""
		if op.Dst != "" {
			dst, err = mirrorPath(root, src, op.Dst)
		}
		if err == nil {
			r, err = op.process(p, src, dst)
		}

		select {
		case <-done:
			return
		case res <- result{path: src, res: r, err: err}:
		}
	}
}

// process runs the detection over a single image. When out is not empty the
// annotated image is written there.
func (op *Ops) process(p *Processor, in, out string) (*Result, error) {
	data, err := op.readSource(in)
	if err != nil {
		return nil, err
	}
	if out == "" {
		return p.Process(data)
	}

	img, res, err := p.Annotate(data, op.Style)
	if err != nil {
		return nil, err
	}

	if out == op.PipeName {
		if term.IsTerminal(int(os.Stdout.Fd())) {
			return nil, errors.New("`-` should be used with a pipe for stdout")
		}
		return res, Encode(os.Stdout, img, imaging.JPEG)
	}

	out, format := outputFormat(out)
	if err := writeImage(out, img, format); err != nil {
		return nil, err
	}
	return res, nil
}

// mirrorPath maps src, found under root, to the same relative path under dst
// and creates the missing directories.
func mirrorPath(root, src, dst string) (string, error) {
	rel, err := filepath.Rel(root, src)
	if err != nil {
		return "", errors.Wrapf(err, "%v is not under %v", src, root)
	}
	out := filepath.Join(dst, rel)
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return "", errors.Wrap(err, "unable to create the destination directory")
	}
	return out, nil
}

// outputFormat picks the encoder for path. Formats imaging cannot write,
// such as WebP, fall back to JPEG and the extension is changed to match.
func outputFormat(path string) (string, imaging.Format) {
	format, err := imaging.FormatFromFilename(path)
	if err != nil {
		return strings.TrimSuffix(path, filepath.Ext(path)) + ".jpg", imaging.JPEG
	}
	return path, format
}

// readSource reads the whole image from a file or from stdin.
func (op *Ops) readSource(in string) ([]byte, error) {
	if in == op.PipeName {
		if term.IsTerminal(int(os.Stdin.Fd())) {
			return nil, errors.New("`-` should be used with a pipe for stdin")
		}
		data, err := io.ReadAll(os.Stdin)
		return data, errors.Wrap(err, "unable to read stdin")
	}
	data, err := os.ReadFile(in)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open the source file")
	}
	return data, nil
}

// writeImage encodes img into a temporary file next to path and renames it
// into place once complete.
func writeImage(path string, img *image.NRGBA, format imaging.Format) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".facefind-*")
	if err != nil {
		return errors.Wrap(err, "unable to create the destination file")
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, img, format); err != nil {
		tmp.Close()
		return errors.Wrap(err, "unable to encode the destination image")
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// restoreOnSignal captures CTRL-C and restores back the cursor visibility.
func (op *Ops) restoreOnSignal(s *utils.Spinner) (stop func()) {
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	quit := make(chan struct{})
	go func() {
		select {
		case <-signalChan:
			s.RestoreCursor()
			os.Exit(1)
		case <-quit:
		}
	}()
	return func() {
		signal.Stop(signalChan)
		close(quit)
	}
}

func (op *Ops) logf(kind utils.MessageType, format string, args ...any) {
	op.Log.Infof("%s", utils.DecorateText(fmt.Sprintf(format, args...), kind))
}

// walkDir starts a new goroutine to walk the specified directory tree
// in recursive manner and sends the path of each supported image to a new channel.
// It finishes in case the done channel is getting closed.
func walkDir(
	done <-chan interface{},
	src string,
	srcExts []string,
) (<-chan string, <-chan error) {
	pathChan := make(chan string)
	errChan := make(chan error, 1)

	go func() {
		// Close the paths channel after Walk returns.
		defer close(pathChan)

		errChan <- filepath.Walk(src, func(path string, f os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !f.Mode().IsRegular() {
				return nil
			}
			if !isValidExtension(strings.ToLower(filepath.Ext(f.Name())), srcExts) {
				return nil
			}

			select {
			case <-done:
				return errors.New("directory walk cancelled")
			case pathChan <- path:
			}
			return nil
		})
	}()
	return pathChan, errChan
}

// isValidExtension checks for the supported extensions.
func isValidExtension(ext string, extensions []string) bool {
	for _, ex := range extensions {
		if ex == ext {
			return true
		}
	}
	return false
}
