package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/sonoprep/pkg/framex"
	"github.com/cyclopcam/sonoprep/server/api"
	"github.com/cyclopcam/sonoprep/server/config"
	"github.com/cyclopcam/sonoprep/server/journal"
	"github.com/cyclopcam/sonoprep/server/recording"
)

func main() {
	logger, err := logs.NewLog()
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	if err := run(logger, os.Args, os.Stdout); err != nil {
		var usage *usageError
		if errors.As(err, &usage) {
			fmt.Print(usage.usage)
		} else {
			logger.Errorf("%v", err)
		}
		logger.Close()
		os.Exit(1)
	}
	logger.Close()
}

// usageError is returned when the command line cannot be parsed
type usageError struct {
	usage string
}

func (e *usageError) Error() string {
	return e.usage
}

type batchFlags struct {
	dir    *string
	roi    *string
	window *int
	scanH  *int
	scanW  *int
}

// run executes one command. Results are written to out as JSON.
func run(log logs.Log, args []string, out io.Writer) error {
	parser := argparse.NewParser("sonoprep", "Ultrasound recording consistency and duplicate frame removal")
	configFile := parser.String("c", "config", &argparse.Options{Help: "JSON configuration file", Default: ""})

	addDir := func(cmd *argparse.Command, required bool) *string {
		return cmd.String("d", "dir", &argparse.Options{Help: "Recording directory", Required: required})
	}

	serveCmd := parser.NewCommand("serve", "Run the HTTP server")
	serveDir := addDir(serveCmd, false)
	listen := serveCmd.String("l", "listen", &argparse.Options{Help: "HTTP listen address (overrides the config file)", Default: ""})

	infoCmd := parser.NewCommand("info", "Print details of a recording")
	infoDir := addDir(infoCmd, true)

	detectCmd := parser.NewCommand("detect", "List duplicate frames")
	detect := batchFlags{dir: addDir(detectCmd, true)}
	detect.window = detectCmd.Int("w", "window", &argparse.Options{Help: "Number of following frames to compare each frame against"})
	detect.roi = detectCmd.String("r", "roi", &argparse.Options{Help: "Compare only this region: top,bottom,left,right"})

	dedupCmd := parser.NewCommand("dedup", "Delete duplicate frames and renumber the rest")
	dedup := batchFlags{dir: addDir(dedupCmd, true)}
	dedup.window = dedupCmd.Int("w", "window", &argparse.Options{Help: "Number of following frames to compare each frame against"})
	dedup.roi = dedupCmd.String("r", "roi", &argparse.Options{Help: "Compare only this region: top,bottom,left,right"})

	cropCmd := parser.NewCommand("crop", "Crop every frame to a region, and update the ledger")
	crop := batchFlags{dir: addDir(cropCmd, true)}
	crop.roi = cropCmd.String("r", "roi", &argparse.Options{Help: "Region to keep: top,bottom,left,right (default from config)"})
	crop.scanH = cropCmd.Int("", "scan-height", &argparse.Options{Help: "Physical height of the region in mm"})
	crop.scanW = cropCmd.Int("", "scan-width", &argparse.Options{Help: "Physical width of the region in mm"})

	flipCmd := parser.NewCommand("flip", "Flip every frame upside down")
	flipDir := addDir(flipCmd, true)

	ledgerCmd := parser.NewCommand("ledger", "Write frame size and scan dimensions into every ledger record")
	led := batchFlags{dir: addDir(ledgerCmd, true)}
	led.scanH = ledgerCmd.Int("", "scan-height", &argparse.Options{Help: "Physical height of the frame in mm"})
	led.scanW = ledgerCmd.Int("", "scan-width", &argparse.Options{Help: "Physical width of the frame in mm"})

	verifyCmd := parser.NewCommand("verify", "Check that frames and ledger records correspond")
	verifyDir := addDir(verifyCmd, true)

	if err := parser.Parse(args); err != nil {
		return &usageError{usage: parser.Usage(err)}
	}

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		return err
	}
	def := cfg.Defaults

	if serveCmd.Happened() {
		return serve(log, cfg, *serveDir, *listen)
	}

	var jnl *journal.Journal
	opt := recording.Options{
		Load: recording.LoadOptions{Ext: cfg.Extension, LedgerName: cfg.LedgerName},
	}
	if cfg.Journal != "" {
		jnl, err = journal.Open(log, cfg.Journal)
		if err != nil {
			return err
		}
		defer jnl.Close()
		opt.Journal = jnl
	}
	rec := recording.New(log, opt)
	defer rec.Close()

	load := func(dir string) error {
		_, err := rec.Load(dir)
		for _, fe := range rec.Status().LoadErrors {
			log.Warnf("Unreadable frame %v: %v", fe.Filename, fe.Error)
		}
		return err
	}

	detectParams := func(f batchFlags) (recording.DetectParams, error) {
		p := recording.DetectParams{Window: def.Window}
		if *f.window != 0 {
			p.Window = *f.window
		}
		if *f.roi != "" {
			roi, err := framex.ParseRect(*f.roi)
			if err != nil {
				return p, err
			}
			p.ROI = &roi
		} else if def.ReducedROI {
			roi := def.ROI
			p.ROI = &roi
		}
		return p, nil
	}

	scanDims := func(f batchFlags) (int, int) {
		h, w := def.ScanHeightMM, def.ScanWidthMM
		if *f.scanH != 0 {
			h = *f.scanH
		}
		if *f.scanW != 0 {
			w = *f.scanW
		}
		return h, w
	}

	switch {
	case infoCmd.Happened():
		if err := load(*infoDir); err != nil {
			return err
		}
		return writeJSON(out, rec.Status())
	case detectCmd.Happened(), dedupCmd.Happened():
		f := detect
		if dedupCmd.Happened() {
			f = dedup
		}
		p, err := detectParams(f)
		if err != nil {
			return err
		}
		if err := load(*f.dir); err != nil {
			return err
		}
		candidates, err := rec.Detect(p)
		if err != nil {
			return err
		}
		if detectCmd.Happened() {
			return writeJSON(out, candidates)
		}
		if len(candidates) == 0 {
			log.Infof("No duplicate frames")
		}
		result, err := rec.RemoveDuplicates()
		if result != nil {
			writeJSON(out, result)
		}
		return err
	case cropCmd.Happened():
		p := recording.CropParams{ROI: def.ROI}
		if *crop.roi != "" {
			p.ROI, err = framex.ParseRect(*crop.roi)
			if err != nil {
				return err
			}
		}
		p.ScanHeightMM, p.ScanWidthMM = scanDims(crop)
		if err := load(*crop.dir); err != nil {
			return err
		}
		result, err := rec.Crop(p)
		if result != nil {
			writeJSON(out, result)
		}
		return err
	case flipCmd.Happened():
		if err := load(*flipDir); err != nil {
			return err
		}
		result, err := rec.FlipVertical()
		if result != nil {
			writeJSON(out, result)
		}
		return err
	case ledgerCmd.Happened():
		if err := load(*led.dir); err != nil {
			return err
		}
		return rec.UpdateLedger(scanDims(led))
	case verifyCmd.Happened():
		if err := load(*verifyDir); err != nil {
			return err
		}
		if err := rec.Verify(); err != nil {
			return err
		}
		fmt.Fprintln(out, "OK")
		return nil
	}
	return &usageError{usage: parser.Usage(nil)}
}

func serve(log logs.Log, cfg *config.Config, dir, listen string) error {
	if listen != "" {
		cfg.Listen = listen
	}
	s, err := api.NewServer(log, cfg, dir)
	if err != nil {
		return err
	}
	s.ListenForKillSignals()
	if err := s.ListenHTTP(cfg.Listen); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(out io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(b))
	return err
}
