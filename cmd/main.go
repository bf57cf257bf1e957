package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	arg "github.com/alexflint/go-arg"
	"github.com/schollz/progressbar/v3"
	"github.com/ztrue/tracerr"

	"github.com/dasprest/kindle-get-picture/internal/capture"
	"github.com/dasprest/kindle-get-picture/internal/pdf"
)

type Args struct {
	Url           string  `arg:"--url" help:"Kindle web reader URL to open"`
	OutputDir     string  `arg:"-o,--output-dir" help:"Directory to store captured HTML and images" default:"output"`
	Headless      bool    `arg:"--headless" help:"Run browser in headless mode (not recommended for login)"`
	MaxPages      int     `arg:"--max-pages" help:"Maximum number of page turns to attempt" default:"300"`
	Delay         float64 `arg:"--delay" help:"Delay (seconds) after each page turn" default:"1.0"`
	StopUnchanged int     `arg:"--stop-unchanged" help:"Stop after this many consecutive unchanged page hashes" default:"3"`
	Pdf           bool    `arg:"--pdf" help:"(Optional) Assemble the captured images into a PDF when done"`
	TerminalUI    bool    `arg:"-t,--termui" help:"(Optional) Configure the capture through a terminal UI"`
}

func runCapture(ctx context.Context, args *Args) error {
	outputDir, err := filepath.Abs(args.OutputDir)
	if err != nil {
		return tracerr.Wrap(err)
	}

	htmlDir := filepath.Join(outputDir, "html")
	imageDir := filepath.Join(outputDir, "images")
	profileDir := filepath.Join(outputDir, "browser_profile")
	for _, dir := range []string{htmlDir, imageDir, profileDir} {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return tracerr.Wrap(err)
		}
	}

	store, err := capture.NewImageStore(imageDir, nil)
	if err != nil {
		return err
	}

	session, err := capture.NewSession(ctx, capture.Options{
		ProfileDir: profileDir,
		Headless:   args.Headless,
	})
	if err != nil {
		return err
	}
	defer session.Close()

	interceptor := capture.NewInterceptor(store)
	interceptor.Attach(session.Context())

	if err := session.Navigate(args.Url); err != nil {
		return err
	}

	fmt.Println("Please sign in to Kindle and open the book in the browser window.")
	fmt.Print("When the first page is visible, press Enter to start capture...")
	if _, err := bufio.NewReader(os.Stdin).ReadString('\n'); err != nil {
		return tracerr.Wrap(err)
	}

	bar := progressbar.NewOptions(args.MaxPages,
		progressbar.OptionSetDescription("Capturing pages"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(50),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)

	loop := &capture.Loop{
		Source:        session,
		HTMLDir:       htmlDir,
		MaxPages:      args.MaxPages,
		Delay:         time.Duration(args.Delay * float64(time.Second)),
		StopUnchanged: args.StopUnchanged,
		OnPage: func(pageIndex int) {
			_ = bar.Add(1)
		},
	}

	result, err := loop.Run(ctx)
	if err != nil {
		return err
	}
	if err := bar.Close(); err != nil {
		return tracerr.Wrap(err)
	}
	if result.Stalled {
		fmt.Println("No page changes detected. Stopping capture.")
	}

	// let late image bodies land before the session goes away
	if err := interceptor.Wait(); err != nil {
		return tracerr.Wrap(err)
	}

	fmt.Printf("Captured %d pages (%d page turns)\n", result.PagesCaptured, result.PageTurns)
	fmt.Printf("Downloaded %d images into %s\n", store.Count(), imageDir)

	if args.Pdf {
		pdfPath := filepath.Join(outputDir, "book.pdf")
		if err := pdf.FromFiles(store.SavedFiles(), pdfPath); err != nil {
			return err
		}
		fmt.Printf("Assembled %s\n", pdfPath)
	}

	return nil
}

func mainWithErrors() error {
	var args Args
	argP := arg.MustParse(&args)

	if args.TerminalUI {
		RunTerminalUI()
		return nil
	}

	if args.Url == "" {
		argP.WriteHelp(os.Stderr)
		return fmt.Errorf("--url is required")
	}
	if args.StopUnchanged <= 0 {
		return fmt.Errorf("--stop-unchanged must be positive")
	}
	if args.MaxPages <= 0 {
		return fmt.Errorf("--max-pages must be positive")
	}

	return runCapture(context.Background(), &args)
}

func main() {
	if err := mainWithErrors(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
