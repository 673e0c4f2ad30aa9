// Package shell implements the interactive operator console that creates device
// fixtures and writes their QR codes to disk.
package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/atinyakov/binfixture/internal/service"
)

// Registry is the subset of the device service the shell drives.
type Registry interface {
	Create(ctx context.Context, token string) (*service.Fixture, error)
	Refresh(ctx context.Context, id string) (scan string, found bool, err error)
	Get(ctx context.Context, id string) (*service.Fixture, error)
	List(ctx context.Context) ([]*service.Fixture, error)
}

// Renderer writes QR images and terminal previews.
type Renderer interface {
	WriteFile(dir, name, text string) (string, error)
	Terminal(text string) (string, error)
}

// Decoder opens an encoded scan payload, used by "show" to prove the round trip.
type Decoder interface {
	Open(encoded string) ([]byte, error)
}

// Shell reads commands from In and writes results to Out.
type Shell struct {
	Registry  Registry
	Renderer  Renderer
	Decoder   Decoder
	OutputDir string
	// Preview prints terminal QR codes after each render.
	Preview bool
	In      io.Reader
	Out     io.Writer
	Log     *zap.Logger
}

const helpText = "Available commands: help, new [AUTO|0-999|name], replace <id>, list, show <id>, invalid, exit"

// Run executes the read-eval-print loop until exit, end of input or ctx is done.
func (s *Shell) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	lines := s.readLines(ctx)

	for {
		if ctx.Err() != nil {
			fmt.Fprintln(s.Out)
			return
		}
		fmt.Fprint(s.Out, "binfixture> ")

		var (
			line string
			ok   bool
		)
		select {
		case <-ctx.Done():
			fmt.Fprintln(s.Out)
			return
		case line, ok = <-lines:
		}
		if !ok || ctx.Err() != nil {
			fmt.Fprintln(s.Out)
			return
		}
		args := strings.Fields(strings.TrimSpace(line))
		if len(args) == 0 {
			continue
		}
		switch args[0] {
		case "help":
			fmt.Fprintln(s.Out, helpText)
		case "new":
			token := service.AutoToken
			if len(args) > 1 {
				token = args[1]
			}
			s.create(ctx, token)
		case "replace":
			if len(args) < 2 {
				fmt.Fprintln(s.Out, "Usage: replace <id>")
				continue
			}
			s.replace(ctx, args[1])
		case "list":
			s.list(ctx)
		case "show":
			if len(args) < 2 {
				fmt.Fprintln(s.Out, "Usage: show <id>")
				continue
			}
			s.show(ctx, args[1])
		case "invalid":
			s.render("invalid", service.InvalidPayload)
		case "exit":
			fmt.Fprintln(s.Out, "Bye")
			return
		default:
			fmt.Fprintln(s.Out, "Unknown command. Type 'help' for a list of commands.")
		}
	}
}

// readLines feeds input lines to the loop. A read blocked on In outlives a
// cancelled ctx until the next line or EOF arrives.
func (s *Shell) readLines(ctx context.Context) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(s.In)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

func (s *Shell) create(ctx context.Context, token string) {
	f, err := s.Registry.Create(ctx, token)
	if errors.Is(err, service.ErrValidation) {
		fmt.Fprintf(s.Out, "Rejected: %v\n", err)
		return
	}
	if f == nil {
		fmt.Fprintf(s.Out, "Error: %v\n", err)
		return
	}

	fmt.Fprintf(s.Out, "Device #%d  %s\n", f.Position, f.Device.ID)
	s.render("register-"+f.Device.ID, f.Register)
	fmt.Fprintln(s.Out, "  Action: REGISTER (Plain JSON)")
	if err != nil {
		// Code already spent; "replace" issues a fresh one.
		s.Log.Error("failed to encode scan payload", zap.String("device_id", f.Device.ID), zap.Error(err))
		fmt.Fprintf(s.Out, "  Scan QR not generated, run 'replace %s' to retry\n", f.Device.ID)
		return
	}
	s.render("scan-"+f.Device.ID, f.Scan)
	fmt.Fprintf(s.Out, "  Code: %d (Encrypted)\n", f.Device.UniqueCode)
}

func (s *Shell) replace(ctx context.Context, id string) {
	scan, found, err := s.Registry.Refresh(ctx, id)
	if err != nil {
		s.Log.Error("failed to replace scan QR", zap.String("device_id", id), zap.Error(err))
		fmt.Fprintf(s.Out, "Error: %v\n", err)
		return
	}
	if !found {
		return
	}
	f, err := s.Registry.Get(ctx, id)
	if err != nil {
		fmt.Fprintf(s.Out, "Error: %v\n", err)
		return
	}
	s.render("scan-"+id, scan)
	fmt.Fprintf(s.Out, "  Code: %d (Encrypted)\n", f.Device.UniqueCode)
}

func (s *Shell) list(ctx context.Context) {
	fixtures, err := s.Registry.List(ctx)
	if err != nil {
		fmt.Fprintf(s.Out, "Error: %v\n", err)
		return
	}
	if len(fixtures) == 0 {
		fmt.Fprintln(s.Out, "No devices yet. Type 'new' to create one.")
		return
	}
	for _, f := range fixtures {
		fmt.Fprintf(s.Out, "Device #%d  %s  code=%d  %s\n", f.Position, f.Device.ID, f.Device.UniqueCode, f.Device.State)
	}
}

func (s *Shell) show(ctx context.Context, id string) {
	f, err := s.Registry.Get(ctx, id)
	if err != nil {
		fmt.Fprintln(s.Out, "Device not found")
		return
	}
	fmt.Fprintf(s.Out, "ID: %s\nRegister: %s\nScan: %s\nCode: %d\n", f.Device.ID, f.Register, f.Scan, f.Device.UniqueCode)
	if f.Scan == "" || s.Decoder == nil {
		return
	}
	plain, err := s.Decoder.Open(f.Scan)
	if err != nil {
		fmt.Fprintf(s.Out, "Decoded: error: %v\n", err)
		return
	}
	fmt.Fprintf(s.Out, "Decoded: %s\n", plain)
}

func (s *Shell) render(name, text string) {
	path, err := s.Renderer.WriteFile(s.OutputDir, name, text)
	if err != nil {
		s.Log.Error("failed to render QR", zap.String("name", name), zap.Error(err))
		fmt.Fprintf(s.Out, "  %s: render failed: %v\n", name, err)
		return
	}
	fmt.Fprintf(s.Out, "  %s -> %s\n", name, path)
	if !s.Preview {
		return
	}
	if art, err := s.Renderer.Terminal(text); err == nil {
		fmt.Fprint(s.Out, art)
	}
}
