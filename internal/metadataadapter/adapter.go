// Package metadataadapter is the single serialization point (C6) for
// metadata reads and writes that must go through an external command-line
// tool, generalizing the teacher's VideoExtractor (metadata/extractor.go,
// which shells out to ffprobe) into a long-lived "stay open" exiftool
// session. A local fast path mirrors the teacher's EXIFExtractor for the
// common JPEG/HEIC case where goexif alone is enough.
package metadataadapter

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"renamecore/internal/corerr"
	"renamecore/internal/logging"
)

const component = "metadataadapter"

const markerExtended = "__extended__"

const readyMarker = "{ready}"

// Adapter serializes every extended metadata read/write through one
// long-lived exiftool process, torn down after IdleTimeout of inactivity
// and respawned lazily on the next call.
type Adapter struct {
	toolPath    string
	idleTimeout time.Duration
	retries     int
	log         *logging.Logger
	fast        *fastReader

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  *bufio.Reader
	idle    *time.Timer
	counter int
}

// New constructs an Adapter. toolPath is typically "exiftool" resolved via
// PATH; idleTimeout and retries come from internal/config's
// ExternalToolIdleTimeout/ExternalToolRetries.
func New(toolPath string, idleTimeout time.Duration, retries int, log *logging.Logger) *Adapter {
	if log == nil {
		log = logging.Nop()
	}
	if retries < 1 {
		retries = 1
	}
	return &Adapter{
		toolPath:    toolPath,
		idleTimeout: idleTimeout,
		retries:     retries,
		log:         log.Named(component),
		fast:        newFastReader(),
	}
}

// Read returns metadata for path. When fast is true and the file is a
// format the local fast path understands, it is read in-process via
// goexif and no "__extended__" marker is set. Otherwise the read goes
// through the external tool and the result carries __extended__=true.
func (a *Adapter) Read(ctx context.Context, path string, fast bool) (map[string]interface{}, error) {
	if fast {
		if data, ok := a.fast.read(path); ok {
			return data, nil
		}
	}
	return a.ReadExtended(ctx, path)
}

// ReadExtended always goes through the external tool, regardless of
// whether the fast path could have served this file.
func (a *Adapter) ReadExtended(ctx context.Context, path string) (map[string]interface{}, error) {
	out, err := a.runWithRetry(ctx, []string{"-j", "-G", path})
	if err != nil {
		return nil, err
	}

	var records []map[string]interface{}
	if err := json.Unmarshal(out, &records); err != nil || len(records) == 0 {
		return nil, corerr.Wrapf(component, corerr.ExternalToolError, err, "parsing exiftool output for %s", path)
	}

	data := records[0]
	delete(data, "SourceFile")
	data[markerExtended] = true
	return data, nil
}

// Write pushes fields to path's metadata via the external tool, retrying
// up to Adapter.retries times before surfacing an ExternalToolError.
func (a *Adapter) Write(ctx context.Context, path string, fields map[string]interface{}) error {
	args := []string{"-overwrite_original"}
	for k, v := range fields {
		args = append(args, fmt.Sprintf("-%s=%v", k, v))
	}
	args = append(args, path)

	_, err := a.runWithRetry(ctx, args)
	return err
}

// Close tears down any live exiftool session.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.shutdownLocked()
}

func (a *Adapter) runWithRetry(ctx context.Context, args []string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= a.retries; attempt++ {
		out, err := a.run(ctx, args)
		if err == nil {
			return out, nil
		}
		lastErr = err
		a.log.Warn("external metadata tool call failed", logging.Int("attempt", attempt), logging.Err(err))

		a.mu.Lock()
		a.shutdownLocked() // force a clean respawn after a crash
		a.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, corerr.Wrap(component, corerr.Cancelled, ctx.Err())
		case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
		}
	}
	return nil, corerr.Wrapf(component, corerr.ExternalToolError, lastErr, "exiftool failed after %d attempts", a.retries)
}

// run sends one command through the stay-open session and blocks until
// {ready} is read back, per exiftool's -stay_open protocol.
func (a *Adapter) run(ctx context.Context, args []string) ([]byte, error) {
	a.mu.Lock()
	if err := a.ensureStartedLocked(); err != nil {
		a.mu.Unlock()
		return nil, err
	}

	a.counter++
	tag := fmt.Sprintf("%d", a.counter)

	var cmdBuf bytes.Buffer
	for _, arg := range args {
		cmdBuf.WriteString(arg)
		cmdBuf.WriteByte('\n')
	}
	cmdBuf.WriteString("-execute" + tag + "\n")

	if _, err := a.stdin.Write(cmdBuf.Bytes()); err != nil {
		a.shutdownLocked()
		a.mu.Unlock()
		return nil, corerr.Wrap(component, corerr.ExternalToolError, err)
	}

	readyLine := readyMarker[:len(readyMarker)-1] + tag + "}"
	var out bytes.Buffer
	for {
		line, err := a.stdout.ReadString('\n')
		out.WriteString(line)
		if err != nil {
			a.shutdownLocked()
			a.mu.Unlock()
			return nil, corerr.Wrap(component, corerr.ExternalToolError, err)
		}
		if strings.TrimSpace(line) == readyLine || strings.TrimSpace(line) == readyMarker {
			break
		}
	}
	a.resetIdleLocked()
	a.mu.Unlock()

	if ctx.Err() != nil {
		return nil, corerr.Wrap(component, corerr.Cancelled, ctx.Err())
	}
	return bytes.TrimSuffix(bytes.TrimSpace(out.Bytes()), []byte(readyLine)), nil
}

func (a *Adapter) ensureStartedLocked() error {
	if a.cmd != nil {
		return nil
	}
	cmd := exec.Command(a.toolPath, "-stay_open", "True", "-@", "-")
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return corerr.Wrap(component, corerr.ExternalToolError, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return corerr.Wrap(component, corerr.ExternalToolError, err)
	}
	if err := cmd.Start(); err != nil {
		return corerr.Wrapf(component, corerr.ExternalToolError, err, "starting %s", a.toolPath)
	}

	a.cmd = cmd
	a.stdin = stdin
	a.stdout = bufio.NewReader(stdout)
	a.resetIdleLocked()
	return nil
}

func (a *Adapter) resetIdleLocked() {
	if a.idleTimeout <= 0 {
		return
	}
	if a.idle != nil {
		a.idle.Stop()
	}
	a.idle = time.AfterFunc(a.idleTimeout, func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.shutdownLocked()
	})
}

func (a *Adapter) shutdownLocked() error {
	if a.cmd == nil {
		return nil
	}
	if a.idle != nil {
		a.idle.Stop()
		a.idle = nil
	}
	if a.stdin != nil {
		io.WriteString(a.stdin, "-stay_open\nFalse\n")
		a.stdin.Close()
	}
	err := a.cmd.Wait()
	a.cmd = nil
	a.stdin = nil
	a.stdout = nil
	if err != nil {
		return corerr.Wrap(component, corerr.ExternalToolError, err)
	}
	return nil
}
