package imaging

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/profilekeeper/internal/common"
	"github.com/dmitrijs2005/profilekeeper/internal/models"
)

// execCommand is a seam over exec.CommandContext.
var execCommand = exec.CommandContext

// Acquirer obtains raw image bytes from a source.
type Acquirer interface {
	Acquire(ctx context.Context, src models.PhotoSource) ([]byte, error)
}

// DeviceAcquirer reads library photos from a file the user picks and camera
// photos by running a capture command.
type DeviceAcquirer struct {
	// PickFile asks the user for a path. An empty path cancels.
	PickFile func(ctx context.Context) (string, error)
	// CaptureCommand is split on spaces; "{out}" is replaced by the path the
	// command must write the image to.
	CaptureCommand string
}

func (a *DeviceAcquirer) Acquire(ctx context.Context, src models.PhotoSource) ([]byte, error) {
	switch src {
	case models.PhotoFromLibrary:
		return a.fromLibrary(ctx)
	case models.PhotoFromCamera:
		return a.fromCamera(ctx)
	default:
		return nil, fmt.Errorf("unknown photo source %q", src)
	}
}

func (a *DeviceAcquirer) fromLibrary(ctx context.Context) ([]byte, error) {
	if a.PickFile == nil {
		return nil, common.ErrorUnavailable
	}
	path, err := a.PickFile(ctx)
	if err != nil {
		return nil, err
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, common.ErrorCancelled
	}
	return os.ReadFile(path)
}

func (a *DeviceAcquirer) fromCamera(ctx context.Context) ([]byte, error) {
	fields := strings.Fields(a.CaptureCommand)
	if len(fields) == 0 {
		return nil, common.ErrorUnavailable
	}

	dir, err := os.MkdirTemp("", "profilekeeper-capture-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)
	out := filepath.Join(dir, "capture.jpg")

	replaced := false
	for i, f := range fields {
		if strings.Contains(f, "{out}") {
			fields[i] = strings.ReplaceAll(f, "{out}", out)
			replaced = true
		}
	}
	if !replaced {
		fields = append(fields, out)
	}

	cmd := execCommand(ctx, fields[0], fields[1:]...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("capture command: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return os.ReadFile(out)
}
