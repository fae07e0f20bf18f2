package preflight

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"platter/internal/config"
	"platter/internal/deps"
	"platter/internal/disc"
)

// CheckMusicBrainz verifies that the MusicBrainz web service is reachable.
// MusicBrainz requires no authentication; any non-5xx answer means the
// service is up and willing to talk to us.
func CheckMusicBrainz(ctx context.Context, baseURL, userAgent string) Result {
	const name = "MusicBrainz"

	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing base url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, base+"/discid/-?toc=", nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("connectivity check failed (%v)", err)}
	}
	if ua := strings.TrimSpace(userAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("connectivity check failed (%v)", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return Result{Name: name, Detail: fmt.Sprintf("service error (%d)", resp.StatusCode)}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates all external binaries for the given config. Both
// the daemon and the CLI status command use this to avoid duplicating the
// requirements list.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "cd-discid",
			Command:     cfg.DiscIDBinary(),
			Description: "Required for reading the disc table of contents",
		},
		{
			Name:        "cdparanoia",
			Command:     cfg.CdparanoiaBinary(),
			Description: "Required for CD audio extraction",
		},
		{
			Name:        "flac",
			Command:     cfg.FlacBinary(),
			Description: "Required for FLAC encoding",
		},
		{
			Name:        "eject",
			Command:     cfg.EjectBinary(),
			Description: "Opens the tray after ripping completes",
			Optional:    true,
		},
	}
	return deps.CheckBinaries(requirements)
}

// DriveProbe reports the current optical-drive detection snapshot.
type DriveProbe struct {
	Device string
	Status disc.DriveStatus
	Err    error
}

// ProbeDrive queries the drive state via the kernel ioctl interface.
func ProbeDrive(device string) DriveProbe {
	device = strings.TrimSpace(device)
	if device == "" {
		device = "/dev/sr0"
	}
	status, err := disc.CheckDriveStatus(device)
	return DriveProbe{Device: device, Status: status, Err: err}
}

// Detail renders a display-friendly summary for status UIs.
func (p DriveProbe) Detail() string {
	if p.Err != nil {
		return fmt.Sprintf("%s unavailable (%v)", p.Device, p.Err)
	}
	switch p.Status {
	case disc.DriveStatusDiscOK:
		return fmt.Sprintf("Disc loaded in %s", p.Device)
	case disc.DriveStatusTrayOpen:
		return fmt.Sprintf("Tray open on %s", p.Device)
	case disc.DriveStatusNoDisc:
		return fmt.Sprintf("No disc in %s", p.Device)
	case disc.DriveStatusNotReady:
		return fmt.Sprintf("%s not ready", p.Device)
	default:
		return fmt.Sprintf("%s state unknown", p.Device)
	}
}
