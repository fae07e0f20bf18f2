package disc

import (
	"context"
	"fmt"
	"os/exec"

	"golang.org/x/sys/unix"
)

// Ejector defines disc eject operations.
type Ejector interface {
	Eject(ctx context.Context, device string) error
}

type commandEjector struct {
	binary string
}

// NewEjector creates an ejector that shells out to the eject utility and
// falls back to the CDROMEJECT ioctl when the binary is unavailable.
func NewEjector(binary string) Ejector {
	if binary == "" {
		binary = "eject"
	}
	return commandEjector{binary: binary}
}

func (e commandEjector) Eject(ctx context.Context, device string) error {
	var cmd *exec.Cmd
	if device == "" {
		cmd = exec.CommandContext(ctx, e.binary)
	} else {
		cmd = exec.CommandContext(ctx, e.binary, device)
	}
	if err := cmd.Run(); err != nil {
		if device != "" {
			if ioctlErr := ejectIoctl(device); ioctlErr == nil {
				return nil
			}
		}
		return fmt.Errorf("eject %s: %w", device, err)
	}
	return nil
}

func ejectIoctl(device string) error {
	fd, err := unix.Open(device, unix.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", device, err)
	}
	defer unix.Close(fd) //nolint:errcheck

	if _, err := unix.IoctlRetInt(fd, ioctlCDROMEJECT); err != nil {
		return fmt.Errorf("ioctl CDROMEJECT on %s: %w", device, err)
	}
	return nil
}
