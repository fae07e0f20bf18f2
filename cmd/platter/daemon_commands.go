package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"platter/internal/ipc"
	"platter/internal/preflight"
	"platter/internal/queue"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the platter daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			if daemonReachable(cmd.Context(), ctx) {
				fmt.Fprintln(stdout, "Daemon already running")
				return nil
			}

			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			if err := launchDaemon(exe, ctx); err != nil {
				return err
			}
			fmt.Fprintln(stdout, "Daemon not running, launching...")

			if waitForDaemon(cmd.Context(), ctx, 10*time.Second) {
				fmt.Fprintln(stdout, "Daemon started")
				return nil
			}
			return errors.New("daemon did not become ready; check the daemon log for details")
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the platter daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			pid, err := readDaemonPID(ctx)
			if err != nil {
				if daemonReachable(cmd.Context(), ctx) {
					return fmt.Errorf("daemon is running but its pid file is unreadable: %w", err)
				}
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}

			if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
				if errors.Is(err, syscall.ESRCH) {
					fmt.Fprintln(stdout, "Daemon is not running")
					return nil
				}
				return fmt.Errorf("signal daemon (pid %d): %w", pid, err)
			}

			fmt.Fprintf(stdout, "Stopping daemon (pid %d)...\n", pid)
			deadline := time.Now().Add(10 * time.Second)
			for time.Now().Before(deadline) {
				if syscall.Kill(pid, 0) != nil {
					fmt.Fprintln(stdout, "Daemon stopped")
					return nil
				}
				time.Sleep(200 * time.Millisecond)
			}
			fmt.Fprintln(stdout, "Stop request sent")
			return nil
		},
	}

	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the platter daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			if pid, err := readDaemonPID(ctx); err == nil {
				if err := syscall.Kill(pid, syscall.SIGTERM); err == nil {
					deadline := time.Now().Add(10 * time.Second)
					for time.Now().Before(deadline) && syscall.Kill(pid, 0) == nil {
						time.Sleep(200 * time.Millisecond)
					}
					fmt.Fprintln(stdout, "Daemon stopped")
				}
			}

			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			if err := launchDaemon(exe, ctx); err != nil {
				return err
			}
			if waitForDaemon(cmd.Context(), ctx, 10*time.Second) {
				fmt.Fprintln(stdout, "Daemon restarted")
				return nil
			}
			return errors.New("daemon did not become ready; check the daemon log for details")
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show system and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatusCommand(cmd, ctx)
		},
	}

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func runStatusCommand(cmd *cobra.Command, ctx *commandContext) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	stdout := cmd.OutOrStdout()
	colorize := shouldColorize(stdout)

	var daemonStatus *ipc.StatusResponse
	if client, dialErr := ctx.dialClient(); dialErr == nil {
		pingCtx, cancel := context.WithTimeout(cmd.Context(), 2*time.Second)
		if resp, statusErr := client.Status(pingCtx); statusErr == nil {
			daemonStatus = &resp
		}
		cancel()
	}

	for _, line := range renderSectionHeader("System Status", colorize) {
		fmt.Fprintln(stdout, line)
	}
	if daemonStatus != nil && daemonStatus.Running {
		fmt.Fprintln(stdout, renderStatusLine("Daemon", statusOK, "Running", colorize))
		monitoring := "Manual detection only"
		kind := statusWarn
		if daemonStatus.DiscMonitoring {
			monitoring = "Watching for inserted discs"
			kind = statusOK
		}
		fmt.Fprintln(stdout, renderStatusLine("Disc monitor", kind, monitoring, colorize))
	} else {
		fmt.Fprintln(stdout, renderStatusLine("Daemon", statusError, "Not running", colorize))
	}
	probe := preflight.ProbeDrive(cfg.Ripper.OpticalDrive)
	probeKind := statusInfo
	if probe.Err != nil {
		probeKind = statusWarn
	}
	fmt.Fprintln(stdout, renderStatusLine("Optical drive", probeKind, probe.Detail(), colorize))
	fmt.Fprintln(stdout)

	for _, line := range renderSectionHeader("Dependencies", colorize) {
		fmt.Fprintln(stdout, line)
	}
	for _, line := range dependencyLines(preflight.CheckSystemDeps(cfg), colorize) {
		fmt.Fprintln(stdout, line)
	}
	fmt.Fprintln(stdout)

	for _, line := range renderSectionHeader("Library Paths", colorize) {
		fmt.Fprintln(stdout, line)
	}
	for _, check := range []preflight.Result{
		preflight.CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir),
		preflight.CheckDirectoryAccess("Library directory", cfg.Paths.LibraryDir),
	} {
		kind := statusError
		if check.Passed {
			kind = statusOK
		}
		fmt.Fprintln(stdout, renderStatusLine(check.Name, kind, check.Detail, colorize))
	}
	fmt.Fprintln(stdout)

	for _, line := range renderSectionHeader("Queue Status", colorize) {
		fmt.Fprintln(stdout, line)
	}
	stats, err := gatherQueueStats(cmd.Context(), ctx, daemonStatus)
	if err != nil {
		return err
	}
	rows := buildQueueStatusRows(stats)
	if len(rows) == 0 {
		fmt.Fprintln(stdout, "Queue is empty")
		return nil
	}
	table := renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
	fmt.Fprintln(stdout, table)
	return nil
}

func gatherQueueStats(ctx context.Context, cmdCtx *commandContext, daemonStatus *ipc.StatusResponse) (map[string]int, error) {
	if daemonStatus != nil {
		return daemonStatus.Workflow.QueueStats, nil
	}
	cfg, err := cmdCtx.ensureConfig()
	if err != nil {
		return nil, err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	stats, err := store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	converted := make(map[string]int, len(stats))
	for status, count := range stats {
		converted[string(status)] = count
	}
	return converted, nil
}

func daemonReachable(ctx context.Context, cmdCtx *commandContext) bool {
	client, err := cmdCtx.dialClient()
	if err != nil {
		return false
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err = client.Status(pingCtx)
	return err == nil
}

func waitForDaemon(ctx context.Context, cmdCtx *commandContext, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if daemonReachable(ctx, cmdCtx) {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(250 * time.Millisecond):
		}
	}
	return false
}

// daemonExecutable resolves the platterd binary, preferring one installed
// next to the CLI over whatever PATH offers.
func daemonExecutable() (string, error) {
	if exe, err := os.Executable(); err == nil {
		sibling := filepath.Join(filepath.Dir(exe), "platterd")
		if info, statErr := os.Stat(sibling); statErr == nil && !info.IsDir() {
			return sibling, nil
		}
	}
	path, err := exec.LookPath("platterd")
	if err != nil {
		return "", fmt.Errorf("locate platterd binary: %w", err)
	}
	return path, nil
}

func launchDaemon(exe string, cmdCtx *commandContext) error {
	var args []string
	if cmdCtx.configFlag != nil {
		if configPath := strings.TrimSpace(*cmdCtx.configFlag); configPath != "" {
			args = append(args, "--config", configPath)
		}
	}
	launch := exec.Command(exe, args...)
	launch.Stdout = nil
	launch.Stderr = nil
	launch.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := launch.Start(); err != nil {
		return fmt.Errorf("launch %s: %w", exe, err)
	}
	return launch.Process.Release()
}

func readDaemonPID(cmdCtx *commandContext) (int, error) {
	cfg, err := cmdCtx.ensureConfig()
	if err != nil {
		return 0, err
	}
	pidPath := filepath.Join(cfg.Paths.LogDir, "platter.pid")
	data, err := os.ReadFile(pidPath)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid file %s", pidPath)
	}
	return pid, nil
}
