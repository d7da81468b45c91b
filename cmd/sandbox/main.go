package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jhenriksen/sandbox/internal/agent"
	"github.com/jhenriksen/sandbox/internal/docker"
	"github.com/jhenriksen/sandbox/internal/sandbox"
	"github.com/jhenriksen/sandbox/internal/syncer"
	"github.com/jhenriksen/sandbox/internal/tui"
)

func main() {
	var verbose bool

	root := &cobra.Command{
		Use:   "sandbox",
		Short: "Per-task containerized dev sandboxes for untrusted agents",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logrus.SetLevel(logrus.InfoLevel)
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
			logrus.SetOutput(os.Stderr)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := controller()
			if err != nil {
				return err
			}
			return tui.Run(ctrl)
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(runCmd(), listCmd(), deleteCmd(), gcCmd(), agentCmd(), syncWatcherCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, sandbox.ErrUnknownSandbox) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func controller() (*sandbox.Controller, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return sandbox.NewController(wd)
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <name> [-- <cmd>...]",
		Short: "Create a sandbox or attach to a running one",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if err := sandbox.ValidName(name); err != nil {
				return err
			}
			ctrl, err := controller()
			if err != nil {
				return err
			}

			code, err := ctrl.Run(name, args[1:])
			if err != nil {
				return err
			}
			if code != 0 {
				os.Exit(code)
			}
			return nil
		},
	}
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sandboxes for the current repository",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := controller()
			if err != nil {
				return err
			}
			statuses, err := ctrl.Statuses()
			if err != nil {
				return err
			}
			if len(statuses) == 0 {
				fmt.Println("No sandboxes found for this repository.")
				return nil
			}

			fmt.Printf("%-20s %-14s %-8s %s\n", "NAME", "CONTAINER", "VOLUMES", "CREATED")
			for _, st := range statuses {
				state := "absent"
				switch {
				case st.ContainerRunning:
					state = "running"
				case st.ContainerExists:
					state = "stopped"
				}
				fmt.Printf("%-20s %-14s %-8d %s\n",
					st.Info.Name, state, st.VolumeCount,
					st.Info.CreatedAt.Local().Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a sandbox: container, volumes, clone, remotes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := controller()
			if err != nil {
				return err
			}
			if err := ctrl.Delete(args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted sandbox: %s\n", args[0])
			return nil
		},
	}
}

func gcCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gc",
		Short: "Remove overlay volumes whose sandbox directory is gone",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := controller()
			if err != nil {
				return err
			}
			report, err := ctrl.GC()
			if err != nil {
				return err
			}
			for _, vol := range report.Removed {
				fmt.Printf("removed %s\n", vol)
			}
			fmt.Printf("gc: %d scanned, %d removed, %d kept\n",
				report.Scanned, len(report.Removed), report.Kept)
			return nil
		},
	}
}

func agentCmd() *cobra.Command {
	var model string

	cmd := &cobra.Command{
		Use:   "agent <name> [task...]",
		Short: "Run Claude Code inside a sandbox",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if err := sandbox.ValidName(name); err != nil {
				return err
			}
			ctrl, err := controller()
			if err != nil {
				return err
			}

			task := strings.Join(args[1:], " ")

			code, err := ctrl.RunWith(name, func(containerName string, env map[string]string) (int, error) {
				return agent.Run(containerName, agent.Model(model), env, task)
			})
			if err != nil {
				return err
			}
			if code != 0 {
				os.Exit(code)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&model, "model", "m", string(agent.Opus), "claude model (opus, sonnet, haiku)")
	return cmd
}

// syncWatcherCmd is the hidden entry for the watcher child process spawned
// by the controller on container create.
func syncWatcherCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "sync-watcher <sandbox-dir>",
		Hidden: true,
		Args:   cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sandboxDir := args[0]
			info, err := sandbox.LoadInfo(sandboxDir)
			if err != nil {
				return err
			}

			log := logrus.New()
			logPath := filepath.Join(sandboxDir, "sync.log")
			f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
			if err != nil {
				return fmt.Errorf("opening sync log: %w", err)
			}
			defer f.Close()
			log.SetOutput(f)

			w, err := syncer.New(syncer.Options{
				HostRepo:   info.RepoRoot,
				CloneDir:   info.CloneDir,
				HostRemote: "sandbox-" + info.Name,
				ContainerRunning: func() bool {
					return docker.ContainerRunning(info.Container)
				},
				Log: log,
			})
			if err != nil {
				return err
			}

			stop := make(chan struct{})
			sigs := make(chan os.Signal, 1)
			signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigs
				close(stop)
			}()

			return w.Run(stop)
		},
	}
}
