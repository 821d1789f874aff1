package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lucasfontes/teamsbridge/internal/bridge"
	"github.com/lucasfontes/teamsbridge/internal/config"
	"github.com/lucasfontes/teamsbridge/internal/dashboard"
	"github.com/lucasfontes/teamsbridge/internal/graph"
	"github.com/lucasfontes/teamsbridge/internal/logging"
	"github.com/lucasfontes/teamsbridge/internal/notify"
	"github.com/lucasfontes/teamsbridge/internal/teams"
)

func main() {
	if len(os.Args) < 2 {
		runDashboard()
		return
	}

	switch os.Args[1] {
	case "run":
		runDashboard()
	case "set":
		runSet()
	case "status":
		runStatus()
	case "cloud":
		runCloud()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `usage: teamsbridge [command]

commands:
  run               start the interactive dashboard (default)
  set <status>      connect, set the status once, and exit
  status            report whether a Teams endpoint is reachable
  cloud get <user>  read presence via Microsoft Graph
  cloud set <user> <status>
                    publish a status message via Microsoft Graph

set and status accept -timeout to bound endpoint discovery.
`)
}

// newSupervisor wires the locate/connect stack behind a supervisor.
func newSupervisor(log *logging.Logger) *bridge.Supervisor {
	prober := teams.NewProber(log.Debugf)
	locator := teams.NewLocator(prober, log.Debugf)
	locator.ConfigPath = config.TeamsConfigPath()
	client := teams.NewClient(log.Debugf)

	return bridge.New(bridge.Config{}, locator, client, log.Infof)
}

func openLogger() *logging.Logger {
	log, err := logging.New(config.LogPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening log: %v\n", err)
		os.Exit(1)
	}
	return log
}

func runDashboard() {
	log := openLogger()
	defer log.Close()

	sup := newSupervisor(log)
	defer sup.Close()

	desktop := notify.NewDesktop(log.Warnf)
	desktop.Watch(sup.Events())

	sup.Start()
	sup.Connect()

	model := dashboard.NewModel(sup, dashboard.Schedule{
		Interval: config.Interval(),
		Within:   config.WithinSchedule,
		Default:  config.DefaultStatus(),
	})

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func runSet() {
	fs := flag.NewFlagSet("set", flag.ExitOnError)
	timeout := fs.Duration("timeout", 10*time.Minute, "endpoint discovery time budget")
	fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "usage: teamsbridge set [-timeout d] <status>\n")
		os.Exit(1)
	}
	st, ok := teams.ParseStatus(fs.Arg(0))
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown status: %s\n", fs.Arg(0))
		fmt.Fprintf(os.Stderr, "valid statuses:\n")
		for _, s := range teams.Statuses() {
			fmt.Fprintf(os.Stderr, "  %s\n", s.Label)
		}
		os.Exit(1)
	}

	log := openLogger()
	defer log.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	prober := teams.NewProber(log.Debugf)
	locator := teams.NewLocator(prober, log.Debugf)
	locator.ConfigPath = config.TeamsConfigPath()

	port, found := locator.Locate(ctx)
	if !found {
		fmt.Fprintln(os.Stderr, "no Teams endpoint found")
		os.Exit(1)
	}

	client := teams.NewClient(log.Debugf)
	if err := client.Open(ctx, port); err != nil {
		fmt.Fprintf(os.Stderr, "connect failed: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	if err := client.SendStatus(ctx, st); err != nil {
		fmt.Fprintf(os.Stderr, "set failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("status set to %s (port %d)\n", st.Label, port)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	timeout := fs.Duration("timeout", 10*time.Minute, "endpoint discovery time budget")
	fs.Parse(os.Args[2:])

	log := openLogger()
	defer log.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	prober := teams.NewProber(log.Debugf)
	locator := teams.NewLocator(prober, log.Debugf)
	locator.ConfigPath = config.TeamsConfigPath()

	port, found := locator.Locate(ctx)
	if !found {
		fmt.Println("? no Teams endpoint reachable")
		os.Exit(1)
	}
	fmt.Printf("Teams endpoint listening on port %d\n", port)
}

func runCloud() {
	if len(os.Args) < 4 {
		fmt.Fprintf(os.Stderr, "usage: teamsbridge cloud get <user> | cloud set <user> <status>\n")
		os.Exit(1)
	}

	creds, err := graph.LoadCredentials()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	log := openLogger()
	defer log.Close()

	client := graph.NewClient(*creds, log.Debugf)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch os.Args[2] {
	case "get":
		availability, err := client.GetPresence(ctx, os.Args[3])
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(availability)
	case "set":
		if len(os.Args) < 5 {
			fmt.Fprintf(os.Stderr, "usage: teamsbridge cloud set <user> <status>\n")
			os.Exit(1)
		}
		st, ok := teams.ParseStatus(os.Args[4])
		if !ok {
			fmt.Fprintf(os.Stderr, "unknown status: %s\n", os.Args[4])
			os.Exit(1)
		}
		if err := client.SetStatusMessage(ctx, os.Args[3], st); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("cloud status for %s set to %s\n", os.Args[3], st.Label)
	default:
		fmt.Fprintf(os.Stderr, "unknown cloud command: %s\n", os.Args[2])
		os.Exit(1)
	}
}
