// capturectl - Control client for the captured daemon
//
//	capturectl start            Begin capturing input events
//	capturectl stop             Stop capturing
//	capturectl status           Show daemon status
//	capturectl watch            Stream captured events to stdout
//	capturectl ping             Check that the daemon is responsive
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"captured/internal/bus"
	"captured/internal/config"
	"captured/internal/ipc"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]

	switch cmd {
	case "start":
		cmdStart()
	case "stop":
		cmdStop()
	case "status":
		cmdStatus()
	case "watch":
		cmdWatch()
	case "ping":
		cmdPing()
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`capturectl - Control client for the captured daemon

USAGE:
    capturectl <command> [options]

COMMANDS:
    start      Begin capturing input events
    stop       Stop capturing
    status     Show daemon status
    watch      Stream captured events to stdout
    ping       Check that the daemon is responsive
    help       Show this help message

OPTIONS:
    -addr      Daemon address (default 127.0.0.1:50051)`)
}

// dial parses the subcommand's flags and connects to the daemon.
func dial(args []string) *ipc.Client {
	fs := flag.NewFlagSet(os.Args[1], flag.ExitOnError)
	addr := fs.String("addr", config.DefaultListenAddr, "daemon address")
	fs.Parse(args)

	client, err := ipc.Dial(ipc.DefaultClientConfig(*addr))
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to %s: %v\n", *addr, err)
		os.Exit(1)
	}
	return client
}

func cmdStart() {
	client := dial(os.Args[2:])
	defer client.Close()

	resp, err := client.Start()
	if err != nil {
		fatal(err)
	}
	fmt.Println(resp.Message)
}

func cmdStop() {
	client := dial(os.Args[2:])
	defer client.Close()

	resp, err := client.Stop()
	if err != nil {
		fatal(err)
	}
	fmt.Println(resp.Message)
}

func cmdStatus() {
	client := dial(os.Args[2:])
	defer client.Close()

	status, err := client.Status()
	if err != nil {
		fatal(err)
	}

	state := "idle"
	if status.Capturing {
		state = "capturing"
	}
	fmt.Printf("Version:     %s\n", status.Version)
	fmt.Printf("State:       %s\n", state)
	fmt.Printf("Started:     %s\n", status.StartedAt.Format(time.RFC3339))
	fmt.Printf("Uptime:      %s\n", status.Uptime.Round(time.Second))
	fmt.Printf("Subscribers: %d\n", status.Subscribers)
}

func cmdWatch() {
	client := dial(os.Args[2:])
	defer client.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	err := client.StreamEvents(ctx, func(ev bus.Event) {
		if ev.Details != "" {
			fmt.Printf("%s  %-20s %s\n", ev.Timestamp, ev.Name, ev.Details)
		} else {
			fmt.Printf("%s  %s\n", ev.Timestamp, ev.Name)
		}
	})
	if err != nil && ctx.Err() == nil {
		fatal(err)
	}
}

func cmdPing() {
	client := dial(os.Args[2:])
	defer client.Close()

	started := time.Now()
	if err := client.Ping(); err != nil {
		fatal(err)
	}
	fmt.Printf("pong (%s)\n", time.Since(started).Round(time.Microsecond))
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "capturectl: %v\n", err)
	os.Exit(1)
}
