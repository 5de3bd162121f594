// keyspeakctl is the control CLI for keyspeakd.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"keyspeakd/internal/config"
	"keyspeakd/internal/ipc"
)

var (
	configPath = flag.String("config", "", "path to config file")
	socketPath = flag.String("socket", "", "path to daemon control socket")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}

	cmd := flag.Arg(0)

	switch cmd {
	case "status":
		cmdStatus()
	case "ping":
		cmdPing()
	case "speak":
		if flag.NArg() < 2 {
			fmt.Fprintln(os.Stderr, "Usage: keyspeakctl speak <text>")
			os.Exit(1)
		}
		cmdSpeak(strings.Join(flag.Args()[1:], " "))
	case "key":
		if flag.NArg() < 2 {
			fmt.Fprintln(os.Stderr, "Usage: keyspeakctl key <code> [label]")
			os.Exit(1)
		}
		cmdKey(flag.Arg(1), optArg(2))
	case "describe":
		if flag.NArg() < 2 {
			fmt.Fprintln(os.Stderr, "Usage: keyspeakctl describe <code> [label]")
			os.Exit(1)
		}
		cmdDescribe(flag.Arg(1), optArg(2))
	case "history":
		limit := 20
		if flag.NArg() >= 2 {
			n, err := strconv.Atoi(flag.Arg(1))
			if err != nil || n <= 0 {
				fmt.Fprintf(os.Stderr, "Invalid limit: %s\n", flag.Arg(1))
				os.Exit(1)
			}
			limit = n
		}
		cmdHistory(limit)
	case "prune":
		if flag.NArg() < 2 {
			fmt.Fprintln(os.Stderr, "Usage: keyspeakctl prune <days>")
			os.Exit(1)
		}
		cmdPrune(flag.Arg(1))
	case "check":
		pkg, class := "", ""
		if flag.NArg() >= 3 {
			pkg = flag.Arg(1)
			class = flag.Arg(2)
		}
		cmdCheck(pkg, class)
	case "reload":
		cmdReload(optArg(1))
	case "stop":
		cmdStop()
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `keyspeakctl - Control utility for keyspeakd

Usage: keyspeakctl [options] <command> [args]

Commands:
  status                 Show daemon status and statistics
  ping                   Check whether the daemon is responsive
  speak <text>           Announce arbitrary text
  key <code> [label]     Announce a key through the description chain
  describe <code> [label] Resolve a key description without speaking
  history [limit]        Print recent announcements
  prune <days>           Remove announcements older than <days> days
  check [package class]  Query input method registration state
  reload [path]          Reload the key description table
  stop                   Stop the daemon
  help                   Show this help message

Options:
  -config <path>  Path to config file (default: ~/.config/keyspeakd/config.toml)
  -socket <path>  Control socket path (default: from config)`)
}

// connect dials the daemon control socket, resolving the path from the
// -socket flag or the configuration.
func connect() *ipc.Client {
	client := ipc.NewClient(ipc.DefaultClientConfig(socketAddr()))
	if err := client.Connect(); err != nil {
		if errors.Is(err, ipc.ErrDaemonNotRunning) {
			fmt.Fprintln(os.Stderr, "keyspeakd is not running")
			fmt.Fprintln(os.Stderr, "Start it with: keyspeakd")
		} else {
			fmt.Fprintf(os.Stderr, "Cannot connect to daemon: %v\n", err)
		}
		os.Exit(1)
	}
	return client
}

func socketAddr() string {
	if *socketPath != "" {
		return *socketPath
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	return cfg.IPC.SocketPath
}

func cmdStatus() {
	client := connect()
	defer client.Close()

	status, err := client.Status(true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error getting status: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("=== keyspeakd Status ===")
	fmt.Println()

	fmt.Println("Daemon:")
	fmt.Printf("  Version: %s\n", status.Version)
	fmt.Printf("  Started: %s\n", status.StartedAt.Format(time.RFC3339))
	fmt.Printf("  Uptime:  %s\n", status.Uptime.Round(time.Second))
	fmt.Println()

	fmt.Println("Announcer:")
	if status.AccessibilityEnabled {
		fmt.Println("  Accessibility: ENABLED")
	} else {
		fmt.Println("  Accessibility: DISABLED")
	}
	fmt.Printf("  Keymap entries: %d\n", status.KeymapEntries)
	fmt.Println()

	fmt.Println("Input Method:")
	fmt.Printf("  Identity: %s\n", status.InputMethod.Identity)
	fmt.Printf("  Enabled:  %s\n", yesNo(status.InputMethod.Enabled))
	fmt.Printf("  Default:  %s\n", yesNo(status.InputMethod.Default))
	fmt.Println()

	fmt.Println("History:")
	if status.History.Enabled {
		fmt.Printf("  Recorded:   %d\n", status.History.Total)
		fmt.Printf("  Suppressed: %d\n", status.History.Suppressed)
	} else {
		fmt.Println("  (disabled)")
	}

	if len(status.Metrics) > 0 {
		fmt.Println()
		fmt.Println("Metrics:")
		names := make([]string, 0, len(status.Metrics))
		for name := range status.Metrics {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("  %-32s %d\n", name, status.Metrics[name])
		}
	}
}

func cmdPing() {
	client := connect()
	defer client.Close()

	start := time.Now()
	if err := client.Ping(); err != nil {
		fmt.Fprintf(os.Stderr, "Daemon not responding: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("keyspeakd is running (latency %s)\n", time.Since(start).Round(time.Microsecond))
}

func cmdSpeak(text string) {
	client := connect()
	defer client.Close()

	resp, err := client.Speak(text)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if resp.Spoken {
		fmt.Println("Spoken.")
	} else {
		fmt.Printf("Not spoken: %s\n", resp.Reason)
	}
}

func cmdKey(codeArg, label string) {
	client := connect()
	defer client.Close()

	resp, err := client.SpeakKey(parseCode(codeArg), label)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if !resp.Described {
		fmt.Println("No description for this key.")
		return
	}
	if resp.Spoken {
		fmt.Printf("Spoken: %s\n", resp.Text)
	} else {
		fmt.Printf("Described but not spoken (%s): %s\n", resp.Reason, resp.Text)
	}
}

func cmdDescribe(codeArg, label string) {
	client := connect()
	defer client.Close()

	resp, err := client.DescribeKey(parseCode(codeArg), label)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if !resp.Described {
		fmt.Println("No description for this key.")
		return
	}
	fmt.Println(resp.Text)
}

func cmdHistory(limit int) {
	client := connect()
	defer client.Close()

	resp, err := client.History(limit, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if len(resp.Announcements) == 0 {
		fmt.Println("No announcements recorded.")
		return
	}

	fmt.Println("=== Announcement History ===")
	fmt.Printf("Recorded: %d  Suppressed: %d\n\n", resp.Total, resp.Suppressed)

	fmt.Printf("%-6s %-19s %-30s %s\n", "ID", "Time", "Text", "Source")
	fmt.Println(strings.Repeat("-", 78))

	for _, a := range resp.Announcements {
		text := truncate(a.Text, 30)
		source := a.Package
		if a.Class != "" {
			source += "/" + a.Class
		}
		if a.Suppressed {
			source += " (suppressed)"
		}
		fmt.Printf("%-6d %-19s %-30s %s\n", a.ID, a.ReceivedAt.Format("2006-01-02 15:04:05"), text, source)
	}
}

func cmdPrune(daysArg string) {
	days, err := strconv.Atoi(daysArg)
	if err != nil || days <= 0 {
		fmt.Fprintf(os.Stderr, "Invalid day count: %s\n", daysArg)
		os.Exit(1)
	}

	client := connect()
	defer client.Close()

	resp, err := client.PruneHistory(time.Duration(days) * 24 * time.Hour)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Removed %d announcements older than %d days.\n", resp.Removed, days)
}

func cmdCheck(pkg, class string) {
	client := connect()
	defer client.Close()

	resp, err := client.CheckIME(pkg, class)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("=== Input Method Check ===")
	fmt.Printf("Identity:      %s\n", resp.Identity)
	fmt.Printf("Accessibility: %s\n", enabledDisabled(resp.AccessibilityEnabled))
	fmt.Printf("Enabled:       %s\n", yesNo(resp.Enabled))
	fmt.Printf("Default:       %s\n", yesNo(resp.Default))
}

func cmdReload(path string) {
	client := connect()
	defer client.Close()

	resp, err := client.ReloadKeymap(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if !resp.Success {
		fmt.Fprintf(os.Stderr, "Reload failed: %s\n", resp.Error)
		os.Exit(1)
	}
	fmt.Printf("Keymap reloaded: %d entries.\n", resp.Entries)
}

func cmdStop() {
	client := connect()
	defer client.Close()

	if err := client.Shutdown(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Shutdown requested.")
}

// Helper functions

func optArg(i int) string {
	if flag.NArg() > i {
		return flag.Arg(i)
	}
	return ""
}

func parseCode(arg string) int {
	code, err := strconv.Atoi(arg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid key code: %s\n", arg)
		os.Exit(1)
	}
	return code
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func enabledDisabled(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
