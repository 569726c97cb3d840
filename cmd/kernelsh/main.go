// Command kernelsh is a thin line-oriented REPL over pkg/kernel, exposing
// the commands of spec.md §6. It holds no scheduling logic of its own:
// every command is a direct call into a Kernel method, with parsing and
// formatting as the only work done here.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gokacchi/kernel/internal/process"
	"github.com/gokacchi/kernel/pkg/kernel"
)

func main() {
	k := kernel.New(kernel.WithLogWriter(os.Stderr))
	repl(k, os.Stdin, os.Stdout)
}

func repl(k *kernel.Kernel, in *os.File, out *os.File) {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, "kernelsh> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			dispatch(k, out, line)
		}
		fmt.Fprint(out, "kernelsh> ")
	}
	fmt.Fprintln(out)
}

func dispatch(k *kernel.Kernel, out *os.File, line string) {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "create":
		cmdCreate(k, out, args)
	case "kill":
		cmdKill(k, out, args)
	case "tick":
		cmdTick(k, out, args)
	case "yield":
		k.Yield()
	case "info":
		cmdInfo(k, out, args)
	case "ps":
		fmt.Fprint(out, k.PS())
	case "memstats":
		cmdMemStats(k, out)
	case "schedstats":
		cmdSchedStats(k, out)
	case "schedconf":
		fmt.Fprint(out, k.SchedConfig())
	case "send":
		cmdSend(k, out, args)
	case "recv":
		cmdRecv(k, out)
	case "help":
		printHelp(out)
	case "quit", "exit":
		os.Exit(0)
	default:
		fmt.Fprintf(out, "unknown command %q (try `help`)\n", cmd)
	}
}

func cmdCreate(k *kernel.Kernel, out *os.File, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(out, "usage: create <name> <priority> [required_time]")
		return
	}
	prio, ok := process.ParsePriority(args[1])
	if !ok {
		fmt.Fprintf(out, "invalid priority %q (want low|normal|high|critical)\n", args[1])
		return
	}
	var required uint64
	if len(args) > 2 {
		var err error
		required, err = strconv.ParseUint(args[2], 10, 32)
		if err != nil {
			fmt.Fprintf(out, "invalid required_time %q\n", args[2])
			return
		}
	}
	pid, ok := k.Create(args[0], 0, prio, uint32(required))
	if !ok {
		fmt.Fprintln(out, "create failed: process table full or out of memory")
		return
	}
	fmt.Fprintf(out, "created pid %d\n", pid)
}

func cmdKill(k *kernel.Kernel, out *os.File, args []string) {
	pid, ok := parsePID(out, args)
	if !ok {
		return
	}
	if !k.Kill(pid) {
		fmt.Fprintf(out, "kill: no such process %d\n", pid)
		return
	}
	fmt.Fprintf(out, "killed pid %d\n", pid)
}

func cmdTick(k *kernel.Kernel, out *os.File, args []string) {
	n := 1
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 1 {
			fmt.Fprintf(out, "invalid tick count %q\n", args[0])
			return
		}
		n = v
	}
	k.Tick(n)
	fmt.Fprintf(out, "ticked %d\n", n)
}

func cmdInfo(k *kernel.Kernel, out *os.File, args []string) {
	pid, ok := parsePID(out, args)
	if !ok {
		return
	}
	s, ok := k.Info(pid)
	if !ok {
		fmt.Fprintf(out, "info: no such process %d\n", pid)
		return
	}
	fmt.Fprint(out, s)
}

func cmdMemStats(k *kernel.Kernel, out *os.File) {
	s := k.MemStats()
	fmt.Fprintf(out, "total: %d  used: %d  free: %d  blocks: %d  allocs: %d\n",
		s.TotalBytes, s.UsedBytes, s.FreeBytes, s.NumBlocks, s.NumAllocs)
}

func cmdSchedStats(k *kernel.Kernel, out *os.File) {
	s := k.SchedStats()
	fmt.Fprintf(out, "ticks: %d  idle: %d  dispatches: %d  switches: %d  preemptions: %d  yields: %d  aging boosts: %d\n",
		s.TotalTicks, s.IdleTicks, s.Dispatches, s.ContextSwitches, s.Preemptions, s.VoluntaryYields, s.AgingBoosts)
}

func cmdSend(k *kernel.Kernel, out *os.File, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(out, "usage: send <pid> <word>")
		return
	}
	pid, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		fmt.Fprintf(out, "invalid pid %q\n", args[0])
		return
	}
	word, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil {
		fmt.Fprintf(out, "invalid word %q\n", args[1])
		return
	}
	if !k.Send(uint32(pid), uint32(word)) {
		fmt.Fprintln(out, "send failed: unknown destination or mailbox full")
		return
	}
	fmt.Fprintln(out, "sent")
}

func cmdRecv(k *kernel.Kernel, out *os.File) {
	word, ok := k.Receive()
	if !ok {
		fmt.Fprintln(out, "recv: no message, current process blocked")
		return
	}
	fmt.Fprintf(out, "received %d\n", word)
}

func parsePID(out *os.File, args []string) (uint32, bool) {
	if len(args) < 1 {
		fmt.Fprintln(out, "usage: <cmd> <pid>")
		return 0, false
	}
	v, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		fmt.Fprintf(out, "invalid pid %q\n", args[0])
		return 0, false
	}
	return uint32(v), true
}

func printHelp(out *os.File) {
	fmt.Fprint(out, `commands:
  create <name> <priority> [required_time]
  kill <pid>
  tick [n]
  yield
  info <pid>
  ps
  memstats
  schedstats
  schedconf
  send <pid> <word>
  recv
  help
  quit
`)
}
