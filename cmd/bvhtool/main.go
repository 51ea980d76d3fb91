// bvhtool inspects BVH motion-capture files and evaluates their skeletons.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"github.com/Faultbox/mocap/internal/logger"
)

// errUsage is returned after the usage text has been printed.
var errUsage = errors.New("usage")

type commandFunc func(ctx context.Context, stdout io.Writer, args []string) error

var commands = map[string]commandFunc{
	"info":      cmdInfo,
	"tree":      cmdTree,
	"positions": cmdPositions,
	"export":    cmdExport,
	"euler":     cmdEuler,
	"check":     cmdCheck,
	"play":      cmdPlay,
	"plot":      cmdPlot,
}

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Stdout, os.Args[1:])
	stop()
	logger.Sync()

	switch {
	case err == nil:
	case errors.Is(err, errUsage):
		os.Exit(2)
	default:
		logger.Log.Error("command failed", zap.String("command", os.Args[1]), zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run dispatches args[0] to its subcommand.
func run(ctx context.Context, stdout io.Writer, args []string) error {
	name := args[0]
	switch name {
	case "help", "-h", "--help":
		printUsage(stdout)
		return nil
	}

	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", name)
		printUsage(os.Stderr)
		return errUsage
	}
	return cmd(ctx, stdout, args[1:])
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `bvhtool - BVH motion-capture utility

Usage:
  bvhtool <command> [flags] <file.bvh>

Commands:
  info       Show skeleton and clip summary
  tree       Print the joint hierarchy
  positions  Write world-space joint positions as CSV
  export     Write one frame's bone segments as little-endian float32
  euler      Print a joint's world rotation as Euler angles per frame
  check      Parse and evaluate every file, report all failures
  play       Step through the clip in real time, printing a joint's position
  plot       Draw a joint's world trajectory to an image

Shared flags:
  -config PATH     Config file (default ./bvhtool.yaml)
  -debug           Debug logging
  -workers N       Kinematics workers (0 = GOMAXPROCS)
  -no-end-sites    Drop End Site joints
  -scale S         Export coordinate scale

Examples:
  bvhtool info walk.bvh
  bvhtool positions -frame 10 walk.bvh
  bvhtool export -frame 0 -o walk.bin walk.bvh
  bvhtool euler -joint Head walk.bvh
  bvhtool check clips/*.bvh
  bvhtool play -seconds 5 -joint Head walk.bvh
  bvhtool plot -joint LeftHand -o hand.svg walk.bvh`)
}
