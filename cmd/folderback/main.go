package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/mzhurova/folderback/pkg/buildinfo"
	"github.com/mzhurova/folderback/pkg/config"
	"github.com/mzhurova/folderback/pkg/engine"
	"github.com/mzhurova/folderback/pkg/pathcompression"
	"github.com/mzhurova/folderback/pkg/plog"
	"github.com/mzhurova/folderback/pkg/util"
)

// action defines a special command to execute instead of a backup.
type action int

const (
	actionRunBackup action = iota // The default action is to run a backup.
	actionShowVersion
)

// init is called before main. We use it to set up a custom, more descriptive
// help message for the command-line flags.
func init() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s (version %s):\n", buildinfo.Name, buildinfo.Version)
		fmt.Fprintf(flag.CommandLine.Output(), "A simple directory backup utility with archiving and retention.\n\n")
		flag.PrintDefaults()
	}
}

// parseFlagConfig defines and parses command-line flags, and constructs a
// map containing only the values explicitly provided by those flags.
func parseFlagConfig() (action, map[string]any, error) {
	srcFlag := flag.String("source", "", "Source directory to back up")
	destFlag := flag.String("destination", "", "Destination directory where backups are stored")
	maxBackupsFlag := flag.Int("max-backups", 10, "Number of backups to keep per source folder (0 deletes all)")
	noZipFlag := flag.Bool("no-zip", false, "Keep the backup as a plain directory copy instead of an archive")
	formatFlag := flag.String("compression-format", "", "Archive format: 'zip', 'tar.gz', or 'tar.zst'")
	levelFlag := flag.String("compression-level", "", "Compression level: 'default', 'fastest', 'better', 'best'")
	logLevelFlag := flag.String("log-level", "info", "Set the logging level: 'debug', 'notice', 'info', 'warn', 'error'")
	logFileFlag := flag.String("log-file", "", "Path of the log file (empty disables file logging)")
	dryRunFlag := flag.Bool("dry-run", false, "Show what would be done without making any changes")
	versionFlag := flag.Bool("version", false, "Print the application version and exit")

	flag.Parse()

	// Record which flags the user explicitly set, so defaults in the base
	// configuration are only overridden on purpose.
	usedFlags := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { usedFlags[f.Name] = true })

	flagMap := make(map[string]any)

	addIfUsed := func(name string, value any) {
		if usedFlags[name] {
			flagMap[name] = value
		}
	}

	addIfUsed("source", *srcFlag)
	addIfUsed("destination", *destFlag)
	addIfUsed("max-backups", *maxBackupsFlag)
	addIfUsed("no-zip", *noZipFlag)
	addIfUsed("log-level", *logLevelFlag)
	addIfUsed("log-file", *logFileFlag)
	addIfUsed("dry-run", *dryRunFlag)

	if usedFlags["compression-format"] {
		format, err := pathcompression.ParseFormat(*formatFlag)
		if err != nil {
			return actionRunBackup, nil, err
		}
		flagMap["compression-format"] = format
	}
	if usedFlags["compression-level"] {
		level, err := pathcompression.ParseLevel(*levelFlag)
		if err != nil {
			return actionRunBackup, nil, err
		}
		flagMap["compression-level"] = level
	}

	if *versionFlag {
		return actionShowVersion, flagMap, nil
	}
	return actionRunBackup, flagMap, nil
}

// promptForPath asks the user for a path on the terminal. Used when the
// source or destination flag was not provided.
func promptForPath(in io.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprintf(out, "%s: ", label)
	reader := bufio.NewReader(in)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("could not read %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimSpace(line), nil
}

// buildRunConfig merges flags over defaults, prompts for any missing
// paths, and validates the result.
func buildRunConfig(flagMap map[string]any) (config.Config, error) {
	runConfig := config.MergeFlags(config.NewDefault(), flagMap)

	if runConfig.Source == "" {
		src, err := promptForPath(os.Stdin, os.Stdout, "Enter the source directory to back up")
		if err != nil {
			return config.Config{}, err
		}
		runConfig.Source = src
	}
	if runConfig.Destination == "" {
		dest, err := promptForPath(os.Stdin, os.Stdout, "Enter the destination directory for backups")
		if err != nil {
			return config.Config{}, err
		}
		runConfig.Destination = dest
	}

	src, err := util.ExpandPath(runConfig.Source)
	if err != nil {
		return config.Config{}, err
	}
	runConfig.Source = src

	dest, err := util.ExpandPath(runConfig.Destination)
	if err != nil {
		return config.Config{}, err
	}
	runConfig.Destination = dest

	if err := runConfig.Validate(); err != nil {
		return config.Config{}, err
	}
	return runConfig, nil
}

// runBackup handles the logic for the main backup action.
func runBackup(ctx context.Context, flagMap map[string]any) error {
	runConfig, err := buildRunConfig(flagMap)
	if err != nil {
		return err
	}

	// Set the global log level based on the final configuration.
	plog.SetLevel(plog.LevelFromString(runConfig.LogLevel))

	if err := plog.SetFile(runConfig.LogFile); err != nil {
		// A broken log file should not stop the backup itself.
		plog.Warn("File logging disabled", "reason", err)
	}
	defer plog.CloseFile()

	runConfig.LogSummary()

	startTime := time.Now()
	resultPath, err := engine.NewEngine(runConfig).ExecuteBackup(ctx)
	duration := time.Since(startTime).Round(time.Millisecond)
	if err != nil {
		return err // The error will be logged with full details by main()
	}
	plog.Info(buildinfo.Name+" finished successfully.", "backup", resultPath, "duration", duration)
	return nil
}

// run encapsulates the main application logic and returns an error if
// something goes wrong, allowing main to handle exit codes.
func run(ctx context.Context) error {
	act, flagMap, err := parseFlagConfig()
	if err != nil {
		return err
	}

	switch act {
	case actionShowVersion:
		fmt.Printf("%s version %s\n", buildinfo.Name, buildinfo.Version)
		return nil
	case actionRunBackup:
		return runBackup(ctx, flagMap)
	default:
		return fmt.Errorf("internal error: unknown action %d", act)
	}
}

func main() {
	// Set up a context that is canceled when an interrupt signal is received.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		cancel()
	}()

	if err := run(ctx); err != nil {
		plog.Error(buildinfo.Name+" exited with error", "error", err)
		os.Exit(1)
	}
}
