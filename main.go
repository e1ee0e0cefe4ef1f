package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"

	goerrors "github.com/go-errors/errors"
	"github.com/integrii/flaggy"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/var77/memscan/pkg/app"
	"github.com/var77/memscan/pkg/config"
	"github.com/var77/memscan/pkg/memory"
	"github.com/var77/memscan/pkg/process"
	"github.com/var77/memscan/pkg/scan"
	"github.com/var77/memscan/pkg/valuetype"
)

const defaultVersion = "unversioned"

var (
	commit  string
	version = defaultVersion
	date    string

	configFlag    bool
	debuggingFlag bool
	listFlag      bool
	listFilter    string
	pidFlag       int
	typeFlag      = "u32"
	valueFlag     string
	startFlag     string
	endFlag       string
	permsFlag     string
	readSizeFlag  int
)

func main() {
	updateBuildInfo()

	info := fmt.Sprintf(
		"%s\nDate: %s\nCommit: %s\nOS: %s\nArch: %s",
		version, date, commit, runtime.GOOS, runtime.GOARCH,
	)

	flaggy.SetName("memscan")
	flaggy.SetDescription("An interactive process-memory scanner")
	flaggy.DefaultParser.AdditionalHelpPrepend = "https://github.com/var77/memscan"

	flaggy.Bool(&configFlag, "c", "config", "Print the default config and exit")
	flaggy.Bool(&debuggingFlag, "d", "debug", "Enable debug logging")
	flaggy.Bool(&listFlag, "l", "list", "List running processes, optionally filtered by name prefix")
	flaggy.String(&listFilter, "", "list-filter", "Name prefix filter to use with --list")
	flaggy.Int(&pidFlag, "p", "pid", "Target process id")
	flaggy.String(&typeFlag, "t", "type", "Value type: u64|i64|u32|i32|string|hex")
	flaggy.String(&valueFlag, "v", "value", "Initial pattern value to scan for")
	flaggy.String(&startFlag, "", "start", "Start address (hex), clips the scanned range")
	flaggy.String(&endFlag, "", "end", "End address (hex), clips the scanned range")
	flaggy.String(&permsFlag, "", "perms", "Comma list of r,w permissions a region must have (default scan.defaultPermissions)")
	flaggy.Int(&readSizeFlag, "", "read-size", "Capture width override for variable-width types")
	flaggy.SetVersion(info)

	flaggy.Parse()

	if configFlag {
		out, err := config.Marshal(config.GetDefaultConfig())
		if err != nil {
			log.Fatal(err.Error())
		}
		fmt.Printf("%s\n", out)
		os.Exit(0)
	}

	a, err := app.NewApp("memscan", version, commit, date, debuggingFlag)
	if err != nil {
		log.Fatal(err.Error())
	}

	if err := run(a.Config, a.Log); err != nil {
		newErr := goerrors.Wrap(err, 0)
		stackTrace := newErr.ErrorStack()
		a.Log.Error(stackTrace)
		log.Fatalf("an error occurred: %s\n\n%s", err.Error(), stackTrace)
	}
}

func run(appConfig *config.AppConfig, logger *logrus.Entry) error {
	ctx := context.Background()

	if listFlag {
		return runList(ctx, appConfig)
	}

	if pidFlag == 0 {
		return fmt.Errorf("--pid is required")
	}

	vt, err := parseValueType(typeFlag)
	if err != nil {
		return err
	}

	permsSource := permsFlag
	if permsSource == "" {
		permsSource = strings.Join(appConfig.UserConfig.Scan.DefaultPermissions, ",")
	}
	perms, err := parsePerms(permsSource)
	if err != nil {
		return err
	}

	pattern, err := vt.Parse(valueFlag)
	if err != nil {
		return fmt.Errorf("invalid --value for type %s: %w", typeFlag, err)
	}

	var startAddr, endAddr *uint64
	if startFlag != "" {
		if startAddr, err = parseHexAddr(startFlag); err != nil {
			return err
		}
	}
	if endFlag != "" {
		if endAddr, err = parseHexAddr(endFlag); err != nil {
			return err
		}
	}

	opts := []scan.Option{scan.WithLogger(logger)}
	if bs := appConfig.UserConfig.Scan.BlockSize; bs > 0 {
		opts = append(opts, scan.WithBlockSize(bs))
	}
	if bounds := appConfig.UserConfig.Scan.ReadSizeBounds; len(bounds) == 2 {
		opts = append(opts, scan.WithReadSizeBounds(bounds[0], bounds[1]))
	}

	s, err := scan.New(pidFlag, pattern, vt, startAddr, endAddr, perms, opts...)
	if err != nil {
		return err
	}

	if readSizeFlag > 0 {
		if err := s.SetReadSize(&readSizeFlag); err != nil {
			return err
		}
	}

	results, err := s.Init()
	if err != nil {
		return err
	}

	printResults(results)
	return nil
}

func runList(ctx context.Context, appConfig *config.AppConfig) error {
	filter := listFilter
	if filter == "" {
		filter = appConfig.UserConfig.Process.NameFilter
	}

	infos, err := process.List(ctx, process.GopsutilLister{}, filter)
	if err != nil {
		return err
	}
	for _, info := range infos {
		fmt.Printf("%d\t%s\n", info.PID, info.Name)
	}
	return nil
}

func printResults(results []scan.Result) {
	for _, r := range results {
		rendered, err := r.String()
		if err != nil {
			rendered = "<unrenderable>"
		}
		fmt.Printf("0x%016x\t%s\t%s\n", r.Address, rendered, r.Perms)
	}
}

func parseValueType(s string) (valuetype.Type, error) {
	switch strings.ToLower(s) {
	case "u64":
		return valuetype.U64, nil
	case "i64":
		return valuetype.I64, nil
	case "u32":
		return valuetype.U32, nil
	case "i32":
		return valuetype.I32, nil
	case "string":
		return valuetype.String, nil
	case "hex":
		return valuetype.Hex, nil
	default:
		return 0, fmt.Errorf("unknown value type %q", s)
	}
}

func parsePerms(s string) (memory.Perm, error) {
	var perms memory.Perm
	for _, part := range strings.Split(s, ",") {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "r", "read":
			perms |= memory.Read
		case "w", "write":
			perms |= memory.Write
		case "":
		default:
			return 0, fmt.Errorf("unknown permission %q", part)
		}
	}
	if perms == 0 {
		perms = memory.DefaultPerms
	}
	return perms, nil
}

func parseHexAddr(s string) (*uint64, error) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(trimmed, 16, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid hex address %q", s)
	}
	return &v, nil
}

func updateBuildInfo() {
	if version == defaultVersion {
		if buildInfo, ok := debug.ReadBuildInfo(); ok {
			revision, found := lo.Find(buildInfo.Settings, func(setting debug.BuildSetting) bool {
				return setting.Key == "vcs.revision"
			})
			if found {
				commit = revision.Value
				if len(revision.Value) > 7 {
					version = revision.Value[:7]
				} else {
					version = revision.Value
				}
			}

			t, found := lo.Find(buildInfo.Settings, func(setting debug.BuildSetting) bool {
				return setting.Key == "vcs.time"
			})
			if found {
				date = t.Value
			}
		}
	}
}
