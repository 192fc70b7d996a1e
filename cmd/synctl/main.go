// synctl sends a SetLocation call to a running sync host, standing in for a
// companion tool. Targets can come from a TOML file so a lab setup with
// several hosts does not need addresses retyped per call.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/emberhq/embersync/internal/client"
	"github.com/emberhq/embersync/internal/logging"
	"github.com/emberhq/embersync/internal/protocol/locwire"
)

// targetsFile persists named sync hosts for repeat use.
type targetsFile struct {
	Targets []targetConfig `toml:"targets"`
}

type targetConfig struct {
	Name string `toml:"name"`
	Addr string `toml:"addr"`
}

func main() {
	addrFlag := flag.String("addr", "", "sync host address (host:port)")
	targetsPath := flag.String("targets", "", "TOML file of named sync hosts")
	targetName := flag.String("target", "", "named host from the targets file")
	offsetFlag := flag.String("offset", "", "file offset to sync to (hex with 0x prefix, or decimal)")
	timeoutFlag := flag.Duration("timeout", 20*time.Second, "call timeout")
	flag.Parse()

	logging.ConfigureRuntime()

	if *offsetFlag == "" {
		fmt.Fprintln(os.Stderr, "synctl: -offset is required")
		flag.Usage()
		os.Exit(2)
	}
	offset, err := strconv.ParseUint(*offsetFlag, 0, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "synctl: bad offset %q: %v\n", *offsetFlag, err)
		os.Exit(2)
	}

	address, err := resolveAddr(*addrFlag, *targetsPath, *targetName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "synctl: %v\n", err)
		os.Exit(2)
	}

	c, err := client.New(client.Config{Address: address, CallTimeout: *timeoutFlag})
	if err != nil {
		fmt.Fprintf(os.Stderr, "synctl: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeoutFlag)
	defer cancel()
	ack, err := c.SetLocation(ctx, offset)
	if err != nil {
		fmt.Fprintf(os.Stderr, "synctl: call failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s: offset=0x%08x status=%s message=%q\n", address, ack.Offset, ack.Status, ack.Message)
	if ack.Status != locwire.StatusOK {
		os.Exit(1)
	}
}

// resolveAddr picks the host address: -addr wins, then -target from the
// targets file, then a lone file entry, then the default port.
func resolveAddr(addrFlag, targetsPath, targetName string) (string, error) {
	if strings.TrimSpace(addrFlag) != "" {
		return strings.TrimSpace(addrFlag), nil
	}
	if targetsPath == "" {
		if targetName != "" {
			return "", errors.New("-target requires -targets")
		}
		return "127.0.0.1:50058", nil
	}

	var file targetsFile
	if _, err := toml.DecodeFile(targetsPath, &file); err != nil {
		return "", fmt.Errorf("targets file %s: %w", targetsPath, err)
	}
	if len(file.Targets) == 0 {
		return "", fmt.Errorf("targets file %s has no targets", targetsPath)
	}

	if targetName == "" {
		if len(file.Targets) == 1 {
			return file.Targets[0].Addr, nil
		}
		return "", fmt.Errorf("targets file %s has %d targets; pick one with -target", targetsPath, len(file.Targets))
	}
	for _, t := range file.Targets {
		if t.Name == targetName {
			if strings.TrimSpace(t.Addr) == "" {
				return "", fmt.Errorf("target %q has no addr", targetName)
			}
			return t.Addr, nil
		}
	}
	return "", fmt.Errorf("target %q not found in %s", targetName, targetsPath)
}
