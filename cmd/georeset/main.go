package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"geovoxel.dev/internal/config"
	"geovoxel.dev/internal/geo"
	"geovoxel.dev/internal/rcon"
	"geovoxel.dev/internal/reset"
)

func main() {
	var (
		cfgPath = flag.String("config", "", "yaml config path (optional; env overrides apply)")
		confirm = flag.Bool("confirm", false, "actually perform the destructive reset")
		minS    = flag.String("min", "-64,10,-64", "clear area min corner: x,y,z (voxel)")
		maxS    = flag.String("max", "64,130,64", "clear area max corner: x,y,z (voxel)")
		safeS   = flag.String("safe", "0,101,0", "teleport target: x,y,z (voxel)")
		timeV   = flag.String("time", "day", "time of day to lock")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[georeset] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	min, err := parseVoxel(*minS)
	if err != nil {
		logger.Fatalf("bad -min: %v", err)
	}
	max, err := parseVoxel(*maxS)
	if err != nil {
		logger.Fatalf("bad -max: %v", err)
	}
	safe, err := parseVoxel(*safeS)
	if err != nil {
		logger.Fatalf("bad -safe: %v", err)
	}

	client, err := rcon.NewClient(cfg.ClientOptions(), logger)
	if err != nil {
		logger.Fatalf("client: %v", err)
	}
	defer client.Close()

	o := reset.New(client, logger)
	report := o.Run(context.Background(), reset.Options{
		Confirm:   *confirm,
		Min:       min,
		Max:       max,
		SafePoint: safe,
		TimeValue: *timeV,
	})

	out, _ := json.MarshalIndent(report, "", "  ")
	fmt.Println(string(out))
	if !report.Success && !report.PartialSuccess {
		os.Exit(1)
	}
}

func parseVoxel(s string) (geo.VoxelPoint, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return geo.VoxelPoint{}, fmt.Errorf("want x,y,z, got %q", s)
	}
	var vals [3]int64
	for i, p := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return geo.VoxelPoint{}, fmt.Errorf("bad component %q: %v", p, err)
		}
		vals[i] = n
	}
	return geo.VoxelPoint{X: vals[0], Y: vals[1], Z: vals[2]}, nil
}
