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

	"geovoxel.dev/internal/audit"
	"geovoxel.dev/internal/config"
	"geovoxel.dev/internal/geo"
	"geovoxel.dev/internal/horizon"
	"geovoxel.dev/internal/progress"
	"geovoxel.dev/internal/protocol"
	"geovoxel.dev/internal/rcon"
	"geovoxel.dev/internal/reportdb"
	"geovoxel.dev/internal/script"
	"geovoxel.dev/internal/survey"
)

func main() {
	var (
		cfgPath = flag.String("config", "", "yaml config path (optional; env overrides apply)")
		mode    = flag.String("mode", "trajectory", "input mode: trajectory | quad | lines")
		inPath  = flag.String("in", "", "input JSON file")
		startS  = flag.String("start", "0,0,0", "trajectory start point: easting,northing,elevation")
		originS = flag.String("origin", "", "world origin mapped to voxel 0,0 (default: trajectory start)")
		block   = flag.String("block", "stone", "block type to place")
		step    = flag.Float64("step", 0, "densification step in depth units (0 = one voxel scale)")
		execute = flag.Bool("execute", false, "execute against the configured server instead of printing")
		recent  = flag.Int("recent", 0, "list the n most recent execution reports and exit")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[geobuild] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	if *recent > 0 {
		listRecent(logger, cfg, *recent)
		return
	}

	if *inPath == "" {
		logger.Fatalf("missing -in")
	}
	raw, err := os.ReadFile(*inPath)
	if err != nil {
		logger.Fatalf("read input: %v", err)
	}

	start, err := parseVec(*startS)
	if err != nil {
		logger.Fatalf("bad -start: %v", err)
	}
	origin := start
	if *originS != "" {
		if origin, err = parseVec(*originS); err != nil {
			logger.Fatalf("bad -origin: %v", err)
		}
	}

	tcfg := cfg.TransformConfig()
	tcfg.OriginX, tcfg.OriginY = origin.X, origin.Y
	tr, err := geo.NewTransform(tcfg)
	if err != nil {
		logger.Fatalf("transform: %v", err)
	}

	voxels, label, err := buildVoxels(logger, *mode, raw, start, tr, *step, cfg.MaxPoints)
	if err != nil {
		logger.Fatalf("%v", err)
	}

	s, err := script.Batch(script.Uniform(voxels, *block), script.BatchOptions{
		Marker: fmt.Sprintf("%s build complete (%d blocks)", label, len(voxels)),
	})
	if err != nil {
		logger.Fatalf("batch: %v", err)
	}
	logger.Printf("%s: %d voxels -> %d commands", label, len(voxels), len(s))

	if !*execute {
		fmt.Print(s.Render())
		return
	}

	run(logger, cfg, s)
}

// buildVoxels parses the input for the selected mode and returns the
// deduplicated voxel set.
func buildVoxels(logger *log.Logger, mode string, raw []byte, start geo.WorldPoint, tr *geo.Transform, step float64, maxPoints int) ([]geo.VoxelPoint, string, error) {
	switch mode {
	case "trajectory":
		stations, err := survey.ParseStations(raw)
		if err != nil {
			return nil, "", err
		}
		t, err := survey.Compute(stations, start, tr, step, maxPoints)
		if err != nil {
			return nil, "", err
		}
		logger.Printf("trajectory: depth=%.1f hdisp=%.1f length=%.1f clamped=%d",
			t.Stats.MaxDepth, t.Stats.HorizontalDisplacement, t.Stats.PathLength, t.Clamped)
		return t.Voxels, "trajectory", nil

	case "quad":
		corners, err := horizon.ParseCorners(raw)
		if err != nil {
			return nil, "", err
		}
		surf, err := horizon.InterpolateQuad(corners, tr, maxPoints)
		if err != nil {
			return nil, "", err
		}
		if surf.Warning != "" {
			logger.Printf("warning: %s", surf.Warning)
		}
		return surf.Voxels, "horizon", nil

	case "lines":
		recs, err := horizon.ParseLines(raw)
		if err != nil {
			return nil, "", err
		}
		surf, err := horizon.InterpolateLines(recs, tr, maxPoints)
		if err != nil {
			return nil, "", err
		}
		if surf.Warning != "" {
			logger.Printf("warning: %s", surf.Warning)
		}
		return surf.Voxels, "horizon", nil

	default:
		return nil, "", fmt.Errorf("unknown mode %q", mode)
	}
}

func run(logger *log.Logger, cfg config.Config, s script.Script) {
	client, err := rcon.NewClient(cfg.ClientOptions(), logger)
	if err != nil {
		logger.Fatalf("client: %v", err)
	}
	defer client.Close()

	var auditLog *audit.Logger
	if cfg.AuditDir != "" {
		auditLog = audit.NewLogger(cfg.AuditDir)
		defer auditLog.Close()
	}

	var feed *progress.Server
	if cfg.ProgressAddr != "" {
		feed = progress.NewServer(logger)
		go func() {
			if err := feed.Serve(cfg.ProgressAddr); err != nil {
				logger.Printf("progress feed: %v", err)
			}
		}()
	}

	report := client.ExecuteBatch(context.Background(), s,
		func(runID string, i, total int, cmd script.Command, res protocol.CommandResult) {
			if auditLog != nil {
				_ = auditLog.WriteCommand(runID, cmd.Text(), res)
			}
			if feed != nil {
				feed.Publish(runID, i, total, cmd, res)
			}
		})

	if auditLog != nil {
		_ = auditLog.WriteReport(report)
	}
	if cfg.ReportDB != "" {
		if db, err := reportdb.Open(cfg.ReportDB); err == nil {
			_ = db.Write(report)
			_ = db.Close()
		} else {
			logger.Printf("reportdb: %v", err)
		}
	}

	out, _ := json.MarshalIndent(report, "", "  ")
	fmt.Println(string(out))
	if !report.Success {
		os.Exit(1)
	}
}

func listRecent(logger *log.Logger, cfg config.Config, n int) {
	if cfg.ReportDB == "" {
		logger.Fatalf("no report_db configured")
	}
	db, err := reportdb.Open(cfg.ReportDB)
	if err != nil {
		logger.Fatalf("reportdb: %v", err)
	}
	defer db.Close()

	rows, err := db.Recent(n)
	if err != nil {
		logger.Fatalf("reportdb: %v", err)
	}
	for _, r := range rows {
		fmt.Printf("%s %s ok=%v cmds=%d blocks=%d failures=%d elapsed=%dms\n",
			r.RecordedAt, r.RunID, r.Success, r.CommandsExecuted, r.BlocksAffected, r.Failures, r.ElapsedMS)
	}
}

func parseVec(s string) (geo.WorldPoint, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return geo.WorldPoint{}, fmt.Errorf("want x,y,z, got %q", s)
	}
	var vals [3]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return geo.WorldPoint{}, fmt.Errorf("bad component %q: %v", p, err)
		}
		vals[i] = f
	}
	return geo.WorldPoint{X: vals[0], Y: vals[1], Z: vals[2]}, nil
}
