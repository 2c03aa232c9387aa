package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hako/durafmt"
	natomic "github.com/natefinch/atomic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/liftbridge-io/walscan/config"
	"github.com/liftbridge-io/walscan/internal/logger"
	"github.com/liftbridge-io/walscan/logtail"
)

func main() {
	app := cli.NewApp()
	app.Name = "walscan"
	app.Usage = "scan a WAL directory's tail and report whether crash recovery is required"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "dir", Usage: "directory containing WAL segment files"},
		cli.StringFlag{Name: "prefix", Value: "wal", Usage: "segment filename prefix"},
		cli.StringFlag{Name: "config", Usage: "path to a config file"},
		cli.StringFlag{Name: "report", Usage: "path to write a JSON recovery report"},
		cli.StringFlag{Name: "metrics-addr", Usage: "address to serve Prometheus metrics on while scanning"},
		cli.BoolFlag{Name: "verbose", Usage: "enable debug logging"},
		cli.IntFlag{Name: "format-version", Usage: "segment Header format version to require (defaults to the version this build understands)"},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// report is the JSON shape written to --report: one field per
// logtail.TailInformation accessor, except that LastCheckPoint is split into
// a presence flag and its two coordinates and HasAnySegment is not included.
type report struct {
	HasCheckPoint                bool   `json:"has_check_point"`
	CheckPointSegmentVersion     uint64 `json:"check_point_segment_version,omitempty"`
	CheckPointByteOffset         uint64 `json:"check_point_byte_offset,omitempty"`
	CommitsAfterLastCheckPoint   bool   `json:"commits_after_last_check_point"`
	FirstTxIdAfterLastCheckPoint int64  `json:"first_tx_id_after_last_check_point"`
	OldestSegmentVersionFound    uint64 `json:"oldest_segment_version_found"`
	LatestSegmentVersion         uint64 `json:"latest_segment_version"`
	LogsMissing                  bool   `json:"logs_missing"`
	LatestEntryFormatVersion     uint8  `json:"latest_entry_format_version"`
	StoreId                      string `json:"store_id"`
	CorruptTailSeen              bool   `json:"corrupt_tail_seen"`
	IsRecoveryRequired           bool   `json:"is_recovery_required"`
}

func toReport(info logtail.TailInformation) report {
	r := report{
		CommitsAfterLastCheckPoint:   info.CommitsAfterLastCheckPoint(),
		FirstTxIdAfterLastCheckPoint: info.FirstTxIdAfterLastCheckPoint(),
		OldestSegmentVersionFound:    info.OldestSegmentVersionFound(),
		LatestSegmentVersion:         info.LatestSegmentVersion(),
		LogsMissing:                  info.LogsMissing(),
		LatestEntryFormatVersion:     info.LatestEntryFormatVersion(),
		StoreId:                      info.StoreId().String(),
		CorruptTailSeen:              info.CorruptTailSeen(),
		IsRecoveryRequired:           info.IsRecoveryRequired(),
	}
	if pos, ok := info.LastCheckPoint(); ok {
		r.HasCheckPoint = true
		r.CheckPointSegmentVersion = pos.SegmentVersion
		r.CheckPointByteOffset = pos.ByteOffset
	}
	return r
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if dir := c.String("dir"); dir != "" {
		cfg.Dir = dir
	}
	if c.IsSet("prefix") {
		cfg.Prefix = c.String("prefix")
	}
	if report := c.String("report"); report != "" {
		cfg.ReportPath = report
	}
	if addr := c.String("metrics-addr"); addr != "" {
		cfg.MetricsAddr = addr
	}
	if c.Bool("verbose") {
		cfg.Verbose = true
	}
	if c.IsSet("format-version") {
		cfg.FormatVersion = uint8(c.Int("format-version"))
	}
	if cfg.Dir == "" {
		return cli.NewExitError("walscan: --dir is required", 1)
	}

	log := logger.New(logrus.InfoLevel)
	log.Silent(!cfg.Verbose)

	var monitor logtail.Monitor = logtail.NopMonitor{}
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		pm := logtail.NewPrometheusMonitor(reg)
		monitor = pm
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				log.Warnf("metrics server stopped: %v", err)
			}
		}()
	}

	segments := logtail.NewLogFileSet(cfg.Dir, cfg.Prefix)
	scanner := logtail.NewTailScanner(segments, monitor, log, cfg.FormatVersion)

	start := time.Now()
	info, err := scanner.ScanTail(context.Background())
	if err != nil {
		return errorsf("scan tail: %v", err)
	}
	elapsed := durafmt.Parse(time.Since(start)).String()

	size, _ := segments.Size(info.LatestSegmentVersion())
	fmt.Printf("scanned through segment %d (%s) in %s: recovery required = %v\n",
		info.LatestSegmentVersion(), humanize.Bytes(size), elapsed, info.IsRecoveryRequired())

	out := toReport(info)
	if cfg.ReportPath != "" {
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return errorsf("marshal report: %v", err)
		}
		if err := natomic.WriteFile(cfg.ReportPath, bytes.NewReader(data)); err != nil {
			return errorsf("write report: %v", err)
		}
	}

	if info.IsRecoveryRequired() {
		return cli.NewExitError("recovery required", 2)
	}
	return nil
}

func errorsf(format string, args ...interface{}) error {
	return cli.NewExitError(fmt.Sprintf(format, args...), 1)
}
