package cli

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/bulkdump/internal/bulk"
	"github.com/mesh-intelligence/bulkdump/internal/logging"
	"github.com/mesh-intelligence/bulkdump/internal/metrics"
	"github.com/mesh-intelligence/bulkdump/internal/paths"
	"github.com/mesh-intelligence/bulkdump/internal/transform"
	"github.com/mesh-intelligence/bulkdump/pkg/types"
)

type bulkFlags struct {
	dir         string
	metricsFile string
}

func newBulkJSONCmd(e *env) *cobra.Command {
	var f bulkFlags
	d := types.DefaultConfig().Bulk

	cmd := &cobra.Command{
		Use:   "bulkjson",
		Short: "Convert CSV files into bulk-indexing JSON",
		Long: "Bulkjson converts every file matching --glob in --dir into a\n" +
			"<name>.json file of action and document line pairs for --index.\n" +
			"Date and numeric columns come from bulk.columns in config.yaml.",
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBulkJSON(cmd, e, f)
		},
	}

	cmd.Flags().StringVar(&f.dir, "dir", "", "directory scanned for input files (default: bulk.dir, $BULKDUMP_WORK_DIR, or the working directory)")
	cmd.Flags().String("glob", d.Glob, "input file pattern")
	cmd.Flags().String("index", d.Index, "target index named in every action line")
	cmd.Flags().String("timezone", d.Timezone, "timezone for date columns without an offset")
	cmd.Flags().StringVar(&f.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile on exit")

	return cmd
}

func runBulkJSON(cmd *cobra.Command, e *env, f bulkFlags) error {
	cfg := e.cfg.Bulk
	if err := cfg.Validate(); err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	class, err := cfg.Classification()
	if err != nil {
		return err
	}
	dir, err := paths.ResolveWorkDir(f.dir, cfg.Dir)
	if err != nil {
		return fmt.Errorf("resolve work dir: %w", err)
	}

	tr, err := transform.New(transform.Config{
		Index:          cfg.Index,
		Classification: class,
		Location:       loc,
		DateLayouts:    cfg.DateLayouts,
	})
	if err != nil {
		return err
	}

	log, _ := logging.WithRun(e.log)
	log = log.WithFields(logrus.Fields{"dir": dir, "index": cfg.Index})

	var m *metrics.Collector
	if f.metricsFile != "" {
		m = metrics.NewCollector(prometheus.NewRegistry())
	}

	p := bulk.NewPipeline(tr, bulk.Options{
		Dir:    dir,
		Glob:   cfg.Glob,
		Status: cmd.OutOrStdout(),
	}, log, m)
	sum, err := p.Run(cmd.Context())

	if m != nil {
		if werr := m.WriteTextfile(f.metricsFile); werr != nil {
			log.WithError(werr).WithField("metrics_file", f.metricsFile).Warn("write metrics failed")
		}
	}

	log.WithFields(logrus.Fields{
		"files":     len(sum.Files),
		"failures":  sum.Failures,
		"documents": sum.Documents(),
	}).Info("bulk conversion finished")
	return err
}
