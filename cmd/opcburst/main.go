// opcburst - batch telemetry poller for OPC data-access servers
//
// opcburst loads a tag list from a CSV or XLSX file, reads the tags from
// a data-access server in bounded bursts, and merges the value, status,
// and timestamp of each read back into the same file. Optional sinks
// record every batch to SQLite, InfluxDB, or MQTT as it lands.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/controlsdev/opcburst/internal/history"
	"github.com/controlsdev/opcburst/internal/infrastructure/config"
	"github.com/controlsdev/opcburst/internal/infrastructure/database"
	"github.com/controlsdev/opcburst/internal/infrastructure/influxdb"
	"github.com/controlsdev/opcburst/internal/infrastructure/logging"
	"github.com/controlsdev/opcburst/internal/infrastructure/mqtt"
	"github.com/controlsdev/opcburst/internal/opc"
	"github.com/controlsdev/opcburst/internal/poller"
	"github.com/controlsdev/opcburst/internal/tagstore"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// defaultConfigPath is used when neither --config nor OPCBURST_CONFIG
// names a file.
const defaultConfigPath = "configs/opcburst.yaml"

const infoText = `opcburst reads a list of data-access tags from a CSV or XLSX file,
polls them from the named server in bursts of at most --maxtagsperinterval
tags, and writes the Value, Status, and Timestamp of each read back into
the file.

The tag file must contain a "Tag" column; the result columns are created
if missing. Between bursts the poller disconnects, waits
--disconnect_wait_time seconds for the server to release tag allocations,
then waits --intervalseconds before the next burst.

Example:
  opcburst --tagfile tags.csv --servername sim://local \
           --maxtagsperinterval 100 --intervalseconds 60
`

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// cliFlags holds the parsed command-line options. Legacy spellings
// (--filename for --tagfile, --client for --servername) are kept so
// existing scheduled jobs keep working.
type cliFlags struct {
	tagFile            string
	fileName           string // alias for tagFile
	serverName         string
	client             string // alias for serverName
	maxTagsPerInterval int
	intervalSeconds    int
	disconnectWait     int
	configPath         string
	showInfo           bool
	showVersion        bool

	fs *pflag.FlagSet
}

// parseFlags builds the flag set and parses args.
func parseFlags(args []string) (*cliFlags, error) {
	f := &cliFlags{}
	fs := pflag.NewFlagSet("opcburst", pflag.ContinueOnError)

	fs.StringVar(&f.tagFile, "tagfile", "", "CSV or XLSX file containing the Tag column")
	fs.StringVar(&f.fileName, "filename", "", "alias for --tagfile")
	fs.StringVar(&f.serverName, "servername", "", "data-access server name (sim:// for the simulator)")
	fs.StringVar(&f.client, "client", "", "alias for --servername")
	fs.IntVar(&f.maxTagsPerInterval, "maxtagsperinterval", 0, "maximum tags read per burst")
	fs.IntVar(&f.intervalSeconds, "intervalseconds", 0, "seconds to wait between bursts")
	fs.IntVar(&f.disconnectWait, "disconnect_wait_time", 0, "seconds to wait after disconnecting before the next burst")
	fs.StringVar(&f.configPath, "config", "", "path to YAML configuration file")
	fs.BoolVar(&f.showInfo, "info", false, "print usage information and exit")
	fs.BoolVar(&f.showVersion, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	f.fs = fs
	return f, nil
}

// effectiveTagFile returns --tagfile, falling back to the --filename alias.
func (f *cliFlags) effectiveTagFile() string {
	if f.tagFile != "" {
		return f.tagFile
	}
	return f.fileName
}

// effectiveServerName returns --servername, falling back to the --client alias.
func (f *cliFlags) effectiveServerName() string {
	if f.serverName != "" {
		return f.serverName
	}
	return f.client
}

// applyFlags overlays explicitly-set flags onto the loaded configuration.
// Flags are the last word: they override both the file and the environment.
func applyFlags(cfg *config.Config, f *cliFlags) {
	if v := f.effectiveTagFile(); v != "" {
		cfg.Poll.TagFile = v
	}
	if v := f.effectiveServerName(); v != "" {
		cfg.Poll.ServerName = v
	}
	if f.fs.Changed("maxtagsperinterval") {
		cfg.Poll.MaxTagsPerInterval = f.maxTagsPerInterval
	}
	if f.fs.Changed("intervalseconds") {
		cfg.Poll.IntervalSeconds = f.intervalSeconds
	}
	if f.fs.Changed("disconnect_wait_time") {
		cfg.Poll.DisconnectWaitSeconds = f.disconnectWait
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - args: Command-line arguments (without the program name)
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, args []string) error {
	flags, err := parseFlags(args)
	if err != nil {
		return err
	}

	if flags.showVersion {
		fmt.Printf("opcburst %s (commit %s, built %s)\n", version, commit, date)
		return nil
	}
	if flags.showInfo {
		fmt.Print(infoText)
		fmt.Println()
		flags.fs.PrintDefaults()
		return nil
	}

	// Load configuration (defaults + optional file + env), then flags on top
	cfg, err := config.Load(configPath(flags))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	applyFlags(cfg, flags)
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logging.New(cfg.Logging, version)
	log.Info("starting opcburst",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	if cfg.Poll.TagFile == "" {
		return fmt.Errorf("no tag file specified (use --tagfile)")
	}

	// Load the tag list before touching the server: a bad file should
	// fail fast without a connect attempt.
	store, err := tagstore.Open(cfg.Poll.TagFile)
	if err != nil {
		return fmt.Errorf("opening tag file: %w", err)
	}
	tags, err := store.LoadTags()
	if err != nil {
		return fmt.Errorf("loading tags: %w", err)
	}
	if len(tags) == 0 {
		log.Warn("tag file contains no tags", "path", cfg.Poll.TagFile)
		return fmt.Errorf("tag file %s contains no tags", cfg.Poll.TagFile)
	}
	log.Info("tag list loaded", "path", cfg.Poll.TagFile, "tags", len(tags))

	server, err := opc.Dial(cfg.Poll.ServerName)
	if err != nil {
		return fmt.Errorf("resolving server %q: %w", cfg.Poll.ServerName, err)
	}

	sinks, cleanup, err := buildSinks(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	p, err := poller.New(poller.Options{
		Tags:         tags,
		Server:       server,
		Store:        &storeAdapter{store: store},
		Sinks:        sinks,
		MaxBatchSize: cfg.Poll.MaxTagsPerInterval,
		Interval:     cfg.GetInterval(),
		SettleDelay:  cfg.GetDisconnectWait(),
		Mode:         poller.ConnectionMode(cfg.Poll.ConnectionMode),
		Repeat:       cfg.Poll.Repeat,
		Logger:       log,
	})
	if err != nil {
		return err
	}

	if err := p.Run(ctx); err != nil {
		return err
	}

	log.Info("opcburst stopped")
	return nil
}

// configPath resolves the configuration file: --config wins, then the
// OPCBURST_CONFIG environment variable, then configs/opcburst.yaml if it
// exists. An empty result means defaults only.
func configPath(f *cliFlags) string {
	if f.configPath != "" {
		return f.configPath
	}
	if path := os.Getenv("OPCBURST_CONFIG"); path != "" {
		return path
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return defaultConfigPath
	}
	return ""
}

// buildSinks connects the enabled result sinks. The returned cleanup
// closes them in reverse order and is safe to call even on partial setup.
func buildSinks(ctx context.Context, cfg *config.Config, log *logging.Logger) ([]poller.Sink, func(), error) {
	var sinks []poller.Sink
	var closers []func()

	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.History.Enabled {
		db, err := database.Open(ctx, database.Config{
			Path:        cfg.History.Path,
			WALMode:     cfg.History.WALMode,
			BusyTimeout: cfg.History.BusyTimeout,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("opening history database: %w", err)
		}
		closers = append(closers, func() {
			log.Info("closing history database")
			if err := db.Close(); err != nil {
				log.Error("error closing history database", "error", err)
			}
		})
		runID := uuid.NewString()
		sinks = append(sinks, &historySink{
			repo:  history.NewRepository(db.DB),
			runID: runID,
		})
		log.Info("history sink enabled", "path", cfg.History.Path, "run_id", runID)
	}

	if cfg.InfluxDB.Enabled {
		client, err := influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		client.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		closers = append(closers, func() {
			log.Info("closing InfluxDB connection")
			if err := client.Close(); err != nil {
				log.Error("error closing InfluxDB", "error", err)
			}
		})
		sinks = append(sinks, &influxSink{client: client})
		log.Info("InfluxDB sink enabled",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	}

	if cfg.MQTT.Enabled {
		client, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("connecting to MQTT: %w", err)
		}
		closers = append(closers, func() {
			log.Info("disconnecting from MQTT")
			if err := client.Close(); err != nil {
				log.Error("error closing MQTT", "error", err)
			}
		})
		// #nosec G115 -- QoS validated to 0..2 by config.Validate
		sinks = append(sinks, &mqttSink{client: client, qos: byte(cfg.MQTT.QoS)})
		log.Info("MQTT sink enabled",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	}

	return sinks, cleanup, nil
}

// storeAdapter adapts the tag file store to the poller's Store interface.
// The two Result types are structurally identical; the adapter exists so
// the poller does not import the file layer.
type storeAdapter struct {
	store *tagstore.Store
}

// Merge implements poller.Store.
func (a *storeAdapter) Merge(results map[string]poller.Result) error {
	converted := make(map[string]tagstore.Result, len(results))
	for tag, r := range results {
		converted[tag] = tagstore.Result{
			Value:     r.Value,
			Status:    r.Status,
			Timestamp: r.Timestamp,
		}
	}
	return a.store.Merge(converted)
}

// historySink records each batch in the SQLite read-history table.
type historySink struct {
	repo  *history.Repository
	runID string
}

// Name implements poller.Sink.
func (s *historySink) Name() string { return "history" }

// Record implements poller.Sink.
func (s *historySink) Record(ctx context.Context, batch int, results map[string]poller.Result) error {
	readings := make([]history.Reading, 0, len(results))
	for tag, r := range results {
		readings = append(readings, history.Reading{
			RunID:     s.runID,
			Batch:     batch,
			Tag:       tag,
			Value:     valueString(r.Value),
			Quality:   r.Status,
			Timestamp: r.Timestamp,
		})
	}
	return s.repo.RecordBatch(ctx, readings)
}

// influxSink writes numeric readings to the opc_reads measurement.
// Non-numeric values are skipped; a time-series of strings is not useful.
type influxSink struct {
	client *influxdb.Client
}

// Name implements poller.Sink.
func (s *influxSink) Name() string { return "influxdb" }

// Record implements poller.Sink.
func (s *influxSink) Record(_ context.Context, _ int, results map[string]poller.Result) error {
	for tag, r := range results {
		if v, ok := toFloat(r.Value); ok {
			s.client.WriteTagValue(tag, v, r.Status)
		}
	}
	return nil
}

// readingPayload is the JSON body published per tag.
type readingPayload struct {
	Tag       string `json:"tag"`
	Value     any    `json:"value"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// mqttSink publishes one message per tag under opcburst/reads/<tag>.
type mqttSink struct {
	client *mqtt.Client
	qos    byte
}

// Name implements poller.Sink.
func (s *mqttSink) Name() string { return "mqtt" }

// Record implements poller.Sink.
func (s *mqttSink) Record(_ context.Context, _ int, results map[string]poller.Result) error {
	var firstErr error
	for tag, r := range results {
		payload, err := json.Marshal(readingPayload{
			Tag:       tag,
			Value:     r.Value,
			Status:    r.Status,
			Timestamp: r.Timestamp,
		})
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("encoding %s: %w", tag, err)
			}
			continue
		}
		if err := s.client.Publish(mqtt.ReadTopic(tag), payload, s.qos, false); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("publishing %s: %w", tag, err)
			}
		}
	}
	return firstErr
}

// valueString renders a read value for the history table, matching the
// formatting used in the tag file itself.
func valueString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'g', -1, 32)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// toFloat converts the numeric value types a data-access read can carry.
func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
