// Command ledengine is the real-time LED animation playback engine: it
// loads scene definitions, runs the fixed-rate frame loop, serves the
// address-tagged control protocol over UDP (and optionally MQTT), and
// drives whatever optional subsystems the active profile enables.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ledengine/ledengine/internal/config"
	"github.com/ledengine/ledengine/internal/control"
	"github.com/ledengine/ledengine/internal/engine"
	"github.com/ledengine/ledengine/internal/hal"
	"github.com/ledengine/ledengine/internal/health"
	"github.com/ledengine/ledengine/internal/indicator"
	"github.com/ledengine/ledengine/internal/logger"
	ledmetrics "github.com/ledengine/ledengine/internal/metrics"
	"github.com/ledengine/ledengine/internal/model"
	"github.com/ledengine/ledengine/internal/ops"
	"github.com/ledengine/ledengine/internal/output"
	"github.com/ledengine/ledengine/internal/redismirror"
	"github.com/ledengine/ledengine/internal/reload"
	"github.com/ledengine/ledengine/internal/scenemanager"
	"github.com/ledengine/ledengine/internal/storage"
	ledsync "github.com/ledengine/ledengine/internal/sync"
)

var Version = "0.1.0"

func main() {
	configPath := flag.String("config", "", "path to config file (overrides the default search path)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ledengine: config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config(cfg.Logger)); err != nil {
		fmt.Fprintf(os.Stderr, "ledengine: logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	log := logger.Get().Named("main")
	log.Info("starting ledengine", zap.String("version", Version), zap.String("configured_profile", cfg.Profile))

	profile, err := config.LoadProfile(cfg.Profile)
	if err != nil {
		log.Warn("unknown profile, falling back to a hardware-detected tier", zap.String("profile", cfg.Profile), zap.Error(err))
		profile = config.DefaultProfiles()[config.DetectProfile()]
	}
	sub := profile.Subsystems
	log.Info("active profile", zap.String("name", string(profile.Name)), zap.String("description", profile.Description))

	if err := initHAL(log); err != nil {
		log.Warn("hardware abstraction layer fell back to mock", zap.Error(err))
	}

	store, err := storage.New(storage.Config{Type: storage.TypeSQLite, Path: cfg.Storage.StatsDBPath})
	if err != nil {
		log.Fatal("storage init failed", zap.Error(err))
	}
	defer store.Close()

	sm := scenemanager.New(model.TransitionConfig(cfg.Transition))
	sm.SetDissolveTime(cfg.Animation.DefaultDissolveTime)

	if n, err := loadScenesDir(sm, cfg.Animation.ScenesDir, log); err != nil {
		log.Warn("initial scene load failed", zap.String("dir", cfg.Animation.ScenesDir), zap.Error(err))
	} else {
		log.Info("loaded scenes", zap.Int("count", n), zap.String("dir", cfg.Animation.ScenesDir))
	}

	destinations, err := buildDestinations(cfg.OSC.Destinations, cfg.Animation.LEDCount)
	if err != nil {
		log.Fatal("output destination setup failed", zap.Error(err))
	}
	sink := output.NewSink(destinations)
	defer sink.Close()

	eng := engine.New(sm, sink, cfg.Animation.TargetFPS, cfg.Animation.MasterBrightness)

	metricsReg := ledmetrics.NewMetrics()
	checker := health.NewHealthChecker()
	checker.RegisterCheck("frame_loop", health.FrameLoopHealthCheck(eng.OverrunCount, 5), 10*time.Second)
	checker.RegisterCheck("memory", health.MemoryHealthCheck(func() (uint64, uint64) {
		metricsReg.UpdateSystemMetrics()
		return metricsReg.MemoryUsed, metricsReg.MemoryTotal
	}), 30*time.Second)
	checker.RegisterCheck("goroutines", health.GoroutineHealthCheck(func() int {
		metricsReg.UpdateSystemMetrics()
		return metricsReg.GoroutineCount
	}, 500), 30*time.Second)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	disp := control.NewDispatcher(8)
	control.RegisterSceneManagerHandlers(disp, sm, sm.LoadScene)
	control.RegisterEngineHandlers(disp, eng)

	go func() {
		addr := net.JoinHostPort(cfg.OSC.InputHost, strconv.Itoa(cfg.OSC.InputPort))
		log.Info("control listener starting", zap.String("addr", addr))
		if err := disp.ListenAndServe(ctx, addr); err != nil && ctx.Err() == nil {
			log.Error("control listener stopped", zap.Error(err))
		}
	}()
	defer disp.Stop()

	go eng.Run(ctx)

	if sub.Scheduler {
		sched := engine.NewSceneScheduler(sm)
		sched.Start()
		defer sched.Stop()
		log.Info("scene scheduler active")
	}

	if sub.HotReload {
		watcher, err := reload.New(cfg.Animation.ScenesDir, sm)
		if err != nil {
			log.Warn("hot reload watcher init failed", zap.Error(err))
		} else {
			go watcher.Run(ctx)
			defer watcher.Close()
			log.Info("scene hot reload active", zap.String("dir", cfg.Animation.ScenesDir))
		}
	}

	if sub.FTPSync && cfg.Scheduler.FTPEnabled {
		syncer := ledsync.NewFTPSync(ledsync.FTPSyncConfig{
			Host:      cfg.Scheduler.FTPAddr,
			Username:  cfg.Scheduler.FTPUser,
			Password:  cfg.Scheduler.FTPPassword,
			RemoteDir: cfg.Scheduler.FTPRemoteDir,
			LocalDir:  cfg.Animation.ScenesDir,
			Interval:  time.Duration(cfg.Scheduler.FTPPollSeconds) * time.Second,
		})
		go syncer.Run(ctx)
		log.Info("FTP scene sync active", zap.String("remote", cfg.Scheduler.FTPAddr))
	}

	if sub.RedisMirror && cfg.Redis.Enabled {
		redisHost, redisPort := splitHostPort(cfg.Redis.Addr, "localhost", 6379)
		mirror, err := redismirror.New(redismirror.Config{
			Host:      redisHost,
			Port:      redisPort,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
		if err != nil {
			log.Warn("redis mirror init failed", zap.Error(err))
		} else {
			defer mirror.Close()
			go runRedisMirror(ctx, mirror, sm, eng, log)
			log.Info("redis state mirror active", zap.String("addr", cfg.Redis.Addr))
		}
	}

	if sub.MQTTBridge && cfg.MQTT.Enabled {
		bridge := control.NewMQTTBridge(control.MQTTBridgeConfig{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicRoot,
		}, disp)
		if err := bridge.Connect(); err != nil {
			log.Warn("mqtt bridge connect failed", zap.Error(err))
		} else {
			defer bridge.Close()
			log.Info("mqtt control bridge active", zap.String("broker", cfg.MQTT.Broker))
		}
	}

	if sub.StatusPin {
		pin, err := indicator.NewStatusPin(cfg.Indicator.StatusPin)
		if err != nil {
			log.Warn("status pin init failed", zap.Error(err))
		} else {
			go pin.Run(ctx, eng.OverrunCount, 250*time.Millisecond)
			log.Info("status pin active", zap.Int("pin", cfg.Indicator.StatusPin))
		}
	}

	if sub.LightSensor {
		sensor, err := indicator.NewLightSensor(
			byte(cfg.Indicator.LightSensorAddress),
			cfg.Indicator.LightSensorMinLux,
			cfg.Indicator.LightSensorMaxLux,
		)
		if err != nil {
			log.Warn("light sensor init failed", zap.Error(err))
		} else {
			defer sensor.Close()
			go sensor.Run(ctx, eng, time.Duration(cfg.Indicator.LightSensorPollMs)*time.Millisecond)
			log.Info("ambient light sensor active")
		}
	}

	if sub.FrameHistory {
		go recordFrameStats(ctx, store, eng, log)
	}

	if sub.InfluxExport && cfg.Storage.InfluxEnabled {
		exporter, err := ledmetrics.NewInfluxExporter(ledmetrics.InfluxConfig{
			URL:    cfg.Storage.InfluxURL,
			Token:  cfg.Storage.InfluxToken,
			Org:    cfg.Storage.InfluxOrg,
			Bucket: cfg.Storage.InfluxBucket,
		})
		if err != nil {
			log.Warn("influx exporter init failed", zap.Error(err))
		} else {
			defer exporter.Close()
			go recordInfluxStats(ctx, exporter, eng, log)
			log.Info("influx frame-stats export active", zap.String("url", cfg.Storage.InfluxURL))
		}
	}

	if sub.OpsHTTP && cfg.Ops.Enabled {
		hub := ops.NewHub()
		opsServer := ops.New(ops.Config{
			Host:      cfg.Ops.Host,
			Port:      cfg.Ops.Port,
			AuthJWT:   sub.OpsAuth && cfg.Ops.AuthJWT,
			JWTSecret: cfg.Ops.JWTSecret,
		}, hub, metricsReg, checker, sm, eng, log)

		go func() {
			log.Info("ops server starting", zap.String("host", cfg.Ops.Host), zap.Int("port", cfg.Ops.Port))
			if err := opsServer.Run(ctx); err != nil {
				log.Error("ops server stopped", zap.Error(err))
			}
		}()
	}

	<-ctx.Done()
	log.Info("shutdown signal received, draining")

	if !eng.Stop(5 * time.Second) {
		log.Warn("frame loop did not stop cleanly within timeout")
	}
	log.Info("ledengine stopped")
}

// initHAL detects the running board and installs either the real
// Raspberry-Pi-backed HAL or a mock HAL as the process-wide singleton.
func initHAL(log *zap.Logger) error {
	board, boardErr := hal.DetectBoard()
	if boardErr == nil && board != nil {
		h, rpiErr := hal.NewRaspberryPiHAL()
		if rpiErr == nil {
			hal.SetGlobalHAL(h)
			log.Info("hardware abstraction layer ready", zap.String("board", board.Model.String()))
			return nil
		}
		hal.SetGlobalHAL(hal.NewMockHAL())
		return rpiErr
	}
	hal.SetGlobalHAL(hal.NewMockHAL())
	return boardErr
}

func loadScenesDir(sm *scenemanager.Manager, dir string, log *zap.Logger) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := dir + string(os.PathSeparator) + entry.Name()
		n, err := sm.LoadScene(path)
		if err != nil {
			log.Warn("skipping unreadable scene file", zap.String("path", path), zap.Error(err))
			continue
		}
		total += n
	}
	return total, nil
}

// buildDestinations constructs one output.Destination per configured entry.
// For "serial" entries Port carries the baud rate; for "strip" entries Port
// carries the SPI device index and ledCount is the LED strip's pixel count.
func buildDestinations(configs []config.DestinationConfig, ledCount int) ([]output.Destination, error) {
	destinations := make([]output.Destination, 0, len(configs))
	for _, d := range configs {
		switch d.Kind {
		case "udp":
			dest, err := output.NewUDPDestination(d.Host, d.Port)
			if err != nil {
				return nil, fmt.Errorf("udp destination %s:%d: %w", d.Host, d.Port, err)
			}
			destinations = append(destinations, dest)
		case "serial":
			dest, err := output.NewSerialDestination(d.Path, d.Port)
			if err != nil {
				return nil, fmt.Errorf("serial destination %s: %w", d.Path, err)
			}
			destinations = append(destinations, dest)
		case "strip":
			dest, err := output.NewStripDestination(0, d.Port, ledCount)
			if err != nil {
				return nil, fmt.Errorf("strip destination: %w", err)
			}
			destinations = append(destinations, dest)
		default:
			return nil, fmt.Errorf("unknown destination kind %q", d.Kind)
		}
	}
	return destinations, nil
}

func splitHostPort(addr, defaultHost string, defaultPort int) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return defaultHost, defaultPort
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, defaultPort
	}
	return host, port
}

func runRedisMirror(ctx context.Context, mirror *redismirror.Mirror, sm *scenemanager.Manager, eng *engine.Engine, log *zap.Logger) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sceneID, _ := sm.ActiveSceneID()
			state := redismirror.EngineState{
				SceneID:         sceneID,
				FPS:             eng.FPS(),
				FrameCount:      eng.FrameCount(),
				OverrunCount:    eng.OverrunCount(),
				UpdatedAtUnixMs: time.Now().UnixMilli(),
			}
			if err := mirror.Publish(ctx, state); err != nil {
				log.Warn("redis mirror publish failed", zap.Error(err))
			}
		}
	}
}

func recordFrameStats(ctx context.Context, store storage.Storage, eng *engine.Engine, log *zap.Logger) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stat := storage.FrameStat{
				RecordedAt:   time.Now(),
				FPS:          eng.FPS(),
				FrameCount:   eng.FrameCount(),
				OverrunCount: eng.OverrunCount(),
			}
			if err := store.RecordFrameStat(stat); err != nil {
				log.Warn("frame stat record failed", zap.Error(err))
			}
		}
	}
}

func recordInfluxStats(ctx context.Context, exporter *ledmetrics.InfluxExporter, eng *engine.Engine, log *zap.Logger) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := exporter.WriteFrameStat(ctx, eng.FPS(), eng.FrameCount(), eng.OverrunCount()); err != nil {
				log.Warn("influx frame stat write failed", zap.Error(err))
			}
		}
	}
}
