// Command swictationd is the Swictation voice-dictation daemon: it loads
// the VAD and STT models once, opens the microphone, and serves a
// Unix-domain control socket that toggles recording on and off.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/agalue/swictation/internal/audio"
	"github.com/agalue/swictation/internal/config"
	"github.com/agalue/swictation/internal/control"
	"github.com/agalue/swictation/internal/inject"
	"github.com/agalue/swictation/internal/metrics"
	"github.com/agalue/swictation/internal/pipeline"
	"github.com/agalue/swictation/internal/platform"
	"github.com/agalue/swictation/internal/stt"
	"github.com/agalue/swictation/internal/transform"
	"github.com/agalue/swictation/internal/vad"
)

func main() {
	configPath := flag.String("config", "/etc/swictation/swictation.toml", "path to the TOML configuration file")
	sharedLibPath := flag.String("onnxruntime", "", "path to the onnxruntime shared library, if not on the default search path")
	flag.Parse()

	log.SetFlags(log.Ltime)
	log.SetOutput(os.Stdout)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	log.Printf("🎙️  swictationd starting (config: %s)", *configPath)

	provider := cfg.ExecutionProvider()
	if provider == "" {
		provider = platform.DefaultExecutionProvider()
	}

	log.Println("🧠 loading speech recognition models...")
	engine, err := stt.NewEngine(stt.EngineConfig{
		ModelDir:          cfg.STTModelPath(),
		ExecutionProvider: provider,
		SharedLibPath:     *sharedLibPath,
	})
	if err != nil {
		log.Fatalf("Failed to load STT models: %v", err)
	}
	defer engine.Close()
	log.Println("✅ speech recognition ready")

	log.Println("🎤 loading voice-activity model...")
	detector, err := vad.New(vad.Config{
		ModelPath:           cfg.VAD.ModelPath,
		Threshold:           float32(cfg.VADThreshold()),
		MinSilenceDurationS: cfg.MinSilenceDuration().Seconds(),
		MinSpeechDurationS:  cfg.MinSpeechDuration().Seconds(),
		PreRollMs:           cfg.VAD.PreRollMs,
		SharedLibPath:       *sharedLibPath,
	})
	if err != nil {
		log.Fatalf("Failed to load VAD model: %v", err)
	}
	defer detector.Close()
	log.Println("✅ voice-activity detection ready")

	capturer, err := audio.NewCapturer(audio.Config{
		SampleRate:      cfg.SampleRate(),
		ChunkDuration:   cfg.ChunkDuration().Seconds(),
		DeviceID:        cfg.Audio.Device,
		ResampleQuality: cfg.Audio.ResampleQuality,
	})
	if err != nil {
		log.Fatalf("Failed to open audio capture: %v", err)
	}
	defer capturer.Close()

	reg := prometheusRegisterer()
	recorder, err := metrics.NewPrometheus(reg)
	if err != nil {
		log.Fatalf("Failed to register metrics: %v", err)
	}

	rewriter := transform.New()
	injector := inject.NewLogInjector()

	pipe := pipeline.New(capturer, detector, engine, rewriter, injector, recorder)

	socketPath := cfg.Control.SocketPath
	ctrlServer, err := control.NewServer(socketPath, pipe)
	if err != nil {
		log.Fatalf("Failed to start control socket: %v", err)
	}
	go func() {
		if err := ctrlServer.Serve(); err != nil {
			log.Printf("swictation: control server stopped: %v", err)
		}
	}()
	log.Printf("🔌 control socket listening on %s", socketPath)

	go func() {
		for fault := range pipe.Faults() {
			log.Printf("⚠️  pipeline fault: %v", fault)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Println("🛑 shutting down...")

	ctrlServer.Close()
	if pipe.State() != pipeline.Idle {
		if err := pipe.StopRecording(); err != nil {
			log.Printf("swictation: error stopping recording during shutdown: %v", err)
		}
	}
	pipe.Close()

	time.Sleep(100 * time.Millisecond) // let the final log lines flush
	log.Println("✅ shutdown complete")
}

// prometheusRegisterer returns the registry Metrics collectors attach to.
// Exposing it over HTTP for scraping is metrics persistence/transport,
// which is out of scope (spec §1); registration alone keeps the collectors
// queryable by an in-process admin hook if one is ever added.
func prometheusRegisterer() prometheus.Registerer {
	return prometheus.DefaultRegisterer
}
