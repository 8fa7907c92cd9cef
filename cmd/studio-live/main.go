// studio-live is a terminal voice client: it streams the local microphone to
// the live model and plays the spoken replies, printing transcripts as they
// arrive.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/versolabs/studio/internal/dotenv"
	"github.com/versolabs/studio/pkg/gateway/upstream"
	"github.com/versolabs/studio/pkg/live"
)

const (
	defaultLiveModel = "gemini-2.5-flash-native-audio-preview-09-2025"
	defaultLiveVoice = "Zephyr"
)

type options struct {
	model     string
	voice     string
	system    string
	micDevice int
	listMics  bool
	noSpeaker bool
	dumpWAV   string
	debug     bool
}

func main() {
	os.Exit(runMain())
}

func runMain() int {
	_ = dotenv.Load(".env")

	var opt options
	flag.StringVar(&opt.model, "model", defaultLiveModel, "Live audio model")
	flag.StringVar(&opt.voice, "voice", defaultLiveVoice, "Prebuilt voice name")
	flag.StringVar(&opt.system, "system", "", "System instruction for the session")
	flag.IntVar(&opt.micDevice, "mic-device", 0, "macOS avfoundation mic device index")
	flag.BoolVar(&opt.listMics, "list-mic-devices", false, "List microphone devices via ffmpeg (macOS) and exit")
	flag.BoolVar(&opt.noSpeaker, "no-speaker", false, "Do not spawn ffplay; transcripts only")
	flag.StringVar(&opt.dumpWAV, "dump-wav", "", "If set, write model audio to this WAV file on exit")
	flag.BoolVar(&opt.debug, "debug", false, "Enable debug logging")
	flag.Parse()

	if opt.listMics {
		if err := listMicDevices(runtime.GOOS); err != nil {
			fmt.Fprintln(os.Stderr, "list mic devices:", err)
			return 2
		}
		return 0
	}

	apiKey := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	if apiKey == "" {
		apiKey = strings.TrimSpace(os.Getenv("STUDIO_GEMINI_API_KEY"))
	}
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "missing GEMINI_API_KEY (or STUDIO_GEMINI_API_KEY)")
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	level := slog.LevelWarn
	if opt.debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	client, err := upstream.NewClient(ctx, apiKey)
	if err != nil {
		fmt.Fprintln(os.Stderr, "create model client:", err)
		return 1
	}

	var sink live.Sink
	var player *ffplaySink
	if opt.noSpeaker {
		sink = discardSink{}
	} else {
		player, err = newFFplaySink()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		defer player.Close()
		sink = player
	}

	var dump *dumpSink
	if opt.dumpWAV != "" {
		dump = newDumpSink(sink)
		sink = dump
	}

	errCh := make(chan error, 1)
	cb := live.Callbacks{
		OnTranscript: func(speaker, text string) {
			fmt.Printf("[%s] %s\n", speaker, text)
		},
		OnTurn: func(turn live.Turn) {
			fmt.Printf("-- turn %s complete --\n", turn.ID)
		},
		OnInterrupt: func() {
			if player != nil {
				_ = player.Reset()
			}
			fmt.Println("-- interrupted --")
		},
		OnError: func(err error) {
			select {
			case errCh <- err:
			default:
			}
		},
	}

	ctrl := live.NewController(
		live.NewGeminiUpstream(client),
		micOpener{goos: runtime.GOOS, device: opt.micDevice},
		sink,
		live.ModelConfig{Model: opt.model, System: opt.system, Voice: opt.voice},
		cb,
		logger,
	)
	if err := ctrl.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "start session:", err)
		return 1
	}
	defer ctrl.Stop()

	finish := func(code int) int {
		ctrl.Stop()
		if dump != nil {
			if err := dump.WriteWAV(opt.dumpWAV); err != nil {
				fmt.Fprintln(os.Stderr, "write wav:", err)
			}
		}
		return code
	}

	fmt.Printf("live session started with %s (%s voice)\n", opt.model, opt.voice)
	fmt.Println("commands: /interrupt to barge in, /quit to end the session")

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return finish(0)
		case err := <-errCh:
			fmt.Fprintln(os.Stderr, "session error:", err)
			return finish(1)
		case line, ok := <-lines:
			if !ok {
				return finish(0)
			}
			switch line {
			case "":
			case "/interrupt":
				ctrl.Interrupt()
				if player != nil {
					_ = player.Reset()
				}
			case "/quit", "/exit":
				return finish(0)
			default:
				fmt.Println("commands: /interrupt, /quit")
			}
		}
	}
}
