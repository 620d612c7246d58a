// Command crossingd runs the level-crossing controller as a host daemon:
// the tick loop in the middle, host links (stdin, TCP, WebSocket, serial)
// feeding it command lines, and HTTP surfaces for metrics and status.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/urfave/cli"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/railsignals/crossing-controller/core"
	"github.com/railsignals/crossing-controller/internal/bridge"
	"github.com/railsignals/crossing-controller/internal/hostlink"
	"github.com/railsignals/crossing-controller/internal/logging"
	"github.com/railsignals/crossing-controller/internal/observability"
	"github.com/railsignals/crossing-controller/model"
	"github.com/railsignals/crossing-controller/status"
	"github.com/railsignals/crossing-controller/timectrl"
)

func main() {
	app := cli.NewApp()
	app.Name = "crossingd"
	app.Usage = "level-crossing controller daemon"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "listen-addr",
			Value: ":4070",
			Usage: "TCP address for the newline command protocol",
		},
		cli.StringFlag{
			Name:  "http-addr",
			Value: ":9090",
			Usage: "HTTP address for /metrics, /status.json, /healthz and /ws",
		},
		cli.StringFlag{
			Name:  "profile",
			Usage: "path to a JSON crossing profile (defaults apply when omitted)",
		},
		cli.StringFlag{
			Name:  "serial-port",
			Usage: "serial device of the crossing interface board (e.g. /dev/ttyUSB0)",
		},
		cli.IntFlag{
			Name:  "serial-baud",
			Value: bridge.DefaultBaud,
			Usage: "baud rate of the interface board link",
		},
		cli.BoolFlag{
			Name:  "stdin",
			Usage: "also read command lines from standard input",
		},
		cli.Float64Flag{
			Name:  "time-accel",
			Value: 1,
			Usage: "controller time speedup for demo runs (1 = real time)",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	log := logging.NewFromEnv()
	ctx := context.Background()

	profile, err := loadProfile(c.String("profile"))
	if err != nil {
		return err
	}

	metrics, err := observability.NewCrossingMetrics(nil)
	if err != nil {
		return fmt.Errorf("initialise metrics: %w", err)
	}

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		return fmt.Errorf("initialise tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(ctx, shutdownTracing, log)

	// Hardware boundary: a serial interface board when configured, a
	// discarding driver otherwise. The board's read half doubles as a
	// command source.
	var driver core.OutputDriver = bridge.NopDriver{}
	var serialIn io.Reader
	if port := c.String("serial-port"); port != "" {
		stream, err := bridge.OpenPort(bridge.SerialConfig{Port: port, Baud: c.Int("serial-baud")})
		if err != nil {
			return err
		}
		defer stream.Close()
		driver = bridge.NewSerialDriver(stream, log)
		serialIn = stream
		log.Info(ctx, "interface board attached", logging.String("port", port))
	}

	board := status.NewBoard()
	logStateTransitions(board, log)

	var hub *hostlink.Hub
	ctrl := core.NewController(profile,
		core.WithMetricsRecorder(metrics),
		core.WithOutputDriver(driver),
		core.WithFeedback(func(angle model.Angle) {
			hub.Broadcast(fmt.Sprintf("%d", angle))
		}),
		core.WithLineObserver(traceLineOutcomes(log)),
	)
	hub = hostlink.NewHub(ctrl, log)

	// Host links.
	tcpSrv, err := hostlink.ListenTCP(c.String("listen-addr"), hub, log)
	if err != nil {
		return err
	}
	defer tcpSrv.Close()
	go tcpSrv.Serve()
	log.Info(ctx, "serving command protocol", logging.String("addr", tcpSrv.Addr().String()))

	if c.Bool("stdin") {
		hub.Attach(os.Stdout)
		go func() {
			if err := hub.ReadLines("stdin", os.Stdin); err != nil {
				log.Warn(ctx, "stdin link failed", logging.Err(err))
			}
		}()
	}
	if serialIn != nil {
		go func() {
			if err := hub.ReadLines("serial", serialIn); err != nil {
				log.Warn(ctx, "serial link read failed", logging.Err(err))
			}
		}()
	}

	httpSrv := serveHTTP(c.String("http-addr"), metrics, board, hub, log)

	// Tick train.
	tc := timectrl.NewTimeController(time.Now(), profile.TickInterval, c.Float64("time-accel"))
	tc.AddListener(tickLoop(ctrl, metrics, board))

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	log.Info(ctx, "crossing controller running",
		logging.Int("tick_interval_ms", int(profile.TickInterval/time.Millisecond)),
		logging.Any("time_accel", c.Float64("time-accel")))
	done := tc.Start(runCtx, 0)

	<-runCtx.Done()
	stop()
	<-done

	log.Info(ctx, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if httpSrv != nil {
		_ = httpSrv.Shutdown(shutdownCtx)
	}
	return nil
}

// loadProfile reads the JSON profile at path, or returns the default profile
// when path is empty.
func loadProfile(path string) (model.CrossingProfile, error) {
	if path == "" {
		return model.DefaultCrossingProfile(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return model.CrossingProfile{}, fmt.Errorf("open profile %s: %w", path, err)
	}
	defer f.Close()
	return core.LoadCrossingProfile(f)
}

// tickLoop returns the per-tick listener: advance the controller, time the
// tick, publish the snapshot.
func tickLoop(ctrl *core.Controller, metrics *observability.CrossingMetrics, board *status.Board) func(time.Time) {
	return func(now time.Time) {
		started := time.Now()
		ctrl.Tick(now)
		metrics.ObserveTickDuration(time.Since(started))
		board.Publish(ctrl.Snapshot(), now)
	}
}

// logStateTransitions logs every coordinator state change published to the
// board, skipping updates where only positions or lamp phases moved.
func logStateTransitions(board *status.Board, log logging.Logger) {
	last := model.CrossingIdle
	board.Subscribe(func(u status.Update) {
		if u.Snapshot.State == last {
			return
		}
		log.Info(context.Background(), "crossing state changed",
			logging.String("from", last.String()),
			logging.String("to", u.Snapshot.State.String()))
		last = u.Snapshot.State
	})
}

// traceLineOutcomes wraps every consumed line in a span and logs rejected
// ones at debug level.
func traceLineOutcomes(log logging.Logger) func(core.LineOutcome) {
	tracer := otel.Tracer("crossingd")
	return func(o core.LineOutcome) {
		_, span := tracer.Start(context.Background(), "crossing.command",
			trace.WithAttributes(
				attribute.String("command.kind", o.Kind.String()),
				attribute.String("command.origin", o.Origin),
				attribute.Bool("command.accepted", o.Accepted),
			))
		span.End()

		if !o.Accepted {
			log.Debug(context.Background(), "line rejected",
				logging.String("origin", o.Origin),
				logging.String("line", o.Text))
		}
	}
}

// serveHTTP exposes the observability surfaces and the WebSocket host link
// on one mux.
func serveHTTP(addr string, metrics *observability.CrossingMetrics, board *status.Board, hub *hostlink.Hub, log logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/status.json", board.Handler())
	mux.Handle("/ws", hostlink.NewWSHandler(hub, log))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn(context.Background(), "http server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving http surfaces", logging.String("addr", addr))
	return srv
}
