// Command dtund runs a single DTUN overlay node: it binds a UDP socket,
// answers iterative lookups and registrations from peers, and
// periodically publishes its own endpoint to its closest neighbors.
// Wiring follows the teacher's ListenV4-style "constructor that starts
// goroutines" shape (SPEC_FULL.md §4.12/§4.13).
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/erigontech/dtun/cage"
	"github.com/erigontech/dtun/discover"
	"github.com/erigontech/dtun/dtunconfig"
	"github.com/erigontech/dtun/natdetect"
	"github.com/erigontech/dtun/peers"
	"github.com/erigontech/dtun/randsrc"
	"github.com/erigontech/dtun/register"
	"github.com/erigontech/dtun/table"
	"github.com/erigontech/dtun/timer"
	"github.com/erigontech/dtun/transport"
)

var (
	cfg        = dtunconfig.Default()
	yamlPath   string
	nodeIDFlag string
)

func main() {
	root := &cobra.Command{
		Use:   "dtund",
		Short: "NAT-tolerant Kademlia overlay node",
		RunE:  run,
	}
	root.Flags().StringVar(&yamlPath, "config", "", "optional YAML config file overlay")
	root.Flags().StringVar(&nodeIDFlag, "node-id", "", "hex-encoded 20-byte node identifier (random if omitted)")
	cfg.BindFlags(root.Flags())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if err := cfg.LoadYAML(yamlPath); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := buildLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	selfID, err := resolveSelfID(nodeIDFlag)
	if err != nil {
		return err
	}

	udp, err := transport.Listen(cfg.ListenAddr, cfg.RateLimit, cfg.RateBurst, log)
	if err != nil {
		return fmt.Errorf("dtund: listen: %w", err)
	}
	defer udp.Close()

	self := cage.Node{ID: selfID, Endpoint: cage.EndpointFromUDPAddr(udp.LocalAddr())}
	log.Infow("node identity", "id", self.ID, "endpoint", self.Endpoint)

	rt := table.New(self.ID, cfg.K)
	pd, err := peers.New(4096, 1024, cfg.RegisterTTL*3)
	if err != nil {
		return fmt.Errorf("dtund: peers directory: %w", err)
	}
	nat := natdetect.New(log, cfg.StunServer, int(udp.LocalAddr().Port))
	dir := register.New()
	timers := timer.New()
	random := randsrc.New()

	engine := discover.NewEngine(discover.Config{
		Self:         self,
		K:            cfg.K,
		Alpha:        cfg.Alpha,
		QueryTimeout: cfg.QueryTimeout,
	}, rt, pd, nat, udp, timers, random, dir, log)

	session := random.Uint32()
	publisher := register.New(self.ID, session, cfg.RegisterTTL, engine, udp, timers, cfg.Alpha, log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	nat.Detect(ctx)
	go runNatRecheck(ctx, nat, 10*time.Minute)

	go engine.Run(ctx, udp.Inbound())
	go publisher.Run(ctx, cfg.RegisterEach)

	bootstrapOnce(ctx, udp, engine, cfg.Bootstrap, log)

	<-ctx.Done()
	log.Info("shutting down")
	return nil
}

func runNatRecheck(ctx context.Context, nat *natdetect.Detector, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			nat.Detect(ctx)
		}
	}
}

// bootstrapOnce resolves and probes every configured bootstrap endpoint.
// Resolution happens here, outside the dispatch goroutine, per spec.md
// §5's "no suspension points internal to a handler" and the
// ResolveFailure error kind's "returns without starting a query" policy.
func bootstrapOnce(ctx context.Context, udp *transport.UDP, engine *discover.Engine, endpoints []string, log *zap.SugaredLogger) {
	for _, addr := range endpoints {
		host, port, err := splitHostPort(addr)
		if err != nil {
			log.Warnw("bad bootstrap endpoint", "addr", addr, "err", err)
			continue
		}
		ep, ok := udp.Resolve(ctx, host, port)
		if !ok {
			log.Warnw("bootstrap resolve failed", "addr", addr)
			continue
		}
		engine.FindNodeByEndpoint(ep, func(nodes []cage.Node) {
			log.Infow("bootstrap complete", "addr", addr, "found", len(nodes))
		})
	}
}

func resolveSelfID(hexID string) (cage.Identifier, error) {
	if hexID == "" {
		var id cage.Identifier
		if _, err := rand.Read(id[:]); err != nil {
			return cage.Identifier{}, fmt.Errorf("dtund: generating node id: %w", err)
		}
		return id, nil
	}
	raw, err := hex.DecodeString(hexID)
	if err != nil || len(raw) != cage.IdentifierLen {
		return cage.Identifier{}, fmt.Errorf("dtund: --node-id must be %d hex bytes", cage.IdentifierLen)
	}
	var id cage.Identifier
	copy(id[:], raw)
	return id, nil
}

func buildLogger(level, file string) (*zap.SugaredLogger, error) {
	lvl := zapcore.InfoLevel
	if err := lvl.Set(level); err != nil {
		return nil, fmt.Errorf("dtund: bad log level %q: %w", level, err)
	}
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.Lock(os.Stderr), lvl),
	}
	if file != "" {
		rotator := &lumberjack.Logger{Filename: file, MaxSize: 100, MaxBackups: 5, MaxAge: 28}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(rotator), lvl))
	}
	logger := zap.New(zapcore.NewTee(cores...))
	return logger.Sugar(), nil
}
