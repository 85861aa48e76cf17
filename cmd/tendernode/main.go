package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"tendercore/cmd/tendernode/internal/passphrase"
	"tendercore/config"
	"tendercore/consensus/engine"
	"tendercore/consensus/gossip"
	"tendercore/consensus/registry"
	"tendercore/consensus/sortition"
	"tendercore/consensus/stake"
	"tendercore/consensus/types"
	"tendercore/consensus/worker"
	"tendercore/core/chain"
	"tendercore/core/genesis"
	"tendercore/crypto"
	"tendercore/observability/logging"
	telemetry "tendercore/observability/otel"
	"tendercore/p2p"
	"tendercore/p2p/seeds"
	"tendercore/storage"
)

const validatorPassEnv = "TENDERCORE_VALIDATOR_PASS"

// p2pHandler adapts gossip.Service's peer-aware HandleMessage to the
// transport's MessageHandler, which does not yet surface a connection's
// peer id to its callback -- every inbound message is attributed to a
// single logical bucket until that plumbing exists (see DESIGN.md).
type p2pHandler struct {
	svc *gossip.Service
}

func (h *p2pHandler) HandleMessage(msg *p2p.Message) error {
	return h.svc.HandleMessage("inbound", msg)
}

func main() {
	configFile := flag.String("config", "./tendernode.toml", "path to the node configuration file")
	genesisFlag := flag.String("genesis", "", "path to a genesis spec JSON file (overrides the config's GenesisFile)")
	chainID := flag.Uint64("chain-id", 1, "chain id stamped on p2p handshakes")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("TENDERCORE_ENV"))
	logger := logging.Setup("tendernode", env)

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "tendernode",
		Environment: env,
		Endpoint:    strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
		Insecure:    true,
		Metrics:     true,
		Traces:      true,
	})
	if err != nil {
		logger.Error("init telemetry", "err", err)
		os.Exit(1)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	passSource := passphrase.NewSource(validatorPassEnv)
	validatorPass, err := passSource.Get()
	if err != nil {
		logger.Error("resolve validator keystore passphrase", "err", err)
		os.Exit(1)
	}
	cfg, err := config.Load(*configFile, config.WithKeystorePassphrase(validatorPass))
	if err != nil {
		logger.Error("load config", "err", err)
		os.Exit(1)
	}
	if err := config.ValidateConsensus(cfg.Consensus); err != nil {
		logger.Error("invalid consensus config", "err", err)
		os.Exit(1)
	}

	genesisPath := strings.TrimSpace(*genesisFlag)
	if genesisPath == "" {
		genesisPath = cfg.GenesisFile
	}
	genesisSpec, err := genesis.LoadGenesisSpec(genesisPath)
	if err != nil {
		logger.Error("load genesis", "err", err)
		os.Exit(1)
	}
	initialValidators, err := genesisSpec.InitialValidators()
	if err != nil {
		logger.Error("resolve genesis validators", "err", err)
		os.Exit(1)
	}

	var db storage.Database
	if strings.TrimSpace(cfg.DataDir) == "" {
		db = storage.NewMemDB()
	} else {
		db, err = storage.NewLevelDB(cfg.DataDir)
		if err != nil {
			logger.Error("open database", "err", err)
			os.Exit(1)
		}
	}
	defer db.Close()

	validatorKey, err := crypto.LoadFromKeystore(cfg.ValidatorKeystorePath, validatorPass)
	if err != nil {
		logger.Error("decrypt validator keystore", "err", err)
		os.Exit(1)
	}

	vrfSigner, err := sortition.GenerateSigner()
	if err != nil {
		logger.Error("generate vrf signer", "err", err)
		os.Exit(1)
	}
	signer := worker.NewSigner(validatorKey, vrfSigner)

	stakeState := stake.New(db, 0)
	ledger := chain.New(db)
	snapshot := stake.NewTermSnapshot(stakeState, ledger.HeightForHash)
	registrySource := registry.NewSource(initialValidators, snapshot, registry.NewPersister(db))

	var totalPower uint64
	for _, v := range initialValidators {
		totalPower += v.Weight
	}
	sortitionCfg := func(height uint64) sortition.Config {
		return sortition.Config{TotalPower: totalPower, Expectation: cfg.Consensus.SortitionExpectation}
	}

	const startHeight = 1
	w := worker.New(worker.Config{
		Timeouts:     cfg.Consensus.ToTimeoutConfig(),
		Registry:     registrySource,
		Producer:     ledger,
		Importer:     ledger,
		DoubleVotes:  noopDoubleVoteSink{},
		SortitionCfg: sortitionCfg,
		Signer:       signer,
		StartHeight:  startHeight,
		ParentHash:   []byte(genesisPath),
		Logger:       logger,
	})

	validatorCount := len(initialValidators)
	gossipSvc := gossip.New(gossip.Config{
		Worker: w,
		Votes:  w,
		Logger: logger,
	}, validatorCount)

	// Term 0 never changes underfoot once the process is running (the
	// registry only rebuilds the set at a term boundary, and a freshly
	// started node starts inside term 0 -- spec.md §4.2), so a one-time
	// push at startup is enough; a node that survives into a later term
	// would need this re-pushed on every boundary, which is future work.
	startSet, err := registrySource.Build(startHeight, []byte(genesisPath))
	if err != nil {
		logger.Error("build initial registry set", "err", err)
		os.Exit(1)
	}
	gossipSvc.SetRegistry(startSet)

	p2pServer := p2p.NewServer(cfg.ListenAddress, &p2pHandler{svc: gossipSvc}, validatorKey, *chainID)
	gossipSvc.SetBroadcaster(p2pServer)

	eng := engine.New(w, engine.Config{BlockReward: cfg.Consensus.BlockReward})
	eng.RegisterNetworkExtension(gossipSvc)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := p2pServer.Start(); err != nil {
			logger.Error("p2p server stopped", "err", err)
		}
	}()

	for _, peerAddr := range bootstrapPeers(cfg.BootstrapPeers, cfg.SeedsRegistryFile, logger) {
		if err := p2pServer.Connect(peerAddr); err != nil {
			logger.Warn("failed to connect to bootstrap peer", "peer", peerAddr, "err", err)
		}
	}

	eng.Start(ctx)

	fmt.Println("tendernode running")
	<-ctx.Done()
	fmt.Println("tendernode shutting down")
}

// bootstrapPeers merges the statically configured dial list with whatever a
// network.seeds registry resolves (DNS-signed authorities plus its own
// static fallbacks), so an operator can point a fleet at a shared,
// centrally-rotated seed list instead of hardcoding addresses per node.
// A missing or unset registry file is not an error -- BootstrapPeers alone
// is a valid configuration.
func bootstrapPeers(configured []string, registryFile string, logger *slog.Logger) []string {
	peers := append([]string(nil), configured...)
	registryFile = strings.TrimSpace(registryFile)
	if registryFile == "" {
		return peers
	}
	raw, err := os.ReadFile(registryFile)
	if err != nil {
		logger.Warn("read seeds registry", "path", registryFile, "err", err)
		return peers
	}
	reg, err := seeds.Parse(raw)
	if err != nil {
		logger.Warn("parse seeds registry", "path", registryFile, "err", err)
		return peers
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	resolved, err := reg.Resolve(ctx, time.Now(), nil)
	if err != nil {
		logger.Warn("resolve seeds registry", "path", registryFile, "err", err)
	}
	for _, seed := range resolved {
		peers = append(peers, seed.Address)
	}
	return peers
}

// noopDoubleVoteSink discards equivocation reports; queuing them for
// mempool inclusion belongs to the execution layer this module does not
// implement.
type noopDoubleVoteSink struct{}

func (noopDoubleVoteSink) ReportDoubleVote(dv *types.DoubleVote) {}
