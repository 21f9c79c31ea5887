package walletsdk

import (
	"context"
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sparkwallet/spark-wallet-sdk/internal/conversion"
	"github.com/sparkwallet/spark-wallet-sdk/internal/database"
	"github.com/sparkwallet/spark-wallet-sdk/internal/deposit"
	"github.com/sparkwallet/spark-wallet-sdk/internal/leafstore"
	"github.com/sparkwallet/spark-wallet-sdk/internal/lightning"
	"github.com/sparkwallet/spark-wallet-sdk/internal/lnurl"
	"github.com/sparkwallet/spark-wallet-sdk/internal/operatorpool"
	"github.com/sparkwallet/spark-wallet-sdk/internal/orchestrator"
	"github.com/sparkwallet/spark-wallet-sdk/internal/signer"
	"github.com/sparkwallet/spark-wallet-sdk/internal/sspclient"
	"github.com/sparkwallet/spark-wallet-sdk/internal/swap"
	"github.com/sparkwallet/spark-wallet-sdk/internal/syncx"
	"github.com/sparkwallet/spark-wallet-sdk/internal/token"
	"github.com/sparkwallet/spark-wallet-sdk/internal/transfer"
	"github.com/sparkwallet/spark-wallet-sdk/internal/walleterrors"
	"github.com/sparkwallet/spark-wallet-sdk/pkg/walletcache"
	"github.com/sparkwallet/spark-wallet-sdk/pkg/walletlog"
)

// Wallet is a connected, running instance of the SDK: every engine wired
// together plus the background sync and leaf-refresh loops started by
// Connect.
type Wallet struct {
	cfg Config
	net *chaincfg.Params

	signer   *signer.Signer
	pool     *operatorpool.Pool
	ssp      *sspclient.Client
	lnurl    *lnurl.Client
	quorum   *operatorpool.Quorum
	syncConn *operatorpool.SyncTransport

	db                *database.DB
	payments          *database.PaymentRepository
	paymentMeta       *database.PaymentMetadataRepository
	unclaimedDeposits *database.UnclaimedDepositRepository
	settings          *database.SettingsRepository
	syncStore         *database.SyncStore

	pendingTransfers *database.PendingTransferRepository

	leaves     *leafstore.Store
	tokens     *token.Store
	transfer   *transfer.Engine
	lightning  *lightning.Engine
	deposit    *deposit.Engine
	swap       *swap.Engine
	conversion *conversion.Engine
	orch       *orchestrator.Orchestrator
	syncLoop   *syncx.Loop
	lockClient *syncx.LockClient

	clientID string

	events *eventBus

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Connect wires every engine together, runs migrations, performs the
// operator and SSP auth handshakes, and starts the background leaf-refresh
// and sync loops. It is the SDK's sole entry point (spec section 6).
func Connect(ctx context.Context, cfg Config, keys KeyMaterial) (*Wallet, error) {
	if err := walletlog.Init(cfg.Environment); err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindGeneric, err, "failed to initialize logging")
	}

	net, err := networkParams(cfg.Wallet.Network)
	if err != nil {
		return nil, err
	}

	s := keys.Signer
	if s == nil {
		if len(keys.Seed) == 0 {
			return nil, walleterrors.New(walleterrors.KindInvalidInput, "connect requires either a seed or a signer")
		}
		s, err = signer.New(keys.Seed, net)
		if err != nil {
			return nil, err
		}
	}

	db, err := database.NewDB(database.Config{
		Host: cfg.Wallet.Database.Host, Port: cfg.Wallet.Database.Port,
		User: cfg.Wallet.Database.User, Password: cfg.Wallet.Database.Password,
		DB: cfg.Wallet.Database.DB, SslMode: cfg.Wallet.Database.SslMode,
		MaxConns: cfg.Wallet.Database.MaxConns, MinConns: cfg.Wallet.Database.MinConns,
		MaxConnLifetime: cfg.Wallet.Database.MaxConnLifetime, MaxConnIdleTime: cfg.Wallet.Database.MaxConnIdleTime,
	})
	if err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindStorage, err, "failed to connect to database")
	}
	if err := db.RunMigrations(); err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindStorage, err, "failed to run migrations")
	}

	if cfg.Wallet.Redis.Host != "" {
		if err := walletcache.Init(walletcache.Config{
			Host: cfg.Wallet.Redis.Host, Port: cfg.Wallet.Redis.Port,
			Password: cfg.Wallet.Redis.Password, DB: cfg.Wallet.Redis.DB,
		}); err != nil {
			walletlog.Warn("redis unavailable, idempotency caching disabled")
		}
	}

	endpoints := make([]operatorpool.Endpoint, len(cfg.Wallet.Operators))
	for i, ep := range cfg.Wallet.Operators {
		endpoints[i] = operatorpool.Endpoint{
			ID: ep.ID, Host: ep.Host, Port: ep.Port,
			TLSCertPath: ep.TLSCertPath, IsCoordinator: ep.IsCoordinator,
		}
	}
	pool, err := operatorpool.New(ctx, s, endpoints)
	if err != nil {
		return nil, err
	}

	ssp, err := sspclient.New(ctx, sspclient.Config{
		BaseURL:          cfg.Wallet.SSP.BaseURL,
		IdentityKey:      s.IdentityPublicKey(),
		RequestTimeoutMs: cfg.Wallet.SSP.RequestTimeoutMs,
	}, s)
	if err != nil {
		return nil, err
	}

	quorum := operatorpool.NewQuorum(pool)
	syncTransport := operatorpool.NewSyncTransport(pool)

	leaves := leafstore.New(quorum, quorum, time.Duration(cfg.Wallet.SyncIntervalMs)*time.Millisecond, 8)
	tokenStore := token.New()

	pendingTransfers := database.NewPendingTransferRepository(db)
	transferEngine := transfer.New(s, leaves, quorum, &pendingTransferStoreAdapter{repo: pendingTransfers})
	lightningEngine := lightning.New(s, ssp, transferEngine)
	depositEngine := deposit.New(s, ssp, net)
	swapEngine := swap.New(s, leaves, quorum, ssp)
	tokenEngine := token.NewEngine(s, tokenStore, quorum)
	conversionEngine := conversion.New(transferEngine, tokenEngine, sspclient.TokenQuoter{Client: ssp}, s.IdentityPublicKey())

	payments := database.NewPaymentRepository(db)
	paymentMeta := database.NewPaymentMetadataRepository(db)
	unclaimedDeposits := database.NewUnclaimedDepositRepository(db)
	settings := database.NewSettingsRepository(db)
	syncStore := database.NewSyncStore(db)

	events := newEventBus()
	store := &paymentStoreAdapter{repo: payments}
	orch := orchestrator.New(net, lightningEngine, depositEngine, transferEngine, tokenEngine, store, &orchestratorSink{events: events})

	clientID, err := clientIdentifier(ctx, settings, s)
	if err != nil {
		return nil, err
	}
	syncLoop := syncx.New(syncStore, syncTransport, clientID)
	lockClient := syncx.NewLockClient(s, syncTransport)

	runCtx, cancel := context.WithCancel(context.Background())
	w := &Wallet{
		cfg: cfg, net: net,
		signer: s, pool: pool, ssp: ssp, lnurl: lnurl.New(), quorum: quorum, syncConn: syncTransport,
		db: db, payments: payments, paymentMeta: paymentMeta, unclaimedDeposits: unclaimedDeposits,
		settings: settings, syncStore: syncStore, pendingTransfers: pendingTransfers,
		leaves: leaves, tokens: tokenStore, transfer: transferEngine, lightning: lightningEngine,
		deposit: depositEngine, swap: swapEngine, conversion: conversionEngine, orch: orch,
		syncLoop: syncLoop, lockClient: lockClient, clientID: clientID,
		events: events, cancel: cancel,
	}

	if _, err := transferEngine.Resume(ctx); err != nil {
		walletlog.Warn("failed to resume pending transfers", zap.Error(err))
	}

	w.wg.Add(2)
	go func() { defer w.wg.Done(); w.leaves.Run(runCtx) }()
	go func() { defer w.wg.Done(); w.runSync(runCtx) }()
	go w.forwardOptimizationEvents(runCtx)
	go w.forwardSyncEvents(runCtx)

	return w, nil
}

// Disconnect stops every background loop and releases the underlying
// database and operator connections.
func (w *Wallet) Disconnect() error {
	w.cancel()
	w.leaves.Close()
	w.syncLoop.Close()
	w.lockClient.Close()
	w.wg.Wait()
	w.db.Close()
	return w.pool.Close()
}

func (w *Wallet) runSync(ctx context.Context) {
	if err := w.syncLoop.Run(ctx); err != nil && ctx.Err() == nil {
		walletlog.Warn("sync loop exited with error")
	}
}

func (w *Wallet) forwardOptimizationEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case progress, ok := <-w.leaves.OptimizationEvents():
			if !ok {
				return
			}
			w.events.emit(Event{
				Kind:         EventOptimizationProgress,
				Optimization: &progress,
			})
		}
	}
}

func (w *Wallet) forwardSyncEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-w.syncLoop.Synced():
			if !ok {
				return
			}
			w.events.emit(Event{Kind: EventSynced})
		}
	}
}

// clientIdentifier returns this wallet's stable sync client id, minting
// and persisting a fresh UUIDv7 the first time a given identity connects.
func clientIdentifier(ctx context.Context, settings *database.SettingsRepository, s *signer.Signer) (string, error) {
	const settingKey = "sync_client_id"
	existing, err := settings.Get(ctx, settingKey)
	if err == nil {
		return existing, nil
	}
	if err != database.ErrSettingNotFound {
		return "", walleterrors.Wrap(walleterrors.KindStorage, err, "failed to read sync client id")
	}
	minted, err := uuid.NewV7()
	if err != nil {
		return "", walleterrors.Wrap(walleterrors.KindGeneric, err, "failed to mint sync client id")
	}
	id := minted.String()
	if err := settings.Set(ctx, settingKey, id); err != nil {
		return "", walleterrors.Wrap(walleterrors.KindStorage, err, "failed to persist sync client id")
	}
	return id, nil
}
