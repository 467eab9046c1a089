package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"optlab.com/pkg/api"
	"optlab.com/pkg/cache"
	"optlab.com/pkg/config"
	"optlab.com/pkg/kafka"
	"optlab.com/pkg/market"
	"optlab.com/pkg/nats"
	"optlab.com/pkg/pnl"
	"optlab.com/pkg/pricer"
	"optlab.com/pkg/quote"
	"optlab.com/pkg/report"
	"optlab.com/pkg/store"
)

const usage = `usage: pricer <command> [flags]

commands:
  serve     HTTP API + 报价消费 (NATS / Kafka)
  replay    从 CSV 读取报价，输出估值报表
  simulate  模拟期权链行情并估值
  pnl       从 CSV 读取收盘行情，输出持仓逐日盈亏
`

func main() {
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	cmd, args := "serve", os.Args[1:]
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "serve":
		err = serve(args)
	case "replay":
		err = replay(args)
	case "simulate":
		err = simulate(args)
	case "pnl":
		err = trackPnL(args)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

// waitSignal 阻塞到 SIGINT / SIGTERM 或 ctx 结束
func waitSignal(ctx context.Context) {
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()
}

// =============================================================================
// serve
// =============================================================================

func serve(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "配置文件路径 (可选)")
	_ = fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if err := quote.InitIDNode(cfg.NodeID); err != nil {
		return fmt.Errorf("init id node: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		sinks    []pricer.Sink
		valCache *cache.RedisValuationCache
		reader   api.ValuationCache
		history  api.ValuationHistory
		producer *kafka.Producer
		closers  []func()
	)
	tracker := pnl.NewTracker(pnl.NewMemoryStore())
	defer func() {
		// 逆序关闭
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	// 1. 缓存
	// -------------------------------------------------------------------------
	if cfg.RedisAddr != "" {
		c := cache.NewRedisValuationCache(cfg.RedisAddr)
		if err := c.Ping(ctx); err != nil {
			log.Printf("[Main] redis %s unavailable, cache disabled: %v", cfg.RedisAddr, err)
			_ = c.Close()
		} else {
			valCache, reader = c, c
			sinks = append(sinks, pricer.CacheSink(c))
			closers = append(closers, func() { _ = c.Close() })
			log.Printf("[Main] ✅ redis cache: %s", cfg.RedisAddr)
		}
	}

	// 2. 落库
	// -------------------------------------------------------------------------
	if cfg.MySQLDSN != "" {
		db, err := store.Open(cfg.MySQLDSN)
		if err != nil {
			return err
		}
		if err := store.AutoMigrate(db); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		repo := store.NewMySQLValuationRepository(db)
		history = repo
		tracker = pnl.NewTracker(store.NewMySQLSnapshotRepository(db))

		wcfg := pricer.DefaultBatchWriterConfig()
		wcfg.BatchSize = cfg.BatchSize
		wcfg.FlushInterval = cfg.FlushInterval
		writer := pricer.NewBatchWriter(wcfg, repo)
		writer.Start(ctx)
		sinks = append(sinks, writer)
		closers = append(closers, func() {
			writer.Stop()
			s := writer.Stats()
			log.Printf("[Main] writer stopped: received=%d written=%d failures=%d", s.ReceivedCount, s.WrittenCount, s.ErrorCount)
		})
		log.Println("[Main] ✅ mysql batch writer started")
	}

	// 3. 估值结果发布
	// -------------------------------------------------------------------------
	switch cfg.QuoteSource {
	case config.SourceNats:
		pub, err := nats.NewPublisher(cfg.NatsURL)
		if err != nil {
			return fmt.Errorf("nats publisher: %w", err)
		}
		sinks = append(sinks, pricer.NatsSink(pub))
		closers = append(closers, pub.Close)
	case config.SourceKafka:
		p, err := kafka.NewProducer(kafka.DefaultProducerConfig(cfg.KafkaBrokers))
		if err != nil {
			return fmt.Errorf("kafka producer: %w", err)
		}
		producer = p
		sinks = append(sinks, pricer.KafkaSink(producer))
		closers = append(closers, func() { _ = producer.Close() })
	}

	svc := pricer.NewService(quote.Evaluator{
		Tolerance:     cfg.IVTolerance,
		MaxIterations: cfg.IVMaxIterations,
	}, sinks...)
	closers = append(closers, svc.Close)

	// 4. 报价来源
	// -------------------------------------------------------------------------
	switch cfg.QuoteSource {
	case config.SourceNats:
		sub, err := nats.NewSubscriber(cfg.NatsURL, svc.HandleMessage)
		if err != nil {
			return fmt.Errorf("nats subscriber: %w", err)
		}
		if err := sub.SubscribeQueue(quote.SubjectQuotes, "pricer"); err != nil {
			_ = sub.Close()
			return err
		}
		closers = append(closers, func() { _ = sub.Close() })
		log.Printf("[Main] ✅ consuming %s from %s", quote.SubjectQuotes, cfg.NatsURL)

		// 下市通知每个实例都要收到，用普通订阅
		if valCache != nil {
			delistSub, err := nats.NewSubscriber(cfg.NatsURL, delistHandler(valCache))
			if err != nil {
				return fmt.Errorf("nats delist subscriber: %w", err)
			}
			if err := delistSub.Subscribe(quote.SubjectDelist); err != nil {
				_ = delistSub.Close()
				return err
			}
			closers = append(closers, func() { _ = delistSub.Close() })
			log.Printf("[Main] ✅ listening %s", quote.SubjectDelist)
		}
	case config.SourceKafka:
		consumer, err := kafka.NewConsumer(
			kafka.DefaultConsumerConfig(cfg.KafkaBrokers, cfg.KafkaGroup, []string{quote.TopicQuotes}),
			svc.HandleKafka,
		)
		if err != nil {
			return fmt.Errorf("kafka consumer: %w", err)
		}
		consumer.Start(ctx)
		closers = append(closers, func() { _ = consumer.Stop() })
		log.Printf("[Main] ✅ consuming %s from %v", quote.TopicQuotes, cfg.KafkaBrokers)
	}

	// 5. HTTP
	// -------------------------------------------------------------------------
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api.NewRouter(api.NewHandler(svc, reader, history, tracker, cfg.IVMaxIterations*10)),
	}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	log.Printf("[Main] 🚀 HTTP listening on %s", cfg.HTTPAddr)

	go reportStats(ctx, svc, producer, 30*time.Second)

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-sigCtx.Done():
	}
	log.Println("[Main] 🛑 Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[Main] http shutdown: %v", err)
	}
	cancel()
	return nil
}

// delistHandler 收到下市通知后清除缓存
func delistHandler(c *cache.RedisValuationCache) nats.MessageHandler {
	return func(subject string, data []byte) error {
		msg, err := nats.UnmarshalJSON[quote.Delist](data)
		if err != nil {
			return fmt.Errorf("decode delist from %s: %w", subject, err)
		}
		if msg.Symbol == "" {
			return fmt.Errorf("%w: empty delist symbol", quote.ErrInvalidQuote)
		}
		if err := c.Remove(context.Background(), msg.Symbol); err != nil {
			return fmt.Errorf("remove %s: %w", msg.Symbol, err)
		}
		log.Printf("[Main] delisted %s", msg.Symbol)
		return nil
	}
}

// reportStats producer 为 nil 表示未使用 Kafka
func reportStats(ctx context.Context, svc *pricer.Service, producer *kafka.Producer, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := svc.Stats()
			log.Printf("[Stats] received=%d evaluated=%d rejected=%d unresolved=%d sink_errors=%d dropped=%d",
				s.Received, s.Evaluated, s.Rejected, s.Unresolved, s.SinkErrors, s.Dropped)
			if producer != nil {
				ps := producer.Stats()
				log.Printf("[Stats] kafka sent=%d errors=%d", ps.SentCount, ps.ErrorCount)
			}
		}
	}
}

// =============================================================================
// replay
// =============================================================================

func replay(args []string) error {
	fs := flag.NewFlagSet("replay", flag.ExitOnError)
	in := fs.String("in", "", "报价 CSV 文件")
	out := fs.String("out", "-", "估值报表输出，- 为标准输出")
	tol := fs.Float64("tol", 0, "隐含波动率误差 (0 = 默认)")
	maxIter := fs.Int("max-iter", 0, "隐含波动率最大迭代次数 (0 = 默认)")
	_ = fs.Parse(args)

	if *in == "" {
		return errors.New("-in is required")
	}

	f, err := os.Open(*in)
	if err != nil {
		return err
	}
	defer f.Close()

	quotes, err := report.ReadQuotes(f)
	if err != nil {
		return err
	}

	svc := pricer.NewService(quote.Evaluator{Tolerance: *tol, MaxIterations: *maxIter})
	defer svc.Close()

	ctx := context.Background()
	valuations := make([]*quote.Valuation, 0, len(quotes))
	for _, q := range quotes {
		v, err := svc.HandleQuote(ctx, q)
		if err != nil {
			log.Printf("[Replay] skip: %v", err)
			continue
		}
		valuations = append(valuations, v)
	}

	var w io.Writer = os.Stdout
	if *out != "-" {
		of, err := os.Create(*out)
		if err != nil {
			return err
		}
		defer of.Close()
		w = of
	}
	if err := report.WriteValuations(w, valuations); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	s := svc.Stats()
	log.Printf("[Replay] done: quotes=%d evaluated=%d rejected=%d unresolved=%d",
		s.Received, s.Evaluated, s.Rejected, s.Unresolved)
	return nil
}

// =============================================================================
// simulate
// =============================================================================

func simulate(args []string) error {
	fs := flag.NewFlagSet("simulate", flag.ExitOnError)
	underlying := fs.String("underlying", "ETH", "标的")
	spot := fs.Float64("spot", 2000, "初始价格")
	interval := fs.Duration("interval", 500*time.Millisecond, "行情间隔")
	duration := fs.Duration("duration", 0, "运行时长，0 表示直到收到信号")
	publish := fs.String("publish", "", "把模拟报价发布到 NATS (如 nats://127.0.0.1:4222)")
	_ = fs.Parse(args)

	log.Println("🚀 Starting option chain simulation...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if *duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	var pub *nats.Publisher
	if *publish != "" {
		p, err := nats.NewPublisher(*publish)
		if err != nil {
			return fmt.Errorf("nats publisher: %w", err)
		}
		defer p.Close()
		pub = p
	}

	svc := pricer.NewService(quote.DefaultEvaluator())
	defer svc.Close()

	// 只打印偏离盘口的合约
	valuations := svc.Subscribe()
	go func() {
		for v := range valuations {
			if v.Signal == quote.SignalCheap || v.Signal == quote.SignalRich {
				log.Printf("[Signal] %-14s %-5s theo=%.2f bid=%.2f ask=%.2f iv=%.4f",
					v.Symbol, v.Signal, v.TheoPrice, v.Bid, v.Ask, v.ImpliedVol)
			}
		}
	}()

	ticker := market.NewTicker(*underlying, *spot, *interval)
	chain := market.NewChain(market.DefaultChainConfig(*underlying, *spot), time.Now().UnixNano())
	ticks := ticker.Start()
	defer ticker.Stop()

	go func() {
		for tick := range ticks {
			quotes, err := chain.Quotes(tick.Price, tick.Ts)
			if err != nil {
				log.Printf("[Market] generate quotes: %v", err)
				continue
			}
			for _, q := range quotes {
				if pub != nil {
					if err := pub.Publish(quote.SubjectQuotes, q); err != nil {
						log.Printf("[Market] publish %s: %v", q.Symbol, err)
					}
				}
				if _, err := svc.HandleQuote(ctx, q); err != nil {
					log.Printf("[Market] evaluate %s: %v", q.Symbol, err)
				}
			}
			if pub != nil {
				if err := pub.Flush(); err != nil {
					log.Printf("[Market] flush: %v", err)
				}
			}
			log.Printf("[Market] %s spot=%.2f quotes=%d", tick.Underlying, tick.Price, len(quotes))
		}
	}()

	waitSignal(ctx)
	log.Println("🛑 Shutting down...")

	s := svc.Stats()
	log.Printf("[Stats] received=%d evaluated=%d unresolved=%d dropped=%d",
		s.Received, s.Evaluated, s.Unresolved, s.Dropped)
	return nil
}

// =============================================================================
// pnl
// =============================================================================

func trackPnL(args []string) error {
	fs := flag.NewFlagSet("pnl", flag.ExitOnError)
	in := fs.String("in", "", "收盘行情 CSV 文件")
	out := fs.String("out", "-", "盈亏报表输出，- 为标准输出")
	dsn := fs.String("store", "", "MySQL DSN，非空时行情先落库再计算")
	underlying := fs.String("underlying", "", "标的")
	strike := fs.Float64("strike", 0, "执行价")
	expiration := fs.String("expiration", "", "到期日 YYYY-MM-DD")
	tradeDate := fs.String("trade-date", "", "开仓日 YYYY-MM-DD")
	to := fs.String("to", "", "截止日 YYYY-MM-DD (空为今天)")
	callSide := fs.String("call-side", "buy", "看涨腿方向 buy/sell")
	callContracts := fs.Int("call-contracts", 0, "看涨张数")
	callPrice := fs.Float64("call-price", 0, "看涨开仓价")
	putSide := fs.String("put-side", "buy", "看跌腿方向 buy/sell")
	putContracts := fs.Int("put-contracts", 0, "看跌张数")
	putPrice := fs.Float64("put-price", 0, "看跌开仓价")
	stockPrice := fs.Float64("stock-price", 0, "对冲股票买入价")
	delta := fs.Float64("delta", 0, "组合有效 Delta (对冲股数 = delta × 100)")
	_ = fs.Parse(args)

	if *in == "" {
		return errors.New("-in is required")
	}

	cs, err := pnl.ParseSide(*callSide)
	if err != nil {
		return err
	}
	ps, err := pnl.ParseSide(*putSide)
	if err != nil {
		return err
	}
	pos := pnl.Position{
		Underlying:      *underlying,
		Strike:          *strike,
		Expiration:      *expiration,
		TradeDate:       *tradeDate,
		StockTradePrice: *stockPrice,
		EffectiveDelta:  *delta,
		Call:            pnl.Leg{Side: cs, Contracts: *callContracts, TradePrice: *callPrice},
		Put:             pnl.Leg{Side: ps, Contracts: *putContracts, TradePrice: *putPrice},
	}

	f, err := os.Open(*in)
	if err != nil {
		return err
	}
	defer f.Close()

	snaps, err := report.ReadSnapshots(f)
	if err != nil {
		return err
	}

	var snapStore pnl.SnapshotStore = pnl.NewMemoryStore()
	if *dsn != "" {
		db, err := store.Open(*dsn)
		if err != nil {
			return err
		}
		if err := store.AutoMigrate(db); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		snapStore = store.NewMySQLSnapshotRepository(db)
	}

	ctx := context.Background()
	tracker := pnl.NewTracker(snapStore)
	if err := tracker.Record(ctx, snaps); err != nil {
		return err
	}
	rows, err := tracker.Track(ctx, pos, *to)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if *out != "-" {
		of, err := os.Create(*out)
		if err != nil {
			return err
		}
		defer of.Close()
		w = of
	}
	if err := report.WriteDailyPnL(w, rows); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	log.Printf("[PnL] done: snapshots=%d days=%d", len(snaps), len(rows))
	return nil
}
