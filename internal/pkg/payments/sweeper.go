package payments

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/marcwilhelm/SalonOwl/app/models"
	"github.com/marcwilhelm/SalonOwl/internal/pkg/metrics/counter"
)

const sweepBatchSize = 100

// Sweeper periodically expires stale pending payments. Expiry timestamps are
// otherwise advisory: the gateway never calls back for an intent the client
// abandoned, so without the sweep pending rows would dangle forever.
type Sweeper struct {
	service  *Service
	interval time.Duration
	ticker   *time.Ticker
	stopCh   chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
}

// NewSweeper creates a sweeper running at the given interval.
func NewSweeper(service *Service, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{
		service:  service,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the background sweep loop.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.stopCh = make(chan struct{})
	s.running = true
	s.ticker = time.NewTicker(s.interval)

	log.Info("[Billing Sweeper] Starting pending payment expiry sweep")
	s.wg.Add(1)
	go s.loop()
}

// Stop halts the sweep loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	s.ticker.Stop()
	close(s.stopCh)
	s.wg.Wait()
	log.Info("[Billing Sweeper] Stopped")
}

func (s *Sweeper) loop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ticker.C:
			if n, err := s.service.ExpirePendingPayments(context.Background(), time.Now()); err != nil {
				log.Errorf("[Billing Sweeper] sweep failed: %v", err)
			} else if n > 0 {
				log.Infof("[Billing Sweeper] expired %d stale pending payments", n)
			}
			if err := counter.FlushAll(); err != nil {
				log.Warnf("[Billing Sweeper] usage counter flush failed: %v", err)
			}
		case <-s.stopCh:
			return
		}
	}
}

// ExpirePendingPayments cancels pending payments whose expiry has passed.
// Remote intent cancellation is best-effort; the local transition always
// proceeds.
func (s *Service) ExpirePendingPayments(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.repo.ListExpiredPendingPayments(now, sweepBatchSize)
	if err != nil {
		return 0, err
	}
	if len(expired) == 0 {
		return 0, nil
	}

	var gw Gateway
	if settings, err := s.repo.PaymentSettings(); err == nil && settings.StripeSecretKey != "" {
		gw = s.newGateway(GatewayConfig{SecretKey: settings.StripeSecretKey, Currency: settings.Currency})
	}

	count := 0
	for i := range expired {
		payment := expired[i]
		if gw != nil && payment.StripePaymentIntentID != "" {
			intentID := payment.StripePaymentIntentID
			dispatchBestEffort("expired intent cancellation", func() error {
				return gw.CancelIntent(ctx, intentID)
			})
		}

		err := s.repo.WithTx(func(r Repository) error {
			p, err := r.GetSubscriptionPaymentByPublicID(payment.PublicID)
			if err != nil {
				return err
			}
			if p.Status != models.PaymentStatusPending {
				return nil
			}
			p.Status = models.PaymentStatusCancelled
			p.SetMetadata(map[string]string{models.MetaCancelReason: "pending payment expired"})
			return r.SaveSubscriptionPayment(p)
		})
		if err != nil {
			log.Warnf("[Billing Sweeper] failed to expire payment %s: %v", payment.PublicID, err)
			continue
		}
		count++
	}
	return count, nil
}
