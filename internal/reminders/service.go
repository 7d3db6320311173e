package reminders

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Service runs the processor on a fixed interval.
type Service struct {
	processor *Processor
	interval  time.Duration
	timeout   time.Duration
	logger    zerolog.Logger
	stopCh    chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	running   bool
}

func NewService(processor *Processor, interval time.Duration, logger *zerolog.Logger) *Service {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Service{
		processor: processor,
		interval:  interval,
		timeout:   interval,
		logger:    logger.With().Str("component", "reminder_loop").Logger(),
		stopCh:    make(chan struct{}),
	}
}

// Start begins the check loop. Calling it twice is a no-op.
func (s *Service) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop()

	s.logger.Info().Dur("check_interval", s.interval).Msg("Reminder service started")
}

// Stop waits for the current run to finish and ends the loop.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()

	s.logger.Info().Msg("Reminder service stopped")
}

func (s *Service) loop() {
	defer s.wg.Done()

	// Run immediately on start
	s.runOnce()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.runOnce()
		}
	}
}

func (s *Service) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.processor.Process(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Reminder run failed")
	}
}
