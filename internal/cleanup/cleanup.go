package cleanup

import (
	"log"
	"sync"
	"time"

	"github.com/ayush123-bit/paircode/internal/db"
)

type Config struct {
	Interval time.Duration

	// Rooms untouched for longer than this get swept. Active rooms are
	// never affected: every broadcast refreshes the room's timestamp.
	MaxIdle time.Duration
}

func DefaultConfig() Config {
	return Config{
		Interval: time.Hour,
		MaxIdle:  7 * 24 * time.Hour,
	}
}

// Service periodically drops room records nobody has edited in a long
// time. The directory is the only persistence this system has, so this
// is the one place state is ever reclaimed.
type Service struct {
	database *db.Database
	config   Config
	stop     chan struct{}
	wg       sync.WaitGroup
}

func New(database *db.Database, config Config) *Service {
	return &Service{
		database: database,
		config:   config,
		stop:     make(chan struct{}),
	}
}

func (s *Service) Start() {
	s.wg.Add(1)
	go s.run()
	log.Printf("Room cleanup started (interval: %v, max idle: %v)",
		s.config.Interval, s.config.MaxIdle)
}

func (s *Service) Stop() {
	close(s.stop)
	s.wg.Wait()
	log.Println("Room cleanup stopped")
}

func (s *Service) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.sweep()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Service) sweep() {
	cutoff := time.Now().Add(-s.config.MaxIdle)
	n, err := s.database.DeleteRoomsIdleSince(cutoff)
	if err != nil {
		log.Printf("Cleanup: failed to sweep idle rooms: %v", err)
		return
	}
	if n > 0 {
		log.Printf("Cleanup: swept %d idle rooms", n)
	}
}
