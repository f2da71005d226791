package signals

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
)

var pairs = []string{"BTC/USDT", "ETH/USDT", "EUR/USD", "GBP/JPY", "GOLD", "NASDAQ"}

var (
	reasonsUp = []string{
		"EMA50 crossed above EMA200, bullish bias",
		"MACD histogram turning positive",
		"RSI(14) above 55 indicating momentum",
		"Higher lows on 5m timeframe",
		"Price holding above VWAP",
	}
	reasonsDown = []string{
		"EMA50 crossed below EMA200, bearish bias",
		"MACD histogram turning negative",
		"RSI(14) below 45 indicating weakness",
		"Lower highs on 5m timeframe",
		"Price rejecting below VWAP",
	}
)

// Sample produces illustrative trading signals for premium members. It stands
// in for a real analysis feed behind the same interface.
type Sample struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSample() *Sample {
	return &Sample{rnd: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

// NewSeededSample returns a Sample with a reproducible sequence.
func NewSeededSample(seed uint64) *Sample {
	return &Sample{rnd: rand.New(rand.NewPCG(seed, seed))}
}

func (s *Sample) Signal(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	pair := pairs[s.rnd.IntN(len(pairs))]
	up := s.rnd.IntN(2) == 0
	direction, reasons := "DOWN", reasonsDown
	if up {
		direction, reasons = "UP", reasonsUp
	}
	picked := s.rnd.Perm(len(reasons))[:2]
	confidence := 3 + s.rnd.IntN(3)

	return fmt.Sprintf("%s\nDirection: %s\nConfidence: %d/5\nReason: %s.\nThis is not financial advice.",
		pair, direction, confidence,
		strings.Join([]string{reasons[picked[0]], reasons[picked[1]]}, ", ")), nil
}
