package market

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/hyperlev/internal/clients"
	"github.com/vadiminshakov/hyperlev/internal/domain"
)

// BookDepth levels kept per side.
const BookDepth = 8

type bookFetcher interface {
	L2Book(ctx context.Context, coin string) (*clients.L2Book, error)
}

// BookTracker polls the L2 book of the selected instrument.
type BookTracker struct {
	api    bookFetcher
	logger *zap.Logger

	mu         sync.RWMutex
	generation uint64
	symbol     string
	book       domain.OrderBook
}

func NewBookTracker(api bookFetcher, logger *zap.Logger) *BookTracker {
	return &BookTracker{api: api, logger: logger}
}

// SetSymbol switches the tracked instrument and clears the book.
func (t *BookTracker) SetSymbol(symbol string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.symbol == symbol {
		return
	}
	t.generation++
	t.symbol = symbol
	t.book = domain.OrderBook{Symbol: symbol}
}

// PollOnce fetches the book of symbol; a response for a symbol that is no
// longer selected is dropped.
func (t *BookTracker) PollOnce(ctx context.Context, symbol string) (domain.OrderBook, error) {
	t.mu.RLock()
	gen := t.generation
	active := t.symbol
	t.mu.RUnlock()
	if active != symbol {
		return domain.OrderBook{}, errors.Wrapf(domain.ErrStaleResponse, "symbol %s is not selected", symbol)
	}

	raw, err := t.api.L2Book(ctx, symbol)
	if err != nil {
		t.logger.Warn("failed to fetch order book", zap.String("symbol", symbol), zap.Error(err))
		return domain.OrderBook{}, err
	}

	book := toOrderBook(symbol, raw)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.generation != gen || t.symbol != symbol || ctx.Err() != nil {
		return domain.OrderBook{}, errors.Wrapf(domain.ErrStaleResponse, "order book for %s", symbol)
	}
	t.book = book
	return cloneBook(book), nil
}

// Book copy of the current book.
func (t *BookTracker) Book() domain.OrderBook {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return cloneBook(t.book)
}

func toOrderBook(symbol string, raw *clients.L2Book) domain.OrderBook {
	book := domain.OrderBook{Symbol: symbol, Time: time.UnixMilli(raw.Time)}
	if len(raw.Levels) > 0 {
		book.Bids = toLevels(raw.Levels[0])
	}
	if len(raw.Levels) > 1 {
		book.Asks = toLevels(raw.Levels[1])
	}
	return book
}

func toLevels(levels []clients.L2Level) []domain.BookLevel {
	out := make([]domain.BookLevel, 0, BookDepth)
	for _, l := range levels {
		if len(out) == BookDepth {
			break
		}
		px, err := decimal.NewFromString(l.Px)
		if err != nil {
			continue
		}
		sz, err := decimal.NewFromString(l.Sz)
		if err != nil {
			continue
		}
		out = append(out, domain.BookLevel{Price: px, Size: sz, Orders: l.N})
	}
	return out
}

func cloneBook(b domain.OrderBook) domain.OrderBook {
	b.Bids = append([]domain.BookLevel(nil), b.Bids...)
	b.Asks = append([]domain.BookLevel(nil), b.Asks...)
	return b
}
