package browser

import (
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// pageHandle wraps a pooled rod.Page with health tracking so pages
// that accumulate failures or heavy use are retired rather than
// reused indefinitely across concurrent render calls.
type pageHandle struct {
	page     *rod.Page
	errScore float64
	useCount int
	created  time.Time
	mu       sync.Mutex
}

func newPageHandle(page *rod.Page) *pageHandle {
	return &pageHandle{page: page, created: time.Now()}
}

func (h *pageHandle) recordSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.useCount++
	h.errScore = math.Max(0, h.errScore-0.5)
}

func (h *pageHandle) recordFailure() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.useCount++
	h.errScore += 1.0
}

func (h *pageHandle) shouldRetire() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.errScore >= 3.0 {
		return true
	}
	if h.useCount >= 50 {
		return true
	}
	return time.Since(h.created) >= 50*time.Minute
}

// PoolConfig bounds the page pool's size.
type PoolConfig struct {
	MinPages int
	HardMax  int
}

// Pool is a cross-call pool of browser pages/tabs, shared by
// concurrent orchestrator calls per spec §5's "Multi-call policy".
// It performs no parallelism within a single render call; it only
// amortizes tab creation across calls.
type Pool struct {
	cfg     PoolConfig
	browser *rod.Browser

	idle    chan *pageHandle
	mu      sync.Mutex
	all     map[*rod.Page]*pageHandle
	active  atomic.Int32
}

// NewPool creates a pool bound to an already-launched browser and
// pre-creates MinPages tabs.
func NewPool(browser *rod.Browser, cfg PoolConfig) *Pool {
	if cfg.MinPages < 1 {
		cfg.MinPages = 1
	}
	if cfg.HardMax < cfg.MinPages {
		cfg.HardMax = cfg.MinPages
	}
	p := &Pool{
		cfg:     cfg,
		browser: browser,
		idle:    make(chan *pageHandle, cfg.HardMax),
		all:     make(map[*rod.Page]*pageHandle),
	}
	for i := 0; i < cfg.MinPages; i++ {
		h, err := p.createLocked()
		if err != nil {
			slog.Warn("browser pool: failed to pre-create page", "error", err)
			continue
		}
		p.idle <- h
	}
	return p
}

// Get acquires a page, creating a new one if under HardMax, otherwise
// blocking for one to free up.
func (p *Pool) Get() (*rod.Page, error) {
	select {
	case h := <-p.idle:
		p.active.Add(1)
		return h.page, nil
	default:
	}

	p.mu.Lock()
	if len(p.all) < p.cfg.HardMax {
		h, err := p.createLocked()
		p.mu.Unlock()
		if err == nil {
			p.active.Add(1)
			return h.page, nil
		}
	} else {
		p.mu.Unlock()
	}

	h := <-p.idle
	p.active.Add(1)
	return h.page, nil
}

// Put returns a page to the pool, retiring it if it failed or is
// past its health thresholds.
func (p *Pool) Put(page *rod.Page, success bool) {
	p.active.Add(-1)

	p.mu.Lock()
	h, ok := p.all[page]
	p.mu.Unlock()
	if !ok {
		return
	}

	if success {
		h.recordSuccess()
	} else {
		h.recordFailure()
	}

	if h.shouldRetire() {
		p.destroy(h)
		p.mu.Lock()
		if len(p.all) < p.cfg.MinPages {
			if newH, err := p.createLocked(); err == nil {
				p.mu.Unlock()
				p.idle <- newH
				return
			}
		}
		p.mu.Unlock()
		return
	}

	p.idle <- h
}

// Close destroys every tracked page.
func (p *Pool) Close() {
drain:
	for {
		select {
		case h := <-p.idle:
			p.destroy(h)
		default:
			break drain
		}
	}
	p.mu.Lock()
	for pg := range p.all {
		_ = pg.Close()
	}
	p.all = make(map[*rod.Page]*pageHandle)
	p.mu.Unlock()
}

// ActiveCount reports how many pages are currently checked out.
func (p *Pool) ActiveCount() int {
	return int(p.active.Load())
}

// createLocked opens a new tab and tracks it. The caller must hold p.mu
// (NewPool calls it before the pool is shared).
func (p *Pool) createLocked() (*pageHandle, error) {
	page, err := p.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, err
	}
	h := newPageHandle(page)
	p.all[page] = h
	return h, nil
}

func (p *Pool) destroy(h *pageHandle) {
	p.mu.Lock()
	delete(p.all, h.page)
	p.mu.Unlock()
	_ = h.page.Close()
}
