package gpio

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultPWMFrequency is the software PWM frequency for motor enable lines.
const DefaultPWMFrequency = 100

// softPWM toggles an output line from its own goroutine.
type softPWM struct {
	line   OutputLine
	period time.Duration

	duty atomic.Uint64 // float64 bits in [0,1]

	mu  sync.Mutex
	err error // last line write error, reported by the next set

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func newSoftPWM(line OutputLine, frequency int) *softPWM {
	if frequency <= 0 {
		frequency = DefaultPWMFrequency
	}
	p := &softPWM{
		line:   line,
		period: time.Second / time.Duration(frequency),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

// set changes the duty cycle. It returns any write error the PWM goroutine
// hit since the previous call.
func (p *softPWM) set(duty float64) error {
	duty = math.Max(0, math.Min(duty, 1))
	p.duty.Store(math.Float64bits(duty))

	p.mu.Lock()
	err := p.err
	p.err = nil
	p.mu.Unlock()
	return err
}

func (p *softPWM) level() float64 {
	return math.Float64frombits(p.duty.Load())
}

func (p *softPWM) write(v int) {
	if err := p.line.SetValue(v); err != nil {
		p.mu.Lock()
		p.err = err
		p.mu.Unlock()
	}
}

// wait sleeps for d and reports false if the PWM was stopped meanwhile.
func (p *softPWM) wait(d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-p.stop:
		return false
	case <-t.C:
		return true
	}
}

func (p *softPWM) run() {
	defer close(p.done)
	for {
		duty := p.level()
		switch {
		case duty <= 0:
			p.write(0)
			if !p.wait(p.period) {
				return
			}
		case duty >= 1:
			p.write(1)
			if !p.wait(p.period) {
				return
			}
		default:
			on := time.Duration(float64(p.period) * duty)
			p.write(1)
			if !p.wait(on) {
				return
			}
			p.write(0)
			if !p.wait(p.period - on) {
				return
			}
		}
	}
}

// close stops the goroutine and leaves the line low.
func (p *softPWM) close() error {
	p.once.Do(func() {
		close(p.stop)
		<-p.done
	})
	return p.line.SetValue(0)
}
